// Package robot provides the joints of a servo-driven arm and their configuration.
package robot

// JointID identifies a joint in the arm.
type JointID string

// Joint names for the default 7-servo desktop arm.
const (
	Base1         JointID = "base_1"
	Base2         JointID = "base_2"
	Shoulder      JointID = "shoulder"
	Elbow         JointID = "elbow"
	ArmBend       JointID = "arm_bend"
	GripperRotate JointID = "gripper_rotate"
	GripperGrasp  JointID = "gripper_grasp"
)

// MaxJoints is the largest number of joints a session drives.
const MaxJoints = 7

// AllJoints returns the default joint names in wiring order.
func AllJoints() []JointID {
	return []JointID{
		Base1,
		Base2,
		Shoulder,
		Elbow,
		ArmBend,
		GripperRotate,
		GripperGrasp,
	}
}

// Pose maps joints to positions.
type Pose map[JointID]int

// Clone returns a copy of the pose.
func (p Pose) Clone() Pose {
	c := make(Pose, len(p))
	for id, pos := range p {
		c[id] = pos
	}
	return c
}

// Equal reports whether both poses hold the same joints at the same positions.
func (p Pose) Equal(o Pose) bool {
	if len(p) != len(o) {
		return false
	}
	for id, pos := range p {
		if other, ok := o[id]; !ok || other != pos {
			return false
		}
	}
	return true
}
