package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gwillem/armctl/pkg/robot"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func TestRecordAndSeal(t *testing.T) {
	r := New()
	if _, err := r.Playable(); !errors.Is(err, ErrNothingToPlay) {
		t.Fatalf("Playable on idle recorder: got %v, want ErrNothingToPlay", err)
	}

	r.Start(at(0), robot.Pose{"base": 50, "shoulder": 0})
	if r.State() != Armed {
		t.Fatalf("state = %v, want armed", r.State())
	}
	if _, err := r.Playable(); !errors.Is(err, ErrNothingToPlay) {
		t.Errorf("armed recording must not be playable, got %v", err)
	}

	r.Capture(at(200), robot.Pose{"base": 70, "shoulder": 20})
	r.Capture(at(500), robot.Pose{"base": 100, "shoulder": 40})

	rec, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []Frame{
		{OffsetMS: 0, Positions: robot.Pose{"base": 50, "shoulder": 0}},
		{OffsetMS: 200, Positions: robot.Pose{"base": 70, "shoulder": 20}},
		{OffsetMS: 500, Positions: robot.Pose{"base": 100, "shoulder": 40}},
	}
	if diff := cmp.Diff(want, rec.Frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	if rec.Duration() != 500*time.Millisecond {
		t.Errorf("Duration = %v", rec.Duration())
	}

	got, err := r.Playable()
	if err != nil || got != rec {
		t.Errorf("Playable = %v, %v", got, err)
	}
}

func TestCaptureCopiesPose(t *testing.T) {
	r := New()
	pose := robot.Pose{"base": 10}
	r.Start(at(0), pose)
	pose["base"] = 99

	rec, _ := r.Stop()
	if rec.Frames[0].Positions["base"] != 10 {
		t.Errorf("frame changed with caller's pose: %v", rec.Frames[0].Positions)
	}
}

func TestCaptureOnlyWhileArmed(t *testing.T) {
	r := New()
	if r.Capture(at(10), robot.Pose{"base": 1}) {
		t.Error("captured while idle")
	}
	r.Start(at(0), robot.Pose{"base": 0})
	r.Stop()
	if r.Capture(at(10), robot.Pose{"base": 1}) {
		t.Error("captured while sealed")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestOffsetsNeverDecrease(t *testing.T) {
	r := New()
	r.Start(at(100), robot.Pose{"base": 0})
	r.Capture(at(300), robot.Pose{"base": 1})
	r.Capture(at(50), robot.Pose{"base": 2})

	rec, _ := r.Stop()
	if got := rec.Frames[2].OffsetMS; got != 200 {
		t.Errorf("offset after clock step back = %d, want 200", got)
	}
}

func TestStartDiscardsPrevious(t *testing.T) {
	r := New()
	r.Start(at(0), robot.Pose{"base": 1})
	r.Capture(at(10), robot.Pose{"base": 2})
	old, _ := r.Stop()

	r.Start(at(1000), robot.Pose{"base": 7})
	rec, _ := r.Stop()

	if rec == old || rec.ID == old.ID {
		t.Fatal("new recording reuses the old one")
	}
	want := []Frame{{OffsetMS: 0, Positions: robot.Pose{"base": 7}}}
	if diff := cmp.Diff(want, rec.Frames); diff != "" {
		t.Errorf("old frames still reachable (-want +got):\n%s", diff)
	}
}

func TestStopWhenNotArmed(t *testing.T) {
	r := New()
	if _, err := r.Stop(); !errors.Is(err, ErrNotArmed) {
		t.Errorf("got %v, want ErrNotArmed", err)
	}
}

func TestSet(t *testing.T) {
	r := New()
	rec := &Recording{Frames: []Frame{{Positions: robot.Pose{"base": 3}}}}
	if err := r.Set(rec); err != nil {
		t.Fatal(err)
	}
	if got, err := r.Playable(); err != nil || got != rec {
		t.Errorf("Playable after Set = %v, %v", got, err)
	}

	r.Start(at(0), robot.Pose{})
	if err := r.Set(rec); !errors.Is(err, ErrArmed) {
		t.Errorf("Set while armed: got %v, want ErrArmed", err)
	}

	r.Stop()
	if err := r.Set(&Recording{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Playable(); !errors.Is(err, ErrNothingToPlay) {
		t.Errorf("empty recording must not be playable, got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	r := New()
	r.Start(at(0), robot.Pose{"base": 50, "shoulder": 0})
	r.Capture(at(200), robot.Pose{"base": 70, "shoulder": 20})
	r.Capture(at(200), robot.Pose{"base": 80, "shoulder": 20})
	r.Capture(at(500), robot.Pose{"base": 100, "shoulder": 40})
	rec, _ := r.Stop()

	path := filepath.Join(t.TempDir(), "path.json")
	if err := Save(path, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(rec, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Overwrite keeps a single valid file.
	if err := Save(path, &Recording{Frames: []Frame{}}); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the recording file, got %d entries", len(entries))
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}

	unordered := filepath.Join(dir, "unordered.json")
	os.WriteFile(unordered, []byte(`{"frames":[{"offset_ms":20,"positions":{}},{"offset_ms":10,"positions":{}}]}`), 0o644)
	if _, err := Load(unordered); err == nil {
		t.Error("expected error for decreasing offsets")
	}
}
