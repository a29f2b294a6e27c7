package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/armctl/pkg/logging"
	"github.com/gwillem/armctl/pkg/robot"
	"github.com/gwillem/armctl/pkg/transport"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	SkipTest bool `long:"skip-test" description:"Write the config without connecting to the arm"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("armctl setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if robot.ConfigExists(opts.Config) {
		loaded, err := robot.LoadConfigFrom(opts.Config)
		if err != nil {
			return err
		}
		cfg = *loaded
		fmt.Printf("Editing %s\n\n", opts.Config)
	}

	if err := selectTransport(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !c.SkipTest {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Testing connection ━━━"))
		fmt.Println()
		if err := testConnection(&cfg); err != nil {
			fmt.Println(errorStyle.Render("Connection failed: " + err.Error()))
			var save bool
			if err := confirm("Save the configuration anyway?", &save); err != nil || !save {
				return err
			}
		}
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start teleoperation with: " + headerStyle.Render("armctl run"))
	return nil
}

func selectTransport(cfg *robot.Config) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How is the arm connected?").
				Options(
					huh.NewOption("Firmata board (PWM servos)", robot.TransportFirmata),
					huh.NewOption("Feetech STS bus servos", robot.TransportFeetech),
					huh.NewOption("Simulated, no hardware", robot.TransportSim),
				).
				Value(&cfg.Transport),
			huh.NewSelect[string]().
				Title("Key input").
				Options(
					huh.NewOption("Terminal UI", robot.InputTUI),
					huh.NewOption("Lines from stdin", robot.InputStdin),
				).
				Value(&cfg.Input),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	cfg.BaudRate = 0 // derived from the transport by Validate

	if cfg.Transport == robot.TransportSim {
		cfg.Port = ""
		return nil
	}

	ports, err := listPorts(false)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		return errors.New("no serial ports found; make sure the arm is connected and powered on")
	}

	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		options = append(options, huh.NewOption(p, p))
	}
	if !slices.Contains(ports, cfg.Port) {
		cfg.Port = ports[0]
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port is the arm on?").
				Options(options...).
				Value(&cfg.Port),
		),
	).Run()
}

func testConnection(cfg *robot.Config) error {
	if cfg.Transport == robot.TransportFeetech {
		return scanBus(cfg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout+time.Second)
	defer cancel()

	log := logging.New(logging.Config{Level: "warn", Console: true})
	tx, err := transport.Open(ctx, transportConfig(cfg, log))
	if err != nil {
		return err
	}
	defer tx.Close()

	fmt.Println(successStyle.Render(fmt.Sprintf("Connected to %s on %s", cfg.Transport, displayPort(cfg.Port))))
	return nil
}

// scanBus lists the servos on a Feetech bus and checks every joint has one.
func scanBus(cfg *robot.Config) error {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	found, err := bus.Scan(ctx, 1, 253)
	if err != nil {
		return fmt.Errorf("scan bus: %w", err)
	}

	ids := make(map[int]string, len(found))
	for _, s := range found {
		ids[s.ID] = fmt.Sprint(s.Model)
	}

	var missing []robot.JointID
	rows := make([][]string, 0, len(cfg.Joints))
	for _, j := range cfg.Joints {
		model, ok := ids[j.Pin]
		if !ok {
			model = "missing"
			missing = append(missing, j.ID)
		}
		rows = append(rows, []string{string(j.ID), fmt.Sprint(j.Pin), model})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Servo ID", "Model").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 2 && row >= 0 && row < len(rows) && rows[row][2] == "missing" {
				return errorStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Println(t.Render())

	if len(missing) > 0 {
		return fmt.Errorf("no servo found for %v", missing)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Found all %d servos", len(cfg.Joints))))
	return nil
}

func confirm(title string, value *bool) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Value(value),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Fprintln(os.Stderr)
		return err
	}
	return nil
}

func displayPort(port string) string {
	if port == "" {
		return "(no port)"
	}
	return port
}
