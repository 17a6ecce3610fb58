package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/oscillator/pkg/motion"
	"github.com/gwillem/oscillator/pkg/rig"
	"github.com/gwillem/oscillator/pkg/tic"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Oscillator Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := rig.LoadConfigFrom(opts.Config)
	switch {
	case errors.Is(err, os.ErrNotExist):
		def := rig.DefaultConfig()
		cfg = &def
	case err != nil:
		return err
	}

	// Step 1: pick the controller
	if err := chooseController(cfg); err != nil {
		return err
	}

	// Step 2: motion settings
	fmt.Println()
	if err := chooseMotion(cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start a run with: " + headerStyle.Render("oscillator oscillate"))
	return nil
}

const feetechChoice = "feetech"

func chooseController(cfg *rig.Config) error {
	fmt.Println("Scanning for Tic controllers...")
	found, err := tic.Find()
	if err != nil {
		fmt.Printf("  Error listing ports: %v\n", err)
	}
	for _, p := range found {
		fmt.Printf("  Found %s on %s (serial %s)\n", p.Product, p.Name, p.SerialNumber)
	}
	if len(found) == 0 {
		fmt.Println("  No Tic found on USB.")
	}
	fmt.Println()

	options := make([]huh.Option[string], 0, len(found)+2)
	for _, p := range found {
		options = append(options, huh.NewOption(fmt.Sprintf("%s on %s", p.Product, p.Name), p.Name))
	}
	options = append(options,
		huh.NewOption("First Tic found at start (auto)", ""),
		huh.NewOption("Feetech servo (bench test)", feetechChoice),
	)

	choice := cfg.Port
	if cfg.Transport == rig.TransportFeetech {
		choice = feetechChoice
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which controller drives the axis?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	switch choice {
	case feetechChoice:
		return chooseServo(cfg)
	case "":
		cfg.Transport, cfg.Port, cfg.Product = rig.TransportUSB, "", ""
	default:
		cfg.Transport, cfg.Port = rig.TransportUSB, choice
		for _, p := range found {
			if p.Name == choice {
				cfg.Product = p.Product.String()
			}
		}
	}
	return nil
}

func chooseServo(cfg *rig.Config) error {
	port := cfg.Port
	id := strconv.Itoa(max(cfg.ServoID, 1))
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Servo bus port").Value(&port).Validate(required),
			huh.NewInput().Title("Servo ID").Value(&id).Validate(isInt),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Transport, cfg.Port, cfg.Product = rig.TransportFeetech, port, ""
	cfg.ServoID, _ = strconv.Atoi(id)
	return nil
}

func chooseMotion(cfg *rig.Config) error {
	s := cfg.Settings()
	x1 := strconv.Itoa(s.X1)
	x2 := strconv.Itoa(s.X2)
	cycles := "inf"
	if s.Cycles.Bounded() {
		cycles = strconv.Itoa(int(s.Cycles))
	}
	policy := string(s.Policy)
	rotation := strconv.Itoa(s.RotationSpeed)
	dwell := s.Dwell.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("First endpoint (microsteps)").Value(&x1).Validate(isInt),
			huh.NewInput().Title("Second endpoint (microsteps)").Value(&x2).Validate(isInt),
			huh.NewInput().
				Title("Cycles").
				Description("A number, or 'inf' to run until stopped").
				Value(&cycles).
				Validate(func(v string) error {
					_, err := motion.ParseGoal(v)
					return err
				}),
			huh.NewSelect[string]().
				Title("Cycle counting").
				Options(
					huh.NewOption("first → other → first is one cycle", string(motion.PolicyTriple)),
					huh.NewOption("every return to the first endpoint", string(motion.PolicyAnchor)),
				).
				Value(&policy),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Rotation speed").
				Description("Microsteps per 10000 s, negative to reverse").
				Value(&rotation).
				Validate(isInt),
			huh.NewInput().
				Title("Dwell at each endpoint").
				Value(&dwell).
				Validate(func(v string) error {
					_, err := time.ParseDuration(v)
					return err
				}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	s.X1, _ = strconv.Atoi(x1)
	s.X2, _ = strconv.Atoi(x2)
	s.Cycles, _ = motion.ParseGoal(cycles)
	s.Policy = motion.PolicyKind(policy)
	s.RotationSpeed, _ = strconv.Atoi(rotation)
	s.Dwell, _ = time.ParseDuration(dwell)
	cfg.Motion = rig.FromSettings(s)
	return nil
}

func required(v string) error {
	if v == "" {
		return errors.New("required")
	}
	return nil
}

func isInt(v string) error {
	if _, err := strconv.Atoi(v); err != nil {
		return errors.New("must be a whole number")
	}
	return nil
}
