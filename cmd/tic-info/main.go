// Command tic-info lists the Tic controllers on USB with their live status.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jessevdk/go-flags"

	"github.com/gwillem/oscillator/pkg/servo"
	"github.com/gwillem/oscillator/pkg/tic"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
)

type Options struct {
	ClearErrors bool   `long:"clear-errors" description:"Clear latched driver errors after reading"`
	ServoPort   string `long:"servo-port" description:"Also scan this Feetech servo bus"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	fmt.Println(headerStyle.Render("Tic Controllers"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	ports, err := tic.Find()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Println("No Tic controllers found.")
		fmt.Println("Make sure the controller is connected over USB.")
	} else {
		fmt.Println(statusTable(ports, opts.ClearErrors))
	}

	if opts.ServoPort != "" {
		fmt.Println()
		scanServos(opts.ServoPort)
	}
}

func statusTable(ports []tic.PortInfo, clear bool) string {
	rows := make([][]string, 0, len(ports))
	healthy := make([]bool, 0, len(ports))
	for _, p := range ports {
		row, ok := readStatus(p, clear)
		rows = append(rows, row)
		healthy = append(healthy, ok)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "Model", "Serial", "State", "Position", "Velocity", "VIN", "Current", "Errors").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 3 && row >= 0 && row < len(healthy) {
				if healthy[row] {
					return okStyle
				}
				return errStyle
			}
			return cellStyle
		})
	return t.Render()
}

// readStatus opens the Tic and formats one table row. ok is false when the
// device could not be read or reports errors.
func readStatus(p tic.PortInfo, clear bool) (row []string, ok bool) {
	row = []string{p.Name, p.Product.String(), p.SerialNumber}

	dev, err := tic.Open(p.Name, p.Product)
	if err != nil {
		return append(row, "open failed", "", "", "", "", err.Error()), false
	}
	defer dev.Close()

	s, err := dev.Status()
	if err != nil {
		return append(row, "no response", "", "", "", "", err.Error()), false
	}

	current := "?"
	if ma, known := p.Product.CurrentLimitMilliamps(s.CurrentLimit); known {
		current = fmt.Sprintf("%d mA", ma)
	}
	errs := strings.Join(s.ErrorStatus.Names(), ", ")
	if errs == "" {
		errs = "none"
	}
	row = append(row,
		s.OperationState.String(),
		fmt.Sprintf("%d", s.CurrentPosition),
		fmt.Sprintf("%d", s.CurrentVelocity),
		fmt.Sprintf("%.2f V", float64(s.VinMillivolts)/1000),
		current,
		errs,
	)

	if clear && s.ErrorStatus != 0 {
		if err := dev.ClearDriverError(); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing %s: %v\n", p.Name, err)
		}
	}
	return row, s.ErrorStatus == 0
}

func scanServos(port string) {
	fmt.Printf("Scanning servo bus on %s...\n", port)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	found, err := servo.Scan(ctx, port, 1, 20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  Error scanning: %v\n", err)
		return
	}
	if len(found) == 0 {
		fmt.Println("  No servos answered.")
		return
	}
	for _, s := range found {
		fmt.Printf("  Servo ID %d (model %v)\n", s.ID, s.Model)
	}
}
