package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/extensibility"
	"github.com/comalice/chartkit/internal/primitives"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a chart against a list of events",
		Long: `Starts a machine and sends it events, one macrostep each, printing what every step did.

Events come from --events or, one per line, from stdin. A line is an event type optionally
followed by its data as JSON or a literal: "SET {\"n\": 1}", "TICK 5". Blank lines and lines
starting with # are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFor(cmd)
			if err != nil {
				return err
			}
			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}
			events, err := eventsFor(cmd)
			if err != nil {
				return err
			}

			m, cleanup, err := newMachine(cmd.Context(), cmd, def, logger)
			if cleanup != nil {
				defer cleanup()
			}
			if err != nil {
				return err
			}
			defer m.Stop()

			out := termenv.NewOutput(cmd.OutOrStdout())
			fmt.Fprintf(out, "%s %s %v\n", out.String("start").Bold(), m.ID(), m.Configuration())

			failed := 0
			for _, ev := range events {
				report, err := m.Send(cmd.Context(), ev)
				printStep(out, report, err)
				if err != nil {
					failed++
				}
			}
			fmt.Fprintf(out, "%s %v\n", out.String("final").Bold(), m.Configuration())
			if failed > 0 {
				return fmt.Errorf("%d of %d events failed", failed, len(events))
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("events", nil, "Comma-separated event types to send (default: read stdin)")
	addMachineFlags(cmd)
	return cmd
}

func printStep(out *termenv.Output, report core.TransitionReport, err error) {
	switch {
	case err != nil:
		fmt.Fprintf(out, "%s %s: %v\n", out.String("error").Foreground(out.Color("1")), report.Event.Type, err)
	case report.Microsteps == 0:
		fmt.Fprintf(out, "%s %s\n", out.String("skip ").Faint(), report.Event.Type)
	default:
		fmt.Fprintf(out, "%s %s: %s -> %s %v\n", out.String("step ").Foreground(out.Color("2")), report.Event.Type,
			strings.Join(report.Exited, ","), strings.Join(report.Entered, ","), report.Configuration)
	}
}

func eventsFor(cmd *cobra.Command) ([]primitives.Event, error) {
	types, _ := cmd.Flags().GetStringSlice("events")
	if len(types) > 0 {
		events := make([]primitives.Event, 0, len(types))
		for _, t := range types {
			events = append(events, primitives.NewEvent(strings.TrimSpace(t), nil))
		}
		return events, nil
	}
	return readEvents(cmd.InOrStdin())
}

// readEvents parses one event per line.
func readEvents(r io.Reader) ([]primitives.Event, error) {
	var events []primitives.Event
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		typ, rawData, hasData := strings.Cut(text, " ")
		if typ == primitives.AlwaysEvent {
			return nil, fmt.Errorf("line %d: event type %q is reserved", line, typ)
		}
		var data any
		if hasData {
			rawData = strings.TrimSpace(rawData)
			if err := json.Unmarshal([]byte(rawData), &data); err != nil {
				data = extensibility.ParseValue(rawData)
			}
		}
		events = append(events, primitives.NewEvent(typ, data))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}
