package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/extensibility"
	"github.com/comalice/chartkit/internal/production"
)

// addMachineFlags registers the flags shared by run and serve.
func addMachineFlags(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "Machine instance ID (generated when empty)")
	cmd.Flags().String("persist-dir", "", "Save snapshots as files in this directory")
	cmd.Flags().String("persist-format", "json", "Snapshot file format: json or yaml")
	cmd.Flags().String("redis-addr", "", "Save snapshots to Redis at this address")
	cmd.Flags().Bool("resume", false, "Restore the machine from its last saved snapshot (requires --id)")
}

func persisterFor(cmd *cobra.Command) (core.Persister, func() error, error) {
	redisAddr, _ := cmd.Flags().GetString("redis-addr")
	dir, _ := cmd.Flags().GetString("persist-dir")
	format, _ := cmd.Flags().GetString("persist-format")
	noop := func() error { return nil }

	switch {
	case redisAddr != "":
		p := production.NewRedisPersister(redisAddr, "", 0)
		return p, p.Close, nil
	case dir != "":
		switch format {
		case "json":
			p, err := production.NewJSONPersister(dir)
			return p, noop, err
		case "yaml":
			p, err := production.NewYAMLPersister(dir)
			return p, noop, err
		default:
			return nil, nil, fmt.Errorf("unknown persist format %q", format)
		}
	}
	return nil, noop, nil
}

// newMachine builds an instance of def from the command's flags. String
// guards and actions resolve as expressions and built-in actions. The
// returned cleanup releases the persister.
func newMachine(ctx context.Context, cmd *cobra.Command, def *core.Definition, logger *slog.Logger, extra ...core.Option) (*core.Machine, func() error, error) {
	id, _ := cmd.Flags().GetString("id")
	resume, _ := cmd.Flags().GetBool("resume")

	store, cleanup, err := persisterFor(cmd)
	if err != nil {
		return nil, nil, err
	}
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithGuardEvaluator(extensibility.NewGuardEvaluator(nil)),
		core.WithActionRunner(extensibility.NewLoggingActionRunner(extensibility.NewActionRunner(nil, logger), logger)),
	}
	if id != "" {
		opts = append(opts, core.WithID(id))
	}
	if store != nil {
		opts = append(opts, core.WithPersister(store))
	}
	m := core.NewMachine(def, append(opts, extra...)...)

	if !resume {
		if _, err := m.Start(ctx); err != nil {
			return nil, cleanup, err
		}
		return m, cleanup, nil
	}

	if id == "" || store == nil {
		return nil, cleanup, errors.New("--resume needs --id and a persister (--persist-dir or --redis-addr)")
	}
	snap, err := store.Load(ctx, id)
	if err != nil {
		return nil, cleanup, fmt.Errorf("resume %s: %w", id, err)
	}
	if err := m.Restore(snap); err != nil {
		return nil, cleanup, fmt.Errorf("resume %s: %w", id, err)
	}
	logger.Info("machine resumed", "machine", id, "configuration", m.Configuration())
	return m, cleanup, nil
}
