package core

import (
	"context"
	"errors"
)

// Registry keeps versioned snapshots of running machines.
type Registry interface {
	// Register saves snapshot under its machine ID and version.
	Register(ctx context.Context, snapshot MachineSnapshot) error

	// Latest returns the most recent snapshot for machineID.
	Latest(ctx context.Context, machineID string) (MachineSnapshot, error)

	// Version returns the latest snapshot for machineID taken under version.
	Version(ctx context.Context, machineID, version string) (MachineSnapshot, error)

	// ListVersions returns versions for machineID, newest first.
	ListVersions(ctx context.Context, machineID string) ([]string, error)

	// ListMachines returns all machine IDs.
	ListMachines(ctx context.Context) ([]string, error)
}

var (
	ErrNotFound = errors.New("version or machine not found")
)
