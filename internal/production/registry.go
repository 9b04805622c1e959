package production

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/comalice/chartkit/internal/core"
)

// MemoryRegistry is an in-memory core.Registry. It keeps every snapshot it
// is given, in registration order, per machine ID.
type MemoryRegistry struct {
	mu        sync.RWMutex
	snapshots map[string][]core.MachineSnapshot
	limit     int
}

// NewMemoryRegistry creates a registry keeping at most limit snapshots per
// machine (0 keeps all).
func NewMemoryRegistry(limit int) *MemoryRegistry {
	return &MemoryRegistry{
		snapshots: make(map[string][]core.MachineSnapshot),
		limit:     limit,
	}
}

func (r *MemoryRegistry) Register(_ context.Context, snapshot core.MachineSnapshot) error {
	if snapshot.MachineID == "" {
		return fmt.Errorf("register: empty machine ID")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.snapshots[snapshot.MachineID], snapshot)
	if r.limit > 0 && len(list) > r.limit {
		list = append([]core.MachineSnapshot(nil), list[len(list)-r.limit:]...)
	}
	r.snapshots[snapshot.MachineID] = list
	return nil
}

func (r *MemoryRegistry) Latest(_ context.Context, machineID string) (core.MachineSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.snapshots[machineID]
	if len(list) == 0 {
		return core.MachineSnapshot{}, fmt.Errorf("machine %q: %w", machineID, core.ErrNotFound)
	}
	return list[len(list)-1], nil
}

// Version returns the most recent snapshot taken under version.
func (r *MemoryRegistry) Version(_ context.Context, machineID, version string) (core.MachineSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.snapshots[machineID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Version == version {
			return list[i], nil
		}
	}
	return core.MachineSnapshot{}, fmt.Errorf("machine %q version %q: %w", machineID, version, core.ErrNotFound)
}

// ListVersions returns the distinct versions seen for machineID, newest first.
func (r *MemoryRegistry) ListVersions(_ context.Context, machineID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.snapshots[machineID]
	if len(list) == 0 {
		return nil, fmt.Errorf("machine %q: %w", machineID, core.ErrNotFound)
	}
	seen := make(map[string]bool)
	var versions []string
	for i := len(list) - 1; i >= 0; i-- {
		v := list[i].Version
		if !seen[v] {
			seen[v] = true
			versions = append(versions, v)
		}
	}
	return versions, nil
}

// ListMachines returns the registered machine IDs, sorted.
func (r *MemoryRegistry) ListMachines(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.snapshots))
	for id := range r.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
