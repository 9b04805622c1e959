package core

import (
	"sync"
)

// HistoryManager keeps the history records of one Machine: history state ID
// to the state IDs that were active when its parent was last exited.
// Shallow records hold the active direct children of the parent, deep records
// the active atomic descendants. Records overwrite earlier ones and live as
// long as the Machine.
type HistoryManager struct {
	mu      sync.RWMutex
	records map[string][]string
}

// NewHistoryManager creates a new HistoryManager.
func NewHistoryManager() *HistoryManager {
	return &HistoryManager{
		records: make(map[string][]string),
	}
}

// Record stores the states for historyID, replacing any earlier record.
func (h *HistoryManager) Record(historyID string, states []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[historyID] = append([]string(nil), states...)
}

// Restore returns the recorded states for historyID and whether a record
// exists.
func (h *HistoryManager) Restore(historyID string) ([]string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	states, ok := h.records[historyID]
	if !ok || len(states) == 0 {
		return nil, false
	}
	return append([]string(nil), states...), true
}

// Clear removes recorded history for the given history state ID.
func (h *HistoryManager) Clear(historyID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.records, historyID)
}

// Snapshot returns a copy of every record.
func (h *HistoryManager) Snapshot() map[string][]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string][]string, len(h.records))
	for id, states := range h.records {
		out[id] = append([]string(nil), states...)
	}
	return out
}

// Load replaces every record with records.
func (h *HistoryManager) Load(records map[string][]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = make(map[string][]string, len(records))
	for id, states := range records {
		h.records[id] = append([]string(nil), states...)
	}
}
