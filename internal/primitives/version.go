package primitives

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sort"
)

// ComputeVersion returns config.Version when set, else a stable fingerprint
// of the state hierarchy: SHA256 over IDs, types, initials, event keys and
// targets. Guards and actions are left out because function references have
// no stable representation.
func ComputeVersion(config *MachineConfig) string {
	if config.Version != "" {
		return config.Version
	}
	h := sha256.New()
	fmt.Fprintf(h, "machine %s initial %s\n", config.ID, config.Initial)
	for _, id := range config.TopLevelIDs() {
		fingerprint(h, config.States[id], 0)
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}

func fingerprint(w io.Writer, s *StateConfig, depth int) {
	if s == nil {
		return
	}
	fmt.Fprintf(w, "%d %s %s %s\n", depth, s.ID, s.Type, s.Initial)
	events := make([]string, 0, len(s.On))
	for event := range s.On {
		events = append(events, event)
	}
	sort.Strings(events)
	for _, event := range events {
		for _, t := range s.On[event] {
			fmt.Fprintf(w, "on %s %v %t\n", event, t.TargetRefs(), t.Internal)
		}
	}
	for _, t := range s.Always {
		fmt.Fprintf(w, "always %v %t\n", t.TargetRefs(), t.Internal)
	}
	for _, child := range s.Children {
		fingerprint(w, child, depth+1)
	}
}
