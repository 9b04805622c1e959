package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// MachineSnapshot is the serializable runtime state of a Machine. It carries
// no definition: restoring requires a Machine built from the same definition
// ID and version.
type MachineSnapshot struct {
	MachineID     string              `json:"machineID" yaml:"machineID"`
	Definition    string              `json:"definition" yaml:"definition"`
	Version       string              `json:"version" yaml:"version"`
	Configuration []string            `json:"configuration" yaml:"configuration"`
	Context       map[string]any      `json:"context" yaml:"context"`
	History       map[string][]string `json:"history,omitempty" yaml:"history,omitempty"`
	Timestamp     time.Time           `json:"timestamp" yaml:"timestamp"`
}

// MarshalSnapshot encodes s as JSON.
func MarshalSnapshot(s MachineSnapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot %s: %w", s.MachineID, err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a JSON snapshot.
func UnmarshalSnapshot(data []byte) (MachineSnapshot, error) {
	var s MachineSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return MachineSnapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return s, nil
}

// MachineMetadata accompanies published events.
type MachineMetadata struct {
	MachineID     string    `json:"machineID" yaml:"machineID"`
	Definition    string    `json:"definition" yaml:"definition"`
	Transition    string    `json:"transition" yaml:"transition"`
	Configuration []string  `json:"configuration" yaml:"configuration"`
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
}
