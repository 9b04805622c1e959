package primitives

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a MachineConfig from YAML. Guards and actions can only be
// expressed as string references in YAML; they are resolved at run time by
// the configured GuardEvaluator and ActionRunner.
func ParseYAML(data []byte) (MachineConfig, error) {
	var cfg MachineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return MachineConfig{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	normalize(&cfg)
	return cfg, nil
}

// ParseJSON decodes a MachineConfig from JSON.
func ParseJSON(data []byte) (MachineConfig, error) {
	var cfg MachineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return MachineConfig{}, fmt.Errorf("json unmarshal: %w", err)
	}
	normalize(&cfg)
	return cfg, nil
}

// LoadFile reads a machine definition, choosing the decoder by extension
// (.json, otherwise YAML).
func LoadFile(path string) (MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MachineConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// normalize fills in IDs omitted under their map key and the Event field of
// transitions declared under an On key.
func normalize(cfg *MachineConfig) {
	for key, s := range cfg.States {
		if s == nil {
			continue
		}
		if s.ID == "" {
			s.ID = key
		}
		normalizeState(s)
	}
}

func normalizeState(s *StateConfig) {
	if s.Type == "" {
		switch {
		case len(s.Children) > 0:
			s.Type = Compound
		default:
			s.Type = Atomic
		}
	}
	for event, transitions := range s.On {
		for i := range transitions {
			transitions[i].Event = event
		}
	}
	for _, child := range s.Children {
		if child != nil {
			normalizeState(child)
		}
	}
}
