// Package production provides the optional collaborators of a Machine:
// snapshot persistence (files, Redis), event publishing, diagram export,
// Prometheus metrics and an in-memory snapshot registry.
package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comalice/chartkit/internal/core"
)

// codec is the encoding of a file persister.
type codec struct {
	ext       string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

var (
	jsonCodec = codec{
		ext:       ".json",
		marshal:   func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") },
		unmarshal: json.Unmarshal,
	}
	yamlCodec = codec{
		ext:       ".yaml",
		marshal:   yaml.Marshal,
		unmarshal: yaml.Unmarshal,
	}
)

// fileStore keeps one file per machine ID in dir.
type fileStore struct {
	dir   string
	codec codec
}

func newFileStore(dir string, c codec) (fileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fileStore{}, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return fileStore{dir: dir, codec: c}, nil
}

func (s fileStore) path(machineID string) (string, error) {
	if machineID == "" || strings.ContainsAny(machineID, `/\`) || machineID == "." || machineID == ".." {
		return "", fmt.Errorf("invalid machine ID %q", machineID)
	}
	return filepath.Join(s.dir, machineID+s.codec.ext), nil
}

func (s fileStore) save(ctx context.Context, snapshot core.MachineSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn, err := s.path(snapshot.MachineID)
	if err != nil {
		return err
	}
	data, err := s.codec.marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", snapshot.MachineID, err)
	}
	// Write then rename so readers never see a partial file.
	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		return fmt.Errorf("rename %s: %w", fn, err)
	}
	return nil
}

func (s fileStore) load(ctx context.Context, machineID string) (core.MachineSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.MachineSnapshot{}, err
	}
	fn, err := s.path(machineID)
	if err != nil {
		return core.MachineSnapshot{}, err
	}
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.MachineSnapshot{}, fmt.Errorf("machine %q: %w", machineID, core.ErrNotFound)
		}
		return core.MachineSnapshot{}, fmt.Errorf("read %s: %w", fn, err)
	}

	var snapshot core.MachineSnapshot
	if err := s.codec.unmarshal(data, &snapshot); err != nil {
		return core.MachineSnapshot{}, fmt.Errorf("unmarshal %s: %w", fn, err)
	}
	snapshot.MachineID = machineID
	return snapshot, nil
}

func (s fileStore) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", s.dir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), s.codec.ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), s.codec.ext))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s fileStore) delete(machineID string) error {
	fn, err := s.path(machineID)
	if err != nil {
		return err
	}
	if err := os.Remove(fn); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", fn, err)
	}
	return nil
}

// JSONPersister is a file-based persister writing <dir>/<machineID>.json.
type JSONPersister struct {
	store fileStore
}

// NewJSONPersister creates a JSONPersister, ensuring the directory exists.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	s, err := newFileStore(dir, jsonCodec)
	if err != nil {
		return nil, err
	}
	return &JSONPersister{store: s}, nil
}

func (p *JSONPersister) Save(ctx context.Context, snapshot core.MachineSnapshot) error {
	return p.store.save(ctx, snapshot)
}

// Load returns the stored snapshot; a missing file wraps core.ErrNotFound.
func (p *JSONPersister) Load(ctx context.Context, machineID string) (core.MachineSnapshot, error) {
	return p.store.load(ctx, machineID)
}

// List returns the stored machine IDs, sorted.
func (p *JSONPersister) List(context.Context) ([]string, error) { return p.store.list() }

func (p *JSONPersister) Delete(_ context.Context, machineID string) error {
	return p.store.delete(machineID)
}

// YAMLPersister is a file-based persister writing <dir>/<machineID>.yaml.
type YAMLPersister struct {
	store fileStore
}

// NewYAMLPersister creates a YAMLPersister, ensuring the directory exists.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	s, err := newFileStore(dir, yamlCodec)
	if err != nil {
		return nil, err
	}
	return &YAMLPersister{store: s}, nil
}

func (p *YAMLPersister) Save(ctx context.Context, snapshot core.MachineSnapshot) error {
	return p.store.save(ctx, snapshot)
}

func (p *YAMLPersister) Load(ctx context.Context, machineID string) (core.MachineSnapshot, error) {
	return p.store.load(ctx, machineID)
}

func (p *YAMLPersister) List(context.Context) ([]string, error) { return p.store.list() }

func (p *YAMLPersister) Delete(_ context.Context, machineID string) error {
	return p.store.delete(machineID)
}
