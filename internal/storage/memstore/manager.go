package memstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/internal/registry"
)

const (
	logFile      = "memory.jsonl"
	indexFile    = "index.json"
	metadataFile = "metadata.json"
)

// Manager operates the memory stores of every enabled instance in the
// registry. All operations are keyed by instance name; a name that is not
// enabled (or has no directory) is a caller bug and yields
// core.ErrUnknownMemory.
type Manager struct {
	root string
	reg  *registry.Registry
}

func NewManager(root string, reg *registry.Registry) *Manager {
	return &Manager{
		root: root,
		reg:  reg,
	}
}

// Reload re-reads the registry file.
func (m *Manager) Reload(ctx context.Context) error {
	return m.reg.Load(ctx)
}

// Instances returns the enabled instance names in registry order.
func (m *Manager) Instances() []string {
	return m.reg.Names()
}

// DefaultInstance returns the first enabled instance in registry order.
func (m *Manager) DefaultInstance() (string, bool) {
	e, ok := m.reg.First()
	return e.Name, ok
}

// InstanceDir resolves the directory of an enabled instance. It backs the
// trash mover, which needs the paths of an instance before deleting it.
func (m *Manager) InstanceDir(name string) (string, error) {
	inst, err := m.instance(name)
	if err != nil {
		return "", err
	}
	return inst.dir, nil
}

type instance struct {
	name string
	dir  string
}

func (m *Manager) instance(name string) (*instance, error) {
	e, ok := m.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownMemory, name)
	}
	if e.Directory == "" {
		return nil, fmt.Errorf("%w: %q has no directory configured", core.ErrUnknownMemory, name)
	}

	dir := e.Directory
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(m.root, dir)
	}
	return &instance{name: name, dir: dir}, nil
}

func (i *instance) logPath() string      { return filepath.Join(i.dir, logFile) }
func (i *instance) indexPath() string    { return filepath.Join(i.dir, indexFile) }
func (i *instance) metadataPath() string { return filepath.Join(i.dir, metadataFile) }
