package flags

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore keeps overrides in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	defaults Defaults
	backend  *Backend
	dualRun  *bool
}

func NewMemoryStore(defaults Defaults) *MemoryStore {
	return &MemoryStore{defaults: defaults}
}

func (m *MemoryStore) Backend(ctx context.Context) Backend {
	return Backend(m.Info(ctx).Backend.Value)
}

func (m *MemoryStore) SetBackend(_ context.Context, b Backend) error {
	if _, err := ParseBackend(string(b)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backend = &b
	return nil
}

func (m *MemoryStore) DualRun(ctx context.Context) bool {
	enabled, _ := strconv.ParseBool(m.Info(ctx).DualRun.Value)
	return enabled
}

func (m *MemoryStore) SetDualRun(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dualRun = &enabled
	return nil
}

func (m *MemoryStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backend = nil
	m.dualRun = nil
	return nil
}

func (m *MemoryStore) Info(context.Context) Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := Info{Backend: m.defaults.backend(), DualRun: m.defaults.dualRun()}
	if m.backend != nil {
		info.Backend = FlagInfo{Value: string(*m.backend), Source: SourceSetting}
	}
	if m.dualRun != nil {
		info.DualRun = FlagInfo{Value: strconv.FormatBool(*m.dualRun), Source: SourceSetting}
	}
	return info
}
