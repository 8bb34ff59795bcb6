// Package flags selects the active storage backend and the dual-run mode.
//
// Values resolve in priority order: persisted setting > configuration
// (environment or build default) > hard default.
package flags

import (
	"context"
	"fmt"
	"strconv"
)

type Backend string

const (
	BackendCurrent Backend = "current"
	BackendLegacy  Backend = "legacy"
)

func (b Backend) Valid() bool {
	return b == BackendCurrent || b == BackendLegacy
}

// ParseBackend accepts "current" or "legacy".
func ParseBackend(s string) (Backend, error) {
	b := Backend(s)
	if !b.Valid() {
		return "", fmt.Errorf("unknown storage backend %q", s)
	}
	return b, nil
}

const (
	SourceSetting = "setting"
	SourceConfig  = "config"
	SourceDefault = "default"
)

const (
	DefaultBackend = BackendCurrent
	DefaultDualRun = false
)

type FlagInfo struct {
	Value  string `json:"value"`
	Source string `json:"source"` // "setting", "config" or "default"
}

type Info struct {
	Backend FlagInfo `json:"backend"`
	DualRun FlagInfo `json:"dual_run"`
}

// Store is the port the storage facade and health monitor read and flip flags through.
type Store interface {
	Backend(ctx context.Context) Backend
	SetBackend(ctx context.Context, b Backend) error
	DualRun(ctx context.Context) bool
	SetDualRun(ctx context.Context, enabled bool) error
	// Reset drops runtime overrides so configuration applies again.
	Reset(ctx context.Context) error
	Info(ctx context.Context) Info
}

// Defaults are the configuration-level values; zero values fall through to the hard defaults.
type Defaults struct {
	Backend string
	DualRun *bool
}

func (d Defaults) backend() FlagInfo {
	if b, err := ParseBackend(d.Backend); err == nil {
		return FlagInfo{Value: string(b), Source: SourceConfig}
	}
	return FlagInfo{Value: string(DefaultBackend), Source: SourceDefault}
}

func (d Defaults) dualRun() FlagInfo {
	if d.DualRun != nil {
		return FlagInfo{Value: strconv.FormatBool(*d.DualRun), Source: SourceConfig}
	}
	return FlagInfo{Value: strconv.FormatBool(DefaultDualRun), Source: SourceDefault}
}
