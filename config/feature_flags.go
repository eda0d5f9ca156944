package config

import (
	"sync"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
)

// Predefined feature flag names.
const (
	// FeatureBetaPaths allows creating ninjas on paths that are only partially configured.
	FeatureBetaPaths = "paths.beta"
	// FeatureProgressPubSub forwards progression events to the Redis channel.
	FeatureProgressPubSub = "progress.pubsub"
)

// BetaPaths lists the paths that are still partially configured.
var BetaPaths = []progression.Path{progression.PathRoblox}

// FeatureFlags holds feature toggles. Values come from FEATURE_* env vars and can be
// flipped at runtime (tests, admin tooling).
type FeatureFlags struct {
	BetaPaths      bool `env:"BETA_PATHS" envDefault:"true"`
	ProgressPubSub bool `env:"PROGRESS_PUBSUB" envDefault:"true"`

	mu        sync.RWMutex
	overrides map[string]bool
}

// IsEnabled reports whether the named feature is on.
func (f *FeatureFlags) IsEnabled(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if v, ok := f.overrides[name]; ok {
		return v
	}

	switch name {
	case FeatureBetaPaths:
		return f.BetaPaths
	case FeatureProgressPubSub:
		return f.ProgressPubSub
	default:
		return false
	}
}

// Set overrides a flag at runtime.
func (f *FeatureFlags) Set(name string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.overrides == nil {
		f.overrides = make(map[string]bool)
	}
	f.overrides[name] = enabled
}

// PathAllowed reports whether new ninjas may be created on the path.
func (f *FeatureFlags) PathAllowed(p progression.Path) bool {
	if !p.IsKnown() {
		return false
	}
	for _, beta := range BetaPaths {
		if p == beta {
			return f.IsEnabled(FeatureBetaPaths)
		}
	}
	return true
}

// Snapshot returns the effective value of every known flag.
func (f *FeatureFlags) Snapshot() map[string]bool {
	names := []string{FeatureBetaPaths, FeatureProgressPubSub}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = f.IsEnabled(n)
	}
	return out
}
