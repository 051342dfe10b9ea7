package config

import (
	"sync"
	"sync/atomic"
)

var (
	settingsMu   sync.Mutex
	settingsOnce = new(sync.Once)
	settings     atomic.Pointer[Config]
)

// Setup installs cfg as the process-wide settings. Only the first call has an effect;
// the installed settings are returned either way.
func Setup(cfg *Config) *Config {
	settingsMu.Lock()
	once := settingsOnce
	settingsMu.Unlock()

	once.Do(func() {
		settings.Store(cfg.Clone())
	})
	return Settings()
}

// Settings returns a copy of the process-wide settings, or the defaults if none were installed.
func Settings() *Config {
	if s := settings.Load(); s != nil {
		return s.Clone()
	}
	return DefaultConfig()
}

// Reset forgets the installed settings so that the next Setup takes effect again.
// It is meant for programs that run several commands in one process, such as tests.
func Reset() {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	settingsOnce = new(sync.Once)
	settings.Store(nil)
}
