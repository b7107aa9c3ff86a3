// Package config loads and hot-reloads the tunable thresholds that govern
// FluxMatrix, VCP, the Lake, and the Orchestrator's weighting and
// scheduling behavior.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config carries every option enumerated in the system's external
// interfaces: VCP triggers, the Lake's admission/paging behavior,
// adaptive-weight learning rate, and per-mode/provider deadlines.
type Config struct {
	SignalThreshold     float32        `yaml:"signal_threshold"`
	DivergenceThreshold float32        `yaml:"divergence_threshold"`
	SubspaceRank        int            `yaml:"subspace_rank"`
	MagnificationFactor float32        `yaml:"magnification_factor"`
	LakeAdmitThreshold  float32        `yaml:"lake_admit_threshold"`
	LakePageSize        int            `yaml:"lake_page_size"`
	LearningRate        float32        `yaml:"learning_rate"`
	ProviderDeadlineMS  int            `yaml:"provider_deadline_ms"`
	ModeDeadlineMS      [3]int         `yaml:"mode_deadline_ms"` // Fast, Balanced, Thorough
	SacredBoost         [3]float32     `yaml:"sacred_boost"`     // positions 3, 6, 9
	ConsensusRateHz     float32        `yaml:"consensus_rate_hz"`
}

// Default returns the configuration spec.md §6 describes as defaults.
func Default() *Config {
	return &Config{
		SignalThreshold:     0.5,
		DivergenceThreshold: 0.3,
		SubspaceRank:        3,
		MagnificationFactor: 1.5,
		LakeAdmitThreshold:  0.6,
		LakePageSize:        4096,
		LearningRate:        0.01,
		ProviderDeadlineMS:  120,
		ModeDeadlineMS:      [3]int{100, 300, 500},
		SacredBoost:         [3]float32{1.10, 1.10, 1.25},
		ConsensusRateHz:     20,
	}
}

func (c *Config) ModeDeadline(mode int) time.Duration {
	if mode < 0 || mode > 2 {
		mode = 0
	}
	return time.Duration(c.ModeDeadlineMS[mode]) * time.Millisecond
}

func (c *Config) ProviderDeadline() time.Duration {
	return time.Duration(c.ProviderDeadlineMS) * time.Millisecond
}

// Manager owns a Config loaded from disk and reloads it when the file
// changes, so thresholds can be tuned without a process restart.
type Manager struct {
	mu     sync.RWMutex
	cur    *Config
	path   string
	watch  *fsnotify.Watcher
	onLoad func(*Config)
}

// Load reads path (YAML) into a Manager. If path is empty, the defaults
// are used and no file watch is started.
func Load(path string) (*Manager, error) {
	m := &Manager{cur: Default(), path: path}
	if path == "" {
		return m, nil
	}
	if err := m.reload(); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	m.watch = w
	go m.watchLoop()
	return m, nil
}

// OnReload registers a callback invoked (not under the manager's lock)
// after every successful hot-reload.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	m.onLoad = fn
	m.mu.Unlock()
}

func (m *Manager) watchLoop() {
	for event := range m.watch.Events {
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			continue
		}
		if err := m.reload(); err != nil {
			continue
		}
		m.mu.RLock()
		cb := m.onLoad
		cur := m.cur
		m.mu.RUnlock()
		if cb != nil {
			cb(cur)
		}
	}
}

func (m *Manager) reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", m.path, err)
	}
	next := Default()
	if err := yaml.Unmarshal(data, next); err != nil {
		return fmt.Errorf("config: parse %s: %w", m.path, err)
	}
	m.mu.Lock()
	m.cur = next
	m.mu.Unlock()
	return nil
}

// Current returns the most recently loaded configuration.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Close stops the file watch, if any.
func (m *Manager) Close() error {
	if m.watch != nil {
		return m.watch.Close()
	}
	return nil
}
