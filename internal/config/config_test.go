package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesSpec(t *testing.T) {
	c := Default()
	if c.SignalThreshold != 0.5 {
		t.Errorf("SignalThreshold = %v, want 0.5", c.SignalThreshold)
	}
	if c.SacredBoost != [3]float32{1.10, 1.10, 1.25} {
		t.Errorf("SacredBoost = %v, want [1.10 1.10 1.25]", c.SacredBoost)
	}
	if c.ModeDeadline(0) != 100*time.Millisecond {
		t.Errorf("Fast deadline = %v, want 100ms", c.ModeDeadline(0))
	}
	if c.ModeDeadline(2) != 500*time.Millisecond {
		t.Errorf("Thorough deadline = %v, want 500ms", c.ModeDeadline(2))
	}
}

func TestLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fluxcore.yaml")
	if err := os.WriteFile(path, []byte("signal_threshold: 0.75\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer m.Close()

	if got := m.Current().SignalThreshold; got != 0.75 {
		t.Errorf("SignalThreshold = %v, want 0.75", got)
	}
	// Unset fields still carry defaults.
	if got := m.Current().LearningRate; got != 0.01 {
		t.Errorf("LearningRate = %v, want default 0.01", got)
	}

	done := make(chan struct{})
	m.OnReload(func(c *Config) { close(done) })

	if err := os.WriteFile(path, []byte("signal_threshold: 0.9\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reload callback never fired")
	}

	if got := m.Current().SignalThreshold; got != 0.9 {
		t.Errorf("after reload SignalThreshold = %v, want 0.9", got)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	m, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Current().LakePageSize != 4096 {
		t.Errorf("LakePageSize = %v, want 4096", m.Current().LakePageSize)
	}
}
