package config

import (
	"testing"
	"time"
)

func TestLoadProbeDefaults(t *testing.T) {
	cfg, err := LoadProbe()
	if err != nil {
		t.Fatalf("LoadProbe() error = %v", err)
	}
	if cfg.WSURL != "ws://localhost:8080/ws" || cfg.Room != "probe" {
		t.Fatalf("unexpected probe defaults: %+v", cfg)
	}
	if !cfg.Surrender || cfg.Timeout != 5*time.Minute {
		t.Fatalf("Surrender=%v Timeout=%v", cfg.Surrender, cfg.Timeout)
	}
}

func TestLoadProbeParse(t *testing.T) {
	t.Setenv("PROBE_ROOM", "M#smoke")
	t.Setenv("PROBE_SURRENDER", "false")
	t.Setenv("PROBE_TIMEOUT", "30s")

	cfg, err := LoadProbe()
	if err != nil {
		t.Fatalf("LoadProbe() error = %v", err)
	}
	if cfg.Room != "M#smoke" || cfg.Surrender || cfg.Timeout != 30*time.Second {
		t.Fatalf("unexpected probe config: %+v", cfg)
	}
}
