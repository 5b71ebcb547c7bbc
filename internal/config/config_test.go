package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q): %v", path, err)
		}
		if cfg.Stream.URL != "ws://localhost:7003/ws/ui" {
			t.Errorf("stream url = %q", cfg.Stream.URL)
		}
		if cfg.Stream.ReconnectBase != time.Second || cfg.Stream.ReconnectMax != 5*time.Second {
			t.Errorf("reconnect = %v/%v", cfg.Stream.ReconnectBase, cfg.Stream.ReconnectMax)
		}
		if cfg.API.BrokerURL != "http://localhost:7003" || cfg.API.SimulatorURL != "http://localhost:7002" {
			t.Errorf("api = %+v", cfg.API)
		}
		if cfg.Simulation.EventID != "sim_test" || cfg.Simulation.TrafficMultiplier != 1.0 {
			t.Errorf("simulation = %+v", cfg.Simulation)
		}
		if cfg.Broker.Port != 7003 || cfg.Broker.PushInterval != 500*time.Millisecond || cfg.Broker.EMAAlpha != 0.3 {
			t.Errorf("broker = %+v", cfg.Broker)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "noc.yaml")

	yaml := `
stream:
  url: "ws://broker:9000/ws/ui"
  reconnect_base: 2s
  reconnect_max: 10s
api:
  timeout: 3s
simulation:
  region: West
  traffic_multiplier: 1.5
logging:
  level: debug
  format: console
  file: /tmp/noc.log
broker:
  port: 9000
  mock: true
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Stream.URL != "ws://broker:9000/ws/ui" {
		t.Errorf("stream url = %q", cfg.Stream.URL)
	}
	if cfg.Stream.ReconnectBase != 2*time.Second || cfg.Stream.ReconnectMax != 10*time.Second {
		t.Errorf("reconnect = %v/%v", cfg.Stream.ReconnectBase, cfg.Stream.ReconnectMax)
	}
	if cfg.Stream.PingInterval != 30*time.Second {
		t.Errorf("ping interval default lost: %v", cfg.Stream.PingInterval)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Errorf("api timeout = %v", cfg.API.Timeout)
	}
	if cfg.Simulation.Region != "West" || cfg.Simulation.SiteID != "NE_SITE_003" || cfg.Simulation.TrafficMultiplier != 1.5 {
		t.Errorf("simulation = %+v", cfg.Simulation)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" || cfg.Logging.File != "/tmp/noc.log" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Broker.Mock || cfg.Broker.ListenAddr() != "0.0.0.0:9000" {
		t.Errorf("broker = %+v", cfg.Broker)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NOC_STREAM_URL", "ws://env:1234/ws/ui")
	t.Setenv("NOC_BROKER_PORT", "8123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stream.URL != "ws://env:1234/ws/ui" {
		t.Errorf("stream url = %q", cfg.Stream.URL)
	}
	if cfg.Broker.Port != 8123 {
		t.Errorf("broker port = %d", cfg.Broker.Port)
	}
}

func TestLoadSanitizes(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "noc.yaml")
	yaml := `
stream:
  reconnect_base: 3s
  reconnect_max: 1s
simulation:
  traffic_multiplier: -2
broker:
  ema_alpha: 4
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stream.ReconnectMax != 3*time.Second {
		t.Errorf("reconnect max = %v, want clamped to base", cfg.Stream.ReconnectMax)
	}
	if cfg.Simulation.TrafficMultiplier != 1.0 {
		t.Errorf("traffic multiplier = %v", cfg.Simulation.TrafficMultiplier)
	}
	if cfg.Broker.EMAAlpha != 0.3 {
		t.Errorf("ema alpha = %v", cfg.Broker.EMAAlpha)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte("stream: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Export.Dir != "." || cfg.Logging.Level != "info" {
		t.Errorf("default = %+v", cfg)
	}
}
