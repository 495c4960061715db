package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrisonrobin/timebox/pkg/errs"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Calendar != DefaultCalendar || cfg.SyncInterval != DefaultSyncInterval || cfg.User == "" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.DefaultDatabasePath() != filepath.Join(dir, "timebox.db") {
		t.Errorf("database path = %s", cfg.DefaultDatabasePath())
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := LoadFrom(dir)
	cfg.SyncInterval = 90 * time.Second
	cfg.Zoomed = true
	if err := SetCalendar(cfg, "Work"); err != nil {
		t.Fatal(err)
	}

	got, err := LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.Calendar != "Work" || got.SyncInterval != 90*time.Second || !got.Zoomed {
		t.Errorf("reloaded %+v", got)
	}

	if err := SetCalendar(got, ""); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TIMEBOX_CALENDAR", "Personal")
	t.Setenv("TIMEBOX_USER", "alice")
	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Calendar != "Personal" || cfg.User != "alice" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestConfigDirOverride(t *testing.T) {
	t.Setenv(DirEnv, "/tmp/timebox-test")
	dir, err := GetConfigDir()
	if err != nil || dir != "/tmp/timebox-test" {
		t.Errorf("dir = %q, %v", dir, err)
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{}
	if loc, err := cfg.Location(); err != nil || loc != time.Local {
		t.Errorf("default location = %v, %v", loc, err)
	}
	cfg.Timezone = "Mars/Olympus"
	if _, err := cfg.Location(); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
