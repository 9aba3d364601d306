package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeConfig(t *testing.T, ws, body string) {
	t.Helper()
	dir := filepath.Join(ws, ".aether")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestInitializeWithoutConfigIsSilent(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if IsDebugMode() {
		t.Error("debug mode should default to off without a config")
	}
	if _, err := os.Stat(filepath.Join(ws, ".aether", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not be created in production mode")
	}

	// No-op loggers must be safe to use
	Get(CategoryStore).Info("ignored")
	Store("also ignored")
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	if err := Initialize(""); err == nil {
		t.Error("expected error for empty workspace path")
	}
}

func TestDebugModeWritesCategoryFile(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(CloseAll)
	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: debug\n")

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("debug mode should be enabled")
	}

	Session("session event %d", 42)
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".aether", "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_session.log") {
			found = true
			data, err := os.ReadFile(filepath.Join(ws, ".aether", "logs", e.Name()))
			if err != nil {
				t.Fatalf("read log: %v", err)
			}
			if !strings.Contains(string(data), "session event 42") {
				t.Errorf("log file missing entry: %s", data)
			}
		}
	}
	if !found {
		t.Error("no session log file created")
	}
}

// Level checks happen on every log call while ReloadConfig can rewrite the
// level from another goroutine; the two must be safe to interleave.
func TestConcurrentReloadAndLog(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(CloseAll)
	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: debug\n")

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	cfgPath := filepath.Join(ws, ".aether", "config.yaml")
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			level := "debug"
			if i%2 == 0 {
				level = "warn"
			}
			body := "logging:\n  debug_mode: true\n  level: " + level + "\n"
			if err := os.WriteFile(cfgPath, []byte(body), 0644); err != nil {
				t.Errorf("write config: %v", err)
				return
			}
			if err := ReloadConfig(); err != nil {
				t.Errorf("ReloadConfig: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		l := Get(CategoryStore)
		for i := 0; i < 100; i++ {
			l.Debug("debug %d", i)
			l.Info("info %d", i)
			l.Warn("warn %d", i)
		}
	}()
	wg.Wait()
}

func TestCategoryFilter(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(CloseAll)
	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: info\n  categories:\n    gateway: false\n")

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsCategoryEnabled(CategoryGateway) {
		t.Error("gateway category should be disabled")
	}
	if !IsCategoryEnabled(CategoryStore) {
		t.Error("unlisted categories should default to enabled")
	}
}
