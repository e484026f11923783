package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/sentisounds/internal/shared"
	tu "github.com/desertthunder/sentisounds/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			app := &App{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				App:        app,
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if !runner.configFixed {
				t.Error("expected provided config to be kept")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.app != app {
				t.Error("expected app to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.configFixed {
				t.Error("expected default config to be replaceable")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("defaults browser and login timeout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.openBrowser == nil {
				t.Error("expected browser opener")
			}
			if runner.loginTimeout <= 0 {
				t.Error("expected positive login timeout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
				continue
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "serve", "users", "auth", "recommend", "like", "unlike", "likes", "export", "cache"} {
			if !names[want] {
				t.Errorf("expected %s command", want)
			}
		}
	})
}

func TestBefore(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("loads the config file", func(t *testing.T) {
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "senti.db")
		path := filepath.Join(dir, "config.toml")
		if err := os.WriteFile(path, []byte("[database]\npath = \""+filepath.ToSlash(dbPath)+"\"\n"), 0600); err != nil {
			t.Fatal(err)
		}

		out := &bytes.Buffer{}
		r := NewRunner(RunnerOpts{Logger: logger, Output: out})
		t.Cleanup(func() { r.Close() })

		if err := run(t, r, "--config", path, "users", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if r.config.Database.Path != filepath.ToSlash(dbPath) {
			t.Errorf("expected database path from file, got %s", r.config.Database.Path)
		}
		if r.config.Export.BatchSize != 100 {
			t.Errorf("expected defaults for missing keys, got batch size %d", r.config.Export.BatchSize)
		}
		if !strings.Contains(out.String(), "No users registered") {
			t.Errorf("unexpected output %q", out.String())
		}
		tu.AssertFileExists(t, dbPath)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "env.db")
		t.Setenv("SENTI_DATABASE_PATH", dbPath)

		r := NewRunner(RunnerOpts{Logger: logger, Output: &bytes.Buffer{}})
		t.Cleanup(func() { r.Close() })

		if err := run(t, r, "--config", filepath.Join(dir, "missing.toml"), "users", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if r.config.Database.Path != dbPath {
			t.Errorf("expected env override, got %s", r.config.Database.Path)
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("[export]\nbatch_size = 500\n"), 0600); err != nil {
			t.Fatal(err)
		}

		r := NewRunner(RunnerOpts{Logger: logger, Output: &bytes.Buffer{}})
		err := run(t, r, "--config", path, "users", "list")
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected invalid config error, got %v", err)
		}
	})

	t.Run("rejects unparsable config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("[database\n"), 0600); err != nil {
			t.Fatal(err)
		}

		r := NewRunner(RunnerOpts{Logger: logger, Output: &bytes.Buffer{}})
		if err := run(t, r, "--config", path, "users", "list"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected invalid config error, got %v", err)
		}
	})
}
