package config

import (
	"os"
	"path/filepath"
	"testing"
)

func changeToDir(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(cwd); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoadFindsProjectFileInParentDirectory(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	toml := "default_environment = \"dev\"\n\n[environments.dev]\nurl = \"postgres://localhost/dev\"\n"
	if err := os.WriteFile(filepath.Join(root, projectFile), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	changeToDir(t, nested)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected a config to be found walking up from a nested directory")
	}
	if cfg.DefaultEnvironment != "dev" {
		t.Errorf("expected default_environment dev, got %q", cfg.DefaultEnvironment)
	}
	if cfg.Environments["dev"].URL != "postgres://localhost/dev" {
		t.Errorf("unexpected dev URL: %q", cfg.Environments["dev"].URL)
	}
}

func TestLoadReturnsNilWithoutErrorWhenNoProjectFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	changeToDir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected no config, got %+v", cfg)
	}
}

func TestResolveUsesConfigEnvironment(t *testing.T) {
	cfg := &Config{
		DefaultEnvironment: "dev",
		Environments: map[string]EnvironmentConfig{
			"dev": {URL: "postgres://localhost/dev"},
		},
	}
	target, err := Resolve(cfg, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Name != "dev" || target.URL != "postgres://localhost/dev" {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestResolveFallsBackToEnvironmentVariable(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/from_env")
	target, err := Resolve(nil, "staging")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.URL != "postgres://localhost/from_env" {
		t.Fatalf("expected URL from DATABASE_URL, got %q", target.URL)
	}
}

func TestResolveErrorsWithoutAnyURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	changeToDir(t, dir)

	if _, err := Resolve(nil, "dev"); err == nil {
		t.Fatal("expected an error when no URL is configured anywhere")
	}
}

func TestResolveOverlaysDotenvFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{ConfigFilePath: filepath.Join(dir, projectFile)}
	if err := os.WriteFile(filepath.Join(dir, ".env.dev"), []byte("DATABASE_URL=postgres://localhost/dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	target, err := Resolve(cfg, "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !target.FromDotenv {
		t.Error("expected FromDotenv to be true")
	}
	if target.URL != "postgres://localhost/dotenv" {
		t.Fatalf("expected URL from .env.dev, got %q", target.URL)
	}
}
