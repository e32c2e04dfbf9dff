// Package config loads project-level configuration for the schemadrift CLI:
// a schemadrift.toml project file discovered by walking up from the
// working directory, plus per-environment secrets layered in from .env
// files. The core engine packages (schema, describe, diff, check, render,
// apply) never import this package — it is ambient CLI plumbing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const projectFile = "schemadrift.toml"

// EnvironmentConfig describes one named target in schemadrift.toml.
type EnvironmentConfig struct {
	URL               string `toml:"url"`
	ShadowDatabaseURL string `toml:"shadow_database_url"`
	SchemaPath        string `toml:"schema_path"`
}

// Config is the parsed contents of schemadrift.toml.
type Config struct {
	DefaultEnvironment string                       `toml:"default_environment"`
	Environments       map[string]EnvironmentConfig `toml:"environments"`

	// ConfigFilePath is set by Load, not read from the file itself.
	ConfigFilePath string `toml:"-"`
}

// ConfigDir returns the directory containing the loaded config file.
func (c *Config) ConfigDir() string {
	if c == nil || c.ConfigFilePath == "" {
		return ""
	}
	return filepath.Dir(c.ConfigFilePath)
}

// Load walks up from the working directory looking for schemadrift.toml
// and parses it. It is not an error for no file to exist: Load returns a
// nil *Config so callers can still resolve an environment purely from
// .env files or CLI flags.
func Load() (*Config, error) {
	path, err := findProjectFile()
	if err != nil {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ConfigFilePath = path
	return &cfg, nil
}

func findProjectFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, projectFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("config: %s not found", projectFile)
}

// Target is a fully-resolved connection target: a flavor-inferred URL plus
// the shadow database used to replay migration scripts.
type Target struct {
	Name              string
	URL               string
	ShadowDatabaseURL string
	SchemaPath        string
	FromDotenv        bool
}

// Resolve picks the named environment (or the config's default, or "dev"
// if neither is set), overlays any .env.<name> file found alongside the
// project file, and falls back to the DATABASE_URL / SHADOW_DATABASE_URL
// environment variables if nothing else supplies a URL.
func Resolve(cfg *Config, name string) (*Target, error) {
	envName := strings.TrimSpace(name)
	if envName == "" {
		if cfg != nil && cfg.DefaultEnvironment != "" {
			envName = cfg.DefaultEnvironment
		} else {
			envName = "dev"
		}
	}

	t := &Target{Name: envName}
	baseDir := ""
	if cfg != nil {
		baseDir = cfg.ConfigDir()
		if env, ok := cfg.Environments[envName]; ok {
			t.URL = env.URL
			t.ShadowDatabaseURL = env.ShadowDatabaseURL
			t.SchemaPath = env.SchemaPath
		}
	}

	dotenvPath := filepath.Join(baseDir, ".env."+envName)
	if baseDir == "" {
		dotenvPath = ".env." + envName
	}
	if info, err := os.Stat(dotenvPath); err == nil && !info.IsDir() {
		values, err := godotenv.Read(dotenvPath)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", dotenvPath, err)
		}
		t.FromDotenv = true
		if v := values["DATABASE_URL"]; v != "" {
			t.URL = v
		}
		if v := values["SHADOW_DATABASE_URL"]; v != "" {
			t.ShadowDatabaseURL = v
		}
	}

	if t.URL == "" {
		t.URL = os.Getenv("DATABASE_URL")
	}
	if t.ShadowDatabaseURL == "" {
		t.ShadowDatabaseURL = os.Getenv("SHADOW_DATABASE_URL")
	}
	if t.URL == "" {
		return nil, fmt.Errorf("config: no connection URL for environment %q (set it in %s, in %s, or via DATABASE_URL)", envName, projectFile, dotenvPath)
	}
	return t, nil
}
