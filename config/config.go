// Package config loads and persists the YAML configuration file. The
// file lives under the platform config directory (XDG on unix); a missing,
// unreadable, or version-mismatched file is replaced with the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Version is the config schema version. Loading a file with a different
// version resets it to defaults.
const Version = "0.1.0"

// LLMConfig selects the model and its sampling parameters.
type LLMConfig struct {
	ModelName           string  `yaml:"model_name"`
	MaxCompletionTokens int     `yaml:"max_completion_tokens"`
	Temperature         float64 `yaml:"temperature"`
	NumCtx              int     `yaml:"num_ctx"`
}

// AgentConfig bounds the agent's turn loop.
type AgentConfig struct {
	MaxSteps int       `yaml:"max_steps"`
	LLM      LLMConfig `yaml:"llm_config"`
}

// UXConfig controls terminal rendering.
type UXConfig struct {
	// NumberToolLines is the number of lines shown for tool outputs.
	// -1 shows everything.
	NumberToolLines int `yaml:"number_tool_lines"`
}

// Config is the persisted configuration.
type Config struct {
	Version string      `yaml:"version"`
	Agent   AgentConfig `yaml:"agent_config"`
	UX      UXConfig    `yaml:"ux_config"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Version: Version,
		Agent: AgentConfig{
			MaxSteps: 25,
			LLM: LLMConfig{
				ModelName:           "ollama_chat/qwen3:30b-a3b-q4_K_M",
				MaxCompletionTokens: 4000,
				Temperature:         0.7,
				NumCtx:              32000,
			},
		},
		UX: UXConfig{NumberToolLines: 1},
	}
}

// Path returns the full path of the config file.
func Path() (string, error) {
	if runtime.GOOS == "windows" {
		dir := os.Getenv("APPDATA")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(dir, "tinkertasker", "config.yaml"), nil
	}

	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "tinkertasker", "config.yaml"), nil
}

// Load reads the config file, creating it with defaults when missing.
// An unparsable file or a version mismatch resets the file to defaults
// rather than failing startup.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, err
	}
	return loadFrom(path)
}

func loadFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return resetToDefault(path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return resetToDefault(path)
	}
	if cfg.Version != Version {
		return resetToDefault(path)
	}
	return cfg, nil
}

func resetToDefault(path string) (Config, error) {
	cfg := Default()
	if err := saveTo(path, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config to its standard location.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return saveTo(path, cfg)
}

func saveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
