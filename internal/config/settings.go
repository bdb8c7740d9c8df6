package config

import (
	"errors"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultModel      = "gpt-5.1-codex"
	defaultEffort     = "medium"
	defaultAccessMode = "current"
)

var defaultModels = []string{
	"gpt-5.1-codex",
	"gpt-5.2-codex",
	"gpt-5.1-codex-max",
}

type Config struct {
	Codex   CodexConfig   `toml:"codex"`
	Logging LoggingConfig `toml:"logging"`
	UI      UIConfig      `toml:"ui"`
}

type CodexConfig struct {
	Bin        string   `toml:"bin"`
	Model      string   `toml:"model"`
	Models     []string `toml:"models"`
	Effort     string   `toml:"effort"`
	AccessMode string   `toml:"access_mode"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

type UIConfig struct {
	ThreadListPageSize int `toml:"thread_list_page_size"`
	TranscriptMaxItems int `toml:"transcript_max_items"`
}

func Default() Config {
	return Config{
		Codex: CodexConfig{
			Model:      defaultModel,
			Models:     append([]string{}, defaultModels...),
			Effort:     defaultEffort,
			AccessMode: defaultAccessMode,
		},
		Logging: LoggingConfig{Level: "info"},
		UI: UIConfig{
			ThreadListPageSize: 20,
		},
	}
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return loadFromPath(path)
}

func loadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func (c Config) CodexBin() string {
	return strings.TrimSpace(c.Codex.Bin)
}

func (c Config) Model() string {
	model := strings.TrimSpace(c.Codex.Model)
	if model == "" {
		return defaultModel
	}
	return model
}

func (c Config) Models() []string {
	models := normalizedList(c.Codex.Models)
	if len(models) == 0 {
		models = append([]string{}, defaultModels...)
	}
	return models
}

func (c Config) Effort() string {
	effort := strings.TrimSpace(c.Codex.Effort)
	if effort == "" {
		return defaultEffort
	}
	return effort
}

// AccessMode is one of "read-only", "current", or "full-access".
func (c Config) AccessMode() string {
	switch strings.TrimSpace(c.Codex.AccessMode) {
	case "read-only":
		return "read-only"
	case "full-access":
		return "full-access"
	default:
		return defaultAccessMode
	}
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

// LogFile resolves the configured log path, falling back to the data dir.
func (c Config) LogFile() (string, error) {
	path := strings.TrimSpace(c.Logging.Path)
	if path != "" {
		return path, nil
	}
	return LogPath()
}

func (c Config) ThreadListPageSize() int {
	if c.UI.ThreadListPageSize <= 0 {
		return 20
	}
	return c.UI.ThreadListPageSize
}

func (c Config) TranscriptMaxItems() int {
	if c.UI.TranscriptMaxItems <= 0 {
		return 2000
	}
	return c.UI.TranscriptMaxItems
}

func normalizedList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
