package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the YAML bootstrap configuration for the policy engine.
type Config struct {
	// DatabaseDSN selects the backing store (PostgreSQL or SQLite).
	DatabaseDSN string `yaml:"database-dsn"`

	Log    LogConfig    `yaml:"log"`
	Policy PolicyConfig `yaml:"policy"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is a logrus level name; empty means info.
	Level string `yaml:"level"`
	// File enables rotated file output when set; empty logs to stderr.
	File string `yaml:"file"`
	// MaxSizeMB caps a log file before rotation.
	MaxSizeMB int `yaml:"max-size-mb"`
	// MaxBackups caps retained rotated files.
	MaxBackups int `yaml:"max-backups"`
}

// PolicyConfig carries the policy defaults. Values stored in the settings
// table override these at call time.
type PolicyConfig struct {
	// RetentionWindow is the reuse lookback count; non-positive keeps all.
	RetentionWindow int `yaml:"retention-window"`
	// HashAlgorithm is the algorithm identifier for new digests.
	HashAlgorithm string `yaml:"hash-algorithm"`
	// HashIterations is the work factor for new digests.
	HashIterations int `yaml:"hash-iterations"`

	Characters CharacterConfig `yaml:"characters"`
}

// CharacterConfig carries the character-requirement minimums.
type CharacterConfig struct {
	MinDigits         int    `yaml:"min-digits"`
	MinLetters        int    `yaml:"min-letters"`
	MinUppercase      int    `yaml:"min-uppercase"`
	MinLowercase      int    `yaml:"min-lowercase"`
	MinSpecial        int    `yaml:"min-special"`
	SpecialCharacters string `yaml:"special-characters"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	data, errRead := os.ReadFile(trimmed)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", trimmed, errRead)
	}

	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", trimmed, errUnmarshal)
	}
	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return nil, fmt.Errorf("config: %s: database-dsn is required", trimmed)
	}
	return &cfg, nil
}
