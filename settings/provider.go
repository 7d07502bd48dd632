package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/router-for-me/passwordpolicy/models"
	"gorm.io/gorm"
)

// PolicyConfig holds the runtime policy values consumed by the validators.
type PolicyConfig struct {
	// RetentionWindow is the number of most-recent history rows considered
	// in scope for reuse checks; non-positive means unbounded.
	RetentionWindow int
	// Algorithm is the hash algorithm identifier for new digests.
	Algorithm string
	// Iterations is the work factor for new digests.
	Iterations int
}

// Provider supplies the current policy configuration. Implementations must
// resolve values fresh on every call so a runtime change takes effect on
// the next validation without a restart.
type Provider interface {
	PolicyConfig(ctx context.Context) (PolicyConfig, error)
}

// Defaults returns the built-in fallback configuration.
func Defaults() PolicyConfig {
	return PolicyConfig{
		RetentionWindow: DefaultRetentionWindow,
		Algorithm:       DefaultHashAlgorithm,
		Iterations:      DefaultHashIterations,
	}
}

// StaticProvider returns a fixed configuration. Intended for callers that
// manage configuration themselves and for tests.
type StaticProvider struct {
	Config PolicyConfig
}

// PolicyConfig returns the fixed configuration.
func (p StaticProvider) PolicyConfig(context.Context) (PolicyConfig, error) {
	return p.Config, nil
}

// DBProvider reads policy settings from the settings table on every call,
// falling back to the given defaults for missing or unparsable keys.
type DBProvider struct {
	db       *gorm.DB
	defaults PolicyConfig
}

// NewDBProvider constructs a DBProvider over the given connection.
func NewDBProvider(conn *gorm.DB, defaults PolicyConfig) *DBProvider {
	return &DBProvider{db: conn, defaults: defaults}
}

// PolicyConfig loads the current settings rows and merges them over the
// provider defaults.
func (p *DBProvider) PolicyConfig(ctx context.Context) (PolicyConfig, error) {
	if p == nil || p.db == nil {
		return PolicyConfig{}, errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := p.db.WithContext(ctx).
		Where("key IN ?", []string{RetentionWindowKey, HashAlgorithmKey, HashIterationsKey}).
		Find(&rows).Error; errFind != nil {
		return PolicyConfig{}, fmt.Errorf("settings: load: %w", errFind)
	}

	cfg := p.defaults
	for _, row := range rows {
		switch row.Key {
		case RetentionWindowKey:
			if parsed, ok := parseConfigInt(json.RawMessage(row.Value)); ok {
				cfg.RetentionWindow = parsed
			}
		case HashAlgorithmKey:
			if parsed, ok := parseConfigString(json.RawMessage(row.Value)); ok && parsed != "" {
				cfg.Algorithm = parsed
			}
		case HashIterationsKey:
			if parsed, ok := parseConfigInt(json.RawMessage(row.Value)); ok && parsed > 0 {
				cfg.Iterations = parsed
			}
		}
	}
	return cfg, nil
}

// parseConfigInt accepts JSON numbers, integral floats, and numeric strings.
func parseConfigInt(raw json.RawMessage) (int, bool) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		return n, true
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(s))
		if errParse == nil {
			return parsed, true
		}
	}
	return 0, false
}

// parseConfigString accepts JSON strings and bare values.
func parseConfigString(raw json.RawMessage) (string, bool) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		return strings.TrimSpace(s), true
	}
	return strings.TrimSpace(string(raw)), true
}
