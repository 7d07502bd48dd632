// Package passwordpolicy is a pluggable password-policy engine for
// authentication layers. It enforces character-composition requirements
// and historical-reuse prevention at credential-change time, backed by a
// PostgreSQL or SQLite history store.
package passwordpolicy

import (
	"context"
	"errors"
	"strings"

	"github.com/router-for-me/passwordpolicy/config"
	"github.com/router-for-me/passwordpolicy/db"
	"github.com/router-for-me/passwordpolicy/logging"
	"github.com/router-for-me/passwordpolicy/policy"
	"github.com/router-for-me/passwordpolicy/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Engine bundles the configured validators behind the two entry points the
// authentication layer calls: ValidatePassword before committing a
// credential change and PasswordChanged after.
type Engine struct {
	conn      *gorm.DB
	unique    *policy.UniquePasswordsValidator
	character *policy.CharacterRequirementsValidator
}

// NewFromFile loads the YAML configuration, applies its logging settings,
// and boots an Engine from it.
func NewFromFile(path string) (*Engine, error) {
	cfg, errLoad := config.Load(path)
	if errLoad != nil {
		return nil, errLoad
	}
	logging.Setup(cfg.Log)
	return New(cfg)
}

// New opens the configured database, migrates the policy tables, and
// wires the validators. Policy values stored in the settings table
// override the file defaults at call time.
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("passwordpolicy: nil config")
	}

	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return nil, errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}

	provider := settings.NewDBProvider(conn, policyDefaults(cfg.Policy))
	engine := NewWithDB(conn, provider)
	engine.character = characterValidator(cfg.Policy.Characters)
	log.Debugf("password policy engine ready (dialect=%s)", db.DialectName(conn))
	return engine, nil
}

// NewWithDB wires an Engine over an existing connection. The caller is
// responsible for migrations and for closing the connection. A nil
// provider falls back to the built-in defaults.
func NewWithDB(conn *gorm.DB, provider settings.Provider) *Engine {
	return &Engine{
		conn:      conn,
		unique:    policy.NewUniquePasswordsValidator(conn, provider),
		character: policy.NewCharacterRequirementsValidator(),
	}
}

// ValidatePassword runs both policies against a proposed password. All
// violations are aggregated into one policy.ValidationErrors; storage and
// hashing failures propagate unmodified.
func (e *Engine) ValidatePassword(ctx context.Context, password string, user policy.Identity) error {
	var violations policy.ValidationErrors

	if e.character != nil {
		if errCharacter := e.character.Validate(password); errCharacter != nil {
			var compound policy.ValidationErrors
			if !errors.As(errCharacter, &compound) {
				return errCharacter
			}
			violations = append(violations, compound...)
		}
	}

	if errUnique := e.unique.Validate(ctx, password, user); errUnique != nil {
		var violation *policy.ValidationError
		if !errors.As(errUnique, &violation) {
			return errUnique
		}
		violations = append(violations, violation)
	}

	if len(violations) > 0 {
		return violations
	}
	return nil
}

// PasswordChanged records a committed password change in history and
// prunes rows outside the retention window.
func (e *Engine) PasswordChanged(ctx context.Context, password string, user policy.Identity) error {
	return e.unique.PasswordChanged(ctx, password, user)
}

// HelpTexts returns the human-readable policy descriptions.
func (e *Engine) HelpTexts(ctx context.Context) []string {
	texts := []string{e.unique.HelpText(ctx)}
	if e.character != nil {
		texts = append(texts, e.character.HelpText())
	}
	return texts
}

// DB exposes the underlying connection for callers that manage settings
// rows or run reports over history.
func (e *Engine) DB() *gorm.DB { return e.conn }

// Close releases the underlying database connection.
func (e *Engine) Close() error {
	sqlDB, errDB := e.conn.DB()
	if errDB != nil {
		return errDB
	}
	return sqlDB.Close()
}

// policyDefaults merges file policy values over the built-in defaults.
func policyDefaults(cfg config.PolicyConfig) settings.PolicyConfig {
	defaults := settings.Defaults()
	defaults.RetentionWindow = cfg.RetentionWindow
	if algorithm := strings.TrimSpace(cfg.HashAlgorithm); algorithm != "" {
		defaults.Algorithm = algorithm
	}
	if cfg.HashIterations > 0 {
		defaults.Iterations = cfg.HashIterations
	}
	return defaults
}

// characterValidator builds the character validator from file config;
// zeroed config keeps the standard one-of-each requirement.
func characterValidator(cfg config.CharacterConfig) *policy.CharacterRequirementsValidator {
	if cfg.MinDigits == 0 && cfg.MinLetters == 0 && cfg.MinUppercase == 0 &&
		cfg.MinLowercase == 0 && cfg.MinSpecial == 0 && strings.TrimSpace(cfg.SpecialCharacters) == "" {
		return policy.NewCharacterRequirementsValidator()
	}
	validator := &policy.CharacterRequirementsValidator{
		MinDigits:         cfg.MinDigits,
		MinLetters:        cfg.MinLetters,
		MinUppercase:      cfg.MinUppercase,
		MinLowercase:      cfg.MinLowercase,
		MinSpecial:        cfg.MinSpecial,
		SpecialCharacters: cfg.SpecialCharacters,
	}
	if validator.SpecialCharacters == "" {
		validator.SpecialCharacters = policy.DefaultSpecialCharacters
	}
	return validator
}
