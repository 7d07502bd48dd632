package policy

import (
	"context"
	"fmt"

	"github.com/router-for-me/passwordpolicy/hasher"
	"github.com/router-for-me/passwordpolicy/history"
	"github.com/router-for-me/passwordpolicy/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// passwordUsedMessage is the human-readable password_used message.
const passwordUsedMessage = "You can not use a password that is already used in this application."

// UniquePasswordsValidator rejects passwords a user has already used
// within the configured retention window.
//
// It is invoked at two moments: Validate before a credential change is
// committed, and PasswordChanged after. Policy configuration (window,
// algorithm, iterations) is read fresh from the provider on every call.
type UniquePasswordsValidator struct {
	store  *history.Store
	config settings.Provider
}

// NewUniquePasswordsValidator constructs the validator over the given
// connection. A nil provider falls back to the built-in defaults.
func NewUniquePasswordsValidator(conn *gorm.DB, provider settings.Provider) *UniquePasswordsValidator {
	if provider == nil {
		provider = settings.StaticProvider{Config: settings.Defaults()}
	}
	return &UniquePasswordsValidator{
		store:  history.NewStore(conn),
		config: provider,
	}
}

// Validate checks the password against the user's in-scope history under
// every hasher config the user has accumulated; a match under any of them
// fails with password_used. Transient identities skip the check.
func (v *UniquePasswordsValidator) Validate(ctx context.Context, password string, user Identity) error {
	if !identityOK(user) {
		log.Debug("unique passwords: identity not persisted, skipping validate")
		return nil
	}
	userID := user.PolicyID()

	cfg, errConfig := v.config.PolicyConfig(ctx)
	if errConfig != nil {
		return errConfig
	}

	configs, errConfigs := v.store.Configs(ctx, userID)
	if errConfigs != nil {
		return errConfigs
	}

	for _, row := range configs {
		h, errHasher := hasher.New(row.Algorithm, row.Iterations)
		if errHasher != nil {
			return fmt.Errorf("policy: config %d: %w", row.ID, errHasher)
		}
		digest := h.Hash(password, row.Salt)

		found, errLookup := v.store.HasDigest(ctx, userID, row.ID, digest, cfg.RetentionWindow)
		if errLookup != nil {
			return errLookup
		}
		if found {
			return &ValidationError{Code: CodePasswordUsed, Message: passwordUsedMessage}
		}
	}
	return nil
}

// PasswordChanged records a committed password change: it resolves or
// creates the user's current hasher config, appends the digest (duplicate
// appends are no-ops), and prunes history down to the retention window.
// Append and prune run serialized per user inside one transaction.
func (v *UniquePasswordsValidator) PasswordChanged(ctx context.Context, password string, user Identity) error {
	if !identityOK(user) {
		log.Debug("unique passwords: identity not persisted, skipping record")
		return nil
	}
	userID := user.PolicyID()

	cfg, errConfig := v.config.PolicyConfig(ctx)
	if errConfig != nil {
		return errConfig
	}

	h, errHasher := hasher.New(cfg.Algorithm, cfg.Iterations)
	if errHasher != nil {
		return fmt.Errorf("policy: current config: %w", errHasher)
	}

	row, errResolve := v.store.GetOrCreateConfig(ctx, userID, cfg.Algorithm, cfg.Iterations)
	if errResolve != nil {
		return errResolve
	}

	digest := h.Hash(password, row.Salt)
	if _, errRecord := v.store.RecordChange(ctx, userID, row.ID, digest, cfg.RetentionWindow); errRecord != nil {
		return errRecord
	}
	return nil
}

// HelpText describes the policy, parameterized by the current window.
func (v *UniquePasswordsValidator) HelpText(ctx context.Context) string {
	cfg, errConfig := v.config.PolicyConfig(ctx)
	if errConfig == nil && cfg.RetentionWindow > 0 {
		return fmt.Sprintf("Your new password can not be identical to any of the %d previously entered passwords.", cfg.RetentionWindow)
	}
	return "Your new password can not be identical to any of the previously entered passwords."
}
