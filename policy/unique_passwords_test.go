package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	policydb "github.com/router-for-me/passwordpolicy/db"
	"github.com/router-for-me/passwordpolicy/hasher"
	"github.com/router-for-me/passwordpolicy/models"
	"github.com/router-for-me/passwordpolicy/settings"
	"gorm.io/gorm"
)

// testUser adapts a plain struct to the Identity interface.
type testUser struct {
	id        string
	persisted bool
}

func (u testUser) PolicyID() string  { return u.id }
func (u testUser) IsPersisted() bool { return u.persisted }

// testProvider is a mutable settings provider that counts reads.
type testProvider struct {
	cfg   settings.PolicyConfig
	reads int
}

func (p *testProvider) PolicyConfig(context.Context) (settings.PolicyConfig, error) {
	p.reads++
	return p.cfg, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := policydb.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func newTestValidator(t *testing.T, window int) (*gorm.DB, *UniquePasswordsValidator, *testProvider) {
	t.Helper()
	conn := openTestDB(t)
	provider := &testProvider{cfg: settings.PolicyConfig{
		RetentionWindow: window,
		Algorithm:       hasher.AlgorithmPBKDF2SHA256,
		Iterations:      5,
	}}
	return conn, NewUniquePasswordsValidator(conn, provider), provider
}

func tableCount(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	if errCount := conn.Model(model).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	return count
}

func assertReused(t *testing.T, v *UniquePasswordsValidator, password string, user Identity) {
	t.Helper()
	errValidate := v.Validate(context.Background(), password, user)
	if errValidate == nil {
		t.Fatalf("expected %q to be rejected as previously used", password)
	}
	var violation *ValidationError
	if !errors.As(errValidate, &violation) {
		t.Fatalf("expected ValidationError, got %T: %v", errValidate, errValidate)
	}
	if violation.Code != CodePasswordUsed {
		t.Fatalf("code: got %s want %s", violation.Code, CodePasswordUsed)
	}
}

func assertFresh(t *testing.T, v *UniquePasswordsValidator, password string, user Identity) {
	t.Helper()
	if errValidate := v.Validate(context.Background(), password, user); errValidate != nil {
		t.Fatalf("expected %q to pass validation, got %v", password, errValidate)
	}
}

func TestTransientIdentitySkipsAllStorageWork(t *testing.T) {
	conn, v, provider := newTestValidator(t, 2)
	ctx := context.Background()

	for _, user := range []Identity{nil, testUser{id: "user-1", persisted: false}, testUser{id: "  ", persisted: true}} {
		if errValidate := v.Validate(ctx, "qwerty", user); errValidate != nil {
			t.Fatalf("validate transient: %v", errValidate)
		}
		if errChanged := v.PasswordChanged(ctx, "qwerty", user); errChanged != nil {
			t.Fatalf("password changed transient: %v", errChanged)
		}
	}

	if provider.reads != 0 {
		t.Fatalf("transient identity must not read configuration, got %d reads", provider.reads)
	}
	if count := tableCount(t, conn, &models.HasherConfig{}); count != 0 {
		t.Fatalf("hasher configs: got %d want 0", count)
	}
	if count := tableCount(t, conn, &models.PasswordHistory{}); count != 0 {
		t.Fatalf("history rows: got %d want 0", count)
	}
}

func TestPasswordChangedRecordsOnce(t *testing.T) {
	conn, v, _ := newTestValidator(t, 0)
	ctx := context.Background()
	user := testUser{id: "user-1", persisted: true}

	if errChanged := v.PasswordChanged(ctx, "Password_1", user); errChanged != nil {
		t.Fatalf("password changed: %v", errChanged)
	}
	// Re-setting the current password again is a no-op.
	if errChanged := v.PasswordChanged(ctx, "Password_1", user); errChanged != nil {
		t.Fatalf("repeat password changed: %v", errChanged)
	}

	if count := tableCount(t, conn, &models.HasherConfig{}); count != 1 {
		t.Fatalf("hasher configs: got %d want 1", count)
	}
	if count := tableCount(t, conn, &models.PasswordHistory{}); count != 1 {
		t.Fatalf("history rows: got %d want 1", count)
	}
}

func TestValidateRejectsUsedAndAllowsFresh(t *testing.T) {
	_, v, _ := newTestValidator(t, 0)
	ctx := context.Background()
	user := testUser{id: "user-1", persisted: true}

	for _, password := range []string{"Password_1", "Password_2"} {
		if errChanged := v.PasswordChanged(ctx, password, user); errChanged != nil {
			t.Fatalf("password changed: %v", errChanged)
		}
	}

	assertReused(t, v, "Password_1", user)
	assertReused(t, v, "Password_2", user)
	assertFresh(t, v, "Password_3", user)
}

func TestBoundedWindowForgetsAgedOutPasswords(t *testing.T) {
	_, v, _ := newTestValidator(t, 2)
	ctx := context.Background()
	user := testUser{id: "user-1", persisted: true}

	// Window 2 end-to-end: after A, B the window holds {A, B}.
	if errChanged := v.PasswordChanged(ctx, "Password_A", user); errChanged != nil {
		t.Fatalf("change A: %v", errChanged)
	}
	if errChanged := v.PasswordChanged(ctx, "Password_B", user); errChanged != nil {
		t.Fatalf("change B: %v", errChanged)
	}
	assertReused(t, v, "Password_A", user)
	assertReused(t, v, "Password_B", user)

	// After C the window holds {B, C}; A was pruned and is unseen again.
	if errChanged := v.PasswordChanged(ctx, "Password_C", user); errChanged != nil {
		t.Fatalf("change C: %v", errChanged)
	}
	assertFresh(t, v, "Password_A", user)
	assertReused(t, v, "Password_B", user)
	assertReused(t, v, "Password_C", user)
}

func TestUnboundedWindowRemembersForever(t *testing.T) {
	_, v, _ := newTestValidator(t, 0)
	ctx := context.Background()
	user := testUser{id: "user-1", persisted: true}

	for i := 1; i <= 5; i++ {
		if errChanged := v.PasswordChanged(ctx, fmt.Sprintf("Password_%d", i), user); errChanged != nil {
			t.Fatalf("change %d: %v", i, errChanged)
		}
	}
	for i := 1; i <= 5; i++ {
		assertReused(t, v, fmt.Sprintf("Password_%d", i), user)
	}
}

func TestUsersDoNotShareHistory(t *testing.T) {
	_, v, _ := newTestValidator(t, 0)
	ctx := context.Background()
	alice := testUser{id: "alice", persisted: true}
	bob := testUser{id: "bob", persisted: true}

	if errChanged := v.PasswordChanged(ctx, "Shared_Password1", alice); errChanged != nil {
		t.Fatalf("change: %v", errChanged)
	}

	assertReused(t, v, "Shared_Password1", alice)
	assertFresh(t, v, "Shared_Password1", bob)
}

func TestWorkFactorUpgradePreservesOldHistory(t *testing.T) {
	conn, v, provider := newTestValidator(t, 0)
	ctx := context.Background()
	user := testUser{id: "user-1", persisted: true}

	for _, password := range []string{"Password_1", "Password_2"} {
		if errChanged := v.PasswordChanged(ctx, password, user); errChanged != nil {
			t.Fatalf("password changed: %v", errChanged)
		}
	}

	// Raise the work factor at runtime; digests under the old config must
	// still block reuse, and the next change lands under a new config.
	provider.cfg.Iterations = 10

	assertReused(t, v, "Password_1", user)
	assertReused(t, v, "Password_2", user)
	assertFresh(t, v, "Password_3", user)

	if errChanged := v.PasswordChanged(ctx, "Password_3", user); errChanged != nil {
		t.Fatalf("password changed: %v", errChanged)
	}
	assertReused(t, v, "Password_3", user)

	countByIterations := func(iterations int) int64 {
		var count int64
		errCount := conn.Model(&models.PasswordHistory{}).
			Joins("JOIN hasher_configs ON hasher_configs.id = password_histories.hasher_config_id").
			Where("hasher_configs.iterations = ?", iterations).
			Count(&count).Error
		if errCount != nil {
			t.Fatalf("count by iterations: %v", errCount)
		}
		return count
	}
	if count := countByIterations(5); count != 2 {
		t.Fatalf("rows under old config: got %d want 2", count)
	}
	if count := countByIterations(10); count != 1 {
		t.Fatalf("rows under new config: got %d want 1", count)
	}
}

func TestJointWindowSpansConfigs(t *testing.T) {
	_, v, provider := newTestValidator(t, 2)
	ctx := context.Background()
	user := testUser{id: "user-1", persisted: true}

	if errChanged := v.PasswordChanged(ctx, "Password_1", user); errChanged != nil {
		t.Fatalf("change 1: %v", errChanged)
	}
	provider.cfg.Iterations = 10
	if errChanged := v.PasswordChanged(ctx, "Password_2", user); errChanged != nil {
		t.Fatalf("change 2: %v", errChanged)
	}
	if errChanged := v.PasswordChanged(ctx, "Password_3", user); errChanged != nil {
		t.Fatalf("change 3: %v", errChanged)
	}

	// The record under the old config aged out of the joint window even
	// though that config holds nothing else.
	assertFresh(t, v, "Password_1", user)
	assertReused(t, v, "Password_2", user)
	assertReused(t, v, "Password_3", user)
}

func TestConfigurationIsReadFreshPerCall(t *testing.T) {
	_, v, provider := newTestValidator(t, 0)
	ctx := context.Background()
	user := testUser{id: "user-1", persisted: true}

	for i := 1; i <= 3; i++ {
		if errChanged := v.PasswordChanged(ctx, fmt.Sprintf("Password_%d", i), user); errChanged != nil {
			t.Fatalf("change %d: %v", i, errChanged)
		}
	}
	assertReused(t, v, "Password_1", user)

	// Shrinking the window takes effect on the next mutation.
	provider.cfg.RetentionWindow = 1
	if errChanged := v.PasswordChanged(ctx, "Password_4", user); errChanged != nil {
		t.Fatalf("change 4: %v", errChanged)
	}
	assertFresh(t, v, "Password_1", user)
	assertFresh(t, v, "Password_3", user)
	assertReused(t, v, "Password_4", user)
}

func TestValidatePropagatesUnknownStoredAlgorithm(t *testing.T) {
	conn, v, _ := newTestValidator(t, 0)
	ctx := context.Background()
	user := testUser{id: "user-1", persisted: true}

	row := models.HasherConfig{
		UserID:     "user-1",
		Algorithm:  "md5",
		Iterations: 1,
		Salt:       "00",
	}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed config: %v", errCreate)
	}

	errValidate := v.Validate(ctx, "Password_1", user)
	if errValidate == nil {
		t.Fatal("expected error for unknown stored algorithm")
	}
	var violation *ValidationError
	if errors.As(errValidate, &violation) {
		t.Fatalf("infrastructure failure must not surface as a policy violation: %v", errValidate)
	}
}

func TestHelpTextReflectsWindow(t *testing.T) {
	_, v, provider := newTestValidator(t, 4)
	ctx := context.Background()

	if text := v.HelpText(ctx); !strings.Contains(text, "4") {
		t.Fatalf("bounded help text missing window size: %s", text)
	}

	provider.cfg.RetentionWindow = 0
	if text := v.HelpText(ctx); strings.Contains(text, "4") {
		t.Fatalf("unbounded help text should not mention a window size: %s", text)
	}
}
