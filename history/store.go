package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/router-for-me/passwordpolicy/hasher"
	"github.com/router-for-me/passwordpolicy/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists password history and applies the retention policy.
//
// The retention window is joint: pruning and the in-scope set consider the
// union of a user's rows across every hasher config, ordered newest-first
// by (created_at, id). Digest matching is then per config within that
// joint set.
type Store struct {
	db *gorm.DB

	// userLocks serializes mutations per user so concurrent password
	// changes cannot interleave append and prune for the same history.
	userLocks *sync.Map
}

// NewStore constructs a Store over the given connection.
func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn, userLocks: &sync.Map{}}
}

// withDB returns a Store bound to another connection (a transaction) that
// shares the per-user lock table.
func (s *Store) withDB(conn *gorm.DB) *Store {
	return &Store{db: conn, userLocks: s.userLocks}
}

// Configs returns every hasher config recorded for the user, oldest first.
func (s *Store) Configs(ctx context.Context, userID string) ([]models.HasherConfig, error) {
	var configs []models.HasherConfig
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&configs).Error; errFind != nil {
		return nil, fmt.Errorf("history: load configs: %w", errFind)
	}
	return configs, nil
}

// GetOrCreateConfig resolves the user's config for the exact
// (algorithm, iterations) pair, creating it with a fresh salt on first
// use. The unique index on (user_id, algorithm, iterations) makes the
// create race-safe: a loser of a concurrent first change re-reads the
// winner's row.
func (s *Store) GetOrCreateConfig(ctx context.Context, userID, algorithm string, iterations int) (models.HasherConfig, error) {
	var cfg models.HasherConfig
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND algorithm = ? AND iterations = ?", userID, algorithm, iterations).
		First(&cfg).Error
	if errFind == nil {
		return cfg, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.HasherConfig{}, fmt.Errorf("history: load config: %w", errFind)
	}

	salt, errSalt := hasher.GenerateSalt()
	if errSalt != nil {
		return models.HasherConfig{}, errSalt
	}
	cfg = models.HasherConfig{
		UserID:     userID,
		Algorithm:  algorithm,
		Iterations: iterations,
		Salt:       salt,
	}
	if errCreate := s.db.WithContext(ctx).Create(&cfg).Error; errCreate != nil {
		var existing models.HasherConfig
		if errRetry := s.db.WithContext(ctx).
			Where("user_id = ? AND algorithm = ? AND iterations = ?", userID, algorithm, iterations).
			First(&existing).Error; errRetry == nil {
			return existing, nil
		}
		return models.HasherConfig{}, fmt.Errorf("history: create config: %w", errCreate)
	}
	return cfg, nil
}

// InScopeIDs returns the IDs of the user's history rows inside the
// retention window, newest first across all configs. A non-positive
// lastN returns every row.
func (s *Store) InScopeIDs(ctx context.Context, userID string, lastN int) ([]uint64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.PasswordHistory{}).
		Joins("JOIN hasher_configs ON hasher_configs.id = password_histories.hasher_config_id").
		Where("hasher_configs.user_id = ?", userID).
		Order("password_histories.created_at DESC, password_histories.id DESC")
	if lastN > 0 {
		query = query.Limit(lastN)
	}

	var ids []uint64
	if errPluck := query.Pluck("password_histories.id", &ids).Error; errPluck != nil {
		return nil, fmt.Errorf("history: load in-scope ids: %w", errPluck)
	}
	return ids, nil
}

// RecordsInScope returns the user's in-scope history rows, newest first.
func (s *Store) RecordsInScope(ctx context.Context, userID string, lastN int) ([]models.PasswordHistory, error) {
	ids, err := s.InScopeIDs(ctx, userID, lastN)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []models.PasswordHistory
	if errFind := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("history: load in-scope rows: %w", errFind)
	}
	return rows, nil
}

// HasDigest reports whether the digest exists for the given config within
// the user's joint retention window.
func (s *Store) HasDigest(ctx context.Context, userID string, configID uint64, digest string, lastN int) (bool, error) {
	query := s.db.WithContext(ctx).
		Model(&models.PasswordHistory{}).
		Where("hasher_config_id = ? AND digest = ?", configID, digest)

	if lastN > 0 {
		ids, err := s.InScopeIDs(ctx, userID, lastN)
		if err != nil {
			return false, err
		}
		if len(ids) == 0 {
			return false, nil
		}
		query = query.Where("id IN ?", ids)
	}

	var count int64
	if errCount := query.Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("history: digest lookup: %w", errCount)
	}
	return count > 0, nil
}

// Append inserts a history row unless the (config, digest) pair already
// exists anywhere in history. A duplicate keeps the original row and its
// recency rank: re-recording an old password never refreshes it to the
// front of the window. Reports whether a row was created.
func (s *Store) Append(ctx context.Context, configID uint64, digest string) (bool, error) {
	row := models.PasswordHistory{
		HasherConfigID: configID,
		Digest:         digest,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("history: append: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Prune deletes the user's history rows outside the retention window,
// across all configs jointly. A non-positive lastN keeps everything.
func (s *Store) Prune(ctx context.Context, userID string, lastN int) (int64, error) {
	if lastN <= 0 {
		return 0, nil
	}

	ids, err := s.InScopeIDs(ctx, userID, lastN)
	if err != nil {
		return 0, err
	}

	query := s.db.WithContext(ctx).
		Where("hasher_config_id IN (?)",
			s.db.Model(&models.HasherConfig{}).Select("id").Where("user_id = ?", userID))
	if len(ids) > 0 {
		query = query.Where("id NOT IN ?", ids)
	}

	res := query.Delete(&models.PasswordHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("history: prune: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Debugf("password history pruned: user=%s deleted=%d window=%d", userID, res.RowsAffected, lastN)
	}
	return res.RowsAffected, nil
}

// RecordChange appends the digest and prunes the user's history as one
// serialized unit: the per-user lock orders concurrent password changes
// and the transaction makes prune observe the just-appended row.
func (s *Store) RecordChange(ctx context.Context, userID string, configID uint64, digest string, lastN int) (bool, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	created := false
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := s.withDB(tx)
		var errAppend error
		created, errAppend = txStore.Append(ctx, configID, digest)
		if errAppend != nil {
			return errAppend
		}
		_, errPrune := txStore.Prune(ctx, userID, lastN)
		return errPrune
	})
	if errTx != nil {
		return false, errTx
	}
	return created, nil
}

// lockUser acquires the user's mutation lock and returns its release func.
func (s *Store) lockUser(userID string) func() {
	value, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
