package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/types"
)

// SecretRepo is the Secret Registry's storage (spec.md §4.6), the same
// minimal shape as the teacher's simplest repos (JobRunRepo minus the
// claim logic).
type SecretRepo interface {
	Upsert(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

type secretRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSecretRepo(db *gorm.DB, baseLog *logger.Logger) SecretRepo {
	return &secretRepo{db: db, log: baseLog.With("repo", "SecretRepo")}
}

func (r *secretRepo) Upsert(ctx context.Context, key, value string) error {
	s := &types.Secret{Key: key, Value: value}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(s).Error
}

func (r *secretRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var s types.Secret
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Value, true, nil
}

func (r *secretRepo) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("key = ?", key).Delete(&types.Secret{}).Error
}
