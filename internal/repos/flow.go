package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/types"
)

// FlowRepo is the State Store's durable flow record access (spec.md §4.4),
// grounded on the teacher's JobRunRepo (internal/repos/job_run.go).
type FlowRepo interface {
	Insert(ctx context.Context, flow *types.Flow) (*types.Flow, error)
	List(ctx context.Context) ([]types.FlowSummary, error)
	Get(ctx context.Context, id uint64) (*types.Flow, error)
	Update(ctx context.Context, id uint64, updates map[string]interface{}) error
	ListActive(ctx context.Context) ([]*types.Flow, error)
}

type flowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlowRepo(db *gorm.DB, baseLog *logger.Logger) FlowRepo {
	return &flowRepo{db: db, log: baseLog.With("repo", "FlowRepo")}
}

func (r *flowRepo) Insert(ctx context.Context, flow *types.Flow) (*types.Flow, error) {
	if err := r.db.WithContext(ctx).Create(flow).Error; err != nil {
		return nil, err
	}
	return flow, nil
}

func (r *flowRepo) List(ctx context.Context) ([]types.FlowSummary, error) {
	var out []types.FlowSummary
	err := r.db.WithContext(ctx).
		Model(&types.Flow{}).
		Select("id", "flow_name", "status", "current_stage").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *flowRepo) Get(ctx context.Context, id uint64) (*types.Flow, error) {
	var flow types.Flow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&flow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

// Update atomically replaces the mutable fields of a flow record inside a
// single transaction, satisfying spec.md §4.4's durability requirement
// that a tick's transition commits before the Event Bus delta is emitted.
func (r *flowRepo) Update(ctx context.Context, id uint64, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&types.Flow{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (r *flowRepo) ListActive(ctx context.Context) ([]*types.Flow, error) {
	var out []*types.Flow
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(types.FlowStatusPending), string(types.FlowStatusRunning)}).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
