package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*types.Message, error)
	// GetByExternalIDs returns matching rows ordered oldest first. External
	// ids are not unique; re-ingested archives append.
	GetByExternalIDs(ctx context.Context, tx *gorm.DB, externalIDs []string) ([]*types.Message, error)
	All(ctx context.Context, tx *gorm.DB) ([]*types.Message, error)
	List(ctx context.Context, tx *gorm.DB, search string, limit, offset int) ([]*types.Message, int64, error)
	DeleteAll(ctx context.Context, tx *gorm.DB) error
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

func (r *messageRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).CreateInBatches(&messages, 200).Error
}

func (r *messageRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*types.Message, error) {
	var results []*types.Message
	if len(ids) == 0 {
		return results, nil
	}
	if err := r.conn(tx).WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *messageRepo) GetByExternalIDs(ctx context.Context, tx *gorm.DB, externalIDs []string) ([]*types.Message, error) {
	var results []*types.Message
	if len(externalIDs) == 0 {
		return results, nil
	}
	if err := r.conn(tx).WithContext(ctx).Where("external_id IN ?", externalIDs).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *messageRepo) All(ctx context.Context, tx *gorm.DB) ([]*types.Message, error) {
	var results []*types.Message
	if err := r.conn(tx).WithContext(ctx).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *messageRepo) List(ctx context.Context, tx *gorm.DB, search string, limit, offset int) ([]*types.Message, int64, error) {
	conn := r.conn(tx).WithContext(ctx).Model(&types.Message{})
	if search != "" {
		conn = conn.Where("body LIKE ?", "%"+search+"%")
	}
	var total int64
	if err := conn.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var results []*types.Message
	if err := conn.Order("timestamp DESC, id DESC").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *messageRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	return r.conn(tx).WithContext(ctx).Where("1 = 1").Delete(&types.Message{}).Error
}
