package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

type SystemInfoRepo interface {
	// Upsert writes entries with last-write-wins semantics per
	// (category, info_key).
	Upsert(ctx context.Context, tx *gorm.DB, entries []*types.SystemInfoEntry) error
	List(ctx context.Context, tx *gorm.DB, category, search string, limit, offset int) ([]*types.SystemInfoEntry, int64, error)
	DeleteAll(ctx context.Context, tx *gorm.DB) error
}

type systemInfoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSystemInfoRepo(db *gorm.DB, baseLog *logger.Logger) SystemInfoRepo {
	return &systemInfoRepo{db: db, log: baseLog.With("repo", "SystemInfoRepo")}
}

func (r *systemInfoRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *systemInfoRepo) Upsert(ctx context.Context, tx *gorm.DB, entries []*types.SystemInfoEntry) error {
	if len(entries) == 0 {
		return nil
	}
	// Postgres rejects ON CONFLICT updates that touch the same row twice in
	// one statement, so collapse duplicate (category, info_key) pairs first.
	// Last entry wins, matching the row-level semantics.
	seen := make(map[[2]string]int, len(entries))
	deduped := make([]*types.SystemInfoEntry, 0, len(entries))
	for _, e := range entries {
		key := [2]string{e.Category, e.InfoKey}
		if idx, ok := seen[key]; ok {
			deduped[idx] = e
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, e)
	}
	return r.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}, {Name: "info_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"info_value", "source", "updated_at"}),
	}).CreateInBatches(&deduped, 200).Error
}

func (r *systemInfoRepo) List(ctx context.Context, tx *gorm.DB, category, search string, limit, offset int) ([]*types.SystemInfoEntry, int64, error) {
	conn := r.conn(tx).WithContext(ctx).Model(&types.SystemInfoEntry{})
	if category != "" {
		conn = conn.Where("category = ?", category)
	}
	if search != "" {
		like := "%" + search + "%"
		conn = conn.Where("info_key LIKE ? OR info_value LIKE ?", like, like)
	}
	var total int64
	if err := conn.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var results []*types.SystemInfoEntry
	if err := conn.Order("info_key ASC").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *systemInfoRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	return r.conn(tx).WithContext(ctx).Where("1 = 1").Delete(&types.SystemInfoEntry{}).Error
}
