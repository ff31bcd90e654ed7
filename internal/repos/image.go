package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

type ImageRepo interface {
	// UpsertByFilePath merges each image into the row holding its FilePath.
	// A re-seen image keeps its caption when already done; otherwise its
	// status returns to pending so the worker picks it up again.
	UpsertByFilePath(ctx context.Context, tx *gorm.DB, images []*types.Image) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*types.Image, error)
	ListByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Image, error)
	List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Image, int64, error)
	All(ctx context.Context, tx *gorm.DB) ([]*types.Image, error)
	MarkProcessing(ctx context.Context, tx *gorm.DB, id uint) error
	MarkDone(ctx context.Context, tx *gorm.DB, id uint, caption, tags, detectedText, vectorID string) error
	MarkError(ctx context.Context, tx *gorm.DB, id uint, cause string) error
	ResetFailedToPending(ctx context.Context, tx *gorm.DB) (int64, error)
	DeleteAll(ctx context.Context, tx *gorm.DB) error
}

type imageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImageRepo(db *gorm.DB, baseLog *logger.Logger) ImageRepo {
	return &imageRepo{db: db, log: baseLog.With("repo", "ImageRepo")}
}

func (r *imageRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *imageRepo) UpsertByFilePath(ctx context.Context, tx *gorm.DB, images []*types.Image) error {
	conn := r.conn(tx).WithContext(ctx)
	for _, img := range images {
		if img == nil || img.FilePath == "" {
			continue
		}
		var existing types.Image
		err := conn.Where("file_path = ?", img.FilePath).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if img.CaptionStatus == "" {
				img.CaptionStatus = types.CaptionStatusPending
			}
			if createErr := conn.Create(img).Error; createErr != nil {
				return createErr
			}
		case err != nil:
			return err
		default:
			existing.RelativePath = img.RelativePath
			existing.Fingerprint = img.Fingerprint
			existing.SizeBytes = img.SizeBytes
			existing.MimeType = img.MimeType
			existing.Width = img.Width
			existing.Height = img.Height
			existing.Source = img.Source
			if len(img.Metadata) > 0 {
				existing.Metadata = img.Metadata
			}
			if img.ContactID != nil {
				existing.ContactID = img.ContactID
			}
			if existing.CaptionStatus != types.CaptionStatusDone {
				existing.CaptionStatus = types.CaptionStatusPending
				existing.CaptionError = ""
			}
			if saveErr := conn.Save(&existing).Error; saveErr != nil {
				return saveErr
			}
			*img = existing
		}
	}
	return nil
}

func (r *imageRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*types.Image, error) {
	var results []*types.Image
	if len(ids) == 0 {
		return results, nil
	}
	if err := r.conn(tx).WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *imageRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Image, error) {
	var results []*types.Image
	if err := r.conn(tx).WithContext(ctx).Where("caption_status = ?", status).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *imageRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Image, int64, error) {
	conn := r.conn(tx).WithContext(ctx).Model(&types.Image{})
	var total int64
	if err := conn.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var results []*types.Image
	if err := conn.Order("id ASC").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *imageRepo) All(ctx context.Context, tx *gorm.DB) ([]*types.Image, error) {
	var results []*types.Image
	if err := r.conn(tx).WithContext(ctx).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *imageRepo) MarkProcessing(ctx context.Context, tx *gorm.DB, id uint) error {
	return r.conn(tx).WithContext(ctx).Model(&types.Image{}).
		Where("id = ?", id).
		Update("caption_status", types.CaptionStatusProcessing).Error
}

func (r *imageRepo) MarkDone(ctx context.Context, tx *gorm.DB, id uint, caption, tags, detectedText, vectorID string) error {
	now := time.Now().UTC()
	return r.conn(tx).WithContext(ctx).Model(&types.Image{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"caption_status":    types.CaptionStatusDone,
			"caption":           caption,
			"tags":              tags,
			"detected_text":     detectedText,
			"vector_id":         vectorID,
			"caption_error":     "",
			"last_captioned_at": now,
		}).Error
}

func (r *imageRepo) MarkError(ctx context.Context, tx *gorm.DB, id uint, cause string) error {
	if len(cause) > 512 {
		cause = cause[:512]
	}
	now := time.Now().UTC()
	return r.conn(tx).WithContext(ctx).Model(&types.Image{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"caption_status":    types.CaptionStatusError,
			"caption_error":     cause,
			"last_captioned_at": now,
		}).Error
}

func (r *imageRepo) ResetFailedToPending(ctx context.Context, tx *gorm.DB) (int64, error) {
	res := r.conn(tx).WithContext(ctx).Model(&types.Image{}).
		Where("caption_status IN ?", []string{types.CaptionStatusError, types.CaptionStatusProcessing}).
		Updates(map[string]any{
			"caption_status": types.CaptionStatusPending,
			"caption_error":  "",
		})
	return res.RowsAffected, res.Error
}

func (r *imageRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	return r.conn(tx).WithContext(ctx).Where("1 = 1").Delete(&types.Image{}).Error
}
