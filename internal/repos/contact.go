package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

type ContactRepo interface {
	// UpsertByExternalKey merges each contact into the row holding its
	// ExternalKey. Merge is non-destructive: populated fields on the
	// existing row are never overwritten by empty incoming ones. The
	// incoming structs get their ID filled from the persisted row.
	UpsertByExternalKey(ctx context.Context, tx *gorm.DB, contacts []*types.Contact) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*types.Contact, error)
	All(ctx context.Context, tx *gorm.DB) ([]*types.Contact, error)
	List(ctx context.Context, tx *gorm.DB, search string, limit, offset int) ([]*types.Contact, int64, error)
	DeleteAll(ctx context.Context, tx *gorm.DB) error
}

type contactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContactRepo(db *gorm.DB, baseLog *logger.Logger) ContactRepo {
	return &contactRepo{db: db, log: baseLog.With("repo", "ContactRepo")}
}

func (r *contactRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *contactRepo) UpsertByExternalKey(ctx context.Context, tx *gorm.DB, contacts []*types.Contact) error {
	conn := r.conn(tx).WithContext(ctx)
	for _, c := range contacts {
		if c == nil || c.ExternalKey == "" {
			continue
		}
		var existing types.Contact
		err := conn.Where("external_key = ?", c.ExternalKey).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if createErr := conn.Create(c).Error; createErr != nil {
				return createErr
			}
		case err != nil:
			return err
		default:
			mergeContact(&existing, c)
			if saveErr := conn.Save(&existing).Error; saveErr != nil {
				return saveErr
			}
			*c = existing
		}
	}
	return nil
}

// mergeContact fills empty fields of dst from src.
func mergeContact(dst, src *types.Contact) {
	if dst.DisplayName == "" {
		dst.DisplayName = src.DisplayName
	}
	if dst.GivenName == "" {
		dst.GivenName = src.GivenName
	}
	if dst.FamilyName == "" {
		dst.FamilyName = src.FamilyName
	}
	if dst.PhoneNumber == "" {
		dst.PhoneNumber = src.PhoneNumber
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
	if dst.Source == "" {
		dst.Source = src.Source
	}
	if len(dst.RawData) == 0 {
		dst.RawData = src.RawData
	}
}

func (r *contactRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*types.Contact, error) {
	var results []*types.Contact
	if len(ids) == 0 {
		return results, nil
	}
	if err := r.conn(tx).WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *contactRepo) All(ctx context.Context, tx *gorm.DB) ([]*types.Contact, error) {
	var results []*types.Contact
	if err := r.conn(tx).WithContext(ctx).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *contactRepo) List(ctx context.Context, tx *gorm.DB, search string, limit, offset int) ([]*types.Contact, int64, error) {
	conn := r.conn(tx).WithContext(ctx).Model(&types.Contact{})
	if search != "" {
		like := "%" + search + "%"
		conn = conn.Where("display_name LIKE ? OR phone_number LIKE ? OR email LIKE ?", like, like, like)
	}
	var total int64
	if err := conn.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var results []*types.Contact
	if err := conn.Order("display_name ASC, id ASC").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *contactRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	return r.conn(tx).WithContext(ctx).Where("1 = 1").Delete(&types.Contact{}).Error
}
