package types

import (
	"time"

	"gorm.io/datatypes"
)

// Contact is a canonical communication-participant identity. ExternalKey is
// the stable merge key (first normalized phone or email seen for the
// identity), so re-ingesting the same person lands on the same row.
type Contact struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ExternalKey string         `gorm:"column:external_key;uniqueIndex;not null" json:"external_key"`
	DisplayName string         `gorm:"column:display_name" json:"display_name"`
	GivenName   string         `gorm:"column:given_name" json:"given_name"`
	FamilyName  string         `gorm:"column:family_name" json:"family_name"`
	PhoneNumber string         `gorm:"column:phone_number;index" json:"phone_number"`
	Email       string         `gorm:"column:email;index" json:"email"`
	Source      string         `gorm:"column:source" json:"source"`
	RawData     datatypes.JSON `gorm:"column:raw_data" json:"raw_data,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Contact) TableName() string { return "contacts" }
