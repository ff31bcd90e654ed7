package types

import "time"

// SystemInfoEntry is one flattened device/application metadata fact.
// (Category, InfoKey) is unique; re-ingestion overwrites the value.
type SystemInfoEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Category  string    `gorm:"column:category;uniqueIndex:idx_system_info_category_key;not null" json:"category"`
	InfoKey   string    `gorm:"column:info_key;uniqueIndex:idx_system_info_category_key;not null" json:"info_key"`
	InfoValue string    `gorm:"column:info_value" json:"info_value"`
	Source    string    `gorm:"column:source" json:"source"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SystemInfoEntry) TableName() string { return "system_info" }
