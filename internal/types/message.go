package types

import (
	"time"

	"gorm.io/datatypes"
)

// Message is one communication event. Sender/Receiver keep the raw extracted
// identifier for provenance; SenderID/ReceiverID are the canonical Contact
// references resolved during ingestion. Messages are intentionally not
// deduplicated across ingestions: a re-upload is new history.
type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ExternalID     string         `gorm:"column:external_id;index" json:"external_id"`
	ConversationID string         `gorm:"column:conversation_id;index" json:"conversation_id"`
	SenderID       *uint          `gorm:"column:sender_id;index" json:"sender_id,omitempty"`
	ReceiverID     *uint          `gorm:"column:receiver_id;index" json:"receiver_id,omitempty"`
	Sender         string         `gorm:"column:sender" json:"sender"`
	Receiver       string         `gorm:"column:receiver" json:"receiver"`
	Timestamp      *time.Time     `gorm:"column:timestamp;index" json:"timestamp,omitempty"`
	Body           string         `gorm:"column:body" json:"body"`
	Direction      string         `gorm:"column:direction" json:"direction"`
	MessageType    string         `gorm:"column:message_type" json:"message_type"`
	Attachments    string         `gorm:"column:attachments" json:"attachments"`
	Source         string         `gorm:"column:source" json:"source"`
	RawData        datatypes.JSON `gorm:"column:raw_data" json:"raw_data,omitempty"`
	VectorID       string         `gorm:"column:vector_id;index" json:"vector_id,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (Message) TableName() string { return "messages" }
