package extract

import (
	"context"
	"time"
)

// Kind classifies a discovered source file inside the archive.
type Kind string

const (
	KindMessages   Kind = "messages"
	KindContacts   Kind = "contacts"
	KindSystemInfo Kind = "systeminfo"
	KindImages     Kind = "images"
	KindUnknown    Kind = "unknown"
)

// SourceFile is one file discovered by the archive loader.
type SourceFile struct {
	Path    string // absolute path inside the working directory
	RelPath string // path relative to the extraction root
	Kind    Kind
}

// Outcome reports how a single source fared. A source that fails outright
// degrades to zero records; it never aborts the rest of the archive.
type Outcome struct {
	Source  string
	Kind    Kind
	Parsed  int
	Skipped int
	Err     error
}

// Record is the closed set of intermediate shapes produced by extractors.
// Only the four types below implement it.
type Record interface {
	RecordKind() Kind
}

type MessageRecord struct {
	ExternalID     string
	ConversationID string
	Sender         string
	Receiver       string
	Timestamp      *time.Time
	Body           string
	Direction      string
	MessageType    string
	Attachments    string
	Source         string
	Raw            map[string]any
}

func (MessageRecord) RecordKind() Kind { return KindMessages }

type ContactRecord struct {
	ExternalID  string
	DisplayName string
	GivenName   string
	FamilyName  string
	PhoneNumber string
	Email       string
	Source      string
	Raw         map[string]any
}

func (ContactRecord) RecordKind() Kind { return KindContacts }

type SystemInfoRecord struct {
	Category string
	Key      string
	Value    string
	Source   string
}

func (SystemInfoRecord) RecordKind() Kind { return KindSystemInfo }

type ImageRecord struct {
	FilePath     string
	RelativePath string
	Fingerprint  string
	SizeBytes    int64
	MimeType     string
	Width        int
	Height       int
	ModifiedAt   *time.Time
}

func (ImageRecord) RecordKind() Kind { return KindImages }

// Extractor turns one source file into intermediate records. Implementations
// skip-and-count malformed rows instead of failing.
type Extractor func(ctx context.Context, src SourceFile) ([]Record, Outcome)

// Table returns the dispatch table over the recognized source kinds.
func Table() map[Kind]Extractor {
	return map[Kind]Extractor{
		KindMessages:   Messages,
		KindContacts:   Contacts,
		KindSystemInfo: SystemInfo,
		KindImages:     Images,
	}
}
