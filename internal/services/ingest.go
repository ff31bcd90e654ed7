package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/ufdrlab-backend/internal/archive"
	"github.com/yungbote/ufdrlab-backend/internal/canonical"
	"github.com/yungbote/ufdrlab-backend/internal/extract"
	"github.com/yungbote/ufdrlab-backend/internal/platform/apierr"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/platform/openai"
	"github.com/yungbote/ufdrlab-backend/internal/platform/qdrant"
	"github.com/yungbote/ufdrlab-backend/internal/repos"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

const messageNamespace = "messages"

// SourceReport is the per-file outcome surfaced in the ingest summary.
type SourceReport struct {
	Source  string `json:"source"`
	Kind    string `json:"kind"`
	Parsed  int    `json:"parsed"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// IngestSummary is the response for one archive upload. Counts reflect what
// was committed; a row here is never half-written.
type IngestSummary struct {
	ArchiveID  string         `json:"archive_id"`
	Archive    string         `json:"archive"`
	Messages   int            `json:"messages_ingested"`
	Contacts   int            `json:"contacts_ingested"`
	Images     int            `json:"images_ingested"`
	SystemInfo int            `json:"system_info_ingested"`
	Sources    []SourceReport `json:"sources"`
	Notes      []string       `json:"notes,omitempty"`
}

// IngestService owns the archive -> relational-store pipeline: unpack,
// extract, canonicalize, and commit everything in one transaction. Derived
// stores are updated after the commit, best effort.
type IngestService interface {
	Ingest(ctx context.Context, upload io.Reader, filename string) (*IngestSummary, error)
	// Reset wipes the relational store and the derived indexes.
	Reset(ctx context.Context) error
}

type ingestService struct {
	log      *logger.Logger
	db       *gorm.DB
	loader   *archive.Loader
	contacts repos.ContactRepo
	messages repos.MessageRepo
	sysinfo  repos.SystemInfoRepo
	images   repos.ImageRepo

	graphSync GraphSyncService
	captions  CaptionService
	ai        openai.Client
	vectors   qdrant.VectorStore
}

func NewIngestService(
	log *logger.Logger,
	db *gorm.DB,
	loader *archive.Loader,
	contacts repos.ContactRepo,
	messages repos.MessageRepo,
	sysinfo repos.SystemInfoRepo,
	images repos.ImageRepo,
	graphSync GraphSyncService,
	captions CaptionService,
	ai openai.Client,
	vectors qdrant.VectorStore,
) IngestService {
	return &ingestService{
		log:       log.With("service", "IngestService"),
		db:        db,
		loader:    loader,
		contacts:  contacts,
		messages:  messages,
		sysinfo:   sysinfo,
		images:    images,
		graphSync: graphSync,
		captions:  captions,
		ai:        ai,
		vectors:   vectors,
	}
}

// batch is everything extracted from one archive, canonicalized and ready
// to persist.
type batch struct {
	resolver    *canonical.Resolver
	messageRecs []messageWithActors
	sysinfoRecs []extract.SystemInfoRecord
	imageRecs   []extract.ImageRecord
	reports     []SourceReport
}

type messageWithActors struct {
	rec      extract.MessageRecord
	sender   *types.Contact
	receiver *types.Contact
}

func (s *ingestService) Ingest(ctx context.Context, upload io.Reader, filename string) (*IngestSummary, error) {
	ex, err := s.loader.Open(ctx, upload, filename)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrBadArchive):
			return nil, apierr.Structural(err)
		case errors.Is(err, archive.ErrStorageFull):
			return nil, apierr.StorageFull(err)
		default:
			return nil, apierr.Internal(err)
		}
	}
	b := s.extractAll(ctx, ex)
	summary := &IngestSummary{
		ArchiveID: ex.ID,
		Archive:   ex.ArchiveName,
		Sources:   b.reports,
	}

	persisted, err := s.persist(ctx, b, summary)
	if err != nil {
		if cerr := ex.Close(); cerr != nil {
			s.log.Warn("Working directory cleanup failed", "extraction_id", ex.ID, "error", cerr)
		}
		return nil, err
	}
	// The extracted tree is retained on success: committed image rows point
	// into it and the caption worker reads the files from there.

	s.afterCommit(ctx, persisted, summary)

	s.log.Info("Archive ingested",
		"archive_id", summary.ArchiveID,
		"archive", summary.Archive,
		"messages", summary.Messages,
		"contacts", summary.Contacts,
		"images", summary.Images,
		"system_info", summary.SystemInfo,
	)
	return summary, nil
}

// extractAll runs every recognized source through its extractor. Failures
// degrade to per-source reports.
func (s *ingestService) extractAll(ctx context.Context, ex *archive.Extraction) *batch {
	b := &batch{resolver: canonical.NewResolver()}
	table := extract.Table()

	// Contacts first so message actors resolve against them.
	ordered := make([]extract.SourceFile, 0, len(ex.Sources))
	for _, src := range ex.Sources {
		if src.Kind == extract.KindContacts {
			ordered = append(ordered, src)
		}
	}
	for _, src := range ex.Sources {
		if src.Kind != extract.KindContacts && src.Kind != extract.KindUnknown {
			ordered = append(ordered, src)
		}
	}

	for _, src := range ordered {
		extractor, ok := table[src.Kind]
		if !ok {
			continue
		}
		records, outcome := extractor(ctx, src)
		report := SourceReport{
			Source:  outcome.Source,
			Kind:    string(outcome.Kind),
			Parsed:  outcome.Parsed,
			Skipped: outcome.Skipped,
		}
		if outcome.Err != nil {
			report.Error = outcome.Err.Error()
			s.log.Warn("Source extraction degraded", "source", src.RelPath, "error", outcome.Err)
		}
		b.reports = append(b.reports, report)

		for _, rec := range records {
			switch r := rec.(type) {
			case extract.ContactRecord:
				b.resolver.AddContact(r)
			case extract.MessageRecord:
				b.messageRecs = append(b.messageRecs, messageWithActors{
					rec:      r,
					sender:   b.resolver.ResolveActor(r.Sender),
					receiver: b.resolver.ResolveActor(r.Receiver),
				})
			case extract.SystemInfoRecord:
				b.sysinfoRecs = append(b.sysinfoRecs, r)
			case extract.ImageRecord:
				b.imageRecs = append(b.imageRecs, r)
			}
		}
	}
	return b
}

// persisted carries the committed rows needed for derived-store updates.
type persisted struct {
	contacts []*types.Contact
	messages []*types.Message
	images   []*types.Image
}

// persist commits the whole batch in a single transaction. Either every row
// lands or none do.
func (s *ingestService) persist(ctx context.Context, b *batch, summary *IngestSummary) (*persisted, error) {
	out := &persisted{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contacts := b.resolver.Contacts()
		if err := s.contacts.UpsertByExternalKey(ctx, tx, contacts); err != nil {
			return fmt.Errorf("upsert contacts: %w", err)
		}
		out.contacts = contacts
		summary.Contacts = len(contacts)

		messages := make([]*types.Message, 0, len(b.messageRecs))
		for _, mr := range b.messageRecs {
			messages = append(messages, buildMessage(mr))
		}
		if err := s.messages.Create(ctx, tx, messages); err != nil {
			return fmt.Errorf("create messages: %w", err)
		}
		out.messages = messages
		summary.Messages = len(messages)

		entries := make([]*types.SystemInfoEntry, 0, len(b.sysinfoRecs))
		for _, rec := range b.sysinfoRecs {
			entries = append(entries, &types.SystemInfoEntry{
				Category:  rec.Category,
				InfoKey:   rec.Key,
				InfoValue: rec.Value,
				Source:    rec.Source,
			})
		}
		if err := s.sysinfo.Upsert(ctx, tx, entries); err != nil {
			return fmt.Errorf("upsert system info: %w", err)
		}
		summary.SystemInfo = len(entries)

		images := make([]*types.Image, 0, len(b.imageRecs))
		contactByBase := contactIDByAttachmentBase(b)
		for _, rec := range b.imageRecs {
			img := buildImage(rec)
			if id, ok := contactByBase[strings.ToLower(path.Base(rec.RelativePath))]; ok {
				img.ContactID = &id
			}
			images = append(images, img)
		}
		if err := s.images.UpsertByFilePath(ctx, tx, images); err != nil {
			return fmt.Errorf("upsert images: %w", err)
		}
		out.images = images
		summary.Images = len(images)
		return nil
	})
	if err != nil {
		return nil, apierr.Commit(fmt.Errorf("ingest transaction: %w", err))
	}
	return out, nil
}

// afterCommit updates the derived stores. Failures become summary notes;
// the relational commit already succeeded and stands.
func (s *ingestService) afterCommit(ctx context.Context, p *persisted, summary *IngestSummary) {
	if err := s.indexMessages(ctx, p.messages); err != nil {
		summary.Notes = append(summary.Notes, fmt.Sprintf("message embedding skipped: %v", err))
		s.log.Warn("Message vector indexing failed", "error", err)
	}

	if s.graphSync != nil && s.graphSync.Enabled() {
		persons, _ := buildPersonNodes(p.contacts)
		rels, _ := buildMessageRels(p.messages)
		nodes, shares := buildImageNodes(p.images, p.contacts)
		if err := s.graphSync.RegisterIngest(ctx, persons, rels, nodes, shares); err != nil {
			summary.Notes = append(summary.Notes, fmt.Sprintf("graph registration skipped: %v", err))
			s.log.Warn("Graph registration failed", "error", err)
		}
	}

	if s.captions != nil && s.captions.Enabled() && len(p.images) > 0 {
		s.captions.Kick()
	}
}

// indexMessages embeds committed message bodies and upserts them under
// their deterministic vector ids.
func (s *ingestService) indexMessages(ctx context.Context, messages []*types.Message) error {
	if s.ai == nil || s.vectors == nil {
		return nil
	}

	var toIndex []*types.Message
	for _, m := range messages {
		if strings.TrimSpace(m.Body) != "" && m.VectorID != "" {
			toIndex = append(toIndex, m)
		}
	}
	if len(toIndex) == 0 {
		return nil
	}

	const embedBatch = 64
	for start := 0; start < len(toIndex); start += embedBatch {
		end := start + embedBatch
		if end > len(toIndex) {
			end = len(toIndex)
		}
		chunk := toIndex[start:end]

		inputs := make([]string, len(chunk))
		for i, m := range chunk {
			inputs[i] = m.Body
		}
		embeddings, err := s.ai.Embed(ctx, inputs)
		if err != nil {
			return err
		}

		vectors := make([]qdrant.Vector, 0, len(chunk))
		for i, m := range chunk {
			timestamp := ""
			if m.Timestamp != nil {
				timestamp = m.Timestamp.UTC().Format(time.RFC3339)
			}
			vectors = append(vectors, qdrant.Vector{
				ID:     m.VectorID,
				Values: embeddings[i],
				Text:   m.Body,
				Metadata: map[string]any{
					"type":        "message",
					"external_id": m.ExternalID,
					"sender":      m.Sender,
					"receiver":    m.Receiver,
					"timestamp":   timestamp,
					"source":      m.Source,
				},
			})
		}
		if err := s.vectors.Upsert(ctx, messageNamespace, vectors); err != nil {
			return err
		}
	}
	return nil
}

func (s *ingestService) Reset(ctx context.Context) error {
	var messageVectorIDs, imageVectorIDs []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		messages, err := s.messages.All(ctx, tx)
		if err != nil {
			return err
		}
		for _, m := range messages {
			if m.VectorID != "" {
				messageVectorIDs = append(messageVectorIDs, m.VectorID)
			}
		}
		images, err := s.images.All(ctx, tx)
		if err != nil {
			return err
		}
		for _, img := range images {
			if img.VectorID != "" {
				imageVectorIDs = append(imageVectorIDs, img.VectorID)
			}
		}

		if err := s.messages.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if err := s.contacts.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if err := s.sysinfo.DeleteAll(ctx, tx); err != nil {
			return err
		}
		return s.images.DeleteAll(ctx, tx)
	})
	if err != nil {
		return apierr.Commit(fmt.Errorf("reset transaction: %w", err))
	}

	if s.vectors != nil {
		if err := s.vectors.DeleteIDs(ctx, messageNamespace, messageVectorIDs); err != nil {
			s.log.Warn("Vector cleanup failed", "namespace", messageNamespace, "error", err)
		}
		if err := s.vectors.DeleteIDs(ctx, imageNamespace, imageVectorIDs); err != nil {
			s.log.Warn("Vector cleanup failed", "namespace", imageNamespace, "error", err)
		}
	}
	if s.graphSync != nil && s.graphSync.Enabled() {
		if err := s.graphSync.Reset(ctx); err != nil {
			s.log.Warn("Graph cleanup failed", "error", err)
		}
	}
	if err := s.loader.Purge(); err != nil {
		s.log.Warn("Stored file cleanup failed", "error", err)
	}
	return nil
}

func buildMessage(mr messageWithActors) *types.Message {
	rec := mr.rec
	msg := &types.Message{
		ExternalID:     rec.ExternalID,
		ConversationID: rec.ConversationID,
		Sender:         rec.Sender,
		Receiver:       rec.Receiver,
		Timestamp:      rec.Timestamp,
		Body:           rec.Body,
		Direction:      rec.Direction,
		MessageType:    rec.MessageType,
		Attachments:    rec.Attachments,
		Source:         rec.Source,
	}
	if rec.ExternalID != "" && strings.TrimSpace(rec.Body) != "" {
		msg.VectorID = "msg:" + rec.ExternalID
	}
	if rec.Raw != nil {
		if raw, err := json.Marshal(rec.Raw); err == nil {
			msg.RawData = datatypes.JSON(raw)
		}
	}
	if mr.sender != nil {
		msg.SenderID = &mr.sender.ID
	}
	if mr.receiver != nil {
		msg.ReceiverID = &mr.receiver.ID
	}
	return msg
}

func buildImage(rec extract.ImageRecord) *types.Image {
	return &types.Image{
		FilePath:     rec.FilePath,
		RelativePath: rec.RelativePath,
		Fingerprint:  rec.Fingerprint,
		SizeBytes:    rec.SizeBytes,
		MimeType:     rec.MimeType,
		Width:        rec.Width,
		Height:       rec.Height,
		Source:       rec.RelativePath,
	}
}

// contactIDByAttachmentBase maps attachment basenames found in messages to
// the sending contact, so extracted media can be tied to a person. First
// sender wins when the same filename appears in several messages.
func contactIDByAttachmentBase(b *batch) map[string]uint {
	out := map[string]uint{}
	for _, mr := range b.messageRecs {
		if mr.sender == nil || mr.sender.ID == 0 || mr.rec.Attachments == "" {
			continue
		}
		for _, token := range strings.FieldsFunc(mr.rec.Attachments, func(r rune) bool {
			return r == ',' || r == ';' || r == '\n'
		}) {
			base := strings.ToLower(path.Base(strings.TrimSpace(token)))
			if base == "" || base == "." {
				continue
			}
			if _, exists := out[base]; !exists {
				out[base] = mr.sender.ID
			}
		}
	}
	return out
}
