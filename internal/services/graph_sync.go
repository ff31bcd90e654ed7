package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/ufdrlab-backend/internal/canonical"
	"github.com/yungbote/ufdrlab-backend/internal/data/graph"
	"github.com/yungbote/ufdrlab-backend/internal/platform/apierr"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/platform/neo4jdb"
	"github.com/yungbote/ufdrlab-backend/internal/repos"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

// ResyncStats summarizes one full rebuild of the evidence graph.
type ResyncStats struct {
	Cleared             bool   `json:"cleared"`
	ContactsSynced      int    `json:"contacts_synced"`
	RelationshipsSynced int    `json:"relationships_synced"`
	ImagesSynced        int    `json:"images_synced"`
	SkippedContacts     int    `json:"skipped_contacts"`
	SkippedMessages     int    `json:"skipped_messages"`
	Detail              string `json:"detail,omitempty"`
}

// GraphSyncService keeps the derived Neo4j projection in step with the
// relational store. The primary store is the source of truth; everything
// here can be rebuilt from it.
type GraphSyncService interface {
	// Resync rebuilds the whole graph from the relational store. Only one
	// resync runs at a time; a second concurrent call fails fast.
	Resync(ctx context.Context, clearFirst bool) (*ResyncStats, error)
	// RegisterIngest pushes freshly ingested evidence into the graph without
	// a full rebuild.
	RegisterIngest(ctx context.Context, persons []graph.PersonNode, rels []graph.MessageRel, images []graph.ImageNode, shares []graph.ImageShareRel) error
	Reset(ctx context.Context) error
	FetchGraph(ctx context.Context, term string, limit int) (*graph.GraphView, error)
	Enabled() bool
}

type graphSyncService struct {
	log      *logger.Logger
	client   *neo4jdb.Client
	contacts repos.ContactRepo
	messages repos.MessageRepo
	images   repos.ImageRepo

	mu sync.Mutex
}

func NewGraphSyncService(
	log *logger.Logger,
	client *neo4jdb.Client,
	contacts repos.ContactRepo,
	messages repos.MessageRepo,
	images repos.ImageRepo,
) GraphSyncService {
	return &graphSyncService{
		log:      log.With("service", "GraphSyncService"),
		client:   client,
		contacts: contacts,
		messages: messages,
		images:   images,
	}
}

func (s *graphSyncService) Enabled() bool {
	return s.client != nil && s.client.Driver != nil
}

func (s *graphSyncService) Resync(ctx context.Context, clearFirst bool) (*ResyncStats, error) {
	if !s.Enabled() {
		return nil, apierr.Unavailable(fmt.Errorf("evidence graph is not configured"))
	}
	if !s.mu.TryLock() {
		return nil, apierr.Busy(fmt.Errorf("a graph resync is already running"))
	}
	defer s.mu.Unlock()

	started := time.Now()
	stats := &ResyncStats{}

	if clearFirst {
		if err := graph.ClearAll(ctx, s.client); err != nil {
			return nil, apierr.Upstream(fmt.Errorf("clear graph: %w", err))
		}
		stats.Cleared = true
	}
	graph.EnsureSchema(ctx, s.client, s.log)

	contacts, err := s.contacts.All(ctx, nil)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("load contacts: %w", err))
	}
	persons, skippedContacts := buildPersonNodes(contacts)
	stats.SkippedContacts = skippedContacts

	synced, err := graph.UpsertPersons(ctx, s.client, persons)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("sync persons: %w", err))
	}
	stats.ContactsSynced = synced

	messages, err := s.messages.All(ctx, nil)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("load messages: %w", err))
	}
	rels, skippedMessages := buildMessageRels(messages)
	stats.SkippedMessages = skippedMessages

	synced, err = graph.UpsertMessages(ctx, s.client, rels)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("sync messages: %w", err))
	}
	stats.RelationshipsSynced = synced

	images, err := s.images.All(ctx, nil)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("load images: %w", err))
	}
	nodes, shares := buildImageNodes(images, contacts)
	synced, err = graph.UpsertImages(ctx, s.client, nodes, shares)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("sync images: %w", err))
	}
	stats.ImagesSynced = synced

	stats.Detail = fmt.Sprintf("resync completed in %s", time.Since(started).Round(time.Millisecond))
	s.log.Info("Graph resync finished",
		"cleared", stats.Cleared,
		"contacts_synced", stats.ContactsSynced,
		"relationships_synced", stats.RelationshipsSynced,
		"images_synced", stats.ImagesSynced,
		"skipped_contacts", stats.SkippedContacts,
		"skipped_messages", stats.SkippedMessages,
	)
	return stats, nil
}

func (s *graphSyncService) RegisterIngest(ctx context.Context, persons []graph.PersonNode, rels []graph.MessageRel, images []graph.ImageNode, shares []graph.ImageShareRel) error {
	if !s.Enabled() {
		return nil
	}
	graph.EnsureSchema(ctx, s.client, s.log)
	if _, err := graph.UpsertPersons(ctx, s.client, persons); err != nil {
		return fmt.Errorf("register persons: %w", err)
	}
	if _, err := graph.UpsertMessages(ctx, s.client, rels); err != nil {
		return fmt.Errorf("register messages: %w", err)
	}
	if _, err := graph.UpsertImages(ctx, s.client, images, shares); err != nil {
		return fmt.Errorf("register images: %w", err)
	}
	return nil
}

func (s *graphSyncService) Reset(ctx context.Context) error {
	if !s.Enabled() {
		return apierr.Unavailable(fmt.Errorf("evidence graph is not configured"))
	}
	if err := graph.ClearAll(ctx, s.client); err != nil {
		return apierr.Upstream(fmt.Errorf("clear graph: %w", err))
	}
	return nil
}

func (s *graphSyncService) FetchGraph(ctx context.Context, term string, limit int) (*graph.GraphView, error) {
	if !s.Enabled() {
		return nil, apierr.Unavailable(fmt.Errorf("evidence graph is not configured"))
	}
	view, err := graph.FetchGraph(ctx, s.client, term, limit)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("fetch graph: %w", err))
	}
	return view, nil
}

// buildPersonNodes maps stored contacts to graph nodes. A contact with
// neither a phone, email nor name yields nothing and is counted.
func buildPersonNodes(contacts []*types.Contact) ([]graph.PersonNode, int) {
	var persons []graph.PersonNode
	seen := map[string]bool{}
	skipped := 0

	for _, c := range contacts {
		label := strings.TrimSpace(c.DisplayName)
		if label == "" {
			label = canonical.ComposeDisplayName(c.GivenName, c.FamilyName)
		}

		var identifiers []string
		for _, raw := range []string{c.PhoneNumber, c.Email} {
			if id := canonical.NormalizeActor(raw); id != "" {
				identifiers = append(identifiers, id)
			}
		}
		if len(identifiers) == 0 {
			if id := canonical.NormalizeActor(label); id != "" {
				identifiers = append(identifiers, id)
			}
		}
		if len(identifiers) == 0 {
			skipped++
			continue
		}

		for _, id := range identifiers {
			if seen[id] {
				continue
			}
			seen[id] = true
			persons = append(persons, graph.PersonNode{
				ID:     id,
				Label:  label,
				Phone:  canonical.NormalizePhone(c.PhoneNumber),
				Email:  canonical.NormalizeEmail(c.Email),
				Source: c.Source,
			})
		}
	}
	return persons, skipped
}

// buildMessageRels maps stored messages to MESSAGED edges. Messages missing
// either actor are counted, not synced.
func buildMessageRels(messages []*types.Message) ([]graph.MessageRel, int) {
	var rels []graph.MessageRel
	skipped := 0

	for _, m := range messages {
		senderID := canonical.NormalizeActor(m.Sender)
		receiverID := canonical.NormalizeActor(m.Receiver)
		if senderID == "" || receiverID == "" {
			skipped++
			continue
		}

		messageID := strings.TrimSpace(m.ExternalID)
		if messageID == "" {
			messageID = fmt.Sprintf("row:%d", m.ID)
		}
		timestamp := ""
		if m.Timestamp != nil {
			timestamp = m.Timestamp.UTC().Format(time.RFC3339)
		}
		rels = append(rels, graph.MessageRel{
			MessageID:      messageID,
			SenderID:       senderID,
			ReceiverID:     receiverID,
			Timestamp:      timestamp,
			Body:           m.Body,
			ConversationID: m.ConversationID,
			Source:         m.Source,
		})
	}
	return rels, skipped
}

// buildImageNodes maps captioned media to Image nodes plus SHARED_WITH
// edges toward the associated contact, when one is known.
func buildImageNodes(images []*types.Image, contacts []*types.Contact) ([]graph.ImageNode, []graph.ImageShareRel) {
	keyByContactID := map[uint]string{}
	for _, c := range contacts {
		if key := personIDForContact(c); key != "" {
			keyByContactID[c.ID] = key
		}
	}

	var nodes []graph.ImageNode
	var shares []graph.ImageShareRel
	for _, img := range images {
		nodes = append(nodes, graph.ImageNode{
			ID:      fmt.Sprintf("img:%d", img.ID),
			Path:    img.RelativePath,
			Caption: img.Caption,
		})
		if img.ContactID == nil {
			continue
		}
		if key, ok := keyByContactID[*img.ContactID]; ok {
			shares = append(shares, graph.ImageShareRel{
				ImageID:  fmt.Sprintf("img:%d", img.ID),
				PersonID: key,
			})
		}
	}
	return nodes, shares
}

// personIDForContact picks the same canonical identifier buildPersonNodes
// indexes the contact under.
func personIDForContact(c *types.Contact) string {
	if c == nil {
		return ""
	}
	if id := canonical.NormalizeActor(c.PhoneNumber); id != "" {
		return id
	}
	if id := canonical.NormalizeActor(c.Email); id != "" {
		return id
	}
	label := strings.TrimSpace(c.DisplayName)
	if label == "" {
		label = canonical.ComposeDisplayName(c.GivenName, c.FamilyName)
	}
	return canonical.NormalizeActor(label)
}
