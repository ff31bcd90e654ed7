package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/ufdrlab-backend/internal/platform/apierr"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/platform/openai"
	"github.com/yungbote/ufdrlab-backend/internal/platform/qdrant"
	"github.com/yungbote/ufdrlab-backend/internal/repos"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

const (
	defaultTopK = 8
	maxTopK     = 20
)

// EvidenceItem is one retrieved piece of evidence backing an answer.
type EvidenceItem struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"` // "message" | "image"
	Score     float64 `json:"score"`
	Text      string  `json:"text"`
	Sender    string  `json:"sender,omitempty"`
	Receiver  string  `json:"receiver,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Source    string  `json:"source,omitempty"`
	Path      string  `json:"path,omitempty"`
}

// QueryAnswer is the composed response: a grounded answer plus the evidence
// it was built from, never more items than the requested top-k.
type QueryAnswer struct {
	Answer   string         `json:"answer"`
	Evidence []EvidenceItem `json:"evidence"`
	Model    string         `json:"model"`
}

// ConversationTurn is one prior exchange carried into the prompt so
// follow-up questions keep their context.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" | "assistant" | "system"
	Content string `json:"content"`
}

// QueryRequest is a semantic question over the ingested evidence.
// IncludeImages defaults to true when unset.
type QueryRequest struct {
	Question      string             `json:"question"`
	Conversation  []ConversationTurn `json:"conversation"`
	IncludeImages *bool              `json:"include_images"`
	TopK          int                `json:"top_k"`
}

// QueryService answers natural-language questions over the ingested
// evidence using the semantic index for retrieval and the language model
// for composition.
type QueryService interface {
	Ask(ctx context.Context, req QueryRequest) (*QueryAnswer, error)
}

type queryService struct {
	log      *logger.Logger
	messages repos.MessageRepo
	images   repos.ImageRepo
	ai       openai.Client
	vectors  qdrant.VectorStore
}

func NewQueryService(
	log *logger.Logger,
	messages repos.MessageRepo,
	images repos.ImageRepo,
	ai openai.Client,
	vectors qdrant.VectorStore,
) QueryService {
	return &queryService{
		log:      log.With("service", "QueryService"),
		messages: messages,
		images:   images,
		ai:       ai,
		vectors:  vectors,
	}
}

func (s *queryService) Ask(ctx context.Context, req QueryRequest) (*QueryAnswer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apierr.BadRequest(fmt.Errorf("question is required"))
	}
	if s.ai == nil || s.vectors == nil {
		return nil, apierr.Unavailable(fmt.Errorf("semantic query requires the language model and vector index to be configured"))
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	includeImages := req.IncludeImages == nil || *req.IncludeImages

	embeddings, err := s.ai.Embed(ctx, []string{question})
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("embed question: %w", err))
	}
	queryVec := embeddings[0]

	matches, err := s.vectors.QueryMatches(ctx, messageNamespace, queryVec, topK)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("query message index: %w", err))
	}
	if includeImages {
		imgMatches, err := s.vectors.QueryMatches(ctx, imageNamespace, queryVec, topK)
		if err != nil {
			return nil, apierr.Upstream(fmt.Errorf("query image index: %w", err))
		}
		matches = append(matches, imgMatches...)
	}

	evidence := s.hydrate(ctx, matches)
	sort.SliceStable(evidence, func(i, j int) bool { return evidence[i].Score > evidence[j].Score })
	if len(evidence) > topK {
		evidence = evidence[:topK]
	}

	answer, err := s.compose(ctx, question, req.Conversation, evidence)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("compose answer: %w", err))
	}

	return &QueryAnswer{
		Answer:   answer,
		Evidence: evidence,
		Model:    s.ai.Model(),
	}, nil
}

// hydrate resolves vector matches back to stored rows. Matches whose rows
// were deleted fall back to the indexed payload text.
func (s *queryService) hydrate(ctx context.Context, matches []qdrant.Match) []EvidenceItem {
	var messageIDs []string
	var imageIDs []uint
	for _, m := range matches {
		switch {
		case strings.HasPrefix(m.ID, "msg:"):
			messageIDs = append(messageIDs, strings.TrimPrefix(m.ID, "msg:"))
		case strings.HasPrefix(m.ID, "img:"):
			if id, err := strconv.ParseUint(strings.TrimPrefix(m.ID, "img:"), 10, 64); err == nil {
				imageIDs = append(imageIDs, uint(id))
			}
		}
	}

	// Newest row wins when an external id was re-ingested.
	msgByExternalID := map[string]*types.Message{}
	if rows, err := s.messages.GetByExternalIDs(ctx, nil, messageIDs); err == nil {
		for _, row := range rows {
			msgByExternalID[row.ExternalID] = row
		}
	} else {
		s.log.Warn("Evidence hydration fell back to indexed text", "error", err)
	}
	imgByID := map[uint]*types.Image{}
	if rows, err := s.images.GetByIDs(ctx, nil, imageIDs); err == nil {
		for _, row := range rows {
			imgByID[row.ID] = row
		}
	} else {
		s.log.Warn("Evidence hydration fell back to indexed text", "error", err)
	}

	var out []EvidenceItem
	for _, m := range matches {
		switch {
		case strings.HasPrefix(m.ID, "msg:"):
			item := EvidenceItem{ID: m.ID, Type: "message", Score: m.Score, Text: m.Text}
			if row, ok := msgByExternalID[strings.TrimPrefix(m.ID, "msg:")]; ok {
				item.Text = row.Body
				item.Sender = row.Sender
				item.Receiver = row.Receiver
				item.Source = row.Source
				if row.Timestamp != nil {
					item.Timestamp = row.Timestamp.UTC().Format(time.RFC3339)
				}
			}
			out = append(out, item)
		case strings.HasPrefix(m.ID, "img:"):
			item := EvidenceItem{ID: m.ID, Type: "image", Score: m.Score, Text: m.Text}
			if id, err := strconv.ParseUint(strings.TrimPrefix(m.ID, "img:"), 10, 64); err == nil {
				if img, ok := imgByID[uint(id)]; ok {
					item.Text = img.Caption
					if img.DetectedText != "" {
						item.Text += "\n" + img.DetectedText
					}
					item.Path = img.RelativePath
					item.Source = img.Source
				}
			}
			out = append(out, item)
		}
	}
	return out
}

const answerSystemPrompt = "You are an assistant helping an investigator review a mobile device extraction. " +
	"Answer strictly from the provided evidence. When the evidence does not contain the answer, say so. " +
	"Reference evidence items by their id."

func (s *queryService) compose(ctx context.Context, question string, conversation []ConversationTurn, evidence []EvidenceItem) (string, error) {
	if len(evidence) == 0 {
		return "No matching evidence was found for this question.", nil
	}

	var sb strings.Builder
	if len(conversation) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, turn := range conversation {
			content := strings.TrimSpace(turn.Content)
			if content == "" {
				continue
			}
			sb.WriteString(turn.Role)
			sb.WriteString(": ")
			sb.WriteString(content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nEvidence:\n")
	for _, item := range evidence {
		sb.WriteString("- [")
		sb.WriteString(item.ID)
		sb.WriteString("] ")
		if item.Sender != "" || item.Receiver != "" {
			fmt.Fprintf(&sb, "(%s -> %s", item.Sender, item.Receiver)
			if item.Timestamp != "" {
				sb.WriteString(" at " + item.Timestamp)
			}
			sb.WriteString(") ")
		}
		sb.WriteString(strings.ReplaceAll(item.Text, "\n", " "))
		sb.WriteString("\n")
	}

	return s.ai.GenerateText(ctx, answerSystemPrompt, sb.String())
}
