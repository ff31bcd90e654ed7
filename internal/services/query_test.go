package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/ufdrlab-backend/internal/platform/apierr"
	"github.com/yungbote/ufdrlab-backend/internal/platform/qdrant"
	"github.com/yungbote/ufdrlab-backend/internal/repos"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

func TestAskHydratesAndRanksEvidence(t *testing.T) {
	log := newTestLogger(t)
	db := newTestDB(t)
	messages := repos.NewMessageRepo(db, log)
	images := repos.NewImageRepo(db, log)
	ctx := context.Background()

	ts := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	if err := messages.Create(ctx, nil, []*types.Message{{
		ExternalID: "sms.db:sms:1",
		Sender:     "+15550107788",
		Receiver:   "owner",
		Body:       "meet at the cafe at 5",
		Timestamp:  &ts,
		Source:     "db/sms.db",
		VectorID:   "msg:sms.db:sms:1",
	}}); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	img := &types.Image{FilePath: "x/cafe.png", RelativePath: "DCIM/cafe.png", Source: "DCIM/cafe.png"}
	if err := images.UpsertByFilePath(ctx, nil, []*types.Image{img}); err != nil {
		t.Fatalf("seed image: %v", err)
	}
	if err := images.MarkDone(ctx, nil, img.ID, "a cafe storefront", "cafe", "OPEN", "img:1"); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	vectors := newFakeVectorStore()
	vectors.matches["messages"] = []qdrant.Match{
		{ID: "msg:sms.db:sms:1", Score: 0.91, Text: "indexed text"},
	}
	vectors.matches["images"] = []qdrant.Match{
		{ID: fmt.Sprintf("img:%d", img.ID), Score: 0.95},
	}

	ai := &fakeAI{textAnswer: "They agreed to meet at the cafe [msg:sms.db:sms:1]."}
	svc := NewQueryService(log, messages, images, ai, vectors)

	answer, err := svc.Ask(ctx, QueryRequest{Question: "where did they plan to meet?", TopK: 5})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Model != "test-model" {
		t.Fatalf("model: got=%q", answer.Model)
	}
	if len(answer.Evidence) != 2 {
		t.Fatalf("evidence: want 2 got=%d", len(answer.Evidence))
	}
	// Ranked by score descending: the image match outranks the message.
	if answer.Evidence[0].Type != "image" || answer.Evidence[1].Type != "message" {
		t.Fatalf("evidence order: %+v", answer.Evidence)
	}

	msg := answer.Evidence[1]
	if msg.Text != "meet at the cafe at 5" {
		t.Fatalf("hydrated body: got=%q", msg.Text)
	}
	if msg.Sender != "+15550107788" || msg.Timestamp != "2024-03-05T10:30:00Z" {
		t.Fatalf("hydrated fields: %+v", msg)
	}

	imgItem := answer.Evidence[0]
	if !strings.Contains(imgItem.Text, "a cafe storefront") || !strings.Contains(imgItem.Text, "OPEN") {
		t.Fatalf("image evidence text: got=%q", imgItem.Text)
	}
	if imgItem.Path != "DCIM/cafe.png" {
		t.Fatalf("image evidence path: got=%q", imgItem.Path)
	}

	// The evidence block fed to the model carries the ids.
	if !strings.Contains(ai.lastUser, "[msg:sms.db:sms:1]") {
		t.Fatalf("model prompt missing evidence id: %q", ai.lastUser)
	}
}

func TestAskTruncatesToTopK(t *testing.T) {
	log := newTestLogger(t)
	db := newTestDB(t)
	messages := repos.NewMessageRepo(db, log)
	images := repos.NewImageRepo(db, log)

	vectors := newFakeVectorStore()
	for i := 0; i < 5; i++ {
		vectors.matches["messages"] = append(vectors.matches["messages"], qdrant.Match{
			ID:    "msg:ext-" + string(rune('a'+i)),
			Score: float64(5-i) / 10,
			Text:  "payload",
		})
	}

	svc := NewQueryService(log, messages, images, &fakeAI{}, vectors)
	answer, err := svc.Ask(context.Background(), QueryRequest{Question: "anything", TopK: 3})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.Evidence) != 3 {
		t.Fatalf("evidence: want topK=3 got=%d", len(answer.Evidence))
	}
	// Rows are gone from the store; the indexed payload text stands in.
	if answer.Evidence[0].Text != "payload" {
		t.Fatalf("fallback text: got=%q", answer.Evidence[0].Text)
	}
}

func TestAskConversationAndImageToggle(t *testing.T) {
	log := newTestLogger(t)
	db := newTestDB(t)
	messages := repos.NewMessageRepo(db, log)
	images := repos.NewImageRepo(db, log)

	vectors := newFakeVectorStore()
	vectors.matches["messages"] = []qdrant.Match{
		{ID: "msg:ext-1", Score: 0.8, Text: "message payload"},
	}
	vectors.matches["images"] = []qdrant.Match{
		{ID: "img:1", Score: 0.9, Text: "image payload"},
	}

	ai := &fakeAI{}
	svc := NewQueryService(log, messages, images, ai, vectors)

	off := false
	answer, err := svc.Ask(context.Background(), QueryRequest{
		Question:      "and what about the photo?",
		IncludeImages: &off,
		TopK:          5,
		Conversation: []ConversationTurn{
			{Role: "user", Content: "who was at the cafe?"},
			{Role: "assistant", Content: "Alice and Bob, per msg:ext-1."},
		},
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	for _, item := range answer.Evidence {
		if item.Type == "image" {
			t.Fatalf("image evidence returned with include_images=false: %+v", item)
		}
	}
	if !strings.Contains(ai.lastUser, "Conversation so far:") ||
		!strings.Contains(ai.lastUser, "assistant: Alice and Bob, per msg:ext-1.") {
		t.Fatalf("prompt missing conversation context: %q", ai.lastUser)
	}
}

func TestAskWithoutEvidence(t *testing.T) {
	log := newTestLogger(t)
	db := newTestDB(t)
	messages := repos.NewMessageRepo(db, log)
	images := repos.NewImageRepo(db, log)

	ai := &fakeAI{}
	svc := NewQueryService(log, messages, images, ai, newFakeVectorStore())
	answer, err := svc.Ask(context.Background(), QueryRequest{Question: "anything at all?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Answer != "No matching evidence was found for this question." {
		t.Fatalf("empty-evidence answer: got=%q", answer.Answer)
	}
	if ai.lastUser != "" {
		t.Fatalf("model should not be called without evidence")
	}
}

func TestAskValidation(t *testing.T) {
	log := newTestLogger(t)
	db := newTestDB(t)
	messages := repos.NewMessageRepo(db, log)
	images := repos.NewImageRepo(db, log)

	svc := NewQueryService(log, messages, images, &fakeAI{}, newFakeVectorStore())
	if _, err := svc.Ask(context.Background(), QueryRequest{Question: "   ", TopK: 3}); err == nil {
		t.Fatalf("Ask: want error for blank question")
	}

	disabled := NewQueryService(log, messages, images, nil, nil)
	_, err := disabled.Ask(context.Background(), QueryRequest{Question: "who?", TopK: 3})
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Code != apierr.CodeUnavailable {
		t.Fatalf("disabled query: want unavailable got=%v", err)
	}
}
