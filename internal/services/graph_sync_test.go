package services

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/ufdrlab-backend/internal/types"
)

func TestBuildPersonNodes(t *testing.T) {
	contacts := []*types.Contact{
		{DisplayName: "Alice Smith", PhoneNumber: "+1 555 010 7788", Email: "alice@example.com", Source: "contacts.xml"},
		{GivenName: "Bob", FamilyName: "Jones", PhoneNumber: "555-0100"},
		{Source: "derived:messages"},  // nothing identifying
		{PhoneNumber: "+15550107788"}, // duplicate identifier of Alice
	}

	persons, skipped := buildPersonNodes(contacts)
	if skipped != 1 {
		t.Fatalf("skipped: want 1 got=%d", skipped)
	}
	// Alice yields a node per identifier (phone + email), Bob one; the
	// duplicate phone is suppressed.
	if len(persons) != 3 {
		t.Fatalf("persons: want 3 got=%d", len(persons))
	}

	byID := map[string]bool{}
	for _, p := range persons {
		byID[p.ID] = true
	}
	if !byID["+15550107788"] || !byID["alice@example.com"] || !byID["5550100"] {
		t.Fatalf("person ids: %v", byID)
	}

	if persons[0].Label != "Alice Smith" {
		t.Fatalf("label: got=%q", persons[0].Label)
	}
	if persons[2].Label != "Bob Jones" {
		t.Fatalf("composed label: got=%q", persons[2].Label)
	}
}

func TestBuildMessageRels(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	messages := []*types.Message{
		{ID: 1, ExternalID: "sms.db:sms:1", Sender: "tel:+15550107788", Receiver: "owner@example.com", Body: "hello", Timestamp: &ts},
		{ID: 2, Sender: "+15550107788", Receiver: "owner@example.com", Body: "no external id"},
		{ID: 3, Sender: "", Receiver: "owner@example.com", Body: "missing sender"},
	}

	rels, skipped := buildMessageRels(messages)
	if skipped != 1 {
		t.Fatalf("skipped: want 1 got=%d", skipped)
	}
	if len(rels) != 2 {
		t.Fatalf("rels: want 2 got=%d", len(rels))
	}

	first := rels[0]
	if first.MessageID != "sms.db:sms:1" {
		t.Fatalf("message id: got=%q", first.MessageID)
	}
	if first.SenderID != "+15550107788" || first.ReceiverID != "owner@example.com" {
		t.Fatalf("actors: %+v", first)
	}
	if first.Timestamp != "2024-03-05T10:30:00Z" {
		t.Fatalf("timestamp: got=%q", first.Timestamp)
	}

	if rels[1].MessageID != "row:2" {
		t.Fatalf("fallback message id: got=%q", rels[1].MessageID)
	}
}

func TestBuildImageNodes(t *testing.T) {
	aliceID := uint(7)
	contacts := []*types.Contact{
		{ID: aliceID, DisplayName: "Alice Smith", PhoneNumber: "+15550107788"},
	}
	images := []*types.Image{
		{ID: 1, RelativePath: "DCIM/a.png", Caption: "a photo", ContactID: &aliceID},
		{ID: 2, RelativePath: "DCIM/b.png"},
	}

	nodes, shares := buildImageNodes(images, contacts)
	if len(nodes) != 2 {
		t.Fatalf("nodes: want 2 got=%d", len(nodes))
	}
	if nodes[0].ID != "img:1" || nodes[0].Caption != "a photo" {
		t.Fatalf("node: %+v", nodes[0])
	}
	if len(shares) != 1 {
		t.Fatalf("shares: want 1 got=%d", len(shares))
	}
	if shares[0].ImageID != "img:1" || shares[0].PersonID != "+15550107788" {
		t.Fatalf("share: %+v", shares[0])
	}
}

func TestGraphSyncDisabled(t *testing.T) {
	log := newTestLogger(t)
	svc := NewGraphSyncService(log, nil, nil, nil, nil)
	if svc.Enabled() {
		t.Fatalf("Enabled: want false without a client")
	}
	if _, err := svc.Resync(context.Background(), false); err == nil {
		t.Fatalf("Resync: want unavailable error when disabled")
	}
	if err := svc.RegisterIngest(context.Background(), nil, nil, nil, nil); err != nil {
		t.Fatalf("RegisterIngest on disabled service must be a no-op: %v", err)
	}
}
