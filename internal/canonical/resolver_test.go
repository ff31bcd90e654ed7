package canonical

import (
	"testing"

	"github.com/yungbote/ufdrlab-backend/internal/extract"
)

func TestResolverMergesAcrossSources(t *testing.T) {
	r := NewResolver()

	first := r.AddContact(extract.ContactRecord{
		DisplayName: "Alice Smith",
		PhoneNumber: "+1 (555) 010-7788",
		Source:      "contacts.xml",
	})
	if first == nil {
		t.Fatalf("AddContact: returned nil for usable record")
	}
	if first.ExternalKey != "+15550107788" {
		t.Fatalf("ExternalKey: want=+15550107788 got=%q", first.ExternalKey)
	}

	// Same person from the address book DB, this time with an email.
	second := r.AddContact(extract.ContactRecord{
		GivenName:   "Alice",
		FamilyName:  "Smith",
		PhoneNumber: "tel:+15550107788",
		Email:       "Alice@Example.com",
		Source:      "AddressBook.sqlitedb",
	})
	if second != first {
		t.Fatalf("AddContact: same phone should merge into one identity")
	}
	if first.Email != "alice@example.com" {
		t.Fatalf("merged email: got=%q", first.Email)
	}
	if first.DisplayName != "Alice Smith" {
		t.Fatalf("merge must not overwrite existing display name: got=%q", first.DisplayName)
	}
	if first.Source != "contacts.xml" {
		t.Fatalf("merge must keep first source: got=%q", first.Source)
	}

	if got := len(r.Contacts()); got != 1 {
		t.Fatalf("Contacts: want 1 identity got=%d", got)
	}
}

func TestResolverSkipsUnidentifiableRecords(t *testing.T) {
	r := NewResolver()
	if c := r.AddContact(extract.ContactRecord{Source: "contacts.xml"}); c != nil {
		t.Fatalf("AddContact: record with no identifiers should return nil")
	}
	if got := len(r.Contacts()); got != 0 {
		t.Fatalf("Contacts: want empty got=%d", got)
	}
}

func TestResolveActorFindsContactByEmail(t *testing.T) {
	r := NewResolver()
	added := r.AddContact(extract.ContactRecord{
		DisplayName: "Bob Jones",
		Email:       "bob@example.com",
	})

	resolved := r.ResolveActor("Bob@Example.COM")
	if resolved != added {
		t.Fatalf("ResolveActor: want the extracted contact, got a different identity")
	}
}

func TestResolveActorCreatesStubOnce(t *testing.T) {
	r := NewResolver()

	stub := r.ResolveActor("tel:+15550109999")
	if stub == nil {
		t.Fatalf("ResolveActor: want stub contact got nil")
	}
	if stub.Source != "derived:messages" {
		t.Fatalf("stub source: got=%q", stub.Source)
	}
	if stub.PhoneNumber != "+15550109999" {
		t.Fatalf("stub phone: got=%q", stub.PhoneNumber)
	}

	again := r.ResolveActor("+1 555 010 9999")
	if again != stub {
		t.Fatalf("ResolveActor: second resolution should reuse the stub")
	}
	if got := len(r.Contacts()); got != 1 {
		t.Fatalf("Contacts: want 1 stub got=%d", got)
	}
}

func TestResolveActorNameOnlyUsesNameKey(t *testing.T) {
	r := NewResolver()
	stub := r.ResolveActor("Voicemail")
	if stub == nil {
		t.Fatalf("ResolveActor: want stub got nil")
	}
	if stub.ExternalKey != "name:voicemail" {
		t.Fatalf("name-only ExternalKey: got=%q", stub.ExternalKey)
	}
	if r.ResolveActor("voicemail") != stub {
		t.Fatalf("name-only actor should resolve to the same stub")
	}
	if r.LookupActor("VOICEMAIL") != stub {
		t.Fatalf("LookupActor: want the stub")
	}
}
