package services

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/yungbote/ufdrlab-backend/internal/archive"
	"github.com/yungbote/ufdrlab-backend/internal/platform/apierr"
	"github.com/yungbote/ufdrlab-backend/internal/repos"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

type ingestFixture struct {
	svc      IngestService
	db       *gorm.DB
	contacts repos.ContactRepo
	messages repos.MessageRepo
	images   repos.ImageRepo
	sysinfo  repos.SystemInfoRepo
	vectors  *fakeVectorStore
	graph    *fakeGraphSync
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	log := newTestLogger(t)
	db := newTestDB(t)

	stageDir := t.TempDir()
	t.Setenv("UPLOADS_DIR", filepath.Join(stageDir, "uploads"))
	t.Setenv("EXTRACTED_DIR", filepath.Join(stageDir, "extracted"))
	loader, err := archive.NewLoader(log)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	contacts := repos.NewContactRepo(db, log)
	messages := repos.NewMessageRepo(db, log)
	sysinfo := repos.NewSystemInfoRepo(db, log)
	images := repos.NewImageRepo(db, log)
	vectors := newFakeVectorStore()
	graphSync := &fakeGraphSync{}

	svc := NewIngestService(log, db, loader, contacts, messages, sysinfo, images, graphSync, nil, nil, vectors)
	return &ingestFixture{
		svc:      svc,
		db:       db,
		contacts: contacts,
		messages: messages,
		images:   images,
		sysinfo:  sysinfo,
		vectors:  vectors,
		graph:    graphSync,
	}
}

// buildArchive assembles a minimal but complete extraction: one contacts
// export, one message database, one device plist and one media file.
func buildArchive(t *testing.T) *bytes.Reader {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "sms.db")
	fixture, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	stmts := []string{
		`CREATE TABLE sms (address TEXT, body TEXT, date INTEGER, attachments TEXT)`,
		`INSERT INTO sms VALUES ('+1 555 010 7788', 'see the photo', 1709632200, 'DCIM/IMG_0001.png')`,
		`INSERT INTO sms VALUES ('owner@example.com', 'on my way', 1709632300, NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := fixture.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	fixture.Close()
	dbBytes, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("read fixture db: %v", err)
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	contactsXML := `<?xml version="1.0"?>
<contacts>
  <contact>
    <displayName>Alice Smith</displayName>
    <phone>+1 555 010 7788</phone>
    <email>alice@example.com</email>
  </contact>
</contacts>`

	plist := `<?xml version="1.0"?>
<plist version="1.0">
<dict>
  <key>DeviceName</key>
  <string>Evidence iPhone</string>
  <key>OSVersion</key>
  <string>17.4</string>
</dict>
</plist>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string][]byte{
		"contacts/contacts.xml": []byte(contactsXML),
		"db/sms.db":             dbBytes,
		"info/DeviceInfo.plist": []byte(plist),
		"DCIM/IMG_0001.png":     pngBuf.Bytes(),
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(body); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestIngestCommitsAllStores(t *testing.T) {
	fx := newIngestFixture(t)
	ctx := context.Background()

	summary, err := fx.svc.Ingest(ctx, buildArchive(t), "evidence.zip")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if summary.Messages != 2 {
		t.Fatalf("messages: want 2 got=%d", summary.Messages)
	}
	// Alice from the export plus the stub identity for the second sender.
	if summary.Contacts != 2 {
		t.Fatalf("contacts: want 2 got=%d", summary.Contacts)
	}
	if summary.Images != 1 {
		t.Fatalf("images: want 1 got=%d", summary.Images)
	}
	if summary.SystemInfo != 2 {
		t.Fatalf("system info: want 2 got=%d", summary.SystemInfo)
	}
	if len(summary.Sources) != 4 {
		t.Fatalf("sources: want 4 reports got=%d", len(summary.Sources))
	}
	for _, report := range summary.Sources {
		if report.Error != "" {
			t.Fatalf("source %s degraded: %s", report.Source, report.Error)
		}
	}

	msgs, err := fx.messages.All(ctx, nil)
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("stored messages: want 2 got=%d", len(msgs))
	}
	first := msgs[0]
	if first.SenderID == nil {
		t.Fatalf("message sender not linked to a contact")
	}
	if !strings.HasPrefix(first.VectorID, "msg:") {
		t.Fatalf("vector id: got=%q", first.VectorID)
	}

	var alice types.Contact
	if err := fx.db.Where("phone_number = ?", "+15550107788").First(&alice).Error; err != nil {
		t.Fatalf("load alice: %v", err)
	}
	if alice.DisplayName != "Alice Smith" {
		t.Fatalf("contact display name: got=%q", alice.DisplayName)
	}

	imgs, err := fx.images.All(ctx, nil)
	if err != nil {
		t.Fatalf("load images: %v", err)
	}
	if len(imgs) != 1 {
		t.Fatalf("stored images: want 1 got=%d", len(imgs))
	}
	img := imgs[0]
	if img.CaptionStatus != types.CaptionStatusPending {
		t.Fatalf("caption status: got=%q", img.CaptionStatus)
	}
	// The attachment reference in Alice's message ties the file to her.
	if img.ContactID == nil || *img.ContactID != alice.ID {
		t.Fatalf("image contact link: got=%v want=%d", img.ContactID, alice.ID)
	}
}

func TestIngestAppendsOnReingest(t *testing.T) {
	fx := newIngestFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Ingest(ctx, buildArchive(t), "evidence.zip"); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	if _, err := fx.svc.Ingest(ctx, buildArchive(t), "evidence.zip"); err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	msgs, _ := fx.messages.All(ctx, nil)
	if len(msgs) != 4 {
		t.Fatalf("messages after re-ingest: want 4 (append, never dedup) got=%d", len(msgs))
	}

	contacts, _ := fx.contacts.All(ctx, nil)
	if len(contacts) != 2 {
		t.Fatalf("contacts after re-ingest: want 2 (merged) got=%d", len(contacts))
	}
}

func TestIngestIsolatesCorruptSource(t *testing.T) {
	fx := newIngestFixture(t)
	ctx := context.Background()

	// A message database that is not sqlite at all, alongside healthy
	// contact and device-info sources.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string][]byte{
		"db/mmssms.db": []byte("this is not a database"),
		"contacts/contacts.xml": []byte(`<?xml version="1.0"?>
<contacts>
  <contact>
    <displayName>Alice Smith</displayName>
    <phone>+1 555 010 7788</phone>
  </contact>
</contacts>`),
		"info/DeviceInfo.plist": []byte(`<?xml version="1.0"?>
<plist version="1.0">
<dict>
  <key>DeviceName</key>
  <string>Evidence iPhone</string>
</dict>
</plist>`),
	}
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(body); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	summary, err := fx.svc.Ingest(ctx, bytes.NewReader(buf.Bytes()), "evidence.zip")
	if err != nil {
		t.Fatalf("Ingest: a corrupt source must not fail the whole archive: %v", err)
	}

	var degraded int
	for _, report := range summary.Sources {
		if report.Source == "db/mmssms.db" {
			if report.Error == "" {
				t.Fatalf("corrupt source has no error: %+v", report)
			}
			degraded++
			continue
		}
		if report.Error != "" {
			t.Fatalf("healthy source %s degraded: %s", report.Source, report.Error)
		}
	}
	if degraded != 1 {
		t.Fatalf("degraded sources: want 1 got=%d", degraded)
	}

	// The healthy sources still land in full.
	if summary.Messages != 0 {
		t.Fatalf("messages from corrupt db: got=%d", summary.Messages)
	}
	if summary.Contacts != 1 {
		t.Fatalf("contacts: want 1 got=%d", summary.Contacts)
	}
	if summary.SystemInfo != 1 {
		t.Fatalf("system info: want 1 got=%d", summary.SystemInfo)
	}
	contacts, err := fx.contacts.All(ctx, nil)
	if err != nil {
		t.Fatalf("load contacts: %v", err)
	}
	if len(contacts) != 1 || contacts[0].DisplayName != "Alice Smith" {
		t.Fatalf("committed contacts: %+v", contacts)
	}
}

func TestIngestRejectsBadArchive(t *testing.T) {
	fx := newIngestFixture(t)

	_, err := fx.svc.Ingest(context.Background(), strings.NewReader("garbage"), "evidence.zip")
	if err == nil {
		t.Fatalf("Ingest: want error for non-zip upload")
	}
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Code != apierr.CodeStructural {
		t.Fatalf("error code: want structural got=%v", err)
	}
	if !errors.Is(err, archive.ErrBadArchive) {
		t.Fatalf("error chain: want ErrBadArchive got=%v", err)
	}

	// Nothing may be committed.
	msgs, _ := fx.messages.All(context.Background(), nil)
	if len(msgs) != 0 {
		t.Fatalf("messages committed from bad archive: %d", len(msgs))
	}
}

func TestResetWipesStoresAndVectors(t *testing.T) {
	fx := newIngestFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Ingest(ctx, buildArchive(t), "evidence.zip"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := fx.svc.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	msgs, _ := fx.messages.All(ctx, nil)
	contacts, _ := fx.contacts.All(ctx, nil)
	imgs, _ := fx.images.All(ctx, nil)
	if len(msgs) != 0 || len(contacts) != 0 || len(imgs) != 0 {
		t.Fatalf("rows survived reset: messages=%d contacts=%d images=%d", len(msgs), len(contacts), len(imgs))
	}

	if len(fx.vectors.deleted["messages"]) != 2 {
		t.Fatalf("message vector cleanup: want 2 ids got=%v", fx.vectors.deleted["messages"])
	}
	if fx.graph.resetCalls != 1 {
		t.Fatalf("graph cleanup: want 1 reset got=%d", fx.graph.resetCalls)
	}
}
