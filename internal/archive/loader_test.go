package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/yungbote/ufdrlab-backend/internal/extract"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("UPLOADS_DIR", dir+"/uploads")
	t.Setenv("EXTRACTED_DIR", dir+"/extracted")

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)

	loader, err := NewLoader(log)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	return loader
}

func buildZip(t *testing.T, members map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestOpenExtractsAndClassifies(t *testing.T) {
	loader := newTestLoader(t)

	upload := buildZip(t, map[string]string{
		"db/sms.db":             "fake",
		"contacts/contacts.xml": "<contacts></contacts>",
		"info/DeviceInfo.plist": "<plist><dict></dict></plist>",
		"DCIM/IMG_0001.jpg":     "jpeg bytes",
		"readme.txt":            "ignore me",
	})

	ex, err := loader.Open(context.Background(), upload, "evidence.ufdr.zip")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ex.Close()

	if ex.ArchiveName != "evidence.ufdr.zip" {
		t.Fatalf("archive name: got=%q", ex.ArchiveName)
	}
	if len(ex.Sources) != 5 {
		t.Fatalf("sources: want 5 got=%d", len(ex.Sources))
	}

	kinds := map[string]extract.Kind{}
	for _, src := range ex.Sources {
		kinds[src.RelPath] = src.Kind
	}
	if kinds["db/sms.db"] != extract.KindMessages {
		t.Fatalf("sms.db kind: got=%q", kinds["db/sms.db"])
	}
	if kinds["contacts/contacts.xml"] != extract.KindContacts {
		t.Fatalf("contacts.xml kind: got=%q", kinds["contacts/contacts.xml"])
	}
	if kinds["info/DeviceInfo.plist"] != extract.KindSystemInfo {
		t.Fatalf("plist kind: got=%q", kinds["info/DeviceInfo.plist"])
	}
	if kinds["DCIM/IMG_0001.jpg"] != extract.KindImages {
		t.Fatalf("image kind: got=%q", kinds["DCIM/IMG_0001.jpg"])
	}
	if kinds["readme.txt"] != extract.KindUnknown {
		t.Fatalf("txt kind: got=%q", kinds["readme.txt"])
	}
}

func TestOpenRejectsNonZip(t *testing.T) {
	loader := newTestLoader(t)

	_, err := loader.Open(context.Background(), strings.NewReader("this is not a zip"), "evidence.zip")
	if !errors.Is(err, ErrBadArchive) {
		t.Fatalf("Open: want ErrBadArchive got=%v", err)
	}
}

func TestOpenRejectsEmptyArchive(t *testing.T) {
	loader := newTestLoader(t)

	_, err := loader.Open(context.Background(), buildZip(t, nil), "empty.zip")
	if !errors.Is(err, ErrBadArchive) {
		t.Fatalf("Open: want ErrBadArchive for empty archive got=%v", err)
	}
}

func TestOpenRejectsZipSlip(t *testing.T) {
	loader := newTestLoader(t)

	upload := buildZip(t, map[string]string{
		"../../outside.txt": "escape attempt",
	})
	_, err := loader.Open(context.Background(), upload, "slip.zip")
	if !errors.Is(err, ErrBadArchive) {
		t.Fatalf("Open: want ErrBadArchive for traversal member got=%v", err)
	}
}

func TestExtractionCloseRemovesWorkDir(t *testing.T) {
	loader := newTestLoader(t)

	ex, err := loader.Open(context.Background(), buildZip(t, map[string]string{"a.txt": "x"}), "a.zip")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	dir := ex.Dir
	if err := ex.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("working directory still present after Close: %v", err)
	}
	// double close is a no-op
	if err := ex.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestClassifySource(t *testing.T) {
	cases := map[string]extract.Kind{
		"ChatStorage.sqlite":   extract.KindMessages,
		"mmssms.db":            extract.KindMessages,
		"AddressBook.sqlite":   extract.KindContacts,
		"contacts_export.xml":  extract.KindContacts,
		"com.apple.mobi.plist": extract.KindSystemInfo,
		"DCIM/IMG.jpeg":        extract.KindImages,
		"random.bin":           extract.KindUnknown,
		"settings.xml":         extract.KindUnknown,
		"calllog.db":           extract.KindUnknown,
	}
	for path, want := range cases {
		if got := ClassifySource(path); got != want {
			t.Fatalf("ClassifySource(%q): want=%q got=%q", path, want, got)
		}
	}
}
