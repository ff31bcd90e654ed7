package extract

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestIsImagePath(t *testing.T) {
	for _, p := range []string{"DCIM/IMG_0001.JPG", "a/b.png", "x.webp", "photo.HEIC"} {
		if !IsImagePath(p) {
			t.Fatalf("IsImagePath(%q): want true", p)
		}
	}
	for _, p := range []string{"sms.db", "notes.txt", "noext"} {
		if IsImagePath(p) {
			t.Fatalf("IsImagePath(%q): want false", p)
		}
	}
}

func TestImagesFingerprintsAndProbes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "IMG_0001.png")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	f.Close()

	records, outcome := Images(context.Background(), SourceFile{Path: path, RelPath: "DCIM/IMG_0001.png", Kind: KindImages})
	if outcome.Err != nil {
		t.Fatalf("Images: %v", outcome.Err)
	}
	if len(records) != 1 {
		t.Fatalf("records: want 1 got=%d", len(records))
	}

	rec := records[0].(ImageRecord)
	if rec.MimeType != "image/png" {
		t.Fatalf("mime: got=%q", rec.MimeType)
	}
	if len(rec.Fingerprint) != 64 {
		t.Fatalf("fingerprint: want sha256 hex got len=%d", len(rec.Fingerprint))
	}
	if rec.Width != 4 || rec.Height != 3 {
		t.Fatalf("dimensions: got=%dx%d", rec.Width, rec.Height)
	}
	if rec.SizeBytes <= 0 {
		t.Fatalf("size: got=%d", rec.SizeBytes)
	}
	if rec.ModifiedAt == nil {
		t.Fatalf("modified at: want value got nil")
	}
}

func TestImagesKeepsUndecodableFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.heic")
	if err := os.WriteFile(path, []byte("heic bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	records, outcome := Images(context.Background(), SourceFile{Path: path, RelPath: "photo.heic", Kind: KindImages})
	if outcome.Err != nil {
		t.Fatalf("Images: %v", outcome.Err)
	}
	rec := records[0].(ImageRecord)
	if rec.Width != 0 || rec.Height != 0 {
		t.Fatalf("undecodable image should keep zero dimensions, got %dx%d", rec.Width, rec.Height)
	}
	if rec.MimeType != "image/heic" {
		t.Fatalf("mime: got=%q", rec.MimeType)
	}
}
