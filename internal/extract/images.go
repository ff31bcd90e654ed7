package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".heic": "image/heic",
	".heif": "image/heif",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

// IsImagePath reports whether the extension marks an extracted media asset.
func IsImagePath(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Images fingerprints one media file and probes its dimensions. HEIC/HEIF
// cannot be decoded natively; those keep zero dimensions and are still
// inventoried for captioning.
func Images(ctx context.Context, src SourceFile) ([]Record, Outcome) {
	outcome := Outcome{Source: src.RelPath, Kind: KindImages}

	f, err := os.Open(src.Path)
	if err != nil {
		outcome.Err = err
		return nil, outcome
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		outcome.Err = err
		return nil, outcome
	}

	rec := ImageRecord{
		FilePath:     src.Path,
		RelativePath: src.RelPath,
		Fingerprint:  hex.EncodeToString(hasher.Sum(nil)),
		SizeBytes:    size,
		MimeType:     imageExtensions[strings.ToLower(filepath.Ext(src.Path))],
	}

	if info, statErr := f.Stat(); statErr == nil {
		mod := info.ModTime().UTC()
		rec.ModifiedAt = &mod
	}

	if _, seekErr := f.Seek(0, io.SeekStart); seekErr == nil {
		if cfg, _, decErr := image.DecodeConfig(f); decErr == nil {
			rec.Width = cfg.Width
			rec.Height = cfg.Height
		}
	}

	outcome.Parsed = 1
	return []Record{rec}, outcome
}
