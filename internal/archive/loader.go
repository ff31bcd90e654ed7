package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/yungbote/ufdrlab-backend/internal/extract"
	"github.com/yungbote/ufdrlab-backend/internal/platform/envutil"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
)

var (
	// ErrBadArchive marks a structurally unusable upload; nothing is committed.
	ErrBadArchive = errors.New("archive is corrupt or not a valid ZIP")
	// ErrStorageFull marks an ENOSPC while persisting the upload.
	ErrStorageFull = errors.New("insufficient disk space while saving upload")
)

// Loader persists an uploaded UFDR container and unpacks it into an
// isolated per-request working directory.
type Loader struct {
	log        *logger.Logger
	uploadsDir string
	extractDir string
}

// Extraction is one unpacked archive. Close removes the working directory;
// callers invoke it when the extraction is abandoned. Committed extractions
// keep their directory, since persisted image paths point into it.
type Extraction struct {
	ID          string
	ArchiveName string
	ArchivePath string
	Dir         string
	Sources     []extract.SourceFile
}

func NewLoader(log *logger.Logger) (*Loader, error) {
	uploads := envutil.GetEnv("UPLOADS_DIR", "storage/uploads", log)
	extracted := envutil.GetEnv("EXTRACTED_DIR", "storage/extracted", log)
	for _, dir := range []string{uploads, extracted} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Loader{
		log:        log.With("service", "ArchiveLoader"),
		uploadsDir: uploads,
		extractDir: extracted,
	}, nil
}

// Open saves the upload, validates it is a readable ZIP, extracts all
// members and classifies the discovered source files.
func (l *Loader) Open(ctx context.Context, upload io.Reader, filename string) (*Extraction, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("uploaded file is missing a filename")
	}

	id := uuid.New().String()
	archivePath := filepath.Join(l.uploadsDir, id+"_"+filepath.Base(filename))
	if err := l.persist(upload, archivePath); err != nil {
		return nil, err
	}

	workDir := filepath.Join(l.extractDir, id)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	ex := &Extraction{ID: id, ArchiveName: filepath.Base(filename), ArchivePath: archivePath, Dir: workDir}
	if err := l.unpack(ctx, archivePath, workDir); err != nil {
		ex.Close()
		return nil, err
	}

	sources, err := discoverSources(workDir)
	if err != nil {
		ex.Close()
		return nil, fmt.Errorf("discover sources: %w", err)
	}
	ex.Sources = sources

	l.log.Info("Archive extracted",
		"extraction_id", id,
		"archive", ex.ArchiveName,
		"sources", len(sources),
	)
	return ex, nil
}

// Purge removes every persisted upload and extraction. Used by the store
// reset, after the rows referencing these files are gone.
func (l *Loader) Purge() error {
	for _, dir := range []string{l.uploadsDir, l.extractDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read %s: %w", dir, err)
		}
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
				return fmt.Errorf("remove %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}

func (e *Extraction) Close() error {
	if e == nil || e.Dir == "" {
		return nil
	}
	err := os.RemoveAll(e.Dir)
	e.Dir = ""
	return err
}

func (l *Loader) persist(upload io.Reader, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	_, copyErr := io.Copy(f, upload)
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(dst)
		if errors.Is(copyErr, syscall.ENOSPC) {
			return fmt.Errorf("%w: %v", ErrStorageFull, copyErr)
		}
		return fmt.Errorf("persist upload: %w", copyErr)
	}
	return nil
}

func (l *Loader) unpack(ctx context.Context, archivePath, workDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer zr.Close()

	if len(zr.File) == 0 {
		return fmt.Errorf("%w: archive is empty", ErrBadArchive)
	}

	for _, member := range zr.File {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := extractMember(member, workDir); err != nil {
			return err
		}
	}
	return nil
}

func extractMember(member *zip.File, workDir string) error {
	target, err := safeJoin(workDir, member.Name)
	if err != nil {
		return err
	}
	if member.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("%w: open member %s: %v", ErrBadArchive, member.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}

// safeJoin rejects zip-slip member names escaping the working directory.
func safeJoin(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(root, name))
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: member path %q escapes extraction root", ErrBadArchive, name)
	}
	return cleaned, nil
}

// discoverSources walks the working directory and classifies every file.
func discoverSources(workDir string) ([]extract.SourceFile, error) {
	var sources []extract.SourceFile
	err := filepath.WalkDir(workDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(workDir, path)
		if relErr != nil {
			rel = path
		}
		sources = append(sources, extract.SourceFile{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Kind:    ClassifySource(path),
		})
		return nil
	})
	return sources, err
}

// ClassifySource maps a file name to the recognized source kinds.
func ClassifySource(path string) extract.Kind {
	name := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(name)

	switch ext {
	case ".sqlite", ".db":
		for _, keyword := range []string{"sms", "message", "chat", "imessage", "mms", "whatsapp"} {
			if strings.Contains(name, keyword) {
				return extract.KindMessages
			}
		}
		if strings.Contains(name, "contact") || strings.Contains(name, "addressbook") {
			return extract.KindContacts
		}
	case ".xml":
		if strings.Contains(name, "contact") {
			return extract.KindContacts
		}
	case ".plist":
		return extract.KindSystemInfo
	}
	if extract.IsImagePath(name) {
		return extract.KindImages
	}
	return extract.KindUnknown
}
