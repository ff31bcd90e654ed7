package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/ufdrlab-backend/internal/platform/envutil"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/platform/openai"
	"github.com/yungbote/ufdrlab-backend/internal/platform/qdrant"
	"github.com/yungbote/ufdrlab-backend/internal/repos"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

const imageNamespace = "images"

// CaptionRunStats summarizes one pass over pending images.
type CaptionRunStats struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// CaptionService drives the pending -> processing -> done|error lifecycle.
// One image failing never blocks the rest of the batch.
type CaptionService interface {
	// ProcessPending captions every pending image with a bounded worker pool
	// and returns when the batch is drained.
	ProcessPending(ctx context.Context) (*CaptionRunStats, error)
	// Kick runs ProcessPending in the background. A no-op when a run is
	// already in flight.
	Kick()
	// RecaptionPending requeues errored and stuck images, then kicks a run.
	RecaptionPending(ctx context.Context) (int64, error)
	Enabled() bool
}

type captionService struct {
	log       *logger.Logger
	images    repos.ImageRepo
	captioner Captioner
	ai        openai.Client
	vectors   qdrant.VectorStore

	workers    int
	perImageTO time.Duration

	runMu sync.Mutex
}

func NewCaptionService(
	log *logger.Logger,
	images repos.ImageRepo,
	captioner Captioner,
	ai openai.Client,
	vectors qdrant.VectorStore,
) CaptionService {
	return &captionService{
		log:        log.With("service", "CaptionService"),
		images:     images,
		captioner:  captioner,
		ai:         ai,
		vectors:    vectors,
		workers:    envutil.GetEnvAsInt("CAPTION_WORKERS", 2, log),
		perImageTO: time.Duration(envutil.GetEnvAsInt("CAPTION_TIMEOUT_SECONDS", 90, log)) * time.Second,
	}
}

func (s *captionService) Enabled() bool { return s.captioner != nil }

func (s *captionService) Kick() {
	if !s.Enabled() {
		return
	}
	go func() {
		if _, err := s.ProcessPending(context.Background()); err != nil {
			s.log.Error("Background caption run failed", "error", err)
		}
	}()
}

func (s *captionService) ProcessPending(ctx context.Context) (*CaptionRunStats, error) {
	stats := &CaptionRunStats{}
	if !s.Enabled() {
		return stats, nil
	}
	if !s.runMu.TryLock() {
		s.log.Debug("Caption run already in flight; skipping")
		return stats, nil
	}
	defer s.runMu.Unlock()

	pending, err := s.images.ListByStatus(ctx, nil, types.CaptionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending images: %w", err)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	workers := s.workers
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, img := range pending {
		img := img
		g.Go(func() error {
			ok := s.captionOne(gctx, img)
			mu.Lock()
			stats.Processed++
			if ok {
				stats.Succeeded++
			} else {
				stats.Failed++
			}
			mu.Unlock()
			// Failures are recorded per image; the run itself keeps going.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	s.log.Info("Caption run finished",
		"processed", stats.Processed,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (s *captionService) captionOne(ctx context.Context, img *types.Image) bool {
	if err := s.images.MarkProcessing(ctx, nil, img.ID); err != nil {
		s.log.Error("Mark image processing failed", "image_id", img.ID, "error", err)
		return false
	}

	imgCtx, cancel := context.WithTimeout(ctx, s.perImageTO)
	defer cancel()

	result, err := s.captioner.Caption(imgCtx, img)
	if err != nil {
		s.failImage(ctx, img.ID, err)
		return false
	}

	vectorID := ""
	if s.ai != nil && s.vectors != nil {
		vectorID, err = s.indexCaption(imgCtx, img, result)
		if err != nil {
			// The caption itself is still good; store it without a vector.
			s.log.Warn("Caption vector indexing failed", "image_id", img.ID, "error", err)
			vectorID = ""
		}
	}

	tags := strings.Join(result.Tags, ",")
	if err := s.images.MarkDone(ctx, nil, img.ID, result.Caption, tags, result.DetectedText, vectorID); err != nil {
		s.log.Error("Mark image done failed", "image_id", img.ID, "error", err)
		return false
	}
	return true
}

func (s *captionService) failImage(ctx context.Context, id uint, cause error) {
	s.log.Warn("Image captioning failed", "image_id", id, "error", cause)
	if err := s.images.MarkError(ctx, nil, id, cause.Error()); err != nil {
		s.log.Error("Mark image error failed", "image_id", id, "error", err)
	}
}

func (s *captionService) indexCaption(ctx context.Context, img *types.Image, result *CaptionResult) (string, error) {
	text := result.Caption
	if result.DetectedText != "" {
		text += "\n" + result.DetectedText
	}
	embeddings, err := s.ai.Embed(ctx, []string{text})
	if err != nil {
		return "", err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return "", fmt.Errorf("empty embedding for image %d", img.ID)
	}

	vectorID := fmt.Sprintf("img:%d", img.ID)
	err = s.vectors.Upsert(ctx, imageNamespace, []qdrant.Vector{{
		ID:     vectorID,
		Values: embeddings[0],
		Text:   text,
		Metadata: map[string]any{
			"type":     "image",
			"path":     img.RelativePath,
			"mime":     img.MimeType,
			"tags":     strings.Join(result.Tags, ","),
			"image_id": img.ID,
		},
	}})
	if err != nil {
		return "", err
	}
	return vectorID, nil
}

func (s *captionService) RecaptionPending(ctx context.Context) (int64, error) {
	requeued, err := s.images.ResetFailedToPending(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("requeue failed images: %w", err)
	}
	if requeued > 0 {
		s.Kick()
	}
	return requeued, nil
}
