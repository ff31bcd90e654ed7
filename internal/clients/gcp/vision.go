package gcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/ufdrlab-backend/internal/platform/ctxutil"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
)

// Vision annotates extracted media: label detection for tags plus document
// text detection for any text visible in the frame.
type Vision interface {
	AnnotateImageBytes(ctx context.Context, img []byte, mimeType string) (*VisionAnnotation, error)
	Close() error
}

type VisionAnnotation struct {
	Provider string    `json:"provider"`
	MimeType string    `json:"mime_type,omitempty"`
	Labels   []string  `json:"labels,omitempty"`
	Scores   []float64 `json:"scores,omitempty"`
	Text     string    `json:"text,omitempty"`
}

type visionService struct {
	log          *logger.Logger
	visionClient *vision.ImageAnnotatorClient
	maxLabels    int
}

func NewVision(log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	ctx := context.Background()
	opts := ClientOptionsFromEnv()

	vClient, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	return &visionService{
		log:          log.With("service", "gcp.Vision"),
		visionClient: vClient,
		maxLabels:    10,
	}, nil
}

func (s *visionService) Close() error {
	if s == nil {
		return nil
	}
	if s.visionClient != nil {
		return s.visionClient.Close()
	}
	return nil
}

func (s *visionService) AnnotateImageBytes(ctx context.Context, img []byte, mimeType string) (*VisionAnnotation, error) {
	out := &VisionAnnotation{Provider: "gcp_vision", MimeType: mimeType}
	if len(img) == 0 {
		return out, nil
	}

	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: img},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: int32(s.maxLabels)},
			{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
		},
	}

	br := &visionpb.BatchAnnotateImagesRequest{Requests: []*visionpb.AnnotateImageRequest{req}}
	resp, err := s.visionClient.BatchAnnotateImages(ctx, br)
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return out, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	type scoredLabel struct {
		desc  string
		score float64
	}
	labels := make([]scoredLabel, 0, len(r0.LabelAnnotations))
	for _, la := range r0.LabelAnnotations {
		if la == nil {
			continue
		}
		desc := strings.TrimSpace(la.Description)
		if desc == "" {
			continue
		}
		labels = append(labels, scoredLabel{desc: strings.ToLower(desc), score: float64(la.Score)})
	}
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].score > labels[j].score })
	for _, la := range labels {
		out.Labels = append(out.Labels, la.desc)
		out.Scores = append(out.Scores, la.score)
	}

	if fta := r0.FullTextAnnotation; fta != nil {
		out.Text = collapseWhitespace(fta.Text)
	}
	return out, nil
}
