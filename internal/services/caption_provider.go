package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/ufdrlab-backend/internal/clients/gcp"
	"github.com/yungbote/ufdrlab-backend/internal/platform/envutil"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/platform/openai"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

// CaptionResult is the normalized output of any caption provider.
type CaptionResult struct {
	Caption      string
	Tags         []string
	DetectedText string
}

// Captioner produces a caption for one stored image.
type Captioner interface {
	Caption(ctx context.Context, img *types.Image) (*CaptionResult, error)
	Name() string
}

const (
	maxCaptionWords = 40
	maxCaptionTags  = 6
)

// NewCaptionerFromEnv selects the provider via CAPTION_PROVIDER
// ("openai", default, or "gcp"). Returns (nil, nil) when the chosen
// provider is not configured.
func NewCaptionerFromEnv(log *logger.Logger, ai openai.Client) (Captioner, error) {
	provider := strings.ToLower(envutil.GetEnv("CAPTION_PROVIDER", "openai", log))
	switch provider {
	case "openai":
		if ai == nil {
			log.Warn("Caption provider openai selected but OPENAI_API_KEY is unset; captioning disabled")
			return nil, nil
		}
		return &openAICaptioner{log: log.With("service", "OpenAICaptioner"), ai: ai}, nil
	case "gcp":
		vision, err := gcp.NewVision(log)
		if err != nil {
			return nil, fmt.Errorf("init gcp vision captioner: %w", err)
		}
		return &gcpCaptioner{log: log.With("service", "GCPCaptioner"), vision: vision}, nil
	default:
		return nil, fmt.Errorf("unknown CAPTION_PROVIDER %q", provider)
	}
}

// -------------------- OpenAI-compatible provider --------------------

type openAICaptioner struct {
	log *logger.Logger
	ai  openai.Client
}

func (c *openAICaptioner) Name() string { return "openai" }

const captionSystemPrompt = "You describe images recovered from mobile device extractions for investigators. " +
	"Be factual and neutral. Do not speculate about people's identities."

func (c *openAICaptioner) Caption(ctx context.Context, img *types.Image) (*CaptionResult, error) {
	data, err := os.ReadFile(img.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	mime := img.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)

	text, err := c.ai.GenerateTextWithImages(ctx, captionSystemPrompt,
		`Describe this image as JSON with keys "caption" (max 40 words), "tags" (max 6 lowercase strings) and "detected_text" (verbatim visible text, or ""). Return only the JSON object.`,
		[]openai.ImageInput{{ImageURL: dataURL, Detail: "low"}})
	if err != nil {
		return nil, err
	}
	res, err := parseCaptionJSON(text)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// -------------------- GCP Vision provider --------------------

type gcpCaptioner struct {
	log    *logger.Logger
	vision gcp.Vision
}

func (c *gcpCaptioner) Name() string { return "gcp" }

func (c *gcpCaptioner) Caption(ctx context.Context, img *types.Image) (*CaptionResult, error) {
	data, err := os.ReadFile(img.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	annotation, err := c.vision.AnnotateImageBytes(ctx, data, img.MimeType)
	if err != nil {
		return nil, err
	}

	tags := annotation.Labels
	if len(tags) > maxCaptionTags {
		tags = tags[:maxCaptionTags]
	}
	caption := ""
	if len(tags) > 0 {
		caption = "Image showing " + strings.Join(tags, ", ")
	}
	return clampCaptionResult(&CaptionResult{
		Caption:      caption,
		Tags:         tags,
		DetectedText: annotation.Text,
	}), nil
}

// -------------------- shared helpers --------------------

func captionResultFromMap(obj map[string]any) *CaptionResult {
	res := &CaptionResult{}
	if v, ok := obj["caption"].(string); ok {
		res.Caption = strings.TrimSpace(v)
	}
	if v, ok := obj["detected_text"].(string); ok {
		res.DetectedText = strings.TrimSpace(v)
	}
	if raw, ok := obj["tags"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				s = strings.ToLower(strings.TrimSpace(s))
				if s != "" {
					res.Tags = append(res.Tags, s)
				}
			}
		}
	}
	return clampCaptionResult(res)
}

func parseCaptionJSON(text string) (*CaptionResult, error) {
	text = strings.TrimSpace(text)
	// Models occasionally wrap JSON in a fenced block.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	obj := map[string]any{}
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("parse caption JSON: %w; text=%s", err, text)
	}
	res := captionResultFromMap(obj)
	if res.Caption == "" {
		return nil, fmt.Errorf("caption missing in model output: %s", text)
	}
	return res, nil
}

func clampCaptionResult(res *CaptionResult) *CaptionResult {
	words := strings.Fields(res.Caption)
	if len(words) > maxCaptionWords {
		res.Caption = strings.Join(words[:maxCaptionWords], " ")
	}
	if len(res.Tags) > maxCaptionTags {
		res.Tags = res.Tags[:maxCaptionTags]
	}
	return res
}
