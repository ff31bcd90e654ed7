package services

import (
	"strings"
	"testing"
)

func TestParseCaptionJSON(t *testing.T) {
	res, err := parseCaptionJSON(`{"caption":"Two people at a table","tags":["People","  indoor ",""],"detected_text":"CAFE"}`)
	if err != nil {
		t.Fatalf("parseCaptionJSON: %v", err)
	}
	if res.Caption != "Two people at a table" {
		t.Fatalf("caption: got=%q", res.Caption)
	}
	if len(res.Tags) != 2 || res.Tags[0] != "people" || res.Tags[1] != "indoor" {
		t.Fatalf("tags: got=%v", res.Tags)
	}
	if res.DetectedText != "CAFE" {
		t.Fatalf("detected text: got=%q", res.DetectedText)
	}
}

func TestParseCaptionJSONStripsFences(t *testing.T) {
	res, err := parseCaptionJSON("```json\n{\"caption\":\"a dog\",\"tags\":[],\"detected_text\":\"\"}\n```")
	if err != nil {
		t.Fatalf("parseCaptionJSON: %v", err)
	}
	if res.Caption != "a dog" {
		t.Fatalf("caption: got=%q", res.Caption)
	}
}

func TestParseCaptionJSONRejectsMissingCaption(t *testing.T) {
	if _, err := parseCaptionJSON(`{"tags":["x"]}`); err == nil {
		t.Fatalf("parseCaptionJSON: want error for missing caption")
	}
	if _, err := parseCaptionJSON("not json"); err == nil {
		t.Fatalf("parseCaptionJSON: want error for non-JSON output")
	}
}

func TestClampCaptionResult(t *testing.T) {
	long := strings.Repeat("word ", 60)
	res := clampCaptionResult(&CaptionResult{
		Caption: strings.TrimSpace(long),
		Tags:    []string{"a", "b", "c", "d", "e", "f", "g", "h"},
	})
	if got := len(strings.Fields(res.Caption)); got != maxCaptionWords {
		t.Fatalf("caption words: want %d got=%d", maxCaptionWords, got)
	}
	if len(res.Tags) != maxCaptionTags {
		t.Fatalf("tags: want %d got=%d", maxCaptionTags, len(res.Tags))
	}
}
