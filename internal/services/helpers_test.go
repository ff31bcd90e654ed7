package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/ufdrlab-backend/internal/data/graph"
	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/platform/openai"
	"github.com/yungbote/ufdrlab-backend/internal/platform/qdrant"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&types.Contact{}, &types.Message{}, &types.SystemInfoEntry{}, &types.Image{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeAI is a deterministic openai.Client for tests.
type fakeAI struct {
	mu         sync.Mutex
	embedCalls int
	embedDim   int
	embedErr   error
	textAnswer string
	textErr    error
	lastUser   string
}

func (f *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	dim := f.embedDim
	if dim == 0 {
		dim = 4
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		vec := make([]float32, dim)
		vec[0] = float32(len(inputs[i]))
		out[i] = vec
	}
	return out, nil
}

func (f *fakeAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser = user
	if f.textErr != nil {
		return "", f.textErr
	}
	if f.textAnswer != "" {
		return f.textAnswer, nil
	}
	return "generated answer", nil
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

func (f *fakeAI) GenerateTextWithImages(ctx context.Context, system, user string, images []openai.ImageInput) (string, error) {
	return `{"caption":"a photo","tags":["photo"],"detected_text":""}`, nil
}

func (f *fakeAI) Model() string { return "test-model" }

// fakeVectorStore records writes and serves canned matches.
type fakeVectorStore struct {
	mu        sync.Mutex
	upserts   map[string][]qdrant.Vector
	deleted   map[string][]string
	matches   map[string][]qdrant.Match
	upsertErr error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		upserts: map[string][]qdrant.Vector{},
		deleted: map[string][]string{},
		matches: map[string][]qdrant.Match{},
	}
}

func (f *fakeVectorStore) Upsert(ctx context.Context, namespace string, vectors []qdrant.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts[namespace] = append(f.upserts[namespace], vectors...)
	return nil
}

func (f *fakeVectorStore) QueryMatches(ctx context.Context, namespace string, query []float32, topK int) ([]qdrant.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.matches[namespace]
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[namespace] = append(f.deleted[namespace], ids...)
	return nil
}

// fakeGraphSync records graph writes so services can be tested without a
// running graph store.
type fakeGraphSync struct {
	mu         sync.Mutex
	resetCalls int
	registered int
}

func (f *fakeGraphSync) Resync(ctx context.Context, clearFirst bool) (*ResyncStats, error) {
	return &ResyncStats{}, nil
}

func (f *fakeGraphSync) RegisterIngest(ctx context.Context, persons []graph.PersonNode, rels []graph.MessageRel, images []graph.ImageNode, shares []graph.ImageShareRel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered++
	return nil
}

func (f *fakeGraphSync) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	return nil
}

func (f *fakeGraphSync) FetchGraph(ctx context.Context, term string, limit int) (*graph.GraphView, error) {
	return &graph.GraphView{}, nil
}

func (f *fakeGraphSync) Enabled() bool { return true }

// fakeCaptioner returns one canned result, or an error for file paths
// listed in failPaths.
type fakeCaptioner struct {
	mu        sync.Mutex
	calls     int
	failPaths map[string]bool
	result    CaptionResult
}

func (f *fakeCaptioner) Name() string { return "fake" }

func (f *fakeCaptioner) Caption(ctx context.Context, img *types.Image) (*CaptionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failPaths[img.FilePath] {
		return nil, fmt.Errorf("provider rejected %s", img.FilePath)
	}
	res := f.result
	if res.Caption == "" {
		res.Caption = "two people at a table"
	}
	return &res, nil
}
