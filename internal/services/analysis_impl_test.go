package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"veritas/internal/database"
	"veritas/internal/pipeline"
	"veritas/internal/storage"
)

// stubAnalyzer records the call and returns a canned result
type stubAnalyzer struct {
	mu       sync.Mutex
	result   *pipeline.AnalysisResult
	paths    []string
	names    []string
	contents []string
}

func (a *stubAnalyzer) Analyze(ctx context.Context, videoPath, filename string) *pipeline.AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, _ := os.ReadFile(videoPath)
	a.paths = append(a.paths, videoPath)
	a.names = append(a.names, filename)
	a.contents = append(a.contents, string(data))
	r := *a.result
	r.Filename = filename
	return &r
}

type env struct {
	svc      *AnalysisService
	analyzer *stubAnalyzer
	db       *database.Database
	store    *storage.LocalPreviewStore
	bus      *pipeline.EventBus
	upload   string
}

func newEnv(t *testing.T, result *pipeline.AnalysisResult) *env {
	t.Helper()
	db, err := database.New(database.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	store, err := storage.NewLocalPreviewStore(filepath.Join(t.TempDir(), "frames"))
	require.NoError(t, err)

	upload := filepath.Join(t.TempDir(), "uploads")
	analyzer := &stubAnalyzer{result: result}
	bus := pipeline.NewEventBus()

	svc, err := NewAnalysisService(analyzer, db, store, bus, AnalysisConfig{
		UploadDir:         upload,
		AllowedExtensions: []string{"mp4", "avi", "mov"},
		MaxUploadBytes:    1024,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	return &env{svc: svc, analyzer: analyzer, db: db, store: store, bus: bus, upload: upload}
}

func successResult() *pipeline.AnalysisResult {
	return &pipeline.AnalysisResult{
		Success:        true,
		Classification: pipeline.LabelFake,
		Confidence:     55,
		FramesAnalyzed: 20,
		Details:        &pipeline.Details{FusedScoreReal: 0.45},
	}
}

func TestValidate(t *testing.T) {
	e := newEnv(t, successResult())

	assert.NoError(t, e.svc.Validate("clip.MP4"))
	assert.NoError(t, e.svc.Validate("a.b.mov"))
	assert.ErrorIs(t, e.svc.Validate(""), ErrNoFile)
	assert.ErrorIs(t, e.svc.Validate("notes.txt"), ErrUnsupportedFormat)
	assert.ErrorIs(t, e.svc.Validate("noext"), ErrUnsupportedFormat)
	assert.Equal(t, "Unsupported format. Please use mp4, avi, mov.", e.svc.UnsupportedFormatMessage())
}

func TestSubmit_StoresAndPublishesResult(t *testing.T) {
	e := newEnv(t, successResult())
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e.svc.now = func() time.Time { return fixed }

	var published []*pipeline.AnalysisResult
	e.bus.SubscribeOwner("", pipeline.ResultHandlerFunc(func(r *pipeline.AnalysisResult) { published = append(published, r) }))

	res, err := e.svc.Submit(context.Background(), "alice", "../My Clip.mp4", strings.NewReader("video-bytes"))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.NotEmpty(t, res.ResultID)
	assert.Equal(t, "alice", res.OwnerID)
	assert.True(t, fixed.Equal(*res.Timestamp))
	assert.Equal(t, "My_Clip.mp4", res.Filename)

	require.Len(t, e.analyzer.paths, 1)
	assert.Equal(t, "video-bytes", e.analyzer.contents[0])
	assert.Regexp(t, `^[0-9a-f]{32}_My_Clip\.mp4$`, filepath.Base(e.analyzer.paths[0]))
	_, statErr := os.Stat(e.analyzer.paths[0])
	assert.True(t, os.IsNotExist(statErr), "upload removed after analysis")

	stored, err := e.svc.Get(context.Background(), res.ResultID)
	require.NoError(t, err)
	assert.Equal(t, res.ResultID, stored.ResultID)

	require.Len(t, published, 1)
	assert.Equal(t, res.ResultID, published[0].ResultID)
}

func TestSubmit_FailedAnalysisIsNotStored(t *testing.T) {
	e := newEnv(t, pipeline.Failed(pipeline.MsgFailedToExtractFrames))

	res, err := e.svc.Submit(context.Background(), "bob", "broken.avi", strings.NewReader("junk"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, pipeline.MsgFailedToExtractFrames, res.Message)
	assert.Empty(t, res.ResultID)

	all, err := e.svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	entries, err := os.ReadDir(e.upload)
	require.NoError(t, err)
	assert.Empty(t, entries, "upload directory is left empty")
}

func TestSubmit_RejectsInvalidUploads(t *testing.T) {
	e := newEnv(t, successResult())
	ctx := context.Background()

	_, err := e.svc.Submit(ctx, "bob", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = e.svc.Submit(ctx, "bob", "evil.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = e.svc.Submit(ctx, "bob", "big.mp4", bytes.NewReader(make([]byte, 1025)))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	assert.Empty(t, e.analyzer.paths, "analyzer never called")
	entries, err := os.ReadDir(e.upload)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmit_ExactLimitIsAccepted(t *testing.T) {
	e := newEnv(t, successResult())

	res, err := e.svc.Submit(context.Background(), "bob", "edge.mov", bytes.NewReader(make([]byte, 1024)))
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSubmit_UnsafeNameKeepsExtension(t *testing.T) {
	e := newEnv(t, successResult())

	res, err := e.svc.Submit(context.Background(), "bob", "../../ü.mp4", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "mp4", extension(res.Filename))
}

func TestListByOwner_NewestFirst(t *testing.T) {
	e := newEnv(t, successResult())
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i, owner := range []string{"alice", "bob", "alice"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		e.svc.now = func() time.Time { return ts }
		res, err := e.svc.Submit(ctx, owner, "v.mp4", strings.NewReader("x"))
		require.NoError(t, err)
		ids = append(ids, res.ResultID)
	}

	alice, err := e.svc.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, ids[2], alice[0].ResultID)
	assert.Equal(t, ids[0], alice[1].ResultID)

	all, err := e.svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSummaries(t *testing.T) {
	e := newEnv(t, successResult())
	ctx := context.Background()

	for _, owner := range []string{"alice", "bob", "alice"} {
		_, err := e.svc.Submit(ctx, owner, "v.mp4", strings.NewReader("x"))
		require.NoError(t, err)
	}

	alice, err := e.svc.Summaries(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "alice", alice[0].OwnerID)
	assert.Equal(t, pipeline.LabelFake, alice[0].Classification)
	assert.Equal(t, 55.0, alice[0].Confidence)

	all, err := e.svc.Summaries(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDelete_OwnResultOnly(t *testing.T) {
	e := newEnv(t, successResult())
	ctx := context.Background()

	res, err := e.svc.Submit(ctx, "alice", "v.mp4", strings.NewReader("x"))
	require.NoError(t, err)

	assert.ErrorIs(t, e.svc.Delete(ctx, "bob", res.ResultID), ErrNotFound)
	_, err = e.svc.Get(ctx, res.ResultID)
	require.NoError(t, err, "other owners cannot delete")

	require.NoError(t, e.svc.Delete(ctx, "alice", res.ResultID))
	_, err = e.svc.Get(ctx, res.ResultID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, e.svc.Delete(ctx, "alice", res.ResultID), ErrNotFound)
}

func TestGet_NotFound(t *testing.T) {
	e := newEnv(t, successResult())
	_, err := e.svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPreview(t *testing.T) {
	e := newEnv(t, successResult())
	ctx := context.Background()

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	path, err := e.store.Save(ctx, "frame_deadbeef_0.jpg", img)
	require.NoError(t, err)

	r := successResult()
	r.FramePreviews = []pipeline.FramePreview{
		{Path: path, Status: pipeline.FrameStatusNormal, Variance: 0.05},
		{Path: "", Status: pipeline.FrameStatusNeutral},
	}
	e.analyzer.result = r

	res, err := e.svc.Submit(ctx, "alice", "v.mp4", strings.NewReader("x"))
	require.NoError(t, err)

	data, err := e.svc.Preview(ctx, res.ResultID, 0)
	require.NoError(t, err)
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 40, decoded.Bounds().Dx())
	_, g, _, _ := decoded.At(0, 0).RGBA()
	assert.Greater(t, g>>8, uint32(120), "normal preview framed in green")

	_, err = e.svc.Preview(ctx, res.ResultID, 1)
	assert.ErrorIs(t, err, ErrNotFound, "unpersisted preview")

	_, err = e.svc.Preview(ctx, res.ResultID, 5)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.svc.Preview(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSecureFilename(t *testing.T) {
	tests := map[string]string{
		"My Clip.mp4":        "My_Clip.mp4",
		"../../etc/passwd":   "etc_passwd",
		`C:\videos\cat.mov`:  "C_videos_cat.mov",
		"  spaced   out.avi": "spaced_out.avi",
		"...":                "",
		"_hidden.mp4":        "hidden.mp4",
		"naïve.mp4":          "nave.mp4",
	}
	for in, want := range tests {
		assert.Equal(t, want, SecureFilename(in), in)
	}
}
