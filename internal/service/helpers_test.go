package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/bilingual-sub-merger/internal/media"
	"github.com/MimeLyc/bilingual-sub-merger/internal/persistence"
)

type mockOperator struct {
	mock.Mock
}

func (m *mockOperator) Probe(ctx context.Context, videoPath string) (media.Probe, error) {
	args := m.Called(ctx, videoPath)
	return args.Get(0).(media.Probe), args.Error(1)
}

func (m *mockOperator) ExtractSubtitle(ctx context.Context, videoPath string, streamIndex int) (string, error) {
	args := m.Called(ctx, videoPath, streamIndex)
	return args.String(0), args.Error(1)
}

func (m *mockOperator) InjectSubtitle(ctx context.Context, req media.InjectRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]persistence.StreamCacheEntry
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]persistence.StreamCacheEntry)}
}

func cacheKey(videoPath string, streamIndex int) string {
	return fmt.Sprintf("%s#%d", videoPath, streamIndex)
}

func (c *memoryCache) GetStreamCache(_ context.Context, videoPath string, streamIndex int, size int64, mtime time.Time) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[cacheKey(videoPath, streamIndex)]
	if !ok || entry.VideoSize != size || !entry.VideoMTime.Equal(mtime) {
		return "", false, nil
	}
	return entry.Content, true, nil
}

func (c *memoryCache) PutStreamCache(_ context.Context, entry persistence.StreamCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(entry.VideoPath, entry.StreamIndex)] = entry
	return nil
}

const (
	engShort = "1\n00:00:01,000 --> 00:00:03,000\nHello\n"
	engLong  = "1\n00:00:01,000 --> 00:00:03,000\nHello there, friend\n\n2\n00:00:04,000 --> 00:00:05,000\nBye\n"
	rusText  = "1\n00:00:01,000 --> 00:00:03,000\nПривет\n"

	mergedLongRus = "1\n00:00:01,000 --> 00:00:03,000\nHello there, friend\nПривет\n\n2\n00:00:04,000 --> 00:00:05,000\nBye\n"
)

func subripStream(index int, lang string) media.Stream {
	return media.Stream{
		Index:     index,
		CodecName: media.CodecSubRip,
		Language:  lang,
		LangTag:   language.Make(lang),
	}
}

// bilingualProbe has two english streams, one russian and a russian ASS stream.
func bilingualProbe(videoPath string) media.Probe {
	ass := subripStream(5, "rus")
	ass.CodecName = "ass"
	return media.Probe{
		Path:   videoPath,
		Format: media.FormatMatroska,
		Streams: []media.Stream{
			subripStream(2, "eng"),
			subripStream(3, "eng"),
			subripStream(4, "rus"),
			ass,
		},
	}
}

func expectBilingualStreams(op *mockOperator, videoPath string) {
	op.On("ExtractSubtitle", mock.Anything, videoPath, 2).Return(engShort, nil).Once()
	op.On("ExtractSubtitle", mock.Anything, videoPath, 3).Return(engLong, nil).Once()
	op.On("ExtractSubtitle", mock.Anything, videoPath, 4).Return(rusText, nil).Once()
}

func writeFile(t *testing.T, path string, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func autoRequest(videoPath string) MergeRequest {
	return MergeRequest{
		VideoPath:     videoPath,
		UpperLanguage: language.English,
		LowerLanguage: language.Russian,
	}
}
