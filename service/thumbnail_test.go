package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/png"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.notebook.dev/notebook/config"
	"go.notebook.dev/notebook/core"
)

func newTestThumbnails(t *testing.T, store *mockObjectStore, extract FrameExtractor) (*ThumbnailServiceDefault, config.ThumbnailConfig) {
	t.Helper()

	cfg := config.ThumbnailConfig{
		MaxDimension:   400,
		MaxPixels:      1_000_000,
		Quality:        82,
		VideoPrefix:    1024,
		FrameOffset:    "1",
		FetchTimeout:   time.Second,
		ExtractTimeout: time.Second,
		FFmpegPath:     "ffmpeg",
		ScratchDir:     t.TempDir(),
	}

	return newThumbnailService(cfg, store, core.NewNopLogger(), extract), cfg
}

func scratchEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	return entries
}

func TestThumbnailKey(t *testing.T) {
	tests := map[string]string{
		"users/1/files/docs/clip_1_ab.mp4": "users/1/files/docs/clip_1_ab_thumb.jpg",
		"users/1/files/photo.png":          "users/1/files/photo_thumb.jpg",
		"users/1/files/archive.tar.gz":     "users/1/files/archive.tar_thumb.jpg",
		"noext":                            "noext_thumb.jpg",
	}

	for in, want := range tests {
		assert.Equal(t, want, ThumbnailKey(in), in)
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, box    int
		wantW, wantH int
	}{
		{800, 400, 400, 400, 200},
		{400, 800, 400, 200, 400},
		{100, 50, 400, 100, 50},
		{400, 400, 400, 400, 400},
		{4000, 1, 400, 400, 1},
	}

	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.box)
		assert.Equal(t, tt.wantW, w, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "%dx%d", tt.w, tt.h)
	}
}

func TestDeriveFromBytesImage(t *testing.T) {
	store := newMockObjectStore()
	thumbs, _ := newTestThumbnails(t, store, nil)

	result, err := thumbs.DeriveFromBytes(context.Background(), "users/1/files/wide.png", testPNG(t, 800, 400), core.FileTypeImage)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "users/1/files/wide_thumb.jpg", result.Key)
	assert.Equal(t, 400, result.Width)
	assert.Equal(t, 200, result.Height)

	stored := store.objects[result.Key]
	assert.Equal(t, int64(len(stored)), result.Size)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestDeriveFromBytesSkipsOtherTypes(t *testing.T) {
	store := newMockObjectStore()
	thumbs, _ := newTestThumbnails(t, store, nil)

	result, err := thumbs.DeriveFromBytes(context.Background(), "users/1/files/a.png", testPNG(t, 10, 10), core.FileTypeDocument)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 0, store.putCalls)
}

func TestDeriveFromBytesRejectsNonImage(t *testing.T) {
	store := newMockObjectStore()
	thumbs, _ := newTestThumbnails(t, store, nil)

	_, err := thumbs.DeriveFromBytes(context.Background(), "users/1/files/a.png", []byte("plain text pretending"), core.FileTypeImage)
	assert.ErrorIs(t, err, ErrNotAnImage)
	assert.Equal(t, 0, store.putCalls)
}

// pngDeclaring returns a valid 1x1 PNG whose header claims w x h pixels.
func pngDeclaring(t *testing.T, w, h uint32) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	raw := buf.Bytes()

	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29
	binary.BigEndian.PutUint32(raw[16:], w)
	binary.BigEndian.PutUint32(raw[20:], h)
	binary.BigEndian.PutUint32(raw[29:], crc32.ChecksumIEEE(raw[12:29]))

	return raw
}

func TestDeriveFromBytesRejectsOversizedCanvas(t *testing.T) {
	store := newMockObjectStore()
	thumbs, _ := newTestThumbnails(t, store, nil)

	raw := pngDeclaring(t, 50_000, 50_000)
	header, _, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 50_000, header.Width)

	_, err = thumbs.DeriveFromBytes(context.Background(), "users/1/files/bomb.png", raw, core.FileTypeImage)
	assert.ErrorIs(t, err, ErrNotAnImage)
	assert.Equal(t, 0, store.putCalls)
}

func TestDeriveFromBytesPixelCapBoundary(t *testing.T) {
	store := newMockObjectStore()
	thumbs, cfg := newTestThumbnails(t, store, nil)

	_, err := thumbs.DeriveFromBytes(context.Background(), "users/1/files/edge.png", testPNG(t, 1000, 1000), core.FileTypeImage)
	require.NoError(t, err)
	require.Equal(t, int64(1000*1000), cfg.MaxPixels)

	_, err = thumbs.DeriveFromBytes(context.Background(), "users/1/files/over.png", testPNG(t, 1001, 1000), core.FileTypeImage)
	assert.ErrorIs(t, err, ErrNotAnImage)
	assert.Equal(t, 1, store.putCalls)
}

func TestDeriveFromBytesTransparentBecomesWhite(t *testing.T) {
	store := newMockObjectStore()
	thumbs, _ := newTestThumbnails(t, store, nil)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 64, 64))))

	result, err := thumbs.DeriveFromBytes(context.Background(), "users/1/files/clear.png", buf.Bytes(), core.FileTypeImage)
	require.NoError(t, err)

	thumb, _, err := image.Decode(bytes.NewReader(store.objects[result.Key]))
	require.NoError(t, err)

	for _, p := range []image.Point{{0, 0}, {32, 32}, {63, 63}} {
		r, g, b, _ := thumb.At(p.X, p.Y).RGBA()
		assert.Greater(t, r>>8, uint32(240), "red at %v", p)
		assert.Greater(t, g>>8, uint32(240), "green at %v", p)
		assert.Greater(t, b>>8, uint32(240), "blue at %v", p)
	}
}

func TestDeriveFromObjectPartialBoundsFetch(t *testing.T) {
	store := newMockObjectStore()
	store.putObjectRaw("users/1/files/clip.mp4", bytes.Repeat([]byte{0x42}, 5000))

	var seen int64
	thumbs, cfg := newTestThumbnails(t, store, func(_ context.Context, videoPath string) ([]byte, error) {
		data, err := os.ReadFile(videoPath)
		if err != nil {
			return nil, err
		}
		seen = int64(len(data))
		return testPNG(t, 640, 360), nil
	})

	result, err := thumbs.DeriveFromObjectPartial(context.Background(), "users/1/files/clip.mp4", core.FileTypeVideo)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, store.ranges, 1)
	assert.Equal(t, int64(0), store.ranges[0].start)
	assert.Equal(t, cfg.VideoPrefix-1, store.ranges[0].end)
	assert.Equal(t, cfg.VideoPrefix, seen)
	assert.Equal(t, "users/1/files/clip_thumb.jpg", result.Key)
	assert.Equal(t, 400, result.Width)
	assert.Equal(t, 225, result.Height)
	assert.Empty(t, scratchEntries(t, cfg.ScratchDir))
}

func TestDeriveFromObjectPartialSkipsOtherTypes(t *testing.T) {
	store := newMockObjectStore()
	thumbs, _ := newTestThumbnails(t, store, func(context.Context, string) ([]byte, error) {
		t.Fatal("extractor must not run")
		return nil, nil
	})

	result, err := thumbs.DeriveFromObjectPartial(context.Background(), "users/1/files/a.png", core.FileTypeImage)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Empty(t, store.ranges)
}

func TestDeriveFromObjectPartialFailures(t *testing.T) {
	extractErr := errors.New("ffmpeg: invalid data found")

	tests := []struct {
		name    string
		setup   func(store *mockObjectStore)
		extract FrameExtractor
		wantErr error
	}{
		{
			name:    "missing object",
			setup:   func(*mockObjectStore) {},
			wantErr: core.ErrNoSuchKey,
		},
		{
			name: "empty object",
			setup: func(store *mockObjectStore) {
				store.putObjectRaw("users/1/files/clip.mp4", nil)
			},
			wantErr: ErrEmptyVideoRange,
		},
		{
			name: "extractor failure",
			setup: func(store *mockObjectStore) {
				store.putObjectRaw("users/1/files/clip.mp4", []byte("video"))
			},
			extract: func(context.Context, string) ([]byte, error) {
				return nil, extractErr
			},
			wantErr: extractErr,
		},
		{
			name: "undecodable frame",
			setup: func(store *mockObjectStore) {
				store.putObjectRaw("users/1/files/clip.mp4", []byte("video"))
			},
			extract: func(context.Context, string) ([]byte, error) {
				return []byte("garbage"), nil
			},
			wantErr: ErrNotAnImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockObjectStore()
			tt.setup(store)

			extract := tt.extract
			if extract == nil {
				extract = func(context.Context, string) ([]byte, error) {
					return testPNG(t, 8, 8), nil
				}
			}
			thumbs, cfg := newTestThumbnails(t, store, extract)

			result, err := thumbs.DeriveFromObjectPartial(context.Background(), "users/1/files/clip.mp4", core.FileTypeVideo)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
			assert.Empty(t, scratchEntries(t, cfg.ScratchDir))
			assert.False(t, store.hasObject("users/1/files/clip_thumb.jpg"))
		})
	}
}

func TestDeriveFromObjectPartialExtractTimeout(t *testing.T) {
	store := newMockObjectStore()
	store.putObjectRaw("users/1/files/clip.mp4", []byte("video"))

	thumbs, cfg := newTestThumbnails(t, store, func(ctx context.Context, _ string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	thumbs.cfg.ExtractTimeout = 20 * time.Millisecond

	_, err := thumbs.DeriveFromObjectPartial(context.Background(), "users/1/files/clip.mp4", core.FileTypeVideo)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, scratchEntries(t, cfg.ScratchDir))
}

func TestFFmpegExtractorMissingBinary(t *testing.T) {
	extract := ffmpegFrameExtractor(config.ThumbnailConfig{FFmpegPath: "/nonexistent/ffmpeg", FrameOffset: "1"})

	_, err := extract(context.Background(), "/tmp/does-not-matter.mp4")
	assert.Error(t, err)
}
