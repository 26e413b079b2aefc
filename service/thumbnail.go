package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path"
	"strings"

	// decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/docker/go-units"
	"github.com/gabriel-vasile/mimetype"
	"go.notebook.dev/notebook/config"
	"go.notebook.dev/notebook/core"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var _ core.ThumbnailService = (*ThumbnailServiceDefault)(nil)

var (
	ErrNotAnImage      = errors.New("content is not a decodable image")
	ErrEmptyVideoRange = errors.New("video prefix is empty")
)

func init() {
	core.RegisterService(core.ServiceInfo{
		ID: core.THUMBNAIL_SERVICE,
		Factory: func() (core.Service, []core.ContextBuilderOption, error) {
			return NewThumbnailService()
		},
		Depends: []string{core.STORAGE_SERVICE},
	})
}

// FrameExtractor writes one still frame of the video at videoPath as an encoded image.
type FrameExtractor func(ctx context.Context, videoPath string) ([]byte, error)

type ThumbnailServiceDefault struct {
	cfg     config.ThumbnailConfig
	store   core.ObjectStore
	logger  *core.Logger
	extract FrameExtractor
}

func NewThumbnailService() (*ThumbnailServiceDefault, []core.ContextBuilderOption, error) {
	thumbs := &ThumbnailServiceDefault{}

	opts := core.ContextOptions(
		core.ContextWithStartupFunc(func(ctx core.Context) error {
			thumbs.cfg = ctx.Config().Config().Core.Thumbnail
			thumbs.store = core.GetService[core.StorageService](ctx, core.STORAGE_SERVICE)
			thumbs.logger = ctx.Logger()
			thumbs.extract = ffmpegFrameExtractor(thumbs.cfg)
			return nil
		}),
	)

	return thumbs, opts, nil
}

func newThumbnailService(cfg config.ThumbnailConfig, store core.ObjectStore, logger *core.Logger, extract FrameExtractor) *ThumbnailServiceDefault {
	if extract == nil {
		extract = ffmpegFrameExtractor(cfg)
	}

	return &ThumbnailServiceDefault{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		extract: extract,
	}
}

func (t *ThumbnailServiceDefault) DeriveFromBytes(ctx context.Context, objectKey string, raw []byte, fileType core.FileType) (*core.ThumbnailResult, error) {
	if fileType != core.FileTypeImage {
		return nil, nil
	}

	if !strings.HasPrefix(mimetype.Detect(raw).String(), "image/") {
		return nil, ErrNotAnImage
	}

	return t.encodeAndStore(ctx, objectKey, raw)
}

func (t *ThumbnailServiceDefault) DeriveFromObjectPartial(ctx context.Context, objectKey string, fileType core.FileType) (*core.ThumbnailResult, error) {
	if fileType != core.FileTypeVideo {
		return nil, nil
	}

	scratch, err := t.fetchPrefix(ctx, objectKey)
	if scratch != "" {
		defer func() {
			if rmErr := os.Remove(scratch); rmErr != nil && !os.IsNotExist(rmErr) {
				t.logger.Warn("failed to remove thumbnail scratch file", zap.String("path", scratch), zap.Error(rmErr))
			}
		}()
	}
	if err != nil {
		return nil, err
	}

	extractCtx, cancel := context.WithTimeout(ctx, t.cfg.ExtractTimeout)
	defer cancel()

	frame, err := t.extract(extractCtx, scratch)
	if err != nil {
		return nil, err
	}

	return t.encodeAndStore(ctx, objectKey, frame)
}

// fetchPrefix copies at most VideoPrefix bytes from the start of the object into
// a scratch file. The returned path must be removed by the caller, also on error.
func (t *ThumbnailServiceDefault) fetchPrefix(ctx context.Context, objectKey string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, t.cfg.FetchTimeout)
	defer cancel()

	body, err := t.store.GetObjectRange(fetchCtx, objectKey, 0, t.cfg.VideoPrefix-1)
	if err != nil {
		return "", fmt.Errorf("fetch video prefix: %w", err)
	}
	defer body.Close()

	scratch, err := os.CreateTemp(t.cfg.ScratchDir, "notebook-thumb-*"+path.Ext(objectKey))
	if err != nil {
		return "", err
	}

	n, copyErr := io.Copy(scratch, io.LimitReader(body, t.cfg.VideoPrefix))
	closeErr := scratch.Close()

	switch {
	case copyErr != nil:
		return scratch.Name(), fmt.Errorf("fetch video prefix: %w", copyErr)
	case closeErr != nil:
		return scratch.Name(), closeErr
	case n == 0:
		return scratch.Name(), ErrEmptyVideoRange
	}

	t.logger.Debug("fetched video prefix", zap.String("key", objectKey), zap.String("size", units.HumanSize(float64(n))))

	return scratch.Name(), nil
}

func (t *ThumbnailServiceDefault) encodeAndStore(ctx context.Context, objectKey string, raw []byte) (*core.ThumbnailResult, error) {
	thumb, width, height, err := makeThumb(raw, t.cfg.MaxDimension, t.cfg.MaxPixels, t.cfg.Quality)
	if err != nil {
		return nil, err
	}

	key := ThumbnailKey(objectKey)
	if err := t.store.PutObject(ctx, key, "image/jpeg", bytes.NewReader(thumb), int64(len(thumb))); err != nil {
		return nil, fmt.Errorf("store thumbnail: %w", err)
	}

	return &core.ThumbnailResult{
		Key:    key,
		Width:  width,
		Height: height,
		Size:   int64(len(thumb)),
	}, nil
}

// ThumbnailKey places the thumbnail next to its object: a/b/clip.mp4 becomes a/b/clip_thumb.jpg.
func ThumbnailKey(objectKey string) string {
	dir, file := path.Split(objectKey)
	stem := strings.TrimSuffix(file, path.Ext(file))

	return dir + stem + "_thumb.jpg"
}

// makeThumb decodes raw only after its header declares at most maxPixels pixels,
// the decoder allocates the full canvas up front.
func makeThumb(raw []byte, box int, maxPixels int64, quality int) ([]byte, int, int, error) {
	header, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %w", ErrNotAnImage, err)
	}
	if header.Width <= 0 || header.Height <= 0 {
		return nil, 0, 0, ErrNotAnImage
	}
	if pixels := int64(header.Width) * int64(header.Height); pixels > maxPixels {
		return nil, 0, 0, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrNotAnImage, header.Width, header.Height, maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %w", ErrNotAnImage, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0, ErrNotAnImage
	}

	nw, nh := fitWithin(w, h, box)

	// JPEG has no alpha, transparent areas end up white.
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, 0, 0, err
	}

	return out.Bytes(), nw, nh, nil
}

// fitWithin scales w x h down to fit a box x box square, keeping the aspect ratio. It never upscales.
func fitWithin(w, h, box int) (int, int) {
	nw, nh := w, h
	if w > h {
		if w > box {
			nw = box
			nh = int(float64(h) * (float64(box) / float64(w)))
		}
	} else if h > box {
		nh = box
		nw = int(float64(w) * (float64(box) / float64(h)))
	}

	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	return nw, nh
}

func ffmpegFrameExtractor(cfg config.ThumbnailConfig) FrameExtractor {
	return func(ctx context.Context, videoPath string) ([]byte, error) {
		offset := cfg.FrameOffset
		if offset == "" {
			offset = "1"
		}

		args := []string{
			"-hide_banner",
			"-loglevel", "error",
			"-ss", offset,
			"-i", videoPath,
			"-frames:v", "1",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		}

		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, cfg.FFmpegPath, args...) //nolint:gosec
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg extract frame: %w: %s", err, strings.TrimSpace(stderr.String()))
		}

		if stdout.Len() == 0 {
			return nil, fmt.Errorf("ffmpeg extract frame: no frame at offset %s", offset)
		}

		return stdout.Bytes(), nil
	}
}
