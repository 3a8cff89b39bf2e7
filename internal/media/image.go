// Package media loads and presents story content in the terminal: decoded
// image previews, video metadata, a headless player and custom components.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyreel/internal/playback"

	"github.com/cenkalti/backoff/v4"
	clog "github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const maxImageBytes = 32 << 20

var errImageTooLarge = errors.New("image exceeds size limit")

type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      1.5,
	}
}

type ImageLoaderOptions struct {
	Client        *http.Client
	Cache         *SQLiteCache
	Logger        *clog.Logger
	BaseDir       string
	PreviewWidth  int
	PreviewHeight int
	MemoryEntries int
	MaxBytes      int64
	Retry         RetryConfig
}

// Decoded is a loaded image reduced to what the terminal can show.
type Decoded struct {
	Source  string
	Format  string
	Width   int
	Height  int
	Size    int
	Preview *image.RGBA
	Palette playback.Palette
}

type ImageLoader struct {
	client  *http.Client
	cache   *SQLiteCache
	log     *clog.Logger
	baseDir string
	pw, ph  int
	retry   RetryConfig
	maxSize int64
	memory  *lru.Cache[string, *Decoded]
}

func NewImageLoader(opts ImageLoaderOptions) *ImageLoader {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = clog.New(io.Discard)
	}
	if opts.PreviewWidth <= 0 {
		opts.PreviewWidth = 48
	}
	if opts.PreviewHeight <= 0 {
		opts.PreviewHeight = 48
	}
	if opts.MemoryEntries <= 0 {
		opts.MemoryEntries = 32
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = maxImageBytes
	}
	if opts.Retry.MaxInterval <= 0 {
		opts.Retry = DefaultRetryConfig()
	}
	memory, _ := lru.New[string, *Decoded](opts.MemoryEntries)
	return &ImageLoader{
		client:  opts.Client,
		cache:   opts.Cache,
		log:     opts.Logger,
		baseDir: opts.BaseDir,
		pw:      opts.PreviewWidth,
		ph:      opts.PreviewHeight,
		retry:   opts.Retry,
		maxSize: opts.MaxBytes,
		memory:  memory,
	}
}

// Cached returns the decoded image for src if it is held in memory.
func (l *ImageLoader) Cached(src string) (*Decoded, bool) {
	return l.memory.Get(src)
}

func (l *ImageLoader) Preview(src string) (*image.RGBA, bool) {
	d, ok := l.Cached(src)
	if !ok {
		return nil, false
	}
	return d.Preview, true
}

// IsCached reports whether src can be shown without network access.
func (l *ImageLoader) IsCached(src string) bool {
	if _, ok := l.Cached(src); ok {
		return true
	}
	if l.cache == nil || !isRemote(src) {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	ok, err := l.cache.Has(ctx, src)
	return err == nil && ok
}

func (l *ImageLoader) Load(ctx context.Context, src string) (*Decoded, error) {
	if d, ok := l.Cached(src); ok {
		return d, nil
	}
	raw, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}
	d, err := Decode(src, raw, l.pw, l.ph)
	if err != nil {
		return nil, err
	}
	l.remember(d)
	l.log.Debug("media.image_loaded", "source", src, "format", d.Format, "width", d.Width, "height", d.Height)
	return d, nil
}

func (l *ImageLoader) remember(d *Decoded) {
	l.memory.Add(d.Source, d)
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func (l *ImageLoader) read(ctx context.Context, src string) ([]byte, error) {
	if isRemote(src) {
		return l.fetch(ctx, src)
	}
	path := strings.TrimPrefix(src, "file://")
	if !filepath.IsAbs(path) && l.baseDir != "" {
		path = filepath.Join(l.baseDir, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", src, err)
	}
	return b, nil
}

func (l *ImageLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	if l.cache != nil {
		if body, ok, err := l.cache.Get(ctx, url); err != nil {
			l.log.Warn("media.cache_read_failed", "url", url, "err", err)
		} else if ok {
			return body, nil
		}
	}

	var (
		body        []byte
		contentType string
	)
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch %s: %s", url, resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("fetch %s: %s", url, resp.Status))
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, l.maxSize+1))
		if err != nil {
			return err
		}
		if int64(len(body)) > l.maxSize {
			body = nil
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", url, errImageTooLarge))
		}
		contentType = resp.Header.Get("Content-Type")
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.retry.InitialInterval
	bo.MaxInterval = l.retry.MaxInterval
	bo.Multiplier = l.retry.Multiplier
	bo.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, l.retry.MaxRetries), ctx)
	notify := func(err error, next time.Duration) {
		l.log.Warn("media.fetch_retry", "url", url, "err", err, "next_attempt_in", next.Round(time.Millisecond).String())
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Put(ctx, url, contentType, body); err != nil {
			l.log.Warn("media.cache_write_failed", "url", url, "err", err)
		}
	}
	return body, nil
}

// Decode turns raw image bytes into a preview no larger than pw x ph pixels
// plus the average colour of its top and bottom halves.
func Decode(src string, raw []byte, pw, ph int) (*Decoded, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", src, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("decode image %s: empty image", src)
	}
	w, h := fitWithin(b.Dx(), b.Dy(), pw, ph)
	preview := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(preview, preview.Bounds(), img, b, draw.Src, nil)

	mid := (h + 1) / 2
	return &Decoded{
		Source:  src,
		Format:  format,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Size:    len(raw),
		Preview: preview,
		Palette: playback.Palette{
			Top:    averageColor(preview, image.Rect(0, 0, w, mid)),
			Bottom: averageColor(preview, image.Rect(0, h-mid, w, h)),
		},
	}, nil
}

func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}

func averageColor(img *image.RGBA, r image.Rectangle) colorful.Color {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return colorful.Color{}
	}
	var sr, sg, sb, n float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			sr += float64(c.R)
			sg += float64(c.G)
			sb += float64(c.B)
			n++
		}
	}
	return colorful.Color{R: sr / n / 255, G: sg / n / 255, B: sb / n / 255}
}
