package media

import (
	"context"
	"io"
	"sync"

	"storyreel/internal/navigation"
	"storyreel/internal/stories"

	clog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const preloadParallelism = 2

// Upcoming returns the sources of up to n image items that follow pos in
// playback order.
func Upcoming(c *stories.Collection, pos navigation.Position, n int) []string {
	if c == nil || n <= 0 {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for p := navigation.Advance(c, pos, nil); !p.AtEnd(c) && len(out) < n; p = navigation.Advance(c, p, nil) {
		item, ok := c.Item(p.Group, p.Item)
		if !ok || item.Kind() != stories.KindImage {
			continue
		}
		src := item.Source()
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}

// Preloader warms the image cache ahead of playback. Failures are logged and
// otherwise ignored; the machine reports them when the item is reached.
type Preloader struct {
	images *ImageLoader
	log    *clog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPreloader(images *ImageLoader, log *clog.Logger) *Preloader {
	if log == nil {
		log = clog.New(io.Discard)
	}
	return &Preloader{images: images, log: log}
}

// Warm starts loading srcs in the background, replacing any earlier batch.
func (p *Preloader) Warm(ctx context.Context, srcs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	if len(srcs) == 0 {
		p.cancel, p.done = nil, nil
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	go func() {
		defer close(done)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(preloadParallelism)
		for _, src := range srcs {
			if _, ok := p.images.Cached(src); ok {
				continue
			}
			g.Go(func() error {
				if _, err := p.images.Load(gctx, src); err != nil {
					p.log.Debug("media.preload_failed", "source", src, "err", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Wait blocks until the current batch has finished.
func (p *Preloader) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Preloader) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}
