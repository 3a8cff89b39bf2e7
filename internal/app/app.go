package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"storyreel/internal/devtools"
	"storyreel/internal/media"
	"storyreel/internal/navigation"
	"storyreel/internal/playback"
	"storyreel/internal/stories"
	"storyreel/internal/telemetry"
	"storyreel/internal/timers"
	"storyreel/internal/ui"

	"github.com/google/uuid"
)

type App struct {
	cfg    Config
	source Source

	logger  *telemetry.Logger
	cache   Cache
	images  *media.ImageLoader
	player  *media.HeadlessPlayer
	preload *media.Preloader
	timers  *timers.Registry
	machine *playback.Machine
	view    *ui.Root
	demo    *devtools.Manager

	sessionID string
	doc       stories.Document
	unsub     []func()
	closed    atomic.Bool

	devMu     sync.Mutex
	devServer *http.Server
	devState  struct {
		Demo      string
		RenderSeq int
		Error     string
	}
}

// New builds the viewer for src. Nothing runs until Run.
func New(cfg Config, src Source) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	logger, err := telemetry.New(telemetry.Options{Path: cfg.LogPath, Format: cfg.LogFormat, Debug: cfg.Debug})
	if err != nil {
		return nil, err
	}

	cache, err := media.NewSQLiteCache(filepath.Join(cfg.DataDir, "cache.db"))
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	if err := cache.EnsureSchema(context.Background()); err != nil {
		_ = cache.Close()
		_ = logger.Close()
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		source:    src,
		logger:    logger,
		cache:     cache,
		demo:      devtools.NewManager(filepath.Join(cfg.DataDir, "demo")),
		sessionID: uuid.NewString(),
	}

	doc, err := a.loadDocument(src)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.doc = doc

	retry := media.DefaultRetryConfig()
	retry.MaxRetries = cfg.Media.FetchRetries
	a.images = media.NewImageLoader(media.ImageLoaderOptions{
		Cache:   cache,
		Logger:  logger.Logger,
		BaseDir: src.baseDir(),
		Retry:   retry,
	})
	a.player = media.NewHeadlessPlayer(logger.Logger, cfg.Media.AllowUnmutedAutoplay)
	a.preload = media.NewPreloader(a.images, logger.Logger)

	a.view = ui.New(ui.Options{
		Theme:       cfg.UI.StyleVariant,
		Title:       doc.Title,
		MotionLevel: cfg.UI.MotionLevel,
		CellWidth:   cfg.UI.CellWidth,
		CellHeight:  cfg.UI.CellHeight,
		Previews:    a.images,
		Video:       videoStatus{a.player},
		Logger:      logger.Logger,
	})
	a.timers = timers.NewRegistry(a.dispatch)
	a.machine = playback.New(playback.Deps{
		Scheduler: a.timers,
		Loader:    media.NewLoader(a.images, &media.FFProbe{Path: cfg.Media.FFProbePath}, a.dispatch, logger.Logger),
		Slot:      a.view,
		Player:    a.player,
		Logger:    logger.Logger,
	})
	a.view.Attach(a.machine, a.timers)
	a.view.OnStart(a.onViewStart)
	a.subscribe()

	if err := a.machine.Initialize(doc.Collection, doc.Options); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) loadDocument(src Source) (stories.Document, error) {
	if src.IsDemo() {
		return a.demo.Build(src.Demo, media.Registry())
	}
	return stories.LoadFile(src.Path, media.Registry())
}

// dispatch hands fn to the event loop and drops it once the app is closed.
func (a *App) dispatch(fn func()) {
	if a.closed.Load() {
		return
	}
	a.view.Dispatch(fn)
}

func (a *App) subscribe() {
	ev := a.machine.Events()
	a.unsub = append(a.unsub,
		ev.OnExit(func() {
			a.logger.Info("app.exit", "session", a.sessionID)
			a.view.RequestQuit()
		}),
		ev.OnEnd(func() {
			a.logger.Info("app.end", "session", a.sessionID)
			if a.cfg.ExitOnEnd {
				a.view.RequestQuit()
			}
		}),
		ev.OnSwipeUp(func() {
			item, _ := a.machine.Current()
			a.logger.Info("app.swipe_up", "item", item.ID)
			a.view.SetStatus("swiped up on " + string(item.Kind()) + " story")
		}),
		ev.OnGroupChange(func(group int) {
			a.logger.Debug("app.group_change", "group", group)
		}),
		ev.OnStoryChange(a.onStoryChange),
	)
}

func (a *App) onStoryChange(sc playback.StoryChange) {
	a.logger.Info("app.story_change", "group", sc.GroupName, "group_index", sc.GroupIndex, "item", sc.Item.ID, "item_index", sc.ItemIndex, "kind", sc.Item.Kind())
	a.bumpRenderSeq()
	if a.cfg.Media.Preload <= 0 {
		return
	}
	pos := navigation.Position{Group: sc.GroupIndex, Item: sc.ItemIndex}
	if srcs := media.Upcoming(a.machine.Collection(), pos, a.cfg.Media.Preload); len(srcs) > 0 {
		a.preload.Warm(context.Background(), srcs)
	}
}

// onViewStart runs on the event loop. The dev endpoints dispatch onto the
// loop, so they only start listening once it is running.
func (a *App) onViewStart() {
	if !a.cfg.Dev {
		return
	}
	a.startDevHTTP()
	if err := a.demo.SetState(context.Background(), a.source.String(), true); err != nil {
		a.logger.Error("dev_state.write_failed", "err", err)
	}
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("app.start",
		"session", a.sessionID,
		"source", a.source.String(),
		"groups", a.doc.Collection.Len(),
		"items", a.doc.Collection.ItemCount(),
	)
	a.logCacheStats(ctx)

	err := a.view.Run(ctx)
	if err != nil {
		a.logger.Error("app.run_failed", "err", err)
	}
	return err
}

func (a *App) logCacheStats(ctx context.Context) {
	if a.cfg.Media.CacheMaxBytes > 0 {
		n, err := a.cache.Prune(ctx, a.cfg.Media.CacheMaxBytes)
		if err != nil {
			a.logger.Warn("media.cache_prune_failed", "err", err)
		} else if n > 0 {
			a.logger.Info("media.cache_pruned", "entries", n)
		}
	}
	stats, err := a.cache.Stats(ctx)
	if err != nil {
		a.logger.Warn("media.cache_stats_failed", "err", err)
		return
	}
	a.logger.Info("media.cache", "stats", stats.String())
}

func (a *App) Close() {
	if a.closed.Swap(true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.devMu.Lock()
	srv := a.devServer
	a.devMu.Unlock()
	if srv != nil {
		_ = srv.Shutdown(ctx)
	}
	for _, fn := range a.unsub {
		fn()
	}
	if a.preload != nil {
		a.preload.Stop()
	}
	if a.timers != nil {
		a.timers.Close()
	}
	if a.machine != nil {
		a.machine.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	a.logger.Info("app.close", "session", a.sessionID)
	_ = a.logger.Close()
}

// Validate loads a collection file without starting a viewer.
func Validate(path string) (stories.Document, error) {
	doc, err := stories.LoadFile(path, media.Registry())
	if err != nil {
		return stories.Document{}, err
	}
	if err := stories.DefaultOptions().Merge(doc.Options).CheckStart(doc.Collection); err != nil {
		return stories.Document{}, fmt.Errorf("load collection %s: %w", path, err)
	}
	return doc, nil
}

type videoStatus struct {
	p *media.HeadlessPlayer
}

func (v videoStatus) VideoStatus() ui.VideoStatus {
	s := v.p.Status()
	return ui.VideoStatus{Source: s.Source, Playing: s.Playing, Muted: s.Muted}
}
