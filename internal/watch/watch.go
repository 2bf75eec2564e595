// Package watch is the video transition controller of the watch page. A
// navigation starts the player immediately and stages the video's metadata,
// vote, follow state and related items in a pending bundle; the bundle is
// committed to the visible state only when the player reports that this very
// video is ready to play.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"hls-watch/internal/catalog"
	"hls-watch/internal/player"
	"hls-watch/internal/platform/logger"
	"hls-watch/internal/platform/metrics"
)

const (
	DefaultRelatedPageSize   = 12
	DefaultCountdownDuration = 5 * time.Second
)

var (
	ErrClosed        = errors.New("watch controller closed")
	ErrEmptyIdentity = errors.New("empty video identity")
	// ErrNothingCommitted is returned by page actions before any video is
	// visible.
	ErrNothingCommitted = errors.New("no video committed")
	ErrNoCreator        = errors.New("video has no creator")
)

// Player is the part of the stream session controller the page drives.
type Player interface {
	Load(ctx context.Context, src player.PlaybackSource) error
	State() player.State
	Subscribe(fn func(player.State)) func()
	OnReady(fn func(identity string)) func()
	Retry(ctx context.Context) error
	Pause() error
}

// Countdown is the autoplay widget as seen by the page.
type Countdown interface {
	Show(target string, d time.Duration)
	SetHostPlaying(playing bool)
	Hide()
}

// Config holds the collaborators of a Controller. Catalog should be the same
// catalog.Coalescing the player resolves identities through, so both lookups
// of one navigation share a request.
type Config struct {
	Player  Player
	Catalog catalog.Client
	// Countdown is optional; without it the page never autoplays.
	Countdown         Countdown
	CountdownDuration time.Duration
	// Snapshots is optional.
	Snapshots       SnapshotStore
	RelatedPageSize int
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// Controller is the video transition controller. It is safe for concurrent
// use.
type Controller struct {
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsubs []func()

	// loadMu orders player loads; loads of superseded navigations are
	// skipped while waiting for it.
	loadMu sync.Mutex

	mu sync.Mutex
	// gen is bumped on every navigation; async results carry the value they
	// started with and are dropped when it moved on.
	gen uint64
	// loadCtx is cancelled when the navigation it belongs to is superseded.
	loadCtx    context.Context
	loadCancel context.CancelFunc
	requested  string
	fetching   bool
	readyFor   string
	pending    *PendingBundle
	visible    Visible
	phase      Phase
	err        error
	closed     bool

	// autoplay bookkeeping, see autoplay.go
	shownFor   string
	dismissed  bool
	hostActive bool

	nextID    int
	listeners map[int]func(State)
}

// New builds a Controller and subscribes it to the player. When a snapshot
// was saved earlier it becomes the initial visible state.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.RelatedPageSize <= 0 {
		cfg.RelatedPageSize = DefaultRelatedPageSize
	}
	if cfg.CountdownDuration <= 0 {
		cfg.CountdownDuration = DefaultCountdownDuration
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:        cfg,
		log:        cfg.Logger.With(slog.String("component", "watch")),
		metrics:    cfg.Metrics,
		ctx:        ctx,
		cancel:     cancel,
		phase:      PhaseIdle,
		hostActive: true,
		listeners:  make(map[int]func(State)),
	}
	if cfg.Snapshots != nil {
		v, ok, err := cfg.Snapshots.Load()
		switch {
		case err != nil:
			c.log.Warn("could not read last session snapshot", slog.String("error", err.Error()))
		case ok:
			c.visible = v
			c.phase = PhaseCommitted
		}
	}
	c.unsubs = append(c.unsubs,
		cfg.Player.OnReady(c.onReady),
		cfg.Player.Subscribe(c.onPlayerState),
	)
	return c
}

// Close stops delivering results and waits for background work. It is
// idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	c.cancel()
	for _, u := range unsubs {
		u()
	}
	c.wg.Wait()
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Subscribe registers fn for every state change.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Navigate switches the page to identity. It returns once the transition
// has started; progress is reported through State and Subscribe.
//
// Navigating to the committed identity while nothing else is requested or
// in flight is a no-op. Any other call starts a fresh transition and
// supersedes the previous one.
func (c *Controller) Navigate(ctx context.Context, identity string) error {
	return c.navigate(ctx, identity, false)
}

func (c *Controller) navigate(ctx context.Context, identity string, force bool) error {
	if identity == "" {
		return ErrEmptyIdentity
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !force && identity == c.visible.VideoID && identity == c.requested && !c.fetching && c.pending == nil {
		c.mu.Unlock()
		c.log.Debug("navigation suppressed", slog.String("video", identity))
		return nil
	}

	c.gen++
	gen := c.gen
	if c.loadCancel != nil {
		c.loadCancel()
	}
	loadCtx, loadCancel := context.WithCancel(c.ctx)
	c.loadCtx, c.loadCancel = loadCtx, loadCancel
	c.requested = identity
	c.fetching = true
	c.readyFor = ""
	c.err = nil
	c.pending = &PendingBundle{VideoID: identity}
	c.phase = PhaseFetchingMetadata
	c.shownFor = ""
	c.dismissed = false
	token := uuid.NewString()
	log := c.log.With(slog.String("video", identity), slog.String("request", token))

	c.goLocked(func() { c.load(loadCtx, gen, identity, log) })
	c.goLocked(func() { c.fetchMetadata(gen, identity, log) })
	c.goLocked(func() { c.fetchRelated(gen, identity, log) })
	fns := c.listenersLocked()
	st := c.stateLocked()
	c.mu.Unlock()

	if c.cfg.Countdown != nil {
		c.cfg.Countdown.Hide()
	}
	c.metrics.IncNavigations()
	log.Info("navigation started")
	deliver(fns, st)
	return nil
}

// load hands the source to the player right away so decoding does not wait
// for metadata. Loads run one at a time in navigation order: a navigation
// that was superseded or has already failed by the time its turn comes
// leaves the player alone.
func (c *Controller) load(ctx context.Context, gen uint64, identity string, log *slog.Logger) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if !c.current(gen) {
		c.stale(gen, "load")
		return
	}
	err := c.cfg.Player.Load(ctx, player.PlaybackSource{Identity: identity})
	switch {
	case err == nil:
	case errors.Is(err, player.ErrSuperseded) || ctx.Err() != nil:
		c.stale(gen, "load")
	default:
		c.fail(gen, err, log)
	}
}

// current reports whether navigation gen is the latest and still running.
func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen && c.phase != PhaseNotFound
}

// fetchMetadata resolves the video, then the creator profile. A failure of
// the primary lookup ends the navigation like a resolution failure.
func (c *Controller) fetchMetadata(gen uint64, identity string, log *slog.Logger) {
	res, err := c.cfg.Catalog.ResolveVideo(c.ctx, identity)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.fail(gen, err, log)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.stale(gen, "metadata")
		return
	}
	if c.pending == nil || c.pending.VideoID != identity {
		// The navigation already failed.
		c.mu.Unlock()
		return
	}
	username := res.Video.CreatorUsername
	p := c.pending
	p.Video = res.Video
	p.Video.ID = identity
	p.Vote = res.Vote
	p.Following = res.Following
	p.Creator = catalog.FallbackProfile(username)
	p.MetadataLoaded = true
	c.fetching = false
	c.phase = PhaseAwaitingPlayerReady
	committed := c.commitLocked(log)
	fns := c.listenersLocked()
	st := c.stateLocked()
	c.mu.Unlock()
	deliver(fns, st)
	if committed {
		c.autoplayCheck()
	}

	if username == "" {
		return
	}
	profile := catalog.ProfileOrFallback(c.ctx, c.cfg.Catalog, username)
	if profile.Fallback {
		log.Debug("creator profile unavailable", slog.String("creator", username))
	}

	c.mu.Lock()
	switch {
	case gen != c.gen:
		c.mu.Unlock()
		c.stale(gen, "profile")
		return
	case c.pending != nil && c.pending.VideoID == identity:
		c.pending.Creator = profile
	case c.visible.VideoID == identity:
		c.visible.Creator = profile
		c.saveLocked(log)
	default:
		c.mu.Unlock()
		return
	}
	fns = c.listenersLocked()
	st = c.stateLocked()
	c.mu.Unlock()
	deliver(fns, st)
}

// fetchRelated is best effort: a failure yields an empty list. Items that
// arrive after the commit go straight to the visible state.
func (c *Controller) fetchRelated(gen uint64, identity string, log *slog.Logger) {
	items, err := c.cfg.Catalog.ListRelated(c.ctx, identity, c.cfg.RelatedPageSize)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		log.Warn("related items unavailable", slog.String("error", err.Error()))
		items = nil
	}

	c.mu.Lock()
	switch {
	case gen != c.gen:
		c.mu.Unlock()
		c.stale(gen, "related")
		return
	case c.pending != nil && c.pending.VideoID == identity:
		c.pending.Related = items
		c.pending.RelatedLoaded = true
	case c.visible.VideoID == identity:
		c.visible.Related = items
		c.visible.RelatedLoaded = true
		c.saveLocked(log)
	default:
		c.mu.Unlock()
		return
	}
	fns := c.listenersLocked()
	st := c.stateLocked()
	c.mu.Unlock()
	deliver(fns, st)
	c.autoplayCheck()
}

// onReady commits the pending bundle when the ready media is the requested
// video. Readiness for any other identity is ignored.
func (c *Controller) onReady(identity string) {
	c.mu.Lock()
	if c.closed || c.pending == nil || identity != c.pending.VideoID {
		c.mu.Unlock()
		return
	}
	c.readyFor = identity
	committed := c.commitLocked(c.log.With(slog.String("video", identity)))
	if !committed {
		c.mu.Unlock()
		return
	}
	fns := c.listenersLocked()
	st := c.stateLocked()
	c.mu.Unlock()
	deliver(fns, st)
	c.autoplayCheck()
}

// commitLocked merges the pending bundle into the visible state when both
// its metadata and the player's readiness for it are in.
func (c *Controller) commitLocked(log *slog.Logger) bool {
	p := c.pending
	if p == nil || !p.MetadataLoaded || c.readyFor != p.VideoID {
		return false
	}
	c.visible = Visible{
		VideoID:       p.VideoID,
		Video:         p.Video,
		Creator:       p.Creator,
		Following:     p.Following,
		Vote:          p.Vote,
		Related:       p.Related,
		RelatedLoaded: p.RelatedLoaded,
	}
	c.pending = nil
	c.phase = PhaseCommitted
	c.saveLocked(log)
	c.metrics.IncCommits()
	log.Info("video committed")
	return true
}

// fail ends the navigation gen with a terminal not-found state. The visible
// state of the previously committed video is kept.
func (c *Controller) fail(gen uint64, err error, log *slog.Logger) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.stale(gen, "failure")
		return
	}
	if c.phase == PhaseNotFound {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.fetching = false
	c.readyFor = ""
	c.phase = PhaseNotFound
	c.err = err
	ctx := c.loadCtx
	c.goLocked(func() { c.restore(ctx, gen, log) })
	fns := c.listenersLocked()
	st := c.stateLocked()
	c.mu.Unlock()

	if errors.Is(err, catalog.ErrNotFound) {
		log.Info("video not found")
	} else {
		log.Warn("navigation failed", slog.String("error", err.Error()))
	}
	deliver(fns, st)
}

// restore puts the player back on the visible video after navigation gen
// failed. The player may already have switched to the failed video when only
// its metadata lookup failed; the visible video then restarts from the
// beginning. With nothing visible the failed video is paused instead.
func (c *Controller) restore(ctx context.Context, gen uint64, log *slog.Logger) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	visible, failed := c.visible.VideoID, c.requested
	c.mu.Unlock()

	st := c.cfg.Player.State()
	switch {
	case visible == "":
		if st.SourceID == failed && st.IsPlaying {
			if err := c.cfg.Player.Pause(); err != nil {
				log.Debug("could not pause failed video", slog.String("error", err.Error()))
			}
		}
	case st.SourceID != visible:
		log.Info("restoring visible video", slog.String("visible", visible))
		err := c.cfg.Player.Load(ctx, player.PlaybackSource{Identity: visible})
		if err != nil && !errors.Is(err, player.ErrSuperseded) && ctx.Err() == nil {
			log.Warn("could not restore visible video", slog.String("error", err.Error()))
		}
	}
}

// Retry re-runs a navigation that ended in not-found. Otherwise it asks the
// player to reload after a playback error.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	failed := ""
	if c.phase == PhaseNotFound {
		failed = c.requested
	}
	c.mu.Unlock()

	if failed != "" {
		return c.navigate(ctx, failed, true)
	}
	return c.cfg.Player.Retry(ctx)
}

func (c *Controller) stale(gen uint64, what string) {
	c.metrics.IncStaleDiscarded()
	c.log.Debug("stale result discarded", slog.String("result", what), slog.Uint64("generation", gen))
}

// saveLocked writes the visible state to the snapshot store.
func (c *Controller) saveLocked(log *slog.Logger) {
	if c.cfg.Snapshots == nil {
		return
	}
	if err := c.cfg.Snapshots.Save(c.visible.clone()); err != nil {
		log.Warn("could not save session snapshot", slog.String("error", err.Error()))
	}
}

// ResetSession clears the visible state and the saved snapshot. A pending
// navigation is abandoned.
func (c *Controller) ResetSession() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.gen++
	if c.loadCancel != nil {
		c.loadCancel()
	}
	c.requested = ""
	c.fetching = false
	c.readyFor = ""
	c.pending = nil
	c.visible = Visible{}
	c.phase = PhaseIdle
	c.err = nil
	c.shownFor = ""
	var err error
	if c.cfg.Snapshots != nil {
		err = c.cfg.Snapshots.Clear()
	}
	fns := c.listenersLocked()
	st := c.stateLocked()
	c.mu.Unlock()

	if c.cfg.Countdown != nil {
		c.cfg.Countdown.Hide()
	}
	deliver(fns, st)
	return err
}

func (c *Controller) stateLocked() State {
	st := State{
		Phase:     c.phase,
		Requested: c.requested,
		Visible:   c.visible.clone(),
		Err:       c.err,
	}
	if c.pending != nil {
		p := *c.pending
		p.Related = append([]catalog.RelatedItem(nil), p.Related...)
		st.Pending = &p
	}
	return st
}

func (c *Controller) listenersLocked() []func(State) {
	fns := make([]func(State), 0, len(c.listeners))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

func deliver(fns []func(State), st State) {
	for _, fn := range fns {
		fn(st)
	}
}

// goLocked runs fn in a goroutine that Close waits for. Caller must hold c.mu.
func (c *Controller) goLocked(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}
