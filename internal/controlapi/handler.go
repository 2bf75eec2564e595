// Package controlapi exposes the watch agent over HTTP: page navigation,
// playback controls, autoplay and viewer actions.
package controlapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hls-watch/internal/catalog"
	"hls-watch/internal/countdown"
	"hls-watch/internal/engine"
	"hls-watch/internal/player"
	"hls-watch/internal/platform/metrics"
	"hls-watch/internal/watch"
)

// Watch is the page controller.
type Watch interface {
	State() watch.State
	Navigate(ctx context.Context, identity string) error
	Vote(ctx context.Context, dir catalog.VoteDirection) (catalog.VoteDirection, error)
	ToggleFollow(ctx context.Context) (bool, error)
	CancelAutoplay()
	ResetSession() error
	Retry(ctx context.Context) error
}

// Player is the read side of the stream session controller.
type Player interface {
	State() player.State
}

// Controls is the playback UI shell. Every playback action goes through it.
type Controls interface {
	Visible() bool
	PointerMoved()
	QualityOptions() []string
	TogglePlay() error
	Replay() error
	Seek(seconds float64) error
	SetVolume(v float64) error
	ToggleMute() error
	ToggleFullscreen() error
	SelectQuality(ctx context.Context, key string) error
}

// Countdown is the autoplay widget.
type Countdown interface {
	Snapshot() countdown.Snapshot
	PlayNow() error
}

// Handler serves the control API.
type Handler struct {
	watch     Watch
	player    Player
	controls  Controls
	countdown Countdown
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// NewHandler returns a Handler. Metrics may be nil to disable metric
// recording (e.g. in tests).
func NewHandler(w Watch, p Player, c Controls, cd Countdown, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{watch: w, player: p, controls: c, countdown: cd, log: log, metrics: m}
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/state", h.GetState)
	r.Post("/watch/{identity}", h.Navigate)
	r.Delete("/session", h.ResetSession)
	r.Route("/playback", func(r chi.Router) {
		r.Post("/toggle", h.action(h.controls.TogglePlay))
		r.Post("/replay", h.action(h.controls.Replay))
		r.Post("/mute", h.action(h.controls.ToggleMute))
		r.Post("/fullscreen", h.action(h.controls.ToggleFullscreen))
		r.Post("/retry", h.Retry)
		r.Post("/seek", h.Seek)
		r.Post("/volume", h.SetVolume)
		r.Post("/rendition/{key}", h.SelectRendition)
		r.Post("/pointer", h.PointerMoved)
	})
	r.Post("/autoplay/play-now", h.PlayNow)
	r.Post("/autoplay/cancel", h.CancelAutoplay)
	r.Post("/vote", h.Vote)
	r.Post("/follow", h.ToggleFollow)
}

type watchView struct {
	watch.State
	Error string `json:"error,omitempty"`
}

type playerView struct {
	player.State
	Error     string `json:"error,omitempty"`
	LoadError string `json:"load_error,omitempty"`
}

type controlsView struct {
	Visible        bool     `json:"visible"`
	QualityOptions []string `json:"quality_options"`
}

type stateResponse struct {
	Watch     watchView          `json:"watch"`
	Player    playerView         `json:"player"`
	Countdown countdown.Snapshot `json:"countdown"`
	Controls  controlsView       `json:"controls"`
}

// GetState handles GET /state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	ws := h.watch.State()
	ps := h.player.State()
	opts := h.controls.QualityOptions()
	if opts == nil {
		opts = []string{}
	}
	writeJSON(w, http.StatusOK, stateResponse{
		Watch:     watchView{State: ws, Error: ws.ErrorMessage()},
		Player:    playerView{State: ps, Error: ps.ErrorMessage(), LoadError: ps.LoadErrorMessage()},
		Countdown: h.countdown.Snapshot(),
		Controls:  controlsView{Visible: h.controls.Visible(), QualityOptions: opts},
	})
}

// Navigate handles POST /watch/{identity}. The transition continues after
// the response; poll /state for its outcome.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if err := h.watch.Navigate(r.Context(), identity); err != nil {
		h.fail(w, "navigate", err)
		return
	}
	st := h.watch.State()
	writeJSON(w, http.StatusAccepted, watchView{State: st, Error: st.ErrorMessage()})
}

// ResetSession handles DELETE /session.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.watch.ResetSession(); err != nil {
		h.fail(w, "reset session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// action adapts a no-argument playback operation.
func (h *Handler) action(op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(); err != nil {
			h.fail(w, r.URL.Path, err)
			return
		}
		h.writePlayer(w)
	}
}

// Retry handles POST /playback/retry. A page that failed to find its video
// navigates to it again; otherwise the player reloads its source.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	if err := h.watch.Retry(r.Context()); err != nil {
		h.fail(w, "retry", err)
		return
	}
	h.writePlayer(w)
}

// Seek handles POST /playback/seek. Body: {"time": 12.5}.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Time *float64 `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Time == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"time\": seconds}")
		return
	}
	if err := h.controls.Seek(*body.Time); err != nil {
		h.fail(w, "seek", err)
		return
	}
	h.writePlayer(w)
}

// SetVolume handles POST /playback/volume. Body: {"volume": 0.5}.
func (h *Handler) SetVolume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Volume *float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Volume == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"volume\": 0..1}")
		return
	}
	if err := h.controls.SetVolume(*body.Volume); err != nil {
		h.fail(w, "set volume", err)
		return
	}
	h.writePlayer(w)
}

// SelectRendition handles POST /playback/rendition/{key}; "auto" returns to
// adaptive playback.
func (h *Handler) SelectRendition(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.controls.SelectQuality(r.Context(), key); err != nil {
		h.fail(w, "select rendition", err)
		return
	}
	h.writePlayer(w)
}

// PointerMoved handles POST /playback/pointer.
func (h *Handler) PointerMoved(w http.ResponseWriter, r *http.Request) {
	h.controls.PointerMoved()
	writeJSON(w, http.StatusOK, controlsView{Visible: h.controls.Visible(), QualityOptions: h.controls.QualityOptions()})
}

// PlayNow handles POST /autoplay/play-now.
func (h *Handler) PlayNow(w http.ResponseWriter, r *http.Request) {
	if err := h.countdown.PlayNow(); err != nil {
		h.fail(w, "play now", err)
		return
	}
	writeJSON(w, http.StatusOK, h.countdown.Snapshot())
}

// CancelAutoplay handles POST /autoplay/cancel.
func (h *Handler) CancelAutoplay(w http.ResponseWriter, r *http.Request) {
	h.watch.CancelAutoplay()
	writeJSON(w, http.StatusOK, h.countdown.Snapshot())
}

// Vote handles POST /vote. Body: {"direction": "up" | "down" | "none"}.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	dir, ok := catalog.ParseVote(body.Direction)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown vote direction")
		return
	}
	got, err := h.watch.Vote(r.Context(), dir)
	if err != nil {
		h.fail(w, "vote", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]catalog.VoteDirection{"vote": got})
}

// ToggleFollow handles POST /follow.
func (h *Handler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	following, err := h.watch.ToggleFollow(r.Context())
	if err != nil {
		h.fail(w, "follow", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"following": following})
}

func (h *Handler) writePlayer(w http.ResponseWriter) {
	ps := h.player.State()
	writeJSON(w, http.StatusOK, playerView{State: ps, Error: ps.ErrorMessage()})
}

// fail maps err to a status code and writes it as a JSON error body.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("control request failed", slog.String("op", op), slog.String("error", err.Error()))
	} else {
		h.log.Debug("control request rejected", slog.String("op", op), slog.String("error", err.Error()))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, watch.ErrEmptyIdentity),
		errors.Is(err, player.ErrInvalidIdentity):
		return http.StatusBadRequest
	case errors.Is(err, player.ErrUnknownRendition):
		return http.StatusNotFound
	case errors.Is(err, watch.ErrNothingCommitted),
		errors.Is(err, watch.ErrNoCreator),
		errors.Is(err, countdown.ErrNotRunning),
		errors.Is(err, engine.ErrNoSource),
		errors.Is(err, player.ErrNotInitialized):
		return http.StatusConflict
	case errors.Is(err, watch.ErrClosed),
		errors.Is(err, player.ErrDisposed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
