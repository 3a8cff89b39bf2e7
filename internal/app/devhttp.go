package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"storyreel/internal/media"
	"storyreel/internal/navigation"
)

type devSnapshot struct {
	OK        bool   `json:"ok"`
	Source    string `json:"source"`
	Demo      string `json:"demo,omitempty"`
	Position  string `json:"position"`
	Group     string `json:"group"`
	Item      string `json:"item"`
	State     string `json:"state"`
	Progress  int    `json:"progress"`
	Ended     bool   `json:"ended"`
	Error     string `json:"error,omitempty"`
	RenderSeq int    `json:"render_seq"`
}

func (a *App) bumpRenderSeq() {
	a.devMu.Lock()
	a.devState.RenderSeq++
	a.devMu.Unlock()
}

func (a *App) setDevError(demo, errText string) {
	a.devMu.Lock()
	defer a.devMu.Unlock()
	a.devState.Demo = demo
	a.devState.Error = errText
	a.devState.RenderSeq++
}

// snapshot reads the machine on the event loop.
func (a *App) snapshot(ctx context.Context) (devSnapshot, error) {
	ch := make(chan devSnapshot, 1)
	a.dispatch(func() {
		pos := a.machine.Position()
		s := devSnapshot{
			OK:       true,
			Source:   a.source.String(),
			Position: pos.String(),
			State:    a.machine.State().String(),
			Progress: int(a.machine.ProgressValue(pos.Item)),
			Ended:    a.machine.IsEnded(),
		}
		if g, ok := a.machine.Collection().Group(pos.Group); ok {
			s.Group = g.Name
		}
		if item, ok := a.machine.Current(); ok {
			s.Item = item.ID
		}
		ch <- s
	})
	select {
	case s := <-ch:
		a.devMu.Lock()
		s.Demo = a.devState.Demo
		s.Error = a.devState.Error
		s.RenderSeq = a.devState.RenderSeq
		a.devMu.Unlock()
		return s, nil
	case <-ctx.Done():
		return devSnapshot{}, ctx.Err()
	}
}

var (
	errUnknownAction = errors.New("unknown action")
	errLoopTimeout   = errors.New("event loop did not respond")
)

// runAction applies a named viewer action on the event loop.
func (a *App) runAction(action string) error {
	var fn func()
	switch action {
	case "next":
		fn = func() { a.machine.Navigate(navigation.Next) }
	case "previous":
		fn = func() { a.machine.Navigate(navigation.Previous) }
	case "next_group":
		fn = func() { a.machine.SwipeGroup(navigation.Next) }
	case "previous_group":
		fn = func() { a.machine.SwipeGroup(navigation.Previous) }
	case "pause":
		fn = a.machine.TogglePause
	case "audio":
		fn = a.machine.ToggleAudio
	case "reset":
		fn = a.machine.Reset
	default:
		return errUnknownAction
	}
	a.dispatch(fn)
	return nil
}

// switchDemo replaces the collection with a built-in demo and plays it from
// its start.
func (a *App) switchDemo(name string) (string, error) {
	resolved := a.demo.Resolve(name).Name
	doc, err := a.demo.Build(resolved, media.Registry())
	if err != nil {
		a.setDevError(resolved, err.Error())
		return resolved, err
	}
	errc := make(chan error, 1)
	a.dispatch(func() {
		if err := a.machine.Initialize(doc.Collection, doc.Options); err != nil {
			errc <- err
			return
		}
		a.machine.StartItemProgress()
		errc <- nil
	})
	select {
	case err = <-errc:
	case <-time.After(5 * time.Second):
		err = errLoopTimeout
	}
	if err != nil {
		a.setDevError(resolved, err.Error())
		return resolved, err
	}
	a.devMu.Lock()
	a.devState.Demo = resolved
	a.devState.Error = ""
	a.devMu.Unlock()
	if err := a.demo.SetState(context.Background(), resolved, true); err != nil {
		a.logger.Error("dev_state.write_failed", "state", resolved, "err", err)
	}
	return resolved, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) devHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/__dev/ready", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		s, err := a.snapshot(ctx)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, s)
	})
	mux.HandleFunc("/__dev/navigate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json"})
			return
		}
		action := strings.TrimSpace(req.Action)
		a.logger.Info("dev.navigate.request", "action", action)
		if err := a.runAction(action); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error(), "action": action})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "action": action})
	})
	mux.HandleFunc("/__dev/demo", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Demo string `json:"demo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json"})
			return
		}
		req.Demo = strings.TrimSpace(req.Demo)
		if req.Demo == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "demo is required"})
			return
		}
		a.logger.Info("dev.demo.request", "demo", req.Demo)
		resolved, err := a.switchDemo(req.Demo)
		if err != nil {
			a.logger.Error("dev.demo.apply_failed", "demo", req.Demo, "resolved", resolved, "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error(), "state": resolved})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": resolved, "requested": req.Demo})
	})
	return mux
}

func (a *App) startDevHTTP() {
	srv := &http.Server{Addr: a.cfg.DevHTTP, Handler: a.devHandler(), ReadHeaderTimeout: 5 * time.Second}
	a.devMu.Lock()
	if a.devServer != nil {
		a.devMu.Unlock()
		return
	}
	a.devServer = srv
	a.devMu.Unlock()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("dev_http.listen_failed", "err", err, "addr", a.cfg.DevHTTP)
		}
	}()
}
