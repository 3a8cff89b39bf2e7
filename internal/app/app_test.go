package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyreel/internal/navigation"
	"storyreel/internal/stories"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Media.Preload = 0
	return cfg
}

func newTestApp(t *testing.T, cfg Config, src Source) *App {
	t.Helper()
	a, err := New(cfg, src)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

const markdownCollection = `kind: collection
schema_version: 1
title: notes
groups:
  - name: Notes
    items:
      - kind: custom
        component: markdown
        props:
          body: "# one"
      - kind: custom
        component: text
        props:
          body: two
`

func writeCollection(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stories.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewBuildsDemo(t *testing.T) {
	a := newTestApp(t, testConfig(t), Source{Demo: "markdown"})
	if a.doc.Title != "release notes" {
		t.Fatalf("unexpected title %q", a.doc.Title)
	}
	if got := a.machine.Position(); got != (navigation.Position{}) {
		t.Fatalf("expected start position, got %v", got)
	}
	if a.machine.Collection().ItemCount() != 3 {
		t.Fatalf("expected 3 demo items, got %d", a.machine.Collection().ItemCount())
	}
}

func TestNewLoadsCollectionFile(t *testing.T) {
	path := writeCollection(t, markdownCollection)
	a := newTestApp(t, testConfig(t), Source{Path: path})
	if a.doc.Title != "notes" {
		t.Fatalf("unexpected title %q", a.doc.Title)
	}
	if a.source.baseDir() != filepath.Dir(path) {
		t.Fatalf("unexpected base dir %q", a.source.baseDir())
	}
}

func TestNewRejectsInvalidCollection(t *testing.T) {
	path := writeCollection(t, "kind: collection\nschema_version: 1\ngroups: []\n")
	_, err := New(testConfig(t), Source{Path: path})
	var verr *stories.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Rule != stories.RuleEmptyCollection {
		t.Fatalf("unexpected rule %q", verr.Rule)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.UI.MotionLevel = "wild"
	if _, err := New(cfg, Source{Demo: "single"}); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestExitRequestsQuit(t *testing.T) {
	a := newTestApp(t, testConfig(t), Source{Demo: "markdown"})
	a.machine.Exit()
	if !a.view.QuitRequested() {
		t.Fatalf("expected exit to request quit")
	}
}

func TestEndHonoursExitOnEnd(t *testing.T) {
	cases := []struct {
		name      string
		exitOnEnd bool
	}{
		{name: "stay", exitOnEnd: false},
		{name: "quit", exitOnEnd: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.ExitOnEnd = tc.exitOnEnd
			a := newTestApp(t, cfg, Source{Demo: "single"})
			a.machine.Navigate(navigation.Next)
			if !a.machine.IsEnded() {
				t.Fatalf("expected single story collection to end")
			}
			if a.view.QuitRequested() != tc.exitOnEnd {
				t.Fatalf("quit requested = %v, want %v", a.view.QuitRequested(), tc.exitOnEnd)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if _, err := Validate(writeCollection(t, markdownCollection)); err != nil {
		t.Fatalf("validate: %v", err)
	}
	bad := strings.Replace(markdownCollection, "title: notes\n", "title: notes\noptions:\n  start_item: 7\n", 1)
	_, err := Validate(writeCollection(t, bad))
	var verr *stories.ValidationError
	if !errors.As(err, &verr) || verr.Rule != stories.RuleStartOutOfRange {
		t.Fatalf("expected start out of range, got %v", err)
	}
}

func TestSourceString(t *testing.T) {
	if got := (Source{Demo: "mixed"}).String(); got != "demo:mixed" {
		t.Fatalf("unexpected %q", got)
	}
	if got := (Source{Path: "a/b.yaml"}).String(); got != "a/b.yaml" {
		t.Fatalf("unexpected %q", got)
	}
}

func readySnapshot(t *testing.T, h http.Handler) devSnapshot {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/__dev/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready status %d: %s", rec.Code, rec.Body.String())
	}
	var s devSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return s
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestDevReadyAndNavigate(t *testing.T) {
	a := newTestApp(t, testConfig(t), Source{Demo: "markdown"})
	h := a.devHandler()

	s := readySnapshot(t, h)
	if !s.OK || s.Position != "(0,0)" || s.Group != "Release" || s.Item != "release-1" || s.State != "playing" {
		t.Fatalf("unexpected snapshot %+v", s)
	}

	if rec := post(h, "/__dev/navigate", `{"action":"pause"}`); rec.Code != http.StatusOK {
		t.Fatalf("pause status %d", rec.Code)
	}
	if s := readySnapshot(t, h); s.State != "paused" {
		t.Fatalf("expected paused, got %q", s.State)
	}

	if rec := post(h, "/__dev/navigate", `{"action":"sideways"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", rec.Code)
	}
	if rec := post(h, "/__dev/navigate", `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/__dev/ready", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestDevDemoRequiresName(t *testing.T) {
	a := newTestApp(t, testConfig(t), Source{Demo: "markdown"})
	if rec := post(a.devHandler(), "/__dev/demo", `{"demo":"  "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDevDemoSwitchesCollection(t *testing.T) {
	a := newTestApp(t, testConfig(t), Source{Demo: "single"})
	h := a.devHandler()
	rec := post(h, "/__dev/demo", `{"demo":"markdown"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("demo status %d: %s", rec.Code, rec.Body.String())
	}
	s := readySnapshot(t, h)
	if s.Demo != "markdown" || s.Group != "Release" {
		t.Fatalf("expected markdown demo, got %+v", s)
	}
	if _, err := os.Stat(filepath.Join(a.cfg.DataDir, "demo", "dev_state.json")); err != nil {
		t.Fatalf("expected dev state file: %v", err)
	}
}

func TestDevServerWaitsForViewerStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dev = true
	cfg.DevHTTP = "127.0.0.1:0"
	a := newTestApp(t, cfg, Source{Demo: "markdown"})

	a.devMu.Lock()
	started := a.devServer != nil
	a.devMu.Unlock()
	if started {
		t.Fatalf("dev server started before the event loop")
	}

	a.onViewStart()
	a.devMu.Lock()
	started = a.devServer != nil
	a.devMu.Unlock()
	if !started {
		t.Fatalf("dev server not started on viewer start")
	}
	if _, err := os.Stat(filepath.Join(a.cfg.DataDir, "demo", "dev_state.json")); err != nil {
		t.Fatalf("expected dev state file: %v", err)
	}
}
