package shell

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/hondana/internal/location"
	"github.com/hyperjump/hondana/internal/models"
	"github.com/hyperjump/hondana/internal/search"
	"github.com/hyperjump/hondana/internal/session"
	"github.com/hyperjump/hondana/internal/storage"
)

type searchCall struct {
	text string
	page int
}

// fakeSearcher answers every search with result, or with err when the text is "fail".
type fakeSearcher struct {
	calls  []searchCall
	result *models.SearchResult
}

func (f *fakeSearcher) Execute(_ context.Context, text string, _ models.Endpoint, params models.SearchParams) (*models.SearchResult, error) {
	f.calls = append(f.calls, searchCall{text: text, page: params.PageIndex})
	if text == "fail" {
		return nil, &search.Error{Kind: search.ErrTransport, Err: errors.New("connection refused")}
	}
	return f.result, nil
}

func (f *fakeSearcher) last() searchCall {
	return f.calls[len(f.calls)-1]
}

func testResult() *models.SearchResult {
	return &models.SearchResult{
		Total: 25,
		Hits: []models.Hit{
			{ID: "h1", URL: "file:///shelf/go%20book.pdf", Title: "go book.pdf", Keywords: []string{"goroutine", "channel"}, Highlights: []string{"about <em>go</em>"}},
			{ID: "h2", URL: "file:///shelf/rust.pdf", Title: "rust.pdf", Keywords: []string{}, Highlights: []string{"no go here"}},
		},
	}
}

func newTestShell(t *testing.T, opts ...Option) (*Shell, *fakeSearcher, *bytes.Buffer) {
	t.Helper()
	fs := &fakeSearcher{result: testResult()}
	settings := session.SettingsFunc(func() models.Settings {
		return models.Settings{Endpoint: models.Endpoint{BaseURL: "http://es:9200", Index: "books"}, PageSize: 10, HighlightFragmentCount: 3}
	})
	m := session.New(fs, settings)
	var out bytes.Buffer
	sh := New(m, settings, strings.NewReader(""), &out, opts...)
	return sh, fs, &out
}

func TestHandle_searchAndPaging(t *testing.T) {
	sh, fs, out := newTestShell(t)
	ctx := context.Background()

	sh.Handle(ctx, "  go   channels ")
	if got := fs.last(); got.text != "go   channels" || got.page != 1 {
		t.Errorf("search call = %+v", got)
	}
	if !strings.Contains(out.String(), "25 matches  (page 1 of 3)") {
		t.Errorf("output:\n%s", out.String())
	}

	sh.Handle(ctx, ":n")
	if got := fs.last(); got.page != 2 {
		t.Errorf(":n page = %d", got.page)
	}
	sh.Handle(ctx, ":page 3")
	if got := fs.last(); got.page != 3 {
		t.Errorf(":page 3 page = %d", got.page)
	}
	calls := len(fs.calls)
	sh.Handle(ctx, ":n")
	if len(fs.calls) != calls || !strings.Contains(out.String(), "page must be between 1 and 3") {
		t.Errorf("paging past the end should be refused:\n%s", out.String())
	}
	sh.Handle(ctx, ":p")
	if got := fs.last(); got.page != 2 {
		t.Errorf(":p page = %d", got.page)
	}
}

func TestHandle_refineWithKeyword(t *testing.T) {
	sh, fs, _ := newTestShell(t)
	ctx := context.Background()
	sh.Handle(ctx, "go")
	sh.Handle(ctx, ":k 1 2")
	if got := fs.last(); got.text != "go AND channel" || got.page != 1 {
		t.Errorf("refine call = %+v", got)
	}
}

func TestHandle_errorNoticeIsAcknowledged(t *testing.T) {
	sh, fs, out := newTestShell(t)
	ctx := context.Background()

	sh.Handle(ctx, "fail")
	if !strings.Contains(out.String(), "Error: transport error: connection refused") {
		t.Fatalf("expected error notice:\n%s", out.String())
	}
	if sh.machine.Snapshot().State != session.Failed {
		t.Fatal("session should be failed")
	}

	sh.Handle(ctx, "")
	if snap := sh.machine.Snapshot(); snap.State != session.Idle || snap.QueryText != "fail" {
		t.Errorf("after acknowledge = %+v", snap)
	}

	sh.Handle(ctx, "fail")
	sh.Handle(ctx, "go")
	if got := fs.last(); got.text != "go" {
		t.Errorf("input after the notice should still run, got %+v", got)
	}
	if sh.machine.Snapshot().State != session.Populated {
		t.Errorf("state = %v", sh.machine.Snapshot().State)
	}
}

func TestHandle_expandResetsOnNewSearch(t *testing.T) {
	sh, _, out := newTestShell(t)
	ctx := context.Background()
	sh.Handle(ctx, "go")
	if strings.Contains(out.String(), "> about go") {
		t.Fatal("hits should start collapsed")
	}

	out.Reset()
	sh.Handle(ctx, ":x 1")
	if !strings.Contains(out.String(), "> about go") || strings.Contains(out.String(), "no go here") {
		t.Errorf("only hit 1 should expand:\n%s", out.String())
	}

	out.Reset()
	sh.Handle(ctx, "go again")
	if strings.Contains(out.String(), "> about go") {
		t.Errorf("expansion should reset for a new result:\n%s", out.String())
	}
}

func TestHandle_copyLocation(t *testing.T) {
	var copied []string
	exists := true
	sh, _, out := newTestShell(t,
		WithClipboard(func(s string) error { copied = append(copied, s); return nil }),
		WithExistsProbe(func(location.Location) bool { return exists }),
	)
	ctx := context.Background()
	sh.Handle(ctx, "go")

	sh.Handle(ctx, ":c 1")
	exists = false
	sh.Handle(ctx, ":c 1")

	if len(copied) != 2 || copied[0] != filepath.FromSlash("/shelf/go book.pdf") || copied[1] != "go book.pdf" {
		t.Errorf("copied = %q", copied)
	}
	if !strings.Contains(out.String(), location.PathCopied) || !strings.Contains(out.String(), location.NameCopied) {
		t.Errorf("output:\n%s", out.String())
	}

	sh.Handle(ctx, ":c 9")
	if !strings.Contains(out.String(), "no hit 9 on this page") {
		t.Errorf("missing hit message:\n%s", out.String())
	}
}

func TestHandle_clearAndUnknown(t *testing.T) {
	sh, _, out := newTestShell(t)
	ctx := context.Background()
	sh.Handle(ctx, "go")
	sh.Handle(ctx, ":clear")
	if snap := sh.machine.Snapshot(); snap.State != session.Idle || snap.QueryText != "" {
		t.Errorf("after :clear = %+v", snap)
	}
	sh.Handle(ctx, ":bogus")
	if !strings.Contains(out.String(), "unknown command :bogus") {
		t.Errorf("output:\n%s", out.String())
	}
	if !sh.Handle(ctx, ":q") {
		t.Error(":q should quit")
	}
}

func TestHandle_settings(t *testing.T) {
	var set [][2]string
	sh, _, out := newTestShell(t, WithSettingsEditor(func(k, v string) error {
		if k == "bad" {
			return errors.New("unknown setting")
		}
		set = append(set, [2]string{k, v})
		return nil
	}))
	ctx := context.Background()
	sh.Handle(ctx, ":settings")
	if !strings.Contains(out.String(), "backend.index           books") {
		t.Errorf("settings output:\n%s", out.String())
	}
	sh.Handle(ctx, ":set backend.index papers")
	sh.Handle(ctx, ":set bad x")
	if len(set) != 1 || set[0] != [2]string{"backend.index", "papers"} {
		t.Errorf("set = %v", set)
	}
	if !strings.Contains(out.String(), "Failed to update settings: unknown setting") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestHandle_history(t *testing.T) {
	hist, err := storage.NewSQLiteHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer hist.Close()
	ctx := context.Background()
	if err := hist.Record(ctx, &models.HistoryEntry{Query: "earlier search", Page: 1, Total: 2}); err != nil {
		t.Fatal(err)
	}
	sh, _, out := newTestShell(t, WithHistory(hist))
	sh.Handle(ctx, ":history 5")
	if !strings.Contains(out.String(), "earlier search") {
		t.Errorf("history output:\n%s", out.String())
	}
}

func TestRun_readsUntilQuit(t *testing.T) {
	fs := &fakeSearcher{result: testResult()}
	settings := session.SettingsFunc(func() models.Settings { return models.Settings{PageSize: 10} })
	var out bytes.Buffer
	sh := New(session.New(fs, settings), settings, strings.NewReader("go\n:q\nnever\n"), &out)
	if err := sh.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fs.calls) != 1 || fs.calls[0].text != "go" {
		t.Errorf("calls = %+v", fs.calls)
	}
	if !strings.Contains(out.String(), prompt) {
		t.Errorf("prompt missing:\n%s", out.String())
	}
}
