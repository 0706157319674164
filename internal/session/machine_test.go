package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/hondana/internal/models"
	"github.com/hyperjump/hondana/internal/search"
)

type call struct {
	text   string
	params models.SearchParams
	ep     models.Endpoint
}

// fakeSearcher answers with result or err. A search whose text has an entry in
// block waits for that channel to close; started receives each text on entry.
type fakeSearcher struct {
	mu      sync.Mutex
	calls   []call
	result  *models.SearchResult
	err     error
	block   map[string]chan struct{}
	started chan string
}

func (f *fakeSearcher) Execute(ctx context.Context, text string, ep models.Endpoint, params models.SearchParams) (*models.SearchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{text: text, params: params, ep: ep})
	ch := f.block[text]
	result, err := f.result, f.err
	f.mu.Unlock()
	if f.started != nil {
		f.started <- text
	}
	if ch != nil {
		<-ch
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &models.SearchResult{Total: 1, Hits: []models.Hit{{ID: text}}}, nil
	}
	return result, nil
}

func (f *fakeSearcher) lastCall(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no backend call made")
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func staticSettings(pageSize int) SettingsFunc {
	return func() models.Settings {
		return models.Settings{
			Endpoint:               models.Endpoint{BaseURL: "http://localhost:9200", Index: "books"},
			PageSize:               pageSize,
			HighlightFragmentCount: 3,
		}
	}
}

func checkExclusive(t *testing.T, s Session) {
	t.Helper()
	if s.Result != nil && s.Err != nil {
		t.Fatalf("result and error both set: %+v", s)
	}
}

func TestMachine_InitialState(t *testing.T) {
	m := New(&fakeSearcher{}, staticSettings(10))
	s := m.Snapshot()
	if s.State != Idle || s.Page != 1 || s.Result != nil || s.Err != nil || s.QueryText != "" {
		t.Errorf("initial = %+v", s)
	}
}

func TestMachine_SubmitSearch_Populated(t *testing.T) {
	res := &models.SearchResult{Total: 23, Hits: []models.Hit{{ID: "1"}, {ID: "2"}}}
	fs := &fakeSearcher{result: res}
	m := New(fs, staticSettings(10))
	s := m.SubmitSearch(context.Background(), "go", 2)
	checkExclusive(t, s)
	if s.State != Populated || s.Page != 2 || s.Total() != 23 || len(s.Hits()) != 2 {
		t.Errorf("session = %+v", s)
	}
	c := fs.lastCall(t)
	if c.text != "go" || c.params.PageIndex != 2 || c.params.PageSize != 10 || c.params.HighlightFragmentCount != 3 {
		t.Errorf("call = %+v", c)
	}
	if m.Snapshot().Seq != s.Seq {
		t.Error("returned session should be the current one")
	}
}

func TestMachine_SubmitSearch_BlankClears(t *testing.T) {
	fs := &fakeSearcher{}
	m := New(fs, staticSettings(10))
	m.SubmitSearch(context.Background(), "go", 1)
	for _, text := range []string{"", "   ", "\t\n"} {
		s := m.SubmitSearch(context.Background(), text, 3)
		if s.State != Idle || s.Result != nil || s.Err != nil || s.Page != 1 || s.QueryText != "" {
			t.Errorf("blank %q: session = %+v", text, s)
		}
	}
	if fs.callCount() != 1 {
		t.Errorf("blank submissions must not call the backend, calls = %d", fs.callCount())
	}
}

func TestMachine_SubmitSearch_ZeroResultsLooksCleared(t *testing.T) {
	fs := &fakeSearcher{result: &models.SearchResult{Total: 0, Hits: []models.Hit{}}}
	m := New(fs, staticSettings(10))
	s := m.SubmitSearch(context.Background(), "nothing", 4)
	if s.State != Empty || !s.Cleared() {
		t.Errorf("state = %v", s.State)
	}
	if s.Result != nil || s.Err != nil || s.Page != 1 || len(s.Hits()) != 0 {
		t.Errorf("zero result session should look idle: %+v", s)
	}
}

func TestMachine_SubmitSearch_Failure(t *testing.T) {
	boom := &search.Error{Kind: search.ErrBackendInternal, Status: 500, Body: "down"}
	fs := &fakeSearcher{}
	m := New(fs, staticSettings(10))
	m.SubmitSearch(context.Background(), "go", 1)

	fs.err = boom
	s := m.ChangePage(context.Background(), 3)
	checkExclusive(t, s)
	if s.State != Failed || s.Page != 1 || s.Result != nil || !errors.Is(s.Err, search.ErrBackendInternal) {
		t.Errorf("session = %+v", s)
	}

	s = m.ClearError()
	if s.State != Idle || s.Err != nil || s.Result != nil {
		t.Errorf("after ClearError = %+v", s)
	}
	if s.QueryText != "go" {
		t.Errorf("ClearError should keep the query text, got %q", s.QueryText)
	}
}

func TestMachine_ClearError_NoopOutsideFailed(t *testing.T) {
	m := New(&fakeSearcher{}, staticSettings(10))
	populated := m.SubmitSearch(context.Background(), "go", 1)
	s := m.ClearError()
	if s.Seq != populated.Seq || s.State != Populated {
		t.Errorf("ClearError should not touch a populated session: %+v", s)
	}
}

func TestMachine_ChangePage_RerunsQuery(t *testing.T) {
	fs := &fakeSearcher{result: &models.SearchResult{Total: 30, Hits: []models.Hit{{ID: "x"}}}}
	m := New(fs, staticSettings(10))
	m.SubmitSearch(context.Background(), "a OR b", 1)
	s := m.ChangePage(context.Background(), 3)
	if s.Page != 3 || s.QueryText != "a OR b" {
		t.Errorf("session = %+v", s)
	}
	if fs.callCount() != 2 {
		t.Errorf("page change must be a fresh backend call, calls = %d", fs.callCount())
	}
	if c := fs.lastCall(t); c.params.From() != 20 {
		t.Errorf("from = %d", c.params.From())
	}
}

func TestMachine_ChangePage_ClampsToFirstPage(t *testing.T) {
	fs := &fakeSearcher{}
	m := New(fs, staticSettings(10))
	m.SubmitSearch(context.Background(), "go", 1)
	s := m.ChangePage(context.Background(), 0)
	if s.Page != 1 || fs.lastCall(t).params.PageIndex != 1 {
		t.Errorf("page = %d", s.Page)
	}
}

func TestMachine_RefineWithTerm(t *testing.T) {
	fs := &fakeSearcher{result: &models.SearchResult{Total: 50, Hits: []models.Hit{{ID: "1"}}}}
	m := New(fs, staticSettings(10))
	m.SubmitSearch(context.Background(), "a", 4)

	s := m.RefineWithTerm(context.Background(), "x")
	if s.QueryText != "a AND x" || s.Page != 1 {
		t.Errorf("session = %+v", s)
	}
	if c := fs.lastCall(t); c.text != "a AND x" || c.params.PageIndex != 1 {
		t.Errorf("call = %+v", c)
	}

	s = m.RefineWithTerm(context.Background(), "y")
	if s.QueryText != "a AND x AND y" {
		t.Errorf("second refinement = %q", s.QueryText)
	}
}

func TestMachine_RefineWithTerm_FromEmpty(t *testing.T) {
	fs := &fakeSearcher{}
	m := New(fs, staticSettings(10))
	s := m.RefineWithTerm(context.Background(), "kw")
	if s.QueryText != "kw" {
		t.Errorf("query = %q", s.QueryText)
	}
	before := fs.callCount()
	s2 := m.RefineWithTerm(context.Background(), "  ")
	if s2.Seq != s.Seq || fs.callCount() != before {
		t.Error("blank refinement should be a no-op")
	}
}

func TestMachine_Clear(t *testing.T) {
	m := New(&fakeSearcher{}, staticSettings(10))
	m.SubmitSearch(context.Background(), "go", 2)
	s := m.Clear()
	if s.State != Idle || s.QueryText != "" || s.Result != nil || s.Page != 1 {
		t.Errorf("after Clear = %+v", s)
	}
}

func TestMachine_SettingsSnapshotPerSubmission(t *testing.T) {
	size := 10
	settings := SettingsFunc(func() models.Settings {
		return models.Settings{Endpoint: models.Endpoint{Index: "i"}, PageSize: size}
	})
	fs := &fakeSearcher{}
	m := New(fs, settings)
	m.SubmitSearch(context.Background(), "a", 1)
	size = 25
	m.ChangePage(context.Background(), 2)
	if c := fs.lastCall(t); c.params.PageSize != 25 || c.params.From() != 25 {
		t.Errorf("new settings should apply to the next submission: %+v", c.params)
	}
}

func TestMachine_StaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	fs := &fakeSearcher{
		block:   map[string]chan struct{}{"slow": release},
		started: make(chan string, 4),
	}
	m := New(fs, staticSettings(10))

	done := make(chan Session)
	go func() { done <- m.SubmitSearch(context.Background(), "slow", 1) }()
	if got := <-fs.started; got != "slow" {
		t.Fatalf("started %q", got)
	}

	fast := m.SubmitSearch(context.Background(), "fast", 1)
	<-fs.started
	if fast.State != Populated || fast.QueryText != "fast" {
		t.Fatalf("fast = %+v", fast)
	}

	close(release)
	slow := <-done
	if slow.QueryText != "fast" {
		t.Errorf("superseded search should return the current session, got %q", slow.QueryText)
	}
	if cur := m.Snapshot(); cur.QueryText != "fast" || cur.Seq != fast.Seq {
		t.Errorf("stale result overwrote the session: %+v", cur)
	}
}

func TestMachine_ClearDiscardsInFlight(t *testing.T) {
	release := make(chan struct{})
	fs := &fakeSearcher{block: map[string]chan struct{}{"q": release}, started: make(chan string, 1)}
	m := New(fs, staticSettings(10))
	done := make(chan Session)
	go func() { done <- m.SubmitSearch(context.Background(), "q", 1) }()
	<-fs.started
	if s := m.Snapshot(); s.State != Loading || s.QueryText != "q" {
		t.Errorf("in-flight snapshot = %+v", s)
	}
	m.Clear()
	close(release)
	<-done
	if s := m.Snapshot(); s.State != Idle || s.Result != nil {
		t.Errorf("cleared session was overwritten: %+v", s)
	}
}

func TestMachine_OnChange(t *testing.T) {
	m := New(&fakeSearcher{}, staticSettings(10))
	var states []State
	m.OnChange(func(s Session) {
		states = append(states, s.State)
		_ = m.Snapshot()
	})
	m.SubmitSearch(context.Background(), "go", 1)
	m.Clear()
	want := []State{Loading, Populated, Idle}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("observed %v, want %v", states, want)
	}
}

func TestMachine_OnChangeSeesSeqInOrder(t *testing.T) {
	m := New(&fakeSearcher{}, staticSettings(10))
	var (
		mu   sync.Mutex
		seqs []uint64
	)
	m.OnChange(func(s Session) {
		mu.Lock()
		seqs = append(seqs, s.Seq)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if j%5 == 0 {
					m.Clear()
					continue
				}
				m.SubmitSearch(context.Background(), fmt.Sprintf("q%d-%d", i, j), 1)
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seqs); i++ {
		if seqs[i] < seqs[i-1] {
			t.Fatalf("observer saw seq %d after %d", seqs[i], seqs[i-1])
		}
	}
	if last := m.Snapshot().Seq; len(seqs) == 0 || seqs[len(seqs)-1] != last {
		t.Errorf("last observed seq does not match the current snapshot %d", last)
	}
}

func TestMachine_MutualExclusionAcrossTransitions(t *testing.T) {
	fs := &fakeSearcher{}
	m := New(fs, staticSettings(10))
	m.OnChange(func(s Session) { checkExclusive(t, s) })
	ctx := context.Background()
	m.SubmitSearch(ctx, "a", 1)
	fs.err = errors.New("boom")
	m.ChangePage(ctx, 2)
	m.ClearError()
	fs.err = nil
	fs.result = &models.SearchResult{Total: 0}
	m.SubmitSearch(ctx, "b", 1)
	m.RefineWithTerm(ctx, "c")
	m.Clear()
}

// recordingTransport captures gateway requests for the end-to-end scenario.
type recordingTransport struct {
	bodies []map[string]interface{}
	total  int
	hits   int
}

func (r *recordingTransport) Do(_ context.Context, req *search.Request) (*search.Response, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, err
	}
	r.bodies = append(r.bodies, body)
	hits := make([]string, r.hits)
	for i := range hits {
		hits[i] = fmt.Sprintf(`{"_id":"%d","_score":1,"_source":{"url":"file:///b/%d.pdf","title":"t%d","kwds":["k"]}}`, i, i, i)
	}
	resp := fmt.Sprintf(`{"hits":{"total":{"value":%d},"hits":[%s]}}`, r.total, strings.Join(hits, ","))
	return &search.Response{StatusCode: 200, Body: []byte(resp)}, nil
}

func TestEndToEnd_SearchThenPage(t *testing.T) {
	tr := &recordingTransport{total: 23, hits: 10}
	m := New(search.NewGateway(tr), staticSettings(10))

	s := m.SubmitSearch(context.Background(), "neural networks AND transformers", 1)
	if s.State != Populated || s.Total() != 23 || len(s.Hits()) != 10 {
		t.Fatalf("session = %+v", s)
	}
	first := tr.bodies[0]
	if first["from"].(float64) != 0 || first["size"].(float64) != 10 {
		t.Errorf("first request from/size = %v/%v", first["from"], first["size"])
	}
	boolQ := first["query"].(map[string]interface{})["bool"].(map[string]interface{})
	if must := boolQ["must"].([]interface{}); len(must) != 3 {
		t.Errorf("must bucket has %d terms", len(must))
	}
	if should := boolQ["should"].([]interface{}); len(should) != 0 {
		t.Errorf("should bucket has %d terms", len(should))
	}

	s = m.ChangePage(context.Background(), 3)
	if s.Page != 3 {
		t.Errorf("page = %d", s.Page)
	}
	third := tr.bodies[1]
	if third["from"].(float64) != 20 || third["size"].(float64) != 10 {
		t.Errorf("page 3 request from/size = %v/%v", third["from"], third["size"])
	}
	if fmt.Sprint(third["query"]) != fmt.Sprint(first["query"]) {
		t.Error("page change should resend the same query")
	}
}

func TestSession_MarshalJSON(t *testing.T) {
	s := Session{
		QueryText: "go",
		Page:      1,
		State:     Failed,
		Err:       &search.Error{Kind: search.ErrClientRequest, Status: 401, Body: "denied"},
		Seq:       7,
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out["state"] != "failed" || out["query"] != "go" || out["seq"].(float64) != 7 {
		t.Errorf("json = %s", b)
	}
	e := out["error"].(map[string]interface{})
	if e["kind"] != "client_request" || !strings.Contains(e["message"].(string), "denied") {
		t.Errorf("error json = %v", e)
	}
	if _, ok := out["result"]; ok {
		t.Error("failed session should not carry a result")
	}
}

func TestSession_Hit(t *testing.T) {
	s := Session{Result: &models.SearchResult{Total: 2, Hits: []models.Hit{{ID: "a"}, {ID: "b"}}}}
	if h, ok := s.Hit(2); !ok || h.ID != "b" {
		t.Errorf("Hit(2) = %+v, %v", h, ok)
	}
	if _, ok := s.Hit(0); ok {
		t.Error("Hit(0) should be out of range")
	}
	if _, ok := s.Hit(3); ok {
		t.Error("Hit(3) should be out of range")
	}
}
