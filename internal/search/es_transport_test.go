package search

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type fakeESClient struct {
	req    *http.Request
	status int
	body   string
}

func (f *fakeESClient) Perform(req *http.Request) (*http.Response, error) {
	f.req = req
	return &http.Response{
		StatusCode: f.status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestESTransport_Do(t *testing.T) {
	fake := &fakeESClient{status: 200, body: `{"hits":{"total":{"value":0},"hits":[]}}`}
	var created []string
	tr := NewESTransport()
	tr.newClient = func(baseURL string) (esapi.Transport, error) {
		created = append(created, baseURL)
		return fake, nil
	}

	req := &Request{BaseURL: "http://es:9200/", Index: "books", Authorization: "Basic abc", Body: []byte(`{}`)}
	resp, err := tr.Do(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 || !strings.Contains(string(resp.Body), `"hits"`) {
		t.Errorf("resp = %d %s", resp.StatusCode, resp.Body)
	}
	if fake.req == nil || fake.req.URL.Path != "/books/_search" {
		t.Fatalf("unexpected request %+v", fake.req)
	}
	if fake.req.Header.Get("Authorization") != "Basic abc" {
		t.Errorf("Authorization = %q", fake.req.Header.Get("Authorization"))
	}

	// Same base URL (modulo trailing slash) reuses the client.
	if _, err := tr.Do(context.Background(), &Request{BaseURL: "http://es:9200", Index: "books", Body: []byte(`{}`)}); err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 || created[0] != "http://es:9200" {
		t.Errorf("clients created = %v", created)
	}
}

func TestESTransport_StatusPassesThrough(t *testing.T) {
	fake := &fakeESClient{status: 500, body: "oops"}
	tr := NewESTransport()
	tr.newClient = func(string) (esapi.Transport, error) { return fake, nil }
	resp, err := tr.Do(context.Background(), &Request{BaseURL: "http://es", Index: "i", Body: []byte(`{}`)})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 500 || string(resp.Body) != "oops" {
		t.Errorf("resp = %d %q", resp.StatusCode, resp.Body)
	}
}
