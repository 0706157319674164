package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ESTransport sends searches through the official Elasticsearch client. One client
// is kept per base URL so a settings change picks up a new address without a restart.
type ESTransport struct {
	mu        sync.Mutex
	clients   map[string]esapi.Transport
	newClient func(baseURL string) (esapi.Transport, error)
}

// NewESTransport returns a transport backed by go-elasticsearch clients.
func NewESTransport() *ESTransport {
	return &ESTransport{
		clients:   make(map[string]esapi.Transport),
		newClient: NewElasticsearchClient,
	}
}

// NewElasticsearchClient builds a client for baseURL. Credentials are not set on the
// client: the gateway sends its own Authorization header.
func NewElasticsearchClient(baseURL string) (esapi.Transport, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{strings.TrimRight(baseURL, "/")},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

func (t *ESTransport) client(baseURL string) (esapi.Transport, error) {
	key := strings.TrimRight(baseURL, "/")
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[key]; ok {
		return c, nil
	}
	c, err := t.newClient(key)
	if err != nil {
		return nil, err
	}
	t.clients[key] = c
	return c, nil
}

// Do runs req as an esapi search request.
func (t *ESTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	client, err := t.client(req.BaseURL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Pragma", "no-cache")
	if req.Authorization != "" {
		header.Set("Authorization", req.Authorization)
	}
	searchReq := esapi.SearchRequest{
		Index:  []string{req.Index},
		Body:   bytes.NewReader(req.Body),
		Header: header,
	}
	res, err := searchReq.Do(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if res == nil {
		return nil, nil
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: res.StatusCode, Body: body}, nil
}
