// Package qdrant provides a minimal REST client storing page records in a
// Qdrant collection with cosine distance.
package qdrant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"docchat/internal/domain"
	"docchat/internal/vectorstore"
)

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Storage talks to Qdrant over its HTTP API. Point IDs are the records'
// UUID keys, so re-ingesting a document overwrites its points in place.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

var _ vectorstore.Storage = (*Storage)(nil)

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Storage) EnsureReady(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("qdrant: invalid vector dimension")
	}
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, s.collectionURL(""), body)
}

type pointPayload struct {
	Content     string `json:"content"`
	Summary     string `json:"summary,omitempty"`
	Doc         string `json:"doc"`
	Page        int    `json:"page"`
	ContentType string `json:"content_type"`
	Year        string `json:"year,omitempty"`
}

func (s *Storage) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, rec := range records {
		points[i] = map[string]any{
			"id":     rec.ID,
			"vector": rec.Vector,
			"payload": pointPayload{
				Content:     rec.Content,
				Summary:     rec.Summary,
				Doc:         rec.Doc,
				Page:        rec.Page,
				ContentType: rec.ContentType,
				Year:        rec.Year,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(ctx, s.collectionURL("/points?wait=true"), body)
}

func (s *Storage) DeleteDocument(ctx context.Context, doc string) error {
	body := map[string]any{"filter": docFilter(doc)}
	return s.postJSON(ctx, s.collectionURL("/points/delete?wait=true"), body, nil)
}

func (s *Storage) Search(ctx context.Context, vector domain.Vector, opts vectorstore.SearchOptions) ([]domain.Match, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if opts.Doc != "" {
		req["filter"] = docFilter(opts.Doc)
	}
	var resp struct {
		Result []struct {
			ID      string       `json:"id"`
			Score   float64      `json:"score"`
			Payload pointPayload `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, domain.Match{
			Record: domain.IndexRecord{
				ID:          r.ID,
				Content:     r.Payload.Content,
				Summary:     r.Payload.Summary,
				Doc:         r.Payload.Doc,
				Page:        r.Payload.Page,
				ContentType: r.Payload.ContentType,
				Year:        r.Payload.Year,
			},
			Score: float32(r.Score),
		})
	}
	return matches, nil
}

func docFilter(doc string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "doc", "match": map[string]any{"value": doc}},
		},
	}
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) collectionExists(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.collectionURL(""), nil)
	if err != nil {
		return false, err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("qdrant GET %s failed: %s", s.collectionURL(""), resp.Status)
	}
}

func (s *Storage) putJSON(ctx context.Context, url string, body any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, nil)
}

func (s *Storage) postJSON(ctx context.Context, url string, body any, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *Storage) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, bytes.TrimSpace(snippet))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (s *Storage) setHeaders(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}
