// Package azsearch is a client for the Azure AI Search documents REST API.
package azsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/hybrid"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
	"github.com/kailas-cloud/retriever/internal/metrics"
)

const (
	backendLabel      = "azure"
	defaultAPIVersion = "2024-07-01"
	maxErrorBody      = 4 << 10
)

// Fields maps document attributes onto index field names.
type Fields struct {
	ID         string
	ParentID   string
	Content    string
	ChunkIndex string
	Header1    string
	Header2    string
	Header3    string
}

// Config holds the search service connection and index layout.
type Config struct {
	Endpoint              string // https://<service>.search.windows.net
	APIKey                string
	Index                 string
	APIVersion            string
	SemanticConfiguration string
	VectorField           string
	Fields                Fields
	TagFields             []string
	Timeout               time.Duration
	HTTPClient            *http.Client
	Logger                *zap.Logger
}

// Client runs hybrid (keyword + vector + semantic) queries against one index.
type Client struct {
	cfg    Config
	http   *http.Client
	base   string
	logger *zap.Logger
}

// New creates a search client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("index is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   hc,
		base:   strings.TrimRight(cfg.Endpoint, "/") + "/indexes/" + url.PathEscape(cfg.Index) + "/docs",
		logger: logger,
	}, nil
}

// Hybrid implements the search index port.
func (c *Client) Hybrid(ctx context.Context, req *hybrid.Request) (*hybrid.Response, error) {
	if req.Top <= 0 {
		return nil, fmt.Errorf("top must be positive: %w", domain.ErrInvalidQuery)
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, c.base+"/search", body, &resp); err != nil {
		metrics.SearchIndexRequestsTotal.WithLabelValues(backendLabel, "error").Inc()
		return nil, err
	}
	metrics.SearchIndexRequestsTotal.WithLabelValues(backendLabel, "success").Inc()

	return c.toResponse(&resp, req), nil
}

// HealthCheck verifies the index is reachable via the document count endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	var count json.Number
	if err := c.do(ctx, http.MethodGet, c.base+"/$count", nil, &count); err != nil {
		return err
	}
	return nil
}

func (c *Client) buildRequest(req *hybrid.Request) *searchRequest {
	sr := &searchRequest{
		Search:     req.Text,
		SearchMode: "all",
		Count:      true,
		Top:        req.Top,
		Filter:     req.Filter,
		Select:     strings.Join(c.selectFields(), ","),
	}
	if req.Semantic {
		sr.QueryType = "semantic"
		sr.SemanticConfiguration = c.cfg.SemanticConfiguration
		if req.Captions {
			sr.Captions = "extractive"
		}
		if req.Answers {
			sr.Answers = "extractive|count-" + strconv.Itoa(hybrid.MaxAnswers)
		}
	}
	if req.HasVector() {
		sr.VectorQueries = []vectorQuery{{
			Kind:   "vector",
			Vector: req.Vector,
			K:      min(req.KNN, hybrid.MaxKNN),
			Fields: c.cfg.VectorField,
		}}
	}
	return sr
}

func (c *Client) selectFields() []string {
	f := c.cfg.Fields
	all := append([]string{f.ID, f.ParentID, f.Content, f.ChunkIndex, f.Header1, f.Header2, f.Header3}, c.cfg.TagFields...)
	out := make([]string, 0, len(all))
	seen := make(map[string]bool, len(all))
	for _, name := range all {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (c *Client) toResponse(resp *searchResponse, req *hybrid.Request) *hybrid.Response {
	out := &hybrid.Response{Count: -1}
	if resp.Count != nil {
		out.Count = *resp.Count
	}

	docs := resp.Value
	if len(docs) > req.Top {
		docs = docs[:req.Top]
	}
	out.Documents = make([]result.Document, 0, len(docs))
	for _, d := range docs {
		out.Documents = append(out.Documents, c.toDocument(d))
	}

	for i, a := range resp.Answers {
		if i >= hybrid.MaxAnswers {
			break
		}
		text := a.Text
		if text == "" {
			text = a.Highlights
		}
		out.Answers = append(out.Answers, result.Answer{Text: text, Score: a.Score})
	}
	return out
}

func (c *Client) toDocument(raw map[string]json.RawMessage) result.Document {
	f := c.cfg.Fields
	doc := result.Document{
		ID:       rawString(raw[f.ID]),
		ParentID: rawString(raw[f.ParentID]),
		Content:  rawString(raw[f.Content]),
		Headers: result.Headers{
			H1: rawString(raw[f.Header1]),
			H2: rawString(raw[f.Header2]),
			H3: rawString(raw[f.Header3]),
		},
		Score:         rawFloat(raw["@search.score"]),
		RerankerScore: rawFloat(raw["@search.rerankerScore"]),
	}
	if ci, err := strconv.Atoi(rawString(raw[f.ChunkIndex])); err == nil {
		doc.ChunkIndex = ci
	}
	if len(c.cfg.TagFields) > 0 {
		doc.Tags = make(map[string]string, len(c.cfg.TagFields))
		for _, tf := range c.cfg.TagFields {
			if v := rawString(raw[tf]); v != "" {
				doc.Tags[tf] = v
			}
		}
	}
	if capsRaw, ok := raw["@search.captions"]; ok {
		var caps []caption
		if json.Unmarshal(capsRaw, &caps) == nil {
			for i, cp := range caps {
				if i >= hybrid.MaxCaptions {
					break
				}
				text := cp.Text
				if text == "" {
					text = cp.Highlights
				}
				doc.Captions = append(doc.Captions, text)
			}
		}
	}
	return doc
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	u := endpoint + "?api-version=" + url.QueryEscape(c.cfg.APIVersion)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("api-key", c.cfg.APIKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("azure search %s: %w: %w", c.cfg.Index, domain.ErrSearchIndexError, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	c.logger.Debug("Azure search request",
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w: %w", domain.ErrSearchIndexError, err)
	}
	return nil
}

// parseError turns a non-2xx response into a wrapped domain error.
func parseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(data))
	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}

	wrap := domain.ErrSearchIndexError
	if resp.StatusCode == http.StatusTooManyRequests {
		wrap = errors.Join(domain.ErrSearchIndexError, domain.ErrRateLimited)
	}
	return fmt.Errorf("azure search error %d: %s: %w", resp.StatusCode, msg, wrap)
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

func rawFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) != nil {
		return 0
	}
	return f
}
