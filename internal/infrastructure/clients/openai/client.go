package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/providers"
	"github.com/foiacoach/backend/pkg/config"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client wraps the OpenAI vector-store and file-search APIs.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *tokenBucket
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	limiter := newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst)

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: limiter,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

type vectorStore struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type vectorStoreList struct {
	Data []vectorStore `json:"data"`
}

// FindVectorStore returns the id of the named vector store, or "" when no
// store with that name exists.
func (c *Client) FindVectorStore(ctx context.Context, name string) (string, error) {
	endpoint := c.baseURL + "/vector_stores?limit=100"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	var list vectorStoreList
	if err := c.do(req, &list); err != nil {
		return "", err
	}

	for _, store := range list.Data {
		if store.Name == name {
			return store.ID, nil
		}
	}
	return "", nil
}

// CreateVectorStore creates a vector store and returns its id.
func (c *Client) CreateVectorStore(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/vector_stores", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var store vectorStore
	if err := c.do(req, &store); err != nil {
		return "", err
	}
	if store.ID == "" {
		return "", errors.New("openai response missing vector store id")
	}
	return store.ID, nil
}

// GetOrCreateVectorStore finds the named vector store, creating it when
// absent. Repeated calls return the same id.
func (c *Client) GetOrCreateVectorStore(ctx context.Context, name string) (string, error) {
	id, err := c.FindVectorStore(ctx, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	return c.CreateVectorStore(ctx, name)
}

type fileObject struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// UploadFile uploads file content for assistant use and returns the file id.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var file fileObject
	if err := c.do(req, &file); err != nil {
		return "", err
	}
	if file.ID == "" {
		return "", errors.New("openai response missing file id")
	}
	return file.ID, nil
}

// AttachFile adds an uploaded file to a vector store for indexing.
func (c *Client) AttachFile(ctx context.Context, storeID, fileID string) error {
	body, err := json.Marshal(map[string]string{"file_id": fileID})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/vector_stores/%s/files", c.baseURL, url.PathEscape(storeID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

// DeleteVectorStoreFile detaches a file from a vector store. A file the
// vendor no longer holds yields providers.ErrFileNotFound.
func (c *Client) DeleteVectorStoreFile(ctx context.Context, storeID, fileID string) error {
	endpoint := fmt.Sprintf("%s/vector_stores/%s/files/%s", c.baseURL, url.PathEscape(storeID), url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// DeleteFile deletes an uploaded file entirely.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	endpoint := fmt.Sprintf("%s/files/%s", c.baseURL, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

type responseAnnotation struct {
	Type     string `json:"type"`
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

type responseContent struct {
	Type        string               `json:"type"`
	Text        string               `json:"text"`
	Annotations []responseAnnotation `json:"annotations"`
}

type responseOutput struct {
	Type    string            `json:"type"`
	Content []responseContent `json:"content"`
}

type responseEnvelope struct {
	Output []responseOutput `json:"output"`
}

// Query answers a question grounded on the given vector store via the
// Responses API file_search tool.
func (c *Client) Query(ctx context.Context, storeID, question string) (*entities.QueryAnswer, error) {
	if question == "" {
		return nil, errors.New("question is required")
	}

	payload := map[string]interface{}{
		"model":        c.model,
		"instructions": querySystemPrompt,
		"input":        question,
		"tools": []map[string]interface{}{
			{
				"type":             "file_search",
				"vector_store_ids": []string{storeID},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var envelope responseEnvelope
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}

	answer := &entities.QueryAnswer{
		Provider: config.ProviderOpenAI,
		Model:    c.model,
	}
	for _, out := range envelope.Output {
		for _, content := range out.Content {
			if content.Type != "output_text" || content.Text == "" {
				continue
			}
			if answer.Answer == "" {
				answer.Answer = content.Text
			}
			for _, ann := range content.Annotations {
				if ann.Type == "file_citation" && ann.FileID != "" {
					answer.Citations = append(answer.Citations, entities.Citation{
						FileID:   ann.FileID,
						FileName: ann.Filename,
					})
				}
			}
		}
	}

	if answer.Answer == "" {
		return nil, errors.New("openai response missing output text")
	}
	return answer, nil
}

// do executes a request with auth headers, rate limiting and metrics, and
// decodes the response body into out when non-nil.
func (c *Client) do(req *http.Request, out interface{}) error {
	ctx := req.Context()

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordOpenAIMetric(ctx, c.model, 0, 0, err)
			return err
		}
		recordOpenAIRateLimitWait(ctx, c.model, time.Since(waitStart))
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordOpenAIMetric(ctx, c.model, 0, time.Since(start), err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		recordOpenAIMetric(ctx, c.model, resp.StatusCode, time.Since(start), providers.ErrFileNotFound)
		return fmt.Errorf("%w: %s", providers.ErrFileNotFound, req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		recordOpenAIMetric(ctx, c.model, resp.StatusCode, time.Since(start), fmt.Errorf("status %d", resp.StatusCode))
		return fmt.Errorf("openai request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			recordOpenAIMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
			return err
		}
	}

	recordOpenAIMetric(ctx, c.model, resp.StatusCode, time.Since(start), nil)
	return nil
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return newTokenBucketWithRate(rpm, burst)
}

type tokenBucket struct {
	tokens chan struct{}
}

func newTokenBucketWithRate(rpm int, burst int) *tokenBucket {
	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}

	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}
