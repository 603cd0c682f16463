package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/providers"
	"github.com/foiacoach/backend/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	defaultUploadBaseURL = "https://generativelanguage.googleapis.com/upload/v1beta"

	// operationPollInterval paces the wait for document import operations.
	operationPollInterval = 2 * time.Second
	operationPollTimeout  = 2 * time.Minute
)

// Client wraps the Gemini file-search store API.
type Client struct {
	apiKey        string
	model         string
	baseURL       string
	uploadBaseURL string
	httpClient    *http.Client
}

// NewClient creates a new Gemini client.
func NewClient(cfg *config.GeminiConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	return &Client{
		apiKey:        cfg.APIKey,
		model:         model,
		baseURL:       defaultBaseURL,
		uploadBaseURL: defaultUploadBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

type fileSearchStore struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type fileSearchStoreList struct {
	FileSearchStores []fileSearchStore `json:"fileSearchStores"`
}

// FindStore returns the resource name of the store with the given display
// name, or "" when none exists.
func (c *Client) FindStore(ctx context.Context, displayName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fileSearchStores?pageSize=100", nil)
	if err != nil {
		return "", err
	}

	var list fileSearchStoreList
	if err := c.do(req, &list); err != nil {
		return "", err
	}

	for _, store := range list.FileSearchStores {
		if store.DisplayName == displayName {
			return store.Name, nil
		}
	}
	return "", nil
}

// CreateStore creates a file search store and returns its resource name.
func (c *Client) CreateStore(ctx context.Context, displayName string) (string, error) {
	body, err := json.Marshal(map[string]string{"displayName": displayName})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fileSearchStores", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var store fileSearchStore
	if err := c.do(req, &store); err != nil {
		return "", err
	}
	if store.Name == "" {
		return "", errors.New("gemini response missing store name")
	}
	return store.Name, nil
}

// GetOrCreateStore finds the store by display name, creating it when absent.
// Repeated calls return the same resource name.
func (c *Client) GetOrCreateStore(ctx context.Context, displayName string) (string, error) {
	name, err := c.FindStore(ctx, displayName)
	if err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}
	return c.CreateStore(ctx, displayName)
}

type operationDocument struct {
	Name string `json:"name"`
}

type operationResponse struct {
	Document operationDocument `json:"document"`
}

type operation struct {
	Name     string            `json:"name"`
	Done     bool              `json:"done"`
	Response operationResponse `json:"response"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// UploadToStore imports file content into a store and waits for the import
// operation to finish, returning the resulting document name.
func (c *Client) UploadToStore(ctx context.Context, storeName, displayName string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return "", err
	}
	meta, err := json.Marshal(map[string]string{"displayName": displayName})
	if err != nil {
		return "", err
	}
	if _, err := metaPart.Write(meta); err != nil {
		return "", err
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", "application/octet-stream")
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(mediaPart, content); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s:uploadToFileSearchStore", c.uploadBaseURL, storeName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())
	req.Header.Set("X-Goog-Upload-Protocol", "multipart")

	var op operation
	if err := c.do(req, &op); err != nil {
		return "", err
	}

	op2, err := c.waitForOperation(ctx, op)
	if err != nil {
		return "", err
	}
	if op2.Response.Document.Name == "" {
		return "", errors.New("gemini import operation returned no document")
	}
	return op2.Response.Document.Name, nil
}

// waitForOperation polls a long-running operation until done or timeout.
func (c *Client) waitForOperation(ctx context.Context, op operation) (operation, error) {
	deadline := time.Now().Add(operationPollTimeout)
	for {
		if op.Error != nil {
			return op, fmt.Errorf("gemini operation failed: %s", op.Error.Message)
		}
		if op.Done {
			return op, nil
		}
		if op.Name == "" {
			return op, errors.New("gemini operation has no name to poll")
		}
		if time.Now().After(deadline) {
			return op, fmt.Errorf("gemini operation %s did not finish within %s", op.Name, operationPollTimeout)
		}

		select {
		case <-ctx.Done():
			return op, ctx.Err()
		case <-time.After(operationPollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+op.Name, nil)
		if err != nil {
			return op, err
		}
		var next operation
		if err := c.do(req, &next); err != nil {
			return op, err
		}
		op = next
	}
}

// DeleteDocument removes a document from its store. A document the vendor no
// longer holds yields providers.ErrFileNotFound.
func (c *Client) DeleteDocument(ctx context.Context, documentName string) error {
	endpoint := fmt.Sprintf("%s/%s?force=true", c.baseURL, documentName)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

type contentPart struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type retrievedContext struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URI   string `json:"uri"`
}

type groundingChunk struct {
	RetrievedContext *retrievedContext `json:"retrievedContext"`
}

type groundingMetadata struct {
	GroundingChunks []groundingChunk `json:"groundingChunks"`
}

type candidate struct {
	Content           content            `json:"content"`
	GroundingMetadata *groundingMetadata `json:"groundingMetadata"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

// Query answers a question grounded on the given file search store.
func (c *Client) Query(ctx context.Context, storeName, question string) (*entities.QueryAnswer, error) {
	if question == "" {
		return nil, errors.New("question is required")
	}

	payload := map[string]interface{}{
		"systemInstruction": map[string]interface{}{
			"parts": []map[string]string{{"text": querySystemPrompt}},
		},
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": question}},
			},
		},
		"tools": []map[string]interface{}{
			{
				"fileSearch": map[string]interface{}{
					"fileSearchStoreNames": []string{storeName},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp generateResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 {
		return nil, errors.New("gemini response has no candidates")
	}

	answer := &entities.QueryAnswer{
		Provider: config.ProviderGemini,
		Model:    c.model,
	}
	cand := resp.Candidates[0]
	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			answer.Answer += part.Text
		}
	}
	if answer.Answer == "" {
		return nil, errors.New("gemini response missing answer text")
	}

	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.RetrievedContext == nil {
				continue
			}
			answer.Citations = append(answer.Citations, entities.Citation{
				FileID:   chunk.RetrievedContext.URI,
				FileName: chunk.RetrievedContext.Title,
				Snippet:  chunk.RetrievedContext.Text,
			})
		}
	}

	return answer, nil
}

// querySystemPrompt mirrors the OpenAI client's grounding instruction.
const querySystemPrompt = `You are FOIA Coach, an assistant helping journalists and members of the public
file public-records requests. Answer using only the jurisdiction legal resources available through file
search. Cite the documents you relied on. When the resources do not cover the question, say so plainly
instead of guessing at statutes, deadlines, or fees.`

// do executes a request with the API key header and metrics, decoding the
// response into out when non-nil.
func (c *Client) do(req *http.Request, out interface{}) error {
	ctx := req.Context()
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordGeminiMetric(ctx, c.model, 0, time.Since(start), err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		recordGeminiMetric(ctx, c.model, resp.StatusCode, time.Since(start), providers.ErrFileNotFound)
		return fmt.Errorf("%w: %s", providers.ErrFileNotFound, req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		recordGeminiMetric(ctx, c.model, resp.StatusCode, time.Since(start), fmt.Errorf("status %d", resp.StatusCode))
		return fmt.Errorf("gemini request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			recordGeminiMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
			return err
		}
	}

	recordGeminiMetric(ctx, c.model, resp.StatusCode, time.Since(start), nil)
	return nil
}

type geminiMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
}

var geminiMetricsInit = false
var geminiMetricsHolder geminiMetrics

func ensureGeminiMetrics() {
	if geminiMetricsInit {
		return
	}
	meter := otel.Meter("github.com/foiacoach/backend/gemini")

	requestCount, err := meter.Int64Counter(
		"ai.gemini.request.count",
		metric.WithDescription("Number of Gemini requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"ai.gemini.request.duration",
		metric.WithDescription("Gemini request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"ai.gemini.request.errors",
		metric.WithDescription("Number of Gemini request errors"),
	)
	if err != nil {
		return
	}

	geminiMetricsHolder = geminiMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
	}
	geminiMetricsInit = true
}

func recordGeminiMetric(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	ensureGeminiMetrics()
	if !geminiMetricsInit {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	geminiMetricsHolder.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	geminiMetricsHolder.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		geminiMetricsHolder.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
