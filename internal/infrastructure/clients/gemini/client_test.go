package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{
		apiKey:        "test-key",
		model:         "gemini-2.0-flash",
		baseURL:       srv.URL,
		uploadBaseURL: srv.URL + "/upload",
		httpClient:    &http.Client{Timeout: 5 * time.Second},
	}
}

func TestGetOrCreateStore_FindsExisting(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/fileSearchStores":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"fileSearchStores": []map[string]string{
					{"name": "fileSearchStores/store-1", "displayName": "foia-coach-resources"},
				},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/fileSearchStores":
			created = true
			json.NewEncoder(w).Encode(map[string]string{"name": "fileSearchStores/store-2"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := testClient(srv)
	name, err := client.GetOrCreateStore(context.Background(), "foia-coach-resources")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "fileSearchStores/store-1" {
		t.Errorf("expected existing store, got %s", name)
	}
	if created {
		t.Error("should not create a store when one already exists")
	}
}

func TestUploadToStore_WaitsForOperation(t *testing.T) {
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ":uploadToFileSearchStore"):
			if r.Header.Get("x-goog-api-key") != "test-key" {
				t.Error("missing api key header")
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"name": "operations/op-1",
				"done": false,
			})
		case r.URL.Path == "/operations/op-1":
			polls++
			json.NewEncoder(w).Encode(map[string]interface{}{
				"name": "operations/op-1",
				"done": true,
				"response": map[string]interface{}{
					"document": map[string]string{"name": "fileSearchStores/store-1/documents/doc-1"},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := testClient(srv)
	doc, err := client.UploadToStore(context.Background(), "fileSearchStores/store-1", "CO-law_guide", strings.NewReader("cora guide"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != "fileSearchStores/store-1/documents/doc-1" {
		t.Errorf("unexpected document name: %s", doc)
	}
	if polls != 1 {
		t.Errorf("expected one poll, got %d", polls)
	}
}

func TestQuery_ParsesGroundingCitations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"role":  "model",
						"parts": []map[string]string{{"text": "New York uses FOIL, with a five-day acknowledgment window."}},
					},
					"groundingMetadata": map[string]interface{}{
						"groundingChunks": []map[string]interface{}{
							{
								"retrievedContext": map[string]string{
									"title": "NY-law_guide",
									"text":  "FOIL requires agencies to respond within five business days.",
									"uri":   "fileSearchStores/store-1/documents/doc-2",
								},
							},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	client := testClient(srv)
	answer, err := client.Query(context.Background(), "fileSearchStores/store-1", "How fast must NY respond?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer.Answer, "FOIL") {
		t.Errorf("unexpected answer: %s", answer.Answer)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(answer.Citations))
	}
	if answer.Citations[0].FileName != "NY-law_guide" {
		t.Errorf("wrong citation title: %s", answer.Citations[0].FileName)
	}
}

func TestQuery_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer srv.Close()

	client := testClient(srv)
	_, err := client.Query(context.Background(), "fileSearchStores/store-1", "anything")
	if err == nil {
		t.Fatal("expected error when response has no candidates")
	}
}
