package openai

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
		apiKey:     "sk-test",
		model:      "gpt-4o-mini",
		baseURL:    srv.URL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestGetOrCreateVectorStore_FindsExisting(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/vector_stores":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{
					{"id": "vs_abc", "name": "foia-coach-resources"},
					{"id": "vs_other", "name": "something-else"},
				},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/vector_stores":
			created = true
			json.NewEncoder(w).Encode(map[string]string{"id": "vs_new"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := testClient(srv)
	id, err := client.GetOrCreateVectorStore(context.Background(), "foia-coach-resources")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "vs_abc" {
		t.Errorf("expected vs_abc, got %s", id)
	}
	if created {
		t.Error("should not create a store when one already exists")
	}
}

func TestGetOrCreateVectorStore_CreatesWhenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/vector_stores":
			json.NewEncoder(w).Encode(map[string]interface{}{"data": []map[string]string{}})
		case r.Method == http.MethodPost && r.URL.Path == "/vector_stores":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["name"] != "foia-coach-resources" {
				t.Errorf("unexpected store name: %s", body["name"])
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "vs_new"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := testClient(srv)
	id, err := client.GetOrCreateVectorStore(context.Background(), "foia-coach-resources")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "vs_new" {
		t.Errorf("expected vs_new, got %s", id)
	}
}

func TestUploadFile_SendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		if got := r.FormValue("purpose"); got != "assistants" {
			t.Errorf("expected purpose=assistants, got %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "CO-law_guide.pdf" {
			t.Errorf("unexpected filename: %s", header.Filename)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "file-123"})
	}))
	defer srv.Close()

	client := testClient(srv)
	id, err := client.UploadFile(context.Background(), "CO-law_guide.pdf", strings.NewReader("colorado cora guide"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "file-123" {
		t.Errorf("expected file-123, got %s", id)
	}
}

func TestQuery_ParsesAnswerAndCitations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		tools, ok := payload["tools"].([]interface{})
		if !ok || len(tools) != 1 {
			t.Errorf("expected one file_search tool, got %v", payload["tools"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"output": []map[string]interface{}{
				{
					"type": "message",
					"content": []map[string]interface{}{
						{
							"type": "output_text",
							"text": "Colorado requests go through CORA.",
							"annotations": []map[string]string{
								{"type": "file_citation", "file_id": "file-123", "filename": "CO-law_guide.pdf"},
							},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	client := testClient(srv)
	answer, err := client.Query(context.Background(), "vs_abc", "How do I file in Colorado?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Answer != "Colorado requests go through CORA." {
		t.Errorf("wrong answer: %s", answer.Answer)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(answer.Citations))
	}
	if answer.Citations[0].FileID != "file-123" {
		t.Errorf("wrong citation file id: %s", answer.Citations[0].FileID)
	}
}

func TestQuery_MissingOutputText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"output": []map[string]interface{}{}})
	}))
	defer srv.Close()

	client := testClient(srv)
	_, err := client.Query(context.Background(), "vs_abc", "anything")
	if err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestDo_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testClient(srv)
	_, err := client.CreateVectorStore(context.Background(), "store")
	if err == nil {
		t.Fatal("expected error for 500 status")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected status in error, got: %v", err)
	}
}
