package checker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	"github.com/EgorSmi/hack-fake-news/internal/pipeline"
	"github.com/EgorSmi/hack-fake-news/internal/search/lexical"
)

func testServer(t *testing.T, service *Service) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	cache := NewVerdictCache(nil, time.Minute, nil)
	NewHandler(service, cache, nil).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func postCheck(t *testing.T, server *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/v1/check", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/v1/check: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandlerCheck(t *testing.T) {
	server := testServer(t, testService(t))

	resp := postCheck(t, server, `{"content":"москва строится."}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result CheckResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !result.Matched || result.Result != 100 {
		t.Errorf("result = %+v, want a 100-score match", result)
	}
	if len(result.Articles) == 0 {
		t.Fatal("no evidence articles in response")
	}
	if !strings.Contains(result.Articles[0].Pattern, "<h>") {
		t.Errorf("pattern %q carries no highlight markers", result.Articles[0].Pattern)
	}
}

func TestHandlerRejectsEmptyContent(t *testing.T) {
	server := testServer(t, testService(t))

	if resp := postCheck(t, server, `{"title":"x","content":"  "}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank content: status = %d, want 400", resp.StatusCode)
	}
	if resp := postCheck(t, server, `{not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlerServiceUnavailableWithoutSnapshot(t *testing.T) {
	service := NewService(
		&nlp.FakeExtractor{},
		&nlp.FakeLemmatizer{},
		&nlp.FakeEmbedder{},
		&nlp.FakeSentiment{},
		pipeline.Params{Mode: lexical.ModeBM25, PrefilterK: 1, TopK: 1, HighlightTopN: 1},
		"v1",
		nil,
	)
	server := testServer(t, service)

	resp := postCheck(t, server, `{"content":"любой текст."}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 while no snapshot is loaded", resp.StatusCode)
	}
}
