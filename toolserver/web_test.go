package toolserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>hello</html>"))
	}))
	defer ts.Close()

	w := &webServer{client: ts.Client()}
	res, err := w.handleFetch(context.Background(), callReq("fetch", map[string]interface{}{"url": ts.URL}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); got != "<html>hello</html>" {
		t.Errorf("unexpected body: %q", got)
	}
}

func TestFetchHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	w := &webServer{client: ts.Client()}
	res, err := w.handleFetch(context.Background(), callReq("fetch", map[string]interface{}{"url": ts.URL}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); !strings.Contains(got, "HTTP 404") {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestFetchCapsBody(t *testing.T) {
	big := strings.Repeat("a", maxFetchBytes*2)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(big))
	}))
	defer ts.Close()

	w := &webServer{client: ts.Client()}
	res, err := w.handleFetch(context.Background(), callReq("fetch", map[string]interface{}{"url": ts.URL}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); len(got) != maxFetchBytes {
		t.Errorf("expected body capped at %d bytes, got %d", maxFetchBytes, len(got))
	}
}

func TestFetchConnectionFailure(t *testing.T) {
	w := &webServer{client: &http.Client{}}
	res, err := w.handleFetch(context.Background(), callReq("fetch", map[string]interface{}{
		"url": "http://127.0.0.1:1/unreachable",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); !strings.Contains(got, "Error fetching") {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestSearchStub(t *testing.T) {
	w := &webServer{}
	res, err := w.handleSearch(context.Background(), callReq("search", map[string]interface{}{"query": "go"}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); got != "Search not implemented yet." {
		t.Errorf("unexpected result: %q", got)
	}
}
