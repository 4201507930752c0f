package sourcemap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPFetcherFollowsSourceMappingURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/static/all.min.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("var a=1;\n//# sourceMappingURL=maps/all.min.js.map\n"))
	})
	mux.HandleFunc("/static/maps/all.min.js.map", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testMap))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	body, err := f.Fetch(context.Background(), "p1", srv.URL+"/static/all.min.js?1528101883", "1528101883")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != testMap {
		t.Errorf("wrong map body: %s", body)
	}
}

func TestHTTPFetcherMapConvention(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/all.min.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("var a=1;")) // no sourceMappingURL comment
	})
	mux.HandleFunc("/all.min.js.map", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testMap))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	body, err := f.Fetch(context.Background(), "p1", srv.URL+"/all.min.js", "rev1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(body) != testMap {
		t.Errorf("wrong map body: %s", body)
	}
}

func TestHTTPFetcherMissingSource(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	if _, err := f.Fetch(context.Background(), "p1", srv.URL+"/gone.js", "rev1"); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestHTTPFetcherMissingMap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/all.min.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("var a=1;"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	if _, err := f.Fetch(context.Background(), "p1", srv.URL+"/all.min.js", "rev1"); err == nil {
		t.Error("expected error when the conventional map is absent")
	}
}
