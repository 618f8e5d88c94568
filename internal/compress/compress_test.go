package compress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompress_DisabledIsIdentity(t *testing.T) {
	c := NewDisabled()
	res := c.Compress(context.Background(), strings.Repeat("x", 5000), 0.4)
	if res.WasCompressed {
		t.Fatal("expected identity result when disabled")
	}
	if res.OutputText != strings.Repeat("x", 5000) {
		t.Fatal("expected output text unchanged")
	}
}

func TestCompress_ShortContentSkipsService(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`{"compressed_text":"short"}`))
	}))
	defer srv.Close()

	c := &Compressor{Enabled: true, MinContentLength: 1000, ServiceURL: srv.URL}
	res := c.Compress(context.Background(), "too short", 0.4)
	if called {
		t.Fatal("service should not be called for short content")
	}
	if res.WasCompressed {
		t.Fatal("expected identity result for short content")
	}
}

func TestCompress_ServiceFailureDegradesToIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Compressor{Enabled: true, MinContentLength: 10, ServiceURL: srv.URL}
	long := strings.Repeat("word ", 500)
	res := c.Compress(context.Background(), long, 0.4)
	if res.WasCompressed {
		t.Fatal("expected identity result on service failure")
	}
	if res.OutputText != long {
		t.Fatal("expected original text returned on failure")
	}
}

func TestCompress_SuccessfulCallReturnsCompressedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"compressed_text":"shortened"}`))
	}))
	defer srv.Close()

	c := &Compressor{Enabled: true, MinContentLength: 10, ServiceURL: srv.URL}
	long := strings.Repeat("word ", 500)
	res := c.Compress(context.Background(), long, 0.4)
	if !res.WasCompressed || res.OutputText != "shortened" {
		t.Fatalf("expected compressed output, got %+v", res)
	}
}
