package verishot

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func TestNewOptions(t *testing.T) {
	options := NewOptions()

	if options.Timeout != 10 {
		t.Errorf("Expected default timeout 10, got %d", options.Timeout)
	}
	if !options.Headless {
		t.Error("Expected headless by default")
	}
	if !options.CaptureFull {
		t.Error("Expected full-page capture by default")
	}
}

func TestVerifyElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><header>ok</header></body></html>`))
	}))
	defer srv.Close()

	parsedURL, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("Failed to parse URL %s: %v", srv.URL, err)
	}

	verifier := NewVerifier()

	result, err := verifier.VerifyElement(parsedURL, "header")
	if err != nil {
		t.Fatalf("Failed to verify %s: %v", srv.URL, err)
	}
	if result == nil {
		t.Fatal("Result is nil")
	}

	if len(result.Image) == 0 {
		t.Fatal("Captured image is empty")
	}

	if result.StatusCode != 200 {
		t.Fatalf("Expected status code 200, got %d", result.StatusCode)
	}
}

func TestVerifyElementMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><main>no header</main></body></html>`))
	}))
	defer srv.Close()

	parsedURL, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("Failed to parse URL %s: %v", srv.URL, err)
	}

	options := NewOptions()
	options.Timeout = 3
	verifier := NewVerifierWithOptions(options)

	result, err := verifier.VerifyElement(parsedURL, "header")
	if err == nil {
		t.Fatal("Expected error for missing element")
	}
	if result == nil || result.HTML == "" {
		t.Error("Expected page markup in the result for offline inspection")
	}
}

func TestSaveImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verification", "capture.png")
	result := Result{Image: []byte("image-bytes")}

	fn, err := result.SaveImage(path)
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if fn != path {
		t.Errorf("Expected filename %s, got %s", path, fn)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected file at %s: %v", path, err)
	}

	// Saving again overwrites rather than erroring.
	if _, err := result.SaveImage(path); err != nil {
		t.Fatalf("Second SaveImage failed: %v", err)
	}
}

func TestSaveImageEmpty(t *testing.T) {
	result := Result{}
	fn, err := result.SaveImage(filepath.Join(t.TempDir(), "capture.png"))
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if fn != "" {
		t.Errorf("Expected no file for empty image, got %s", fn)
	}
}
