package verishot

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const dashboardPage = `<!DOCTYPE html>
<html>
<head><title>Dashboard</title></head>
<body>
<header><h1>Dashboard</h1></header>
<main>content</main>
</body>
</html>`

const bareBonesPage = `<!DOCTYPE html>
<html>
<head><title>Empty</title></head>
<body><main>no header here</main></body>
</html>`

func newTestRunner(t *testing.T, outputPath string) *Runner {
	t.Helper()

	options := *DefaultOptions()
	options.Timeout = 5
	options.OutputPath = outputPath
	options.Silence = true
	return NewRunnerWithOptions(options)
}

func TestVerifySavesScreenshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(dashboardPage))
	}))
	defer srv.Close()

	outputPath := filepath.Join(t.TempDir(), "dashboard_header.png")
	r := newTestRunner(t, outputPath)

	result := r.Verify(Check{URL: srv.URL})
	if result.Error != nil {
		t.Fatalf("Verify failed: %v", result.Error)
	}
	if len(result.Image) == 0 {
		t.Fatal("Captured image is empty")
	}

	fn, err := result.WriteToFile()
	if err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}
	if _, err := os.Stat(fn); err != nil {
		t.Fatalf("Expected image file at %s: %v", fn, err)
	}
}

func TestVerifyOverwritesExistingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(dashboardPage))
	}))
	defer srv.Close()

	outputPath := filepath.Join(t.TempDir(), "dashboard_header.png")
	r := newTestRunner(t, outputPath)

	for i := 0; i < 2; i++ {
		result := r.Verify(Check{URL: srv.URL})
		if result.Error != nil {
			t.Fatalf("Run %d failed: %v", i+1, result.Error)
		}
		if _, err := result.WriteToFile(); err != nil {
			t.Fatalf("Run %d could not write file: %v", i+1, err)
		}
	}

	if _, err := os.Stat(outputPath); err != nil {
		t.Fatalf("Expected image file at %s: %v", outputPath, err)
	}
}

func TestVerifyMissingElementDumpsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bareBonesPage))
	}))
	defer srv.Close()

	outputPath := filepath.Join(t.TempDir(), "dashboard_header.png")
	r := newTestRunner(t, outputPath)
	r.Options.Timeout = 3

	result := r.Verify(Check{URL: srv.URL})
	if result.Error == nil {
		t.Fatal("Expected error for page without the header element")
	}
	if result.HTML == "" {
		t.Error("Expected page markup in the result for offline inspection")
	}
	if len(result.Image) != 0 {
		t.Error("Expected no image for a failed verification")
	}

	if fn, err := result.WriteToFile(); err != nil || fn != "" {
		t.Errorf("Expected no file write for empty image, got %q (%v)", fn, err)
	}
	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Errorf("Expected no image file at %s", outputPath)
	}
}

func TestVerifyUnreachableServer(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "dashboard_header.png")
	r := newTestRunner(t, outputPath)
	r.Options.Timeout = 3

	// Port from a server that is already closed.
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	result := r.Verify(Check{URL: target})
	if result.Error == nil {
		t.Fatal("Expected error for unreachable server")
	}
	if len(result.Image) != 0 {
		t.Error("Expected no image for unreachable server")
	}
}

func TestWriteToFileCreatesParentDirs(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "nested", "dir", "capture.png")
	result := Result{
		Check: Check{OutputPath: outputPath},
		Image: []byte("not-a-real-png"),
	}

	fn, err := result.WriteToFile()
	if err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}
	if fn != outputPath {
		t.Errorf("Expected filename %s, got %s", outputPath, fn)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Could not read back file: %v", err)
	}
	if string(data) != "not-a-real-png" {
		t.Error("File content does not match image data")
	}
}
