// Package verishot provides a self-contained rod-based verifier for
// callers who want element verification without managing a Chrome
// DevTools task pipeline.
package verishot

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/root4loot/goutils/log"
)

type Verifier struct {
	Debug          bool
	CaptureOptions captureOptions
}

// Result contains the result of a single verification.
type Result struct {
	TargetURL  string
	LandingURL string
	Selector   string
	Image      []byte
	HTML       string // page markup, set when the element wait failed
	StatusCode int
}

// captureOptions contains the options for verification captures.
type captureOptions struct {
	CaptureHeight      int    // Height of the capture
	CaptureWidth       int    // Width of the capture
	Timeout            int    // Timeout waiting for the element (seconds)
	UserAgent          string // User agent
	DelayBeforeCapture int    // Delay between element match and capture (seconds)
	CaptureFull        bool   // Take a full-page screenshot
	Headless           bool   // Run without a visible window
}

// NewOptions returns a captureOptions struct initialized with default values.
func NewOptions() captureOptions {
	return captureOptions{
		CaptureHeight: 1080,
		CaptureWidth:  1920,
		Timeout:       10,
		CaptureFull:   true,
		Headless:      true,
	}
}

// NewVerifier creates a Verifier with default options.
func NewVerifier() *Verifier {
	return &Verifier{
		CaptureOptions: NewOptions(),
	}
}

// NewVerifierWithOptions creates a Verifier with the provided options.
func NewVerifierWithOptions(options captureOptions) *Verifier {
	return &Verifier{
		CaptureOptions: options,
	}
}

// SetDebug enables or disables debug mode.
func (v *Verifier) SetDebug(debug bool) {
	v.Debug = debug
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func Init() {
	log.Init("verishot")
	log.SetLevel(log.InfoLevel)
}

// VerifyElement navigates to the URL, waits for the selector to appear and
// captures a screenshot. When the wait fails, the returned result carries
// the page's current markup and the error describes the failed wait. The
// browser is closed on every path.
func (v *Verifier) VerifyElement(parsedURL *url.URL, selector string) (*Result, error) {
	targetURL := parsedURL.String()
	result := &Result{TargetURL: targetURL, Selector: selector}

	log.Debugf("Attempting verification of %q on %s", selector, targetURL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(v.CaptureOptions.Timeout)*time.Second)
	defer cancel()

	path, _ := launcher.LookPath()

	l := launcher.New().
		Headless(v.CaptureOptions.Headless).
		Bin(path).
		NoSandbox(true)

	if v.CaptureOptions.UserAgent != "" {
		l.Set("user-agent", v.CaptureOptions.UserAgent)
	}

	browserURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("error launching browser: %w", err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("error connecting to browser: %w", err)
	}
	defer browser.MustClose()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("error creating page: %w", err)
	}

	if v.CaptureOptions.CaptureWidth != 0 && v.CaptureOptions.CaptureHeight != 0 {
		viewport := &proto.EmulationSetDeviceMetricsOverride{
			Width:             v.CaptureOptions.CaptureWidth,
			Height:            v.CaptureOptions.CaptureHeight,
			DeviceScaleFactor: 1,
			Mobile:            false,
		}

		if err := page.SetViewport(viewport); err != nil {
			return nil, fmt.Errorf("error setting viewport: %w", err)
		}
	}

	var e proto.NetworkResponseReceived
	wait := page.WaitEvent(&e)

	if err := page.Context(ctx).Navigate(targetURL); err != nil {
		return nil, fmt.Errorf("error navigating to %s: %w", targetURL, err)
	}

	wait()
	result.StatusCode = e.Response.Status

	if _, err := page.Context(ctx).Element(selector); err != nil {
		// Keep the current markup around for offline inspection.
		if html, herr := page.HTML(); herr == nil {
			result.HTML = html
		}
		return result, fmt.Errorf("%q did not appear on %s within %v: %w",
			selector, targetURL, time.Duration(v.CaptureOptions.Timeout)*time.Second, err)
	}

	if v.CaptureOptions.DelayBeforeCapture > 0 {
		time.Sleep(time.Duration(v.CaptureOptions.DelayBeforeCapture) * time.Second)
	}

	result.LandingURL = page.MustInfo().URL

	result.Image, err = page.Screenshot(v.CaptureOptions.CaptureFull, nil)
	if err != nil {
		return nil, fmt.Errorf("error capturing screenshot for %s: %w", targetURL, err)
	}

	return result, nil
}

// SaveImage writes the captured image to the provided path, creating
// parent directories and overwriting any existing file.
func (result Result) SaveImage(path string) (filename string, err error) {
	if len(result.Image) == 0 {
		return "", nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return "", err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err = file.Write(result.Image); err != nil {
		return "", err
	}

	return path, nil
}
