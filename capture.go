package verishot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/root4loot/goutils/log"
)

// worker runs a single check against a dedicated browser instance.
// The browser is released on every exit path.
func (r *Runner) worker(check Check) Result {
	log.Debugf("Running worker on %s (selector %q)", check.URL, check.Selector)

	result := Result{Check: check}
	started := time.Now()

	// Create custom chromedp options by appending the custom flags to the default options.
	opts := append(chromedp.DefaultExecAllocatorOptions[:], r.GetCustomFlags()...)

	if r.Options.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.Options.UserAgent))
	}

	allocator, cancelAllocator := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancelAllocator()

	// Browser context, released unconditionally.
	cctx, cancelContext := chromedp.NewContext(allocator)
	defer cancelContext()

	// Track the final response so redirects are reflected in the result.
	var navigated bool
	chromedp.ListenTarget(cctx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Type == network.ResourceTypeDocument {
			navigated = true
			result.FinalURL = resp.Response.URL
		}
	})

	// Navigation and the element wait share one deadline-bounded context so
	// that a hung navigation and a missing element fail the same way.
	wctx, cancelWait := context.WithTimeout(cctx, time.Duration(r.Options.Timeout)*time.Second)
	defer cancelWait()

	err := chromedp.Run(wctx, chromedp.Tasks{
		chromedp.EmulateViewport(int64(r.Options.CaptureWidth), int64(r.Options.CaptureHeight)),
		chromedp.Navigate(check.URL),
		chromedp.WaitVisible(check.Selector, chromedp.ByQuery),
	})
	if err != nil {
		result.Error = fmt.Errorf("waiting for %q on %s: %w", check.Selector, check.URL, err)
		result.Duration = time.Since(started)

		if errors.Is(err, context.DeadlineExceeded) {
			log.Warnf("Timeout exceeded waiting for %q on %s", check.Selector, check.URL)
		}

		// Dump the current markup for offline inspection. The browser context
		// is still alive; only the wait context expired. Skip the dump when
		// no document ever loaded (connection refused, DNS failure).
		if navigated {
			result.HTML = r.dumpHTML(cctx)
		}

		return result
	}

	if r.Options.DelayBeforeCapture > 0 {
		time.Sleep(time.Duration(r.Options.DelayBeforeCapture) * time.Second)
	}

	capture := chromedp.CaptureScreenshot(&result.Image)
	if r.Options.CaptureFull {
		capture = chromedp.FullScreenshot(&result.Image, 100)
	}

	sctx, cancelShot := context.WithTimeout(cctx, time.Duration(r.Options.Timeout)*time.Second)
	defer cancelShot()

	if err := chromedp.Run(sctx, capture); err != nil {
		result.Error = fmt.Errorf("capturing screenshot for %s: %w", check.URL, err)
		result.Duration = time.Since(started)
		return result
	}

	if r.Options.ImprintURL {
		annotated, err := Image(result.Image).AddCaption(check.URL + "  [" + check.Selector + "]")
		if err != nil {
			log.Warnf("Could not imprint caption for %s: %v", check.URL, err)
		} else {
			result.Image = annotated
		}
	}

	result.Duration = time.Since(started)
	return result
}

// dumpHTML fetches the page's current outer markup with a short grace period.
func (r *Runner) dumpHTML(cctx context.Context) string {
	dctx, cancel := context.WithTimeout(cctx, 5*time.Second)
	defer cancel()

	var html string
	if err := chromedp.Run(dctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		log.Warnf("Could not fetch page markup: %v", err)
		return ""
	}
	return html
}

// WriteToFile writes the captured image to the check's output path,
// creating parent directories and overwriting any existing file.
func (result Result) WriteToFile() (filename string, err error) {
	if len(result.Image) == 0 {
		return "", nil // Skip saving if data is empty.
	}

	path := result.Check.OutputPath
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
