package verishot

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/root4loot/goscope"
	"github.com/root4loot/goutils/log"
)

const Version = "0.1.0"

type Runner struct {
	Options *Options
	visited map[string]bool
	mutex   sync.Mutex
}

// Options contains options for the runner
type Options struct {
	Concurrency             int            // number of concurrent verifications
	Selector                string         // default CSS selector to wait for
	OutputPath              string         // default path for the captured image
	CaptureHeight           int            // height of the capture
	CaptureWidth            int            // width of the capture
	CaptureFull             bool           // capture entire page content
	Timeout                 int            // timeout waiting for the selector (seconds)
	IgnoreCertificateErrors bool           // Ignore certificate errors
	DisableHTTP2            bool           // Disable HTTP2
	DelayBeforeCapture      int            // Delay between element match and capture (seconds)
	ImprintURL              bool           // Imprint target URL and selector on image
	Scope                   *goscope.Scope // Scope to use
	UserAgent               string         // User agent to use
	Headless                bool           // Run in headless mode
	Silence                 bool           // Silence output
	Verbose                 bool           // Verbose logging
}

// Check describes a single verification: wait for Selector on URL and
// write the capture to OutputPath. Empty fields fall back to the
// runner's Options.
type Check struct {
	URL        string
	Selector   string
	OutputPath string
}

// Result contains the outcome of a single verification.
type Result struct {
	Check    Check
	FinalURL string
	Image    []byte
	HTML     string // page markup, populated when the wait fails on a loaded document
	Error    error
	Duration time.Duration
}

func (r Result) OK() bool {
	return r.Error == nil
}

func init() {
	log.Init("verishot")
}

// DefaultOptions returns default options
func DefaultOptions() *Options {
	return &Options{
		Concurrency:             5,
		Selector:                "header",
		OutputPath:              "verification/dashboard_header.png",
		Timeout:                 10,
		CaptureWidth:            1920,
		CaptureHeight:           1080,
		CaptureFull:             true,
		IgnoreCertificateErrors: true,
		DisableHTTP2:            true,
		ImprintURL:              false,
		Headless:                true,
	}
}

// NewRunner returns a new runner
func NewRunner() *Runner {
	options := DefaultOptions()
	options.Scope = goscope.NewScope()

	return &Runner{
		Options: options,
		visited: make(map[string]bool),
	}
}

// NewRunnerWithOptions returns a new runner with the specified options
func NewRunnerWithOptions(options Options) *Runner {
	SetLogLevel(&options)

	// If no scope is specified, create a new one
	if options.Scope == nil {
		options.Scope = goscope.NewScope()
	}

	return &Runner{
		Options: &options,
		visited: make(map[string]bool),
	}
}

// Verify runs a single check and returns the result.
func (r *Runner) Verify(check Check) Result {
	check = r.resolveCheck(check)

	normalizedURL, err := normalize(check.URL)
	if err != nil {
		log.Warnf("Could not normalize target %s: %v", check.URL, err)
		return Result{Check: check, Error: err}
	}
	check.URL = normalizedURL

	return r.worker(check)
}

// VerifyAll runs multiple checks with bounded concurrency and returns the results.
func (r *Runner) VerifyAll(checks []Check) (results []Result) {
	sem := make(chan struct{}, r.Options.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, check := range r.inScope(checks) {
		sem <- struct{}{}
		wg.Add(1)
		go func(c Check) {
			defer func() { <-sem }()
			defer wg.Done()
			res := r.Verify(c)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	return results
}

// VerifyAllStream runs multiple checks and streams the results using channels
func (r *Runner) VerifyAllStream(resultsChan chan<- Result, checks ...Check) {
	defer close(resultsChan)

	sem := make(chan struct{}, r.Options.Concurrency)
	var wg sync.WaitGroup
	for _, check := range r.inScope(checks) {
		sem <- struct{}{}
		wg.Add(1)
		go func(c Check) {
			defer func() { <-sem }()
			defer wg.Done()
			resultsChan <- r.Verify(c)
		}(check)
	}
	wg.Wait()
}

// inScope registers every check target with the scope and filters out
// excluded targets and checks already seen by this runner.
func (r *Runner) inScope(checks []Check) (kept []Check) {
	for _, check := range checks {
		check = r.resolveCheck(check)

		r.mutex.Lock()
		r.Options.Scope.AddTargetToScope(check.URL)
		r.mutex.Unlock()

		if r.Options.Scope.IsTargetExcluded(check.URL) {
			log.Infof("Skipping %s as it is excluded from scope", check.URL)
			continue
		}

		key := check.URL + "|" + check.Selector
		if r.isVisited(key) {
			log.Debugf("Skipping duplicate check %s", key)
			continue
		}
		r.addVisited(key)

		kept = append(kept, check)
	}
	return kept
}

// resolveCheck fills empty check fields from the runner options.
func (r *Runner) resolveCheck(check Check) Check {
	if check.Selector == "" {
		check.Selector = r.Options.Selector
	}
	if check.OutputPath == "" {
		check.OutputPath = r.Options.OutputPath
	}
	return check
}

// GetCustomFlags returns custom chromedp.ExecAllocatorOptions based on the Runner's Options.
func (r *Runner) GetCustomFlags() []chromedp.ExecAllocatorOption {
	var customFlags []chromedp.ExecAllocatorOption

	if r.Options.Headless {
		customFlags = append(customFlags, chromedp.Flag("headless", true))
	}

	if r.Options.IgnoreCertificateErrors {
		customFlags = append(customFlags, chromedp.Flag("ignore-certificate-errors", true))
	}

	if r.Options.DisableHTTP2 {
		customFlags = append(customFlags, chromedp.Flag("disable-http2", true))
	}

	return customFlags
}

// normalize ensures that the target has a scheme and a path.
func normalize(target string) (string, error) {
	target = strings.TrimSpace(target)

	// Local verification targets default to http
	if !hasScheme(target) {
		target = "http://" + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}

	if u.Path == "" {
		u.Path = "/"
	}

	// Set scheme from well-known ports
	if u.Port() == "443" {
		u.Scheme = "https"
		u.Host = strings.Split(u.Host, ":")[0]
	} else if u.Port() == "80" {
		u.Scheme = "http"
		u.Host = strings.Split(u.Host, ":")[0]
	}

	return u.String(), nil
}

// hasScheme checks if the target has a scheme
func hasScheme(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

func (r *Runner) addVisited(str string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.visited[str] = true
}

func (r *Runner) isVisited(str string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.visited[str]
}

// SetLogLevel initiates the logger and sets the log level based on the options
func SetLogLevel(options *Options) {
	if options.Silence {
		log.SetLevel(log.FatalLevel)
	} else if options.Verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
