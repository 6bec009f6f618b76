package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/root4loot/goutils/log"
	verishot "github.com/verishot/verishot"
)

func init() {
	log.Init("verishot")
}

func main() {
	cli := NewCLI()
	cli.parseFlags()
	cli.checkForExits()

	runner := cli.Runner
	verishot.SetLogLevel(runner.Options)

	checks := cli.gatherChecks()
	if len(checks) == 1 {
		handleResult(runner.Verify(checks[0]))
		return
	}

	results := make(chan verishot.Result)
	go runner.VerifyAllStream(results, checks...)

	for result := range results {
		handleResult(result)
	}
}

// handleResult saves the capture on success and reports a diagnostic,
// including the page markup when available, on failure.
func handleResult(result verishot.Result) {
	if result.Error != nil {
		handleVerifyError(result.Check.URL, result.Error)
		if result.HTML != "" {
			fmt.Fprintln(os.Stdout, result.HTML)
		}
		return
	}

	fn, err := result.WriteToFile()
	if err != nil {
		log.Errorf("Error saving screenshot for %s: %v", result.Check.URL, err)
		return
	}

	log.Resultf("Screenshot saved to %s", fn)
}

func handleVerifyError(target string, err error) {
	switch {
	case isDNSError(err):
		log.Warnf("DNS lookup failed for %s", target)
	case isConnectionRefused(err):
		log.Warnf("Connection refused for %s", target)
	case isTimeoutError(err):
		log.Errorf("Error waiting for element on %s: %s", target, unwrapError(err))
	default:
		log.Errorf("Error verifying %s: %s", target, unwrapError(err))
	}
}

func isDNSError(err error) bool {
	if err == nil {
		return false
	}

	errMessage := getFullErrorMessage(err)
	return strings.Contains(errMessage, "net::ERR_NAME_NOT_RESOLVED") ||
		strings.Contains(errMessage, "no such host")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}

	errMessage := getFullErrorMessage(err)
	return strings.Contains(errMessage, "net::ERR_CONNECTION_REFUSED") ||
		strings.Contains(errMessage, "connection refused")
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errMessage := getFullErrorMessage(err)
	return strings.Contains(errMessage, "context deadline exceeded") ||
		strings.Contains(errMessage, "timeout")
}

func getFullErrorMessage(err error) string {
	var sb strings.Builder
	for err != nil {
		sb.WriteString(err.Error())
		err = errors.Unwrap(err)
		if err != nil {
			sb.WriteString(" | ")
		}
	}
	return sb.String()
}

func unwrapError(err error) string {
	rootErr := err
	for {
		unwrappedErr := errors.Unwrap(rootErr)
		if unwrappedErr == nil {
			break
		}
		rootErr = unwrappedErr
	}
	return rootErr.Error()
}
