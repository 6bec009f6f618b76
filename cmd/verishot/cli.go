package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/root4loot/goutils/fileutil"
	"github.com/root4loot/goutils/log"
	verishot "github.com/verishot/verishot"
)

const author = "@verishot"

// DefaultTarget is the address the tool verifies when no target is given.
const DefaultTarget = "http://localhost:3001"

type CLI struct {
	*verishot.Runner
	TargetURL string
	Infile    string
	Version   bool
	Help      bool
}

func NewCLI() *CLI {
	return &CLI{Runner: verishot.NewRunner()}
}

func (c *CLI) banner() {
	fmt.Println("\nverishot", verishot.Version, "by", author)
}

func (c *CLI) usage() {
	w := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)

	fmt.Fprintf(w, "Usage:\t%s [options] [-t <target>] [-l <checks.txt>]\n", os.Args[0])

	fmt.Fprintf(w, "\nINPUT:\n")
	fmt.Fprintf(w, "\t%s,  %s\t%s\t(Default: %s)\n", "-t", "--target", "target address to verify", DefaultTarget)
	fmt.Fprintf(w, "\t%s,  %s\t%s\t(Default: %s)\n", "-e", "--element", "CSS selector to wait for", verishot.DefaultOptions().Selector)
	fmt.Fprintf(w, "\t%s,  %s\t%s\n", "-l", "--list", "input file with checks, one per line: <url> [selector] [output]")

	fmt.Fprintf(w, "\nCONFIGURATIONS:\n")
	fmt.Fprintf(w, "\t%s,   %s\t%s\t(Default: %d)\n", "-c", "--concurrency", "number of concurrent verifications", verishot.DefaultOptions().Concurrency)
	fmt.Fprintf(w, "\t%s,  %s\t%s\t(Default: %d seconds)\n", "-to", "--timeout", "timeout waiting for the element", verishot.DefaultOptions().Timeout)
	fmt.Fprintf(w, "\t%s,  %s\t%s\t(Default: Chrome Headless)\n", "-ua", "--user-agent", "set user agent")
	fmt.Fprintf(w, "\t%s,  %s\t%s\t(Default: %d)\n", "-cw", "--capture-width", "screenshot pixel width", verishot.DefaultOptions().CaptureWidth)
	fmt.Fprintf(w, "\t%s,  %s\t%s\t(Default: %d)\n", "-ch", "--capture-height", "screenshot pixel height", verishot.DefaultOptions().CaptureHeight)
	fmt.Fprintf(w, "\t%s,  %s\t%s\t(Default: %v)\n", "-cf", "--capture-full", "capture full page", verishot.DefaultOptions().CaptureFull)
	fmt.Fprintf(w, "\t%s,  %s\t%s\t(Default: %v)\n", "-dc", "--delay-capture", "delay between element match and capture (seconds)", verishot.DefaultOptions().DelayBeforeCapture)
	fmt.Fprintf(w, "\t%s, %s\t%s\t(Default: %v)\n", "-ice", "--ignore-cert-err", "ignore certificate errors", verishot.DefaultOptions().IgnoreCertificateErrors)
	fmt.Fprintf(w, "\t%s,  %s\t%s\t(Default: %v)\n", "-dh", "--disable-http2", "disable HTTP2", verishot.DefaultOptions().DisableHTTP2)

	fmt.Fprintf(w, "\nOUTPUT:\n")
	fmt.Fprintf(w, "\t%s,   %s\t%s\t(Default: %s)\n", "-o", "--output", "write image to given path", verishot.DefaultOptions().OutputPath)
	fmt.Fprintf(w, "\t%s,  %s\t%s\t(Default: %v)\n", "-iu", "--imprint-url", "imprint target URL on image", verishot.DefaultOptions().ImprintURL)
	fmt.Fprintf(w, "\t%s,   %s\t%s\n", "-s", "--silence", "silence output")
	fmt.Fprintf(w, "\t%s,   %s\t%s\n", "-v", "--verbose", "verbose output")
	fmt.Fprintf(w, "\t%s    %s\t%s\n", "  ", "--version", "display version")

	w.Flush()
	fmt.Println("")
}

// parseFlags parses the command line options and sets the options
func (c *CLI) parseFlags() {
	// INPUT
	flag.StringVar(&c.TargetURL, "target", "", "")
	flag.StringVar(&c.TargetURL, "t", "", "")
	flag.StringVar(&c.Infile, "list", "", "")
	flag.StringVar(&c.Infile, "l", "", "")
	flag.StringVar(&c.Options.Selector, "element", verishot.DefaultOptions().Selector, "")
	flag.StringVar(&c.Options.Selector, "e", verishot.DefaultOptions().Selector, "")

	// CONFIGURATIONS
	flag.IntVar(&c.Options.Concurrency, "concurrency", verishot.DefaultOptions().Concurrency, "")
	flag.IntVar(&c.Options.Concurrency, "c", verishot.DefaultOptions().Concurrency, "")
	flag.IntVar(&c.Options.Timeout, "timeout", verishot.DefaultOptions().Timeout, "")
	flag.IntVar(&c.Options.Timeout, "to", verishot.DefaultOptions().Timeout, "")
	flag.StringVar(&c.Options.UserAgent, "user-agent", "", "")
	flag.StringVar(&c.Options.UserAgent, "ua", "", "")
	flag.IntVar(&c.Options.CaptureWidth, "capture-width", verishot.DefaultOptions().CaptureWidth, "")
	flag.IntVar(&c.Options.CaptureWidth, "cw", verishot.DefaultOptions().CaptureWidth, "")
	flag.IntVar(&c.Options.CaptureHeight, "capture-height", verishot.DefaultOptions().CaptureHeight, "")
	flag.IntVar(&c.Options.CaptureHeight, "ch", verishot.DefaultOptions().CaptureHeight, "")
	flag.BoolVar(&c.Options.CaptureFull, "capture-full", verishot.DefaultOptions().CaptureFull, "")
	flag.BoolVar(&c.Options.CaptureFull, "cf", verishot.DefaultOptions().CaptureFull, "")
	flag.IntVar(&c.Options.DelayBeforeCapture, "delay-capture", verishot.DefaultOptions().DelayBeforeCapture, "")
	flag.IntVar(&c.Options.DelayBeforeCapture, "dc", verishot.DefaultOptions().DelayBeforeCapture, "")
	flag.BoolVar(&c.Options.IgnoreCertificateErrors, "ignore-cert-err", verishot.DefaultOptions().IgnoreCertificateErrors, "")
	flag.BoolVar(&c.Options.IgnoreCertificateErrors, "ice", verishot.DefaultOptions().IgnoreCertificateErrors, "")
	flag.BoolVar(&c.Options.DisableHTTP2, "disable-http2", verishot.DefaultOptions().DisableHTTP2, "")
	flag.BoolVar(&c.Options.DisableHTTP2, "dh", verishot.DefaultOptions().DisableHTTP2, "")

	// OUTPUT
	flag.StringVar(&c.Options.OutputPath, "output", verishot.DefaultOptions().OutputPath, "")
	flag.StringVar(&c.Options.OutputPath, "o", verishot.DefaultOptions().OutputPath, "")
	flag.BoolVar(&c.Options.ImprintURL, "imprint-url", verishot.DefaultOptions().ImprintURL, "")
	flag.BoolVar(&c.Options.ImprintURL, "iu", verishot.DefaultOptions().ImprintURL, "")
	flag.BoolVar(&c.Options.Silence, "silence", false, "")
	flag.BoolVar(&c.Options.Silence, "s", false, "")
	flag.BoolVar(&c.Options.Verbose, "verbose", false, "")
	flag.BoolVar(&c.Options.Verbose, "v", false, "")
	flag.BoolVar(&c.Help, "help", false, "")
	flag.BoolVar(&c.Help, "h", false, "")
	flag.BoolVar(&c.Version, "version", false, "")

	flag.Usage = func() {
		c.banner()
		c.usage()
	}
	flag.Parse()
}

// checkForExits checks for the presence of the -h|--help and --version flags
func (c *CLI) checkForExits() {
	if c.Help {
		c.banner()
		c.usage()
		os.Exit(0)
	}
	if c.Version {
		fmt.Println("verishot ", verishot.Version)
		os.Exit(0)
	}
}

// gatherChecks collects checks from stdin, the input file and the target
// flag. With no input at all, the default target is verified.
func (c *CLI) gatherChecks() (checks []verishot.Check) {
	if c.hasStdin() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if check, ok := parseCheckLine(scanner.Text()); ok {
				checks = append(checks, check)
			}
		}
	}

	if c.hasInfile() {
		lines, err := fileutil.ReadFile(c.Infile)
		if err != nil {
			log.Fatalf("Error reading file: %v", err)
		}
		for _, line := range lines {
			if check, ok := parseCheckLine(line); ok {
				checks = append(checks, check)
			}
		}
	}

	if c.hasTarget() {
		for _, target := range strings.Split(c.TargetURL, ",") {
			checks = append(checks, verishot.Check{URL: strings.TrimSpace(target)})
		}
	}

	if len(checks) == 0 {
		checks = append(checks, verishot.Check{URL: DefaultTarget})
	}

	return checks
}

// parseCheckLine parses a "<url> [selector] [output]" line.
// Blank lines and #-comments are skipped.
func parseCheckLine(line string) (verishot.Check, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return verishot.Check{}, false
	}

	fields := strings.Fields(line)
	check := verishot.Check{URL: fields[0]}
	if len(fields) > 1 {
		check.Selector = fields[1]
	}
	if len(fields) > 2 {
		check.OutputPath = fields[2]
	}

	return check, true
}

// hasStdin determines if the user has piped input
func (c *CLI) hasStdin() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}

	mode := stat.Mode()

	isPipedFromChrDev := (mode & os.ModeCharDevice) == 0
	isPipedFromFIFO := (mode & os.ModeNamedPipe) != 0

	return isPipedFromChrDev || isPipedFromFIFO
}

// hasTarget determines if the user has provided a target
func (c *CLI) hasTarget() bool {
	return c.TargetURL != ""
}

// hasInfile determines if the user has provided an input file
func (c *CLI) hasInfile() bool {
	return c.Infile != ""
}
