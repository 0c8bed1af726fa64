package guardrail

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

// dangerousShellPatterns are canonical destructive shell invocations
// rejected for code/shell tools (§4.G item 3).
var dangerousShellPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf\s+/(\s|$)`),
	regexp.MustCompile(`rm\s+-rf\s+~(\s|$)`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`), // fork bomb
	regexp.MustCompile(`curl\s+.*\|\s*(bash|sh)\b`),
	regexp.MustCompile(`wget\s+.*\|\s*(bash|sh)\b`),
	regexp.MustCompile(`mkfs\.\w+`),
	regexp.MustCompile(`dd\s+if=`),
}

// privateBlocks are the RFC1918 ranges and loopback/link-local space
// URL-bearing tools may never target.
var privateBlocks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
)

var blockedTLDs = []string{".internal", ".corp", ".local"}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// ToolScanner validates a single tool invocation's arguments before
// dispatch (§4.G item 3).
type ToolScanner struct{}

// NewToolScanner constructs a tool-argument scanner.
func NewToolScanner() *ToolScanner {
	return &ToolScanner{}
}

// ScanURL validates a URL argument for a URL-bearing tool: only
// http/https schemes, no loopback/private/link-local targets, no
// internal/corp/local TLDs.
func (s *ToolScanner) ScanURL(raw string) Verdict {
	u, err := url.Parse(raw)
	if err != nil {
		return blockedVerdict("unparseable URL", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return blockedVerdict("disallowed URL scheme", scheme)
	}

	host := u.Hostname()
	if host == "" {
		return blockedVerdict("missing host", raw)
	}
	if strings.EqualFold(host, "localhost") {
		return blockedVerdict("loopback host blocked", host)
	}

	for _, tld := range blockedTLDs {
		if strings.HasSuffix(strings.ToLower(host), tld) {
			return blockedVerdict("blocked TLD", host)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, n := range privateBlocks {
			if n.Contains(ip) {
				return blockedVerdict("private/loopback IP range blocked", host)
			}
		}
	}

	return clean()
}

// ScanShellCommand validates a shell/code-execution argument against the
// canonical dangerous-pattern list.
func (s *ToolScanner) ScanShellCommand(command string) Verdict {
	for _, re := range dangerousShellPatterns {
		if re.MatchString(command) {
			return blockedVerdict("dangerous shell pattern detected", re.String())
		}
	}
	return clean()
}
