package guardrail

import "strings"

// harmfulPatterns are checked against the final assembled response
// (§4.G item 2): weapons/malware synthesis instructions and system-prompt
// leakage. A hit in blockPatterns blocks outright; a hit in flagPatterns
// passes through with the match redacted.
var blockPatterns = []string{
	"how to synthesize nerve agent",
	"how to build a bomb",
	"how to make ricin",
	"step by step instructions for a pipe bomb",
	"self-replicating malware",
	"undetectable ransomware",
}

var flagPatterns = []string{
	"my system prompt is",
	"here are my instructions",
	"as an ai model instructed to",
}

// OutputScanner runs over the final assembled response in the
// non-streaming invoke path; the streaming path applies it best-effort or
// skips it (§4.G item 2).
type OutputScanner struct{}

// NewOutputScanner constructs an output scanner with the built-in
// pattern sets.
func NewOutputScanner() *OutputScanner {
	return &OutputScanner{}
}

// Scan detects harmful-content patterns in response. Block replaces the
// content with a refusal; flag passes sanitized content through with the
// offending span redacted.
func (s *OutputScanner) Scan(response string) Verdict {
	lower := strings.ToLower(response)

	var blocked []string
	for _, p := range blockPatterns {
		if strings.Contains(lower, p) {
			blocked = append(blocked, p)
		}
	}
	if len(blocked) > 0 {
		return blockedVerdict("harmful content pattern detected", blocked...)
	}

	var flagged []string
	sanitized := response
	for _, p := range flagPatterns {
		if idx := strings.Index(lower, p); idx >= 0 {
			flagged = append(flagged, p)
			sanitized = redact(sanitized, strings.ToLower(sanitized), p)
		}
	}
	if len(flagged) > 0 {
		return flaggedVerdict("system-prompt leak pattern detected", sanitized, flagged...)
	}

	return clean()
}

// redact replaces every case-insensitive occurrence of pattern in
// original (whose lowercase form is lower) with "[redacted]".
func redact(original, lower, pattern string) string {
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(lower[i:], pattern)
		if idx < 0 {
			b.WriteString(original[i:])
			break
		}
		start := i + idx
		b.WriteString(original[i:start])
		b.WriteString("[redacted]")
		i = start + len(pattern)
	}
	return b.String()
}
