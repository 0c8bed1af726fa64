// Package guardrail implements the three scanners that gate a run's
// input, output, and tool invocations (§4.G): pattern-based detectors
// that each return a Verdict rather than erroring out, so callers decide
// how to act (refuse, sanitize-and-continue, abort one tool call).
package guardrail

// Verdict is the uniform result every scanner produces.
type Verdict struct {
	Passed            bool     `json:"passed"`
	Blocked           bool     `json:"blocked"`
	Flagged           bool     `json:"flagged"`
	Violations        []string `json:"violations,omitempty"`
	Reason            string   `json:"reason,omitempty"`
	Confidence        float64  `json:"confidence"`
	SanitizedContent  string   `json:"sanitized_content,omitempty"`
}

func clean() Verdict {
	return Verdict{Passed: true}
}

func blockedVerdict(reason string, violations ...string) Verdict {
	return Verdict{Blocked: true, Reason: reason, Violations: violations, Confidence: 1.0}
}

func flaggedVerdict(reason, sanitized string, violations ...string) Verdict {
	return Verdict{Passed: true, Flagged: true, Reason: reason, Violations: violations, SanitizedContent: sanitized, Confidence: 0.6}
}
