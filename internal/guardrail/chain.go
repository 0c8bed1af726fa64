package guardrail

// Chain composes the three scanners at their well-defined points so
// callers don't have to wire each one up separately.
type Chain struct {
	Input  *InputScanner
	Output *OutputScanner
	Tool   *ToolScanner
}

// NewChain builds a chain from the built-in scanner sets.
func NewChain() *Chain {
	return &Chain{
		Input:  NewInputScanner(),
		Output: NewOutputScanner(),
		Tool:   NewToolScanner(),
	}
}

// ScanInput runs the input scanner on a raw user query.
func (c *Chain) ScanInput(query string) Verdict {
	return c.Input.Scan(query)
}

// ScanOutput runs the output scanner on an assembled response.
func (c *Chain) ScanOutput(response string) Verdict {
	return c.Output.Scan(response)
}

// ScanToolArgs runs the tool scanner's URL and shell checks over
// whichever of the two the call supplies; empty strings are skipped.
func (c *Chain) ScanToolArgs(url, shellCommand string) Verdict {
	if url != "" {
		if v := c.Tool.ScanURL(url); v.Blocked {
			return v
		}
	}
	if shellCommand != "" {
		if v := c.Tool.ScanShellCommand(shellCommand); v.Blocked {
			return v
		}
	}
	return clean()
}
