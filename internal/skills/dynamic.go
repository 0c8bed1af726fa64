package skills

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// deniedTokens are substrings that never belong in a dynamic skill's
// source: escape hatches out of the restricted namespace or access to
// the interpreter's own machinery. Checked in addition to the fact that
// the runtime below never exposes require/import/process bindings in the
// first place — defense in depth, not the only control.
var deniedTokens = []string{
	"__proto__",
	"constructor.constructor",
	"globalThis",
	"require(",
	"import(",
	"process.",
}

// ToolCaller is the one capability a dynamic skill is given: invoking an
// already-registered tool by name. It is the sole "explicitly re-exported
// utility" bound into the restricted namespace (§4.F).
type ToolCaller func(ctx context.Context, name string, params json.RawMessage) (string, error)

// DynamicSource is a non-builtin skill supplied as source text, along
// with the metadata it registers under.
type DynamicSource struct {
	Metadata Metadata
	Source   string
}

// DynamicRegistration is what the validator stores per loaded dynamic
// skill so a later reload can be hash-verified.
type DynamicRegistration struct {
	ID   string
	Hash string
}

// DynamicLoader validates and loads user- or admin-supplied skill source
// into the registry. Each source runs inside a goja ECMAScript runtime
// that is given no bindings beyond an explicit allow list, which is this
// project's equivalent of Python's restricted-namespace `__build_class__`
// / guarded `__import__` approach: nothing is reachable that wasn't
// deliberately bound in.
type DynamicLoader struct {
	caller ToolCaller
	hashes map[string]string
}

// NewDynamicLoader constructs a loader that dispatches tool calls from
// dynamic skills through caller.
func NewDynamicLoader(caller ToolCaller) *DynamicLoader {
	return &DynamicLoader{caller: caller, hashes: make(map[string]string)}
}

// Load validates src, computes and stores its SHA-256, and registers an
// Executor wrapping a fresh goja runtime into reg under src.Metadata.ID.
func (dl *DynamicLoader) Load(reg *Registry, src DynamicSource) (DynamicRegistration, error) {
	if err := validateSource(src.Source); err != nil {
		return DynamicRegistration{}, fmt.Errorf("skills: dynamic skill %q rejected: %w", src.Metadata.ID, err)
	}

	hash := hashSource(src.Source)
	dl.hashes[src.Metadata.ID] = hash

	exec := &dynamicExecutor{source: src.Source, caller: dl.caller}
	reg.RegisterDynamic(src.Metadata, exec)

	return DynamicRegistration{ID: src.Metadata.ID, Hash: hash}, nil
}

// Reload re-validates src against the hash recorded at registration and
// aborts the reload on mismatch, per §4.F's reload-time re-verification.
func (dl *DynamicLoader) Reload(reg *Registry, src DynamicSource) (DynamicRegistration, error) {
	want, ok := dl.hashes[src.Metadata.ID]
	if !ok {
		return dl.Load(reg, src)
	}
	got := hashSource(src.Source)
	if got != want {
		return DynamicRegistration{}, fmt.Errorf("skills: dynamic skill %q source hash changed on reload (want %s, got %s), aborting", src.Metadata.ID, want, got)
	}
	return dl.Load(reg, src)
}

// validateSource rejects source containing any denied token. This runs
// before the source ever reaches the interpreter.
func validateSource(source string) error {
	for _, tok := range deniedTokens {
		if strings.Contains(source, tok) {
			return fmt.Errorf("source contains disallowed token %q", tok)
		}
	}
	return nil
}

func hashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// dynamicExecutor runs validated source in a restricted goja runtime on
// every Execute call. A fresh runtime per call keeps one invocation's
// global mutations from leaking into the next.
type dynamicExecutor struct {
	source string
	caller ToolCaller
}

func (d *dynamicExecutor) CreateGraph(ctx context.Context) (any, error) {
	return nil, nil
}

func (d *dynamicExecutor) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	vm := goja.New()

	var paramsVal any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &paramsVal); err != nil {
			return "", fmt.Errorf("skills: decoding params: %w", err)
		}
	}
	if err := vm.Set("params", paramsVal); err != nil {
		return "", err
	}

	// The only re-exported utility: call a registered tool by name.
	if err := vm.Set("callTool", func(name string, args map[string]any) (string, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return "", err
		}
		return d.caller(ctx, name, raw)
	}); err != nil {
		return "", err
	}

	result, err := vm.RunString(d.source)
	if err != nil {
		return "", fmt.Errorf("skills: dynamic skill execution failed: %w", err)
	}
	if result == nil || goja.IsUndefined(result) {
		return "", nil
	}
	return result.String(), nil
}
