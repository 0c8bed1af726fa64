package sandbox

import (
	"context"
	"log/slog"
	"time"
	"unicode"
)

// clipboardGap is the minimum pause enforced both before and after a
// clipboard paste, giving the guest's clipboard manager and the window
// manager time to settle (§4.C).
const clipboardGap = 100 * time.Millisecond

// ClipboardTool is the subset of a desktop backend's text-entry surface
// TypeViaClipboard needs: direct typing, a clipboard setter, and a
// Ctrl+V synthesis. Implementations typically shell out to xclip/xsel for
// SetClipboard and to the backend's own key-combo primitive for PasteCombo.
type ClipboardTool interface {
	TypeDirect(ctx context.Context, text string) error
	SetClipboard(ctx context.Context, text string) (ok bool, err error)
	PasteCombo(ctx context.Context) error
}

// TypeViaClipboard implements the policy from spec §4.C: ASCII text is
// typed directly (cheaper, no clipboard race); non-ASCII text is placed on
// the clipboard and pasted with Ctrl+V, bracketed by clipboardGap on both
// sides so the paste lands after the clipboard write is visible to the
// window manager and the next action doesn't race the paste. If no
// clipboard tool is available on the guest, it falls back to direct typing
// and logs a warning rather than failing the tool call.
func TypeViaClipboard(ctx context.Context, tool ClipboardTool, logger *slog.Logger, text string) error {
	if isASCII(text) {
		return tool.TypeDirect(ctx, text)
	}

	ok, err := tool.SetClipboard(ctx, text)
	if err != nil || !ok {
		if logger != nil {
			logger.Warn("clipboard unavailable, falling back to direct typing", "err", err)
		}
		return tool.TypeDirect(ctx, text)
	}

	time.Sleep(clipboardGap)
	if err := tool.PasteCombo(ctx); err != nil {
		return err
	}
	time.Sleep(clipboardGap)
	return nil
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
