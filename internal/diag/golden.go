package diag

import (
	"fmt"
	"strings"

	"borrowck/internal/source"
)

// FormatShortDiagnostics renders diagnostics one per line in a stable form
// suitable for golden files and the CLI's short mode:
//
//	path:line:col: error B0001 main@bb0[2]: use of moved value: `s`
//
// Notes follow as indented lines when includeNotes is set. Diagnostics are
// rendered in the given order; callers sort the bag first.
func FormatShortDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	var sb strings.Builder
	for i := range diags {
		d := &diags[i]
		fmt.Fprintf(&sb, "%s: %s %s %s@%s: %s\n",
			location(fs, d.Primary), d.Severity, d.Code.ID(), d.Func, d.Point, d.Message)
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(&sb, "  note %s@%s: %s\n", location(fs, n.Span), n.Point, n.Msg)
		}
	}
	return sb.String()
}

func location(fs *source.FileSet, sp source.Span) string {
	if fs == nil || sp.Empty() {
		return "<unknown>"
	}
	f := fs.Get(sp.File)
	if f == nil {
		return "<unknown>"
	}
	start, _, ok := fs.Resolve(sp)
	if !ok {
		return f.Path
	}
	return fmt.Sprintf("%s:%d:%d", f.Path, start.Line, start.Col)
}
