package diagfmt

import (
	"io"

	"borrowck/internal/diag"
	"borrowck/internal/source"
)

// Short writes one line per diagnostic, in the stable golden form.
func Short(w io.Writer, diags []diag.Diagnostic, fs *source.FileSet, includeNotes bool) error {
	_, err := io.WriteString(w, diag.FormatShortDiagnostics(diags, fs, includeNotes))
	return err
}
