package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"borrowck/internal/diag"
	"borrowck/internal/source"
)

// Pretty форматирует диагностики в человекочитаемый вид, в порядке среза
// (ожидается, что вызывающий отсортировал их заранее):
//
//	error[B0001]: use of moved value `s`
//	  --> main.toml:12:3 (main@bb0[2])
//	   |
//	12 |   call consume(move s)
//	   |   ^^^^^^^^^^^^^^^^^^^^
//	   = note: `s` moved here (bb0[1])
//	   = help: consider borrowing the value instead of moving it
func Pretty(w io.Writer, diags []diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) error {
	p := newPrinter(w, fs, opts)
	for i := range diags {
		if i > 0 {
			p.line("")
		}
		p.diagnostic(&diags[i])
	}
	return p.err
}

type printer struct {
	w    io.Writer
	fs   *source.FileSet
	opts PrettyOpts
	err  error

	sevColor map[diag.Severity]*color.Color
	accent   *color.Color
	gutter   *color.Color
	help     *color.Color
}

func newPrinter(w io.Writer, fs *source.FileSet, opts PrettyOpts) *printer {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return &printer{
		w:    w,
		fs:   fs,
		opts: opts,
		sevColor: map[diag.Severity]*color.Color{
			diag.SevInfo:    mk(color.FgCyan, color.Bold),
			diag.SevWarning: mk(color.FgYellow, color.Bold),
			diag.SevError:   mk(color.FgRed, color.Bold),
			diag.SevFatal:   mk(color.FgMagenta, color.Bold),
		},
		accent: mk(color.Bold),
		gutter: mk(color.FgBlue, color.Bold),
		help:   mk(color.FgGreen),
	}
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	if p.opts.Width > 0 {
		s = runewidth.Truncate(s, int(p.opts.Width), "…")
	}
	_, p.err = io.WriteString(p.w, s+"\n")
}

func (p *printer) diagnostic(d *diag.Diagnostic) {
	sev := p.sevColor[d.Severity]
	if sev == nil {
		sev = p.accent
	}
	p.line(sev.Sprintf("%s[%s]", d.Severity, d.Code.ID()) + p.accent.Sprint(": "+d.Message))

	loc, start, file := p.locate(d.Primary)
	where := d.Func
	if d.Point.Valid() {
		where += "@" + d.Point.String()
	}
	gutterWidth := 2
	if file != nil {
		gutterWidth = max(gutterWidth, len(strconv.FormatUint(uint64(start.Line), 10))+1)
	}
	pad := strings.Repeat(" ", gutterWidth)
	p.line(fmt.Sprintf("%s%s %s (%s)", pad[:gutterWidth-1], p.gutter.Sprint("-->"), loc, where))

	if file != nil {
		p.snippet(file, d.Primary, start, pad, sev)
	}
	if p.opts.ShowNotes {
		for _, n := range d.Notes {
			text := n.Msg
			if n.Point.Valid() {
				text += " (" + n.Point.String() + ")"
			}
			if nloc, _, nf := p.locate(n.Span); nf != nil {
				text += " at " + nloc
			}
			p.line(fmt.Sprintf("%s%s %s", pad, p.gutter.Sprint("="), p.accent.Sprint("note: ")+text))
		}
	}
	if p.opts.ShowFixes {
		for _, fix := range d.Fixes {
			p.line(fmt.Sprintf("%s%s %s", pad, p.gutter.Sprint("="), p.help.Sprint("help: ")+fix.Title))
		}
	}
}

func (p *printer) locate(sp source.Span) (string, source.LineCol, *source.File) {
	if p.fs == nil || sp.Empty() {
		return "<unknown>", source.LineCol{}, nil
	}
	f := p.fs.Get(sp.File)
	if f == nil {
		return "<unknown>", source.LineCol{}, nil
	}
	path := formatPath(f.Path, p.opts.PathMode, p.opts.BaseDir)
	start, _, ok := p.fs.Resolve(sp)
	if !ok {
		return path, source.LineCol{}, nil
	}
	return fmt.Sprintf("%s:%d:%d", path, start.Line, start.Col), start, f
}

// snippet prints the first line of the span with carets under it. Columns
// are measured in display cells.
func (p *printer) snippet(f *source.File, sp source.Span, start source.LineCol, pad string, sev *color.Color) {
	text := strings.ReplaceAll(f.GetLine(start.Line), "\t", "    ")
	raw := f.GetLine(start.Line)
	col := int(start.Col) - 1
	col = min(max(col, 0), len(raw))
	n := int(sp.Len())
	n = min(n, len(raw)-col)

	before := strings.ReplaceAll(raw[:col], "\t", "    ")
	marked := strings.ReplaceAll(raw[col:col+max(n, 0)], "\t", "    ")
	caretStart := runewidth.StringWidth(before)
	caretLen := max(runewidth.StringWidth(marked), 1)

	num := strconv.FormatUint(uint64(start.Line), 10)
	blank := pad + p.gutter.Sprint("|")
	p.line(blank)
	p.line(p.gutter.Sprint(num+pad[len(num):]+"|") + " " + text)
	p.line(blank + " " + strings.Repeat(" ", caretStart) + sev.Sprint(strings.Repeat("^", caretLen)))
}
