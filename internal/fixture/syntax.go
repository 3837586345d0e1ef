package fixture

import (
	"fmt"
	"strconv"
	"strings"

	"borrowck/internal/cfg"
)

func (p *bodyParser) local(name string) (cfg.LocalID, error) {
	id, ok := p.f.LocalByName(name)
	if !ok {
		return cfg.NoLocalID, fmt.Errorf("unknown local %q", name)
	}
	return id, nil
}

// place parses the inverse of cfg.Func.PlaceString: `x`, `x.f`, `x.0`,
// `x[i]`, `x[3]`, `o@Some.0`, `*r`, `(*r).f`, `*r.f` (deref of r.f).
func (p *bodyParser) place(s string) (cfg.Place, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return cfg.Place{}, fmt.Errorf("empty place")
	}
	if rest, ok := strings.CutPrefix(s, "*"); ok {
		inner, err := p.place(rest)
		if err != nil {
			return cfg.Place{}, err
		}
		return inner.Deref(), nil
	}

	var (
		base cfg.Place
		i    int
	)
	if s[0] == '(' {
		depth := 0
		end := -1
		for j := 0; j < len(s) && end < 0; j++ {
			switch s[j] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					end = j
				}
			}
		}
		if end < 0 {
			return cfg.Place{}, fmt.Errorf("unbalanced parentheses in %q", s)
		}
		inner, err := p.place(s[1:end])
		if err != nil {
			return cfg.Place{}, err
		}
		base, i = inner, end+1
	} else {
		i = identEnd(s, 0)
		if i == 0 {
			return cfg.Place{}, fmt.Errorf("bad place %q", s)
		}
		id, err := p.local(s[:i])
		if err != nil {
			return cfg.Place{}, err
		}
		base = cfg.LocalPlace(id)
	}

	for i < len(s) {
		switch s[i] {
		case '.':
			j := identEnd(s, i+1)
			if j == i+1 {
				return cfg.Place{}, fmt.Errorf("missing field name in %q", s)
			}
			base = base.Field(s[i+1 : j])
			i = j
		case '@':
			j := identEnd(s, i+1)
			if j == i+1 {
				return cfg.Place{}, fmt.Errorf("missing variant name in %q", s)
			}
			base = base.Variant(s[i+1 : j])
			i = j
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return cfg.Place{}, fmt.Errorf("missing `]` in %q", s)
			}
			idx := s[i+1 : i+end]
			if n, err := strconv.ParseInt(idx, 10, 64); err == nil {
				base = base.ConstIndex(n)
			} else {
				id, err := p.local(idx)
				if err != nil {
					return cfg.Place{}, err
				}
				base = base.Index(id)
			}
			i += end + 1
		default:
			return cfg.Place{}, fmt.Errorf("unexpected %q in place %q", s[i], s)
		}
	}
	return base, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func identEnd(s string, from int) int {
	i := from
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	return i
}

func (p *bodyParser) operand(s string) (cfg.Operand, error) {
	s = strings.TrimSpace(s)
	b := p.types.Builtins()
	if rest, ok := strings.CutPrefix(s, "copy "); ok {
		pl, err := p.place(rest)
		return cfg.Copy(pl), err
	}
	if rest, ok := strings.CutPrefix(s, "move "); ok {
		pl, err := p.place(rest)
		return cfg.Move(pl), err
	}
	switch {
	case s == "()":
		return cfg.ConstOp(b.Unit, ""), nil
	case s == "true" || s == "false":
		return cfg.ConstOp(b.Bool, s), nil
	case len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"':
		return cfg.ConstOp(b.String, s), nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return cfg.ConstOp(b.Int, s), nil
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return cfg.ConstOp(b.Float, s), nil
	}
	return cfg.Operand{}, fmt.Errorf("bad operand %q", s)
}

// splitOperand splits the first operand off s.
func splitOperand(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "copy ") || strings.HasPrefix(s, "move ") {
		kw := s[:5]
		tail := strings.TrimSpace(s[5:])
		place, after, _ := strings.Cut(tail, " ")
		return kw + place, strings.TrimSpace(after)
	}
	if strings.HasPrefix(s, "\"") {
		if end := strings.IndexByte(s[1:], '"'); end >= 0 {
			return s[:end+2], strings.TrimSpace(s[end+2:])
		}
	}
	first, rest, _ = strings.Cut(s, " ")
	return first, strings.TrimSpace(rest)
}

// splitList splits on top-level commas, respecting brackets and quotes.
func splitList(s string) []string {
	var (
		out   []string
		depth int
		quote bool
		start int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			quote = !quote
		case quote:
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}
