package pipeline

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// Lower features resolved here instead of by esbuild, which passes both through.
const (
	FeatureCustomMedia = "custom-media"
	FeatureColorMix    = "color-mix"
)

// lowerStage resolves @custom-media and static color-mix() before handing the
// remaining features to esbuild.
type lowerStage struct {
	customMedia bool
	colorMix    bool
	esbuild     *esbuildStage
}

func (s *lowerStage) Name() string { return StageLower }

func (s *lowerStage) Transform(ctx context.Context, text, from, to string) (string, error) {
	if s.customMedia {
		resolved, err := resolveCustomMedia(text)
		if err != nil {
			return "", &TransformError{Stage: StageLower, Message: err.Error(), File: from, Err: err}
		}
		text = resolved
	}
	if s.colorMix {
		text = lowerColorMix(text)
	}
	return s.esbuild.Transform(ctx, text, from, to)
}

// resolveCustomMedia removes top-level @custom-media definitions and substitutes
// their queries into @media preludes. References that cannot be expressed in
// place, or that name an unknown query, are left untouched.
func resolveCustomMedia(text string) (string, error) {
	if !strings.Contains(text, "--") || !strings.Contains(strings.ToLower(text), "@custom-media") {
		return text, nil
	}
	tokens, err := tokenize(text)
	if err != nil {
		return "", err
	}

	defs := map[string]string{}
	var b strings.Builder
	depth := 0
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.tt {
		case css.LeftBraceToken:
			depth++
		case css.RightBraceToken:
			depth--
		}
		if depth != 0 || tok.tt != css.AtKeywordToken || !strings.EqualFold(tok.data, "@custom-media") {
			b.WriteString(tok.data)
			continue
		}
		name, query, end, ok := parseCustomMedia(tokens, i)
		if !ok {
			b.WriteString(tok.data)
			continue
		}
		defs[name] = query
		i = end - 1
		// Drop the rest of the definition's line.
		if end < len(tokens) && tokens[end].tt == css.WhitespaceToken {
			if idx := strings.IndexByte(tokens[end].data, '\n'); idx >= 0 {
				tokens[end].data = tokens[end].data[idx+1:]
			}
		}
	}
	if len(defs) == 0 {
		return text, nil
	}

	// Definitions may reference each other; a bounded number of passes also
	// stops cycles.
	for n, i := len(defs), 0; i < n; i++ {
		changed := false
		for name, q := range defs {
			if expanded := expandMediaReferences(q, defs); expanded != q {
				defs[name], changed = expanded, true
			}
		}
		if !changed {
			break
		}
	}

	tokens, err = tokenize(b.String())
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		out.WriteString(tok.data)
		if tok.tt != css.AtKeywordToken || !strings.EqualFold(tok.data, "@media") {
			continue
		}
		j := i + 1
		for j < len(tokens) && tokens[j].tt != css.LeftBraceToken && tokens[j].tt != css.SemicolonToken {
			j++
		}
		out.WriteString(expandMediaReferences(joinTokens(tokens[i+1:j]), defs))
		i = j - 1
	}
	return out.String(), nil
}

// parseCustomMedia reads "@custom-media --name <query>;" starting at index i.
func parseCustomMedia(tokens []token, i int) (name, query string, end int, ok bool) {
	j := skipTrivia(tokens, i+1)
	if j >= len(tokens) || !strings.HasPrefix(tokens[j].data, "--") {
		return "", "", 0, false
	}
	name = tokens[j].data
	k := j + 1
	for k < len(tokens) && tokens[k].tt != css.SemicolonToken {
		if tokens[k].tt == css.LeftBraceToken || tokens[k].tt == css.RightBraceToken {
			return "", "", 0, false
		}
		k++
	}
	query = strings.TrimSpace(joinTokens(tokens[j+1 : k]))
	if query == "" {
		return "", "", 0, false
	}
	if k < len(tokens) {
		k++
	}
	return name, query, k, true
}

// expandMediaReferences replaces every "(--name)" in a media query list.
func expandMediaReferences(prelude string, defs map[string]string) string {
	if !strings.Contains(prelude, "--") {
		return prelude
	}
	tokens, err := tokenize(prelude)
	if err != nil {
		return prelude
	}
	compact := strings.Join(strings.Fields(prelude), "")

	var b strings.Builder
	for i := 0; i < len(tokens); i++ {
		if tokens[i].tt != css.LeftParenthesisToken {
			b.WriteString(tokens[i].data)
			continue
		}
		j := skipWhitespace(tokens, i+1)
		if j >= len(tokens) || !strings.HasPrefix(tokens[j].data, "--") {
			b.WriteString(tokens[i].data)
			continue
		}
		k := skipWhitespace(tokens, j+1)
		if k >= len(tokens) || tokens[k].tt != css.RightParenthesisToken {
			b.WriteString(tokens[i].data)
			continue
		}
		name := tokens[j].data
		replacement, ok := mediaReplacement(defs[name], compact == "("+name+")")
		if !ok {
			b.WriteString(tokens[i].data)
			continue
		}
		b.WriteString(replacement)
		i = k
	}
	return b.String()
}

// mediaReplacement returns the text standing in for a reference to query. A
// reference that is the whole prelude takes any query; inside a larger
// condition only a parenthesized, comma-free query fits.
func mediaReplacement(query string, whole bool) (string, bool) {
	switch {
	case query == "":
		return "", false
	case whole:
		switch strings.ToLower(query) {
		case "true":
			return "all", true
		case "false":
			return "not all", true
		}
		return query, true
	case !strings.HasPrefix(query, "(") || hasTopLevelComma(query):
		return "", false
	case isSingleGroup(query):
		return query, true
	default:
		return "(" + query + ")", true
	}
}

func hasTopLevelComma(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

func isSingleGroup(s string) bool {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i == len(s)-1
			}
		}
	}
	return false
}

type rgba struct {
	r, g, b, a float64
}

var namedColors = map[string]rgba{
	"transparent":   {0, 0, 0, 0},
	"black":         {0, 0, 0, 1},
	"silver":        {192, 192, 192, 1},
	"gray":          {128, 128, 128, 1},
	"grey":          {128, 128, 128, 1},
	"white":         {255, 255, 255, 1},
	"maroon":        {128, 0, 0, 1},
	"red":           {255, 0, 0, 1},
	"purple":        {128, 0, 128, 1},
	"fuchsia":       {255, 0, 255, 1},
	"magenta":       {255, 0, 255, 1},
	"green":         {0, 128, 0, 1},
	"lime":          {0, 255, 0, 1},
	"olive":         {128, 128, 0, 1},
	"yellow":        {255, 255, 0, 1},
	"navy":          {0, 0, 128, 1},
	"blue":          {0, 0, 255, 1},
	"teal":          {0, 128, 128, 1},
	"aqua":          {0, 255, 255, 1},
	"cyan":          {0, 255, 255, 1},
	"orange":        {255, 165, 0, 1},
	"rebeccapurple": {102, 51, 153, 1},
}

// lowerColorMix replaces color-mix(in srgb, ...) calls whose colors are all
// static with the mixed color. Other color spaces, var() operands and
// unknown color names are left untouched.
func lowerColorMix(text string) string {
	if !strings.Contains(strings.ToLower(text), "color-mix(") {
		return text
	}
	tokens, err := tokenize(text)
	if err != nil {
		return text
	}

	var b strings.Builder
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.tt != css.FunctionToken || !strings.EqualFold(tok.data, "color-mix(") {
			b.WriteString(tok.data)
			continue
		}
		end := matchingParen(tokens, i)
		if end < 0 {
			b.WriteString(tok.data)
			continue
		}
		raw := joinTokens(tokens[i : end+1])
		if mixed, ok := mixColors(tokens[i+1 : end]); ok {
			b.WriteString(mixed)
		} else {
			b.WriteString(raw)
		}
		i = end
	}
	return b.String()
}

// matchingParen returns the index of the token closing the function at i, or -1.
func matchingParen(tokens []token, i int) int {
	depth := 0
	for j := i; j < len(tokens); j++ {
		switch tokens[j].tt {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func mixColors(args []token) (string, bool) {
	parts := splitArgs(args)
	if len(parts) != 3 || !strings.EqualFold(strings.Join(strings.Fields(parts[0]), " "), "in srgb") {
		return "", false
	}
	c1, p1, ok1 := parseMixOperand(lowerColorMix(parts[1]))
	c2, p2, ok2 := parseMixOperand(lowerColorMix(parts[2]))
	if !ok1 || !ok2 {
		return "", false
	}

	switch {
	case p1 < 0 && p2 < 0:
		p1, p2 = 50, 50
	case p1 < 0:
		p1 = 100 - p2
	case p2 < 0:
		p2 = 100 - p1
	}
	if p1 < 0 || p2 < 0 || p1 > 100 || p2 > 100 || p1+p2 == 0 {
		return "", false
	}
	sum := p1 + p2
	scale := 1.0
	if sum < 100 {
		scale = sum / 100
	}
	w1, w2 := p1/sum, p2/sum

	out := rgba{a: c1.a*w1 + c2.a*w2}
	if out.a > 0 {
		out.r = (c1.r*c1.a*w1 + c2.r*c2.a*w2) / out.a
		out.g = (c1.g*c1.a*w1 + c2.g*c2.a*w2) / out.a
		out.b = (c1.b*c1.a*w1 + c2.b*c2.a*w2) / out.a
	}
	out.a *= scale
	return formatColor(out), true
}

// splitArgs splits function arguments on top-level commas.
func splitArgs(args []token) []string {
	var parts []string
	depth, start := 0, 0
	for i, t := range args {
		switch t.tt {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
		case css.CommaToken:
			if depth == 0 {
				parts = append(parts, joinTokens(args[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, joinTokens(args[start:]))
}

// parseMixOperand parses "<color> [<percentage>]" in either order. A missing
// percentage is reported as -1.
func parseMixOperand(s string) (rgba, float64, bool) {
	tokens, err := tokenize(strings.TrimSpace(s))
	if err != nil || len(tokens) == 0 {
		return rgba{}, 0, false
	}
	pct := -1.0
	switch {
	case tokens[len(tokens)-1].tt == css.PercentageToken:
		pct = parsePercent(tokens[len(tokens)-1].data)
		tokens = tokens[:len(tokens)-1]
	case tokens[0].tt == css.PercentageToken:
		pct = parsePercent(tokens[0].data)
		tokens = tokens[1:]
	}
	if math.IsNaN(pct) {
		return rgba{}, 0, false
	}
	c, ok := parseColor(strings.TrimSpace(joinTokens(tokens)))
	return c, pct, ok
}

func parsePercent(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseColor(s string) (rgba, bool) {
	lower := strings.ToLower(s)
	if c, ok := namedColors[lower]; ok {
		return c, true
	}
	if strings.HasPrefix(lower, "#") {
		return parseHex(lower[1:])
	}
	for _, fn := range []string{"rgb(", "rgba("} {
		if strings.HasPrefix(lower, fn) && strings.HasSuffix(lower, ")") {
			return parseRGBFunc(lower[len(fn) : len(lower)-1])
		}
	}
	return rgba{}, false
}

func parseHex(h string) (rgba, bool) {
	if len(h) == 3 || len(h) == 4 {
		var long strings.Builder
		for _, r := range h {
			long.WriteRune(r)
			long.WriteRune(r)
		}
		h = long.String()
	}
	if len(h) != 6 && len(h) != 8 {
		return rgba{}, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return rgba{}, false
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return rgba{
		r: float64(v >> 24 & 0xff),
		g: float64(v >> 16 & 0xff),
		b: float64(v >> 8 & 0xff),
		a: float64(v&0xff) / 255,
	}, true
}

func parseRGBFunc(args string) (rgba, bool) {
	fields := strings.Fields(strings.NewReplacer(",", " ", "/", " ").Replace(args))
	if len(fields) != 3 && len(fields) != 4 {
		return rgba{}, false
	}
	var ch [3]float64
	for i := 0; i < 3; i++ {
		v, ok := parseChannel(fields[i], 255)
		if !ok {
			return rgba{}, false
		}
		ch[i] = v
	}
	alpha := 1.0
	if len(fields) == 4 {
		v, ok := parseChannel(fields[3], 1)
		if !ok {
			return rgba{}, false
		}
		alpha = v
	}
	return rgba{r: ch[0], g: ch[1], b: ch[2], a: alpha}, true
}

// parseChannel reads a number, or a percentage of full.
func parseChannel(s string, full float64) (float64, bool) {
	if p, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(p, 64)
		return clamp(v/100*full, 0, full), err == nil
	}
	v, err := strconv.ParseFloat(s, 64)
	return clamp(v, 0, full), err == nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func formatColor(c rgba) string {
	r := int(math.Round(clamp(c.r, 0, 255)))
	g := int(math.Round(clamp(c.g, 0, 255)))
	b := int(math.Round(clamp(c.b, 0, 255)))
	a := math.Round(clamp(c.a, 0, 1)*1000) / 1000
	if a >= 1 {
		return fmt.Sprintf("#%02x%02x%02x", r, g, b)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, strconv.FormatFloat(a, 'f', -1, 64))
}
