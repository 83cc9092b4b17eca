package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// DefaultKeepPrefixes is the comment allow-list: linter directives, file-path
// markers and explicit preserve markers. Matching is case-insensitive against the
// trimmed comment text.
var DefaultKeepPrefixes = []string{"stylelint", "filepath:", "@preserve"}

// CommentFilter removes every comment whose trimmed text does not start with an
// allow-listed prefix.
type CommentFilter struct {
	keep []string
}

// NewCommentFilter returns a filter for the given prefixes; nil selects DefaultKeepPrefixes.
func NewCommentFilter(prefixes []string) *CommentFilter {
	if prefixes == nil {
		prefixes = DefaultKeepPrefixes
	}
	keep := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			keep = append(keep, p)
		}
	}
	return &CommentFilter{keep: keep}
}

func (f *CommentFilter) Name() string { return StageComments }

// Keep reports whether a comment with body text survives the filter.
func (f *CommentFilter) Keep(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	return slices.ContainsFunc(f.keep, func(p string) bool { return strings.HasPrefix(text, p) })
}

func (f *CommentFilter) Transform(_ context.Context, text, from, _ string) (string, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return "", &TransformError{Stage: StageComments, Message: err.Error(), File: from, Err: err}
	}

	var out []string
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.tt != css.CommentToken || f.Keep(commentBody(tok.data)) {
			out = append(out, tok.data)
			continue
		}

		// Dropping a comment: avoid leaving a blank line or a doubled space behind.
		var next *token
		if i+1 < len(tokens) && tokens[i+1].tt == css.WhitespaceToken {
			next = &tokens[i+1]
		}
		lineStart := true
		if k := lastNonEmpty(out); k >= 0 {
			switch {
			case !isBlank(out[k]):
				lineStart = false
			case strings.Contains(out[k], "\n"):
				out[k] = strings.TrimRight(out[k], " \t")
			default:
				lineStart = false
				if next != nil {
					if strings.Contains(next.data, "\n") {
						out[k] = ""
					} else {
						i++ // collapse "a /* x */ b" to "a b"
					}
				}
			}
		}
		if lineStart && next != nil {
			if idx := strings.IndexByte(next.data, '\n'); idx >= 0 {
				next.data = next.data[idx+1:]
			}
		}
	}
	return strings.Join(out, ""), nil
}

func commentBody(raw string) string {
	raw = strings.TrimPrefix(raw, "/*")
	return strings.TrimSuffix(raw, "*/")
}

func lastNonEmpty(out []string) int {
	for k := len(out) - 1; k >= 0; k-- {
		if out[k] != "" {
			return k
		}
	}
	return -1
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// keepPropPrefix names the placeholder declarations that carry kept comments
// through esbuild. esbuild only keeps legal comments where a rule could start,
// so comments inside declaration blocks travel as custom properties instead.
const keepPropPrefix = "--cssbuilder-keep-"

// ruleListAtRules have bodies that hold rules, not declarations, when they
// appear outside a style rule.
var ruleListAtRules = []string{
	"@media", "@supports", "@layer", "@container", "@document", "@scope", "@starting-style",
	"@-moz-document", "@keyframes", "@-webkit-keyframes",
}

// kept reports whether a comment body survives, allowing an existing legal marker.
func (f *CommentFilter) kept(body string) bool {
	return f.Keep(body) || f.Keep(strings.TrimPrefix(body, "!"))
}

// protect rewrites every kept comment into a form esbuild carries through in
// place: a legal comment where a rule may start, or a placeholder declaration
// inside a declaration block. A kept comment in the middle of a selector or
// value moves to the next position where it can be represented. The returned
// bodies feed restore.
func (f *CommentFilter) protect(text string) (string, []string) {
	if !strings.Contains(text, "/*") {
		return text, nil
	}
	tokens, err := tokenize(text)
	if err != nil {
		return text, nil
	}

	var (
		b        strings.Builder
		bodies   []string
		pending  []string
		ruleList = []bool{true}
		boundary = true
		atRule   string
	)
	emit := func(body string) {
		if ruleList[len(ruleList)-1] {
			if strings.HasPrefix(body, "!") {
				b.WriteString("/*" + body + "*/")
			} else {
				b.WriteString("/*!" + body + "*/")
			}
			return
		}
		fmt.Fprintf(&b, "%s%d: 0;", keepPropPrefix, len(bodies))
		bodies = append(bodies, body)
	}
	flush := func() {
		for _, body := range pending {
			emit(body)
		}
		pending = pending[:0]
	}

	for _, tok := range tokens {
		switch tok.tt {
		case css.CommentToken:
			body := commentBody(tok.data)
			switch {
			case !strings.HasSuffix(tok.data, "*/") || !f.kept(body):
				b.WriteString(tok.data)
			case boundary:
				emit(body)
			default:
				pending = append(pending, body)
			}
			continue
		case css.WhitespaceToken:
			b.WriteString(tok.data)
			continue
		case css.LeftBraceToken:
			b.WriteString(tok.data)
			parentRules := ruleList[len(ruleList)-1]
			ruleList = append(ruleList, parentRules && slices.Contains(ruleListAtRules, atRule))
			boundary, atRule = true, ""
			flush()
			continue
		case css.RightBraceToken:
			if len(pending) > 0 && !ruleList[len(ruleList)-1] && !boundary {
				b.WriteString(";")
			}
			flush()
			b.WriteString(tok.data)
			if len(ruleList) > 1 {
				ruleList = ruleList[:len(ruleList)-1]
			}
			boundary, atRule = true, ""
			continue
		case css.SemicolonToken:
			b.WriteString(tok.data)
			boundary, atRule = true, ""
			flush()
			continue
		case css.AtKeywordToken:
			if boundary {
				atRule = strings.ToLower(tok.data)
			}
		}
		boundary = false
		b.WriteString(tok.data)
	}
	flush()
	return b.String(), bodies
}

// restore turns placeholders produced by protect back into comments.
func (f *CommentFilter) restore(text string, bodies []string) string {
	if !strings.Contains(text, "/*!") && (len(bodies) == 0 || !strings.Contains(text, keepPropPrefix)) {
		return text
	}
	tokens, err := tokenize(text)
	if err != nil {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok.tt == css.CommentToken && strings.HasPrefix(tok.data, "/*!") && strings.HasSuffix(tok.data, "*/"):
			body := commentBody(tok.data)
			if rest := body[1:]; f.Keep(rest) {
				body = rest
			}
			b.WriteString("/*" + body + "*/")
		case strings.HasPrefix(tok.data, keepPropPrefix) && tok.tt != css.StringToken && tok.tt != css.CommentToken:
			n, err := strconv.Atoi(strings.TrimPrefix(tok.data, keepPropPrefix))
			end, ok := placeholderEnd(tokens, i+1)
			if err != nil || n < 0 || n >= len(bodies) || !ok {
				b.WriteString(tok.data)
				continue
			}
			b.WriteString("/*" + bodies[n] + "*/")
			i = end - 1
		default:
			b.WriteString(tok.data)
		}
	}
	return b.String()
}

// placeholderEnd matches ": 0;" (whitespace optional, semicolon optional before
// a closing brace) after a placeholder name and returns the index past it.
func placeholderEnd(tokens []token, j int) (int, bool) {
	j = skipWhitespace(tokens, j)
	if j >= len(tokens) || tokens[j].tt != css.ColonToken {
		return 0, false
	}
	j = skipWhitespace(tokens, j+1)
	if j >= len(tokens) || tokens[j].tt != css.NumberToken || tokens[j].data != "0" {
		return 0, false
	}
	j++
	if k := skipWhitespace(tokens, j); k < len(tokens) && tokens[k].tt == css.SemicolonToken {
		return k + 1, true
	}
	return j, true
}

func skipWhitespace(tokens []token, j int) int {
	for j < len(tokens) && tokens[j].tt == css.WhitespaceToken {
		j++
	}
	return j
}
