package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

const maxImportDepth = 32

// ImportInliner replaces local top-level @import statements with the imported file's
// contents, recursively. Each file is inlined at most once per compile. Imports with
// a media query are wrapped in @media; remote, data:, layer() and supports() imports
// are left in place.
type ImportInliner struct {
	// ReadFile loads imported files; nil means os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

func (s *ImportInliner) Name() string { return StageImport }

func (s *ImportInliner) Transform(ctx context.Context, text, from, _ string) (string, error) {
	seen := map[string]bool{filepath.Clean(from): true}
	return s.inline(ctx, text, from, seen, 0)
}

type importStatement struct {
	start, end int // token index range, end exclusive
	url        string
	conditions string
	offset     int
}

func (s *ImportInliner) inline(ctx context.Context, text, file string, seen map[string]bool, depth int) (string, error) {
	if depth > maxImportDepth {
		return "", &TransformError{Stage: StageImport, Message: "import nesting too deep", File: file}
	}
	tokens, err := tokenize(text)
	if err != nil {
		return "", &TransformError{Stage: StageImport, Message: err.Error(), File: file, Err: err}
	}

	var b strings.Builder
	braces := 0
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.tt {
		case css.LeftBraceToken:
			braces++
		case css.RightBraceToken:
			braces--
		}
		if braces != 0 || tok.tt != css.AtKeywordToken || !strings.EqualFold(tok.data, "@import") {
			b.WriteString(tok.data)
			continue
		}

		stmt := parseImport(tokens, i)
		raw := joinTokens(tokens[stmt.start:stmt.end])
		i = stmt.end - 1

		if !isLocalImport(stmt.url) || hasUnsupportedCondition(stmt.conditions) {
			b.WriteString(raw)
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		target := filepath.Clean(filepath.Join(filepath.Dir(file), stmt.url))
		if seen[target] {
			continue
		}
		content, err := s.read(target)
		if err != nil {
			line, col := position(text, stmt.offset)
			return "", &TransformError{
				Stage:   StageImport,
				Message: fmt.Sprintf("failed to find '%s'", stmt.url),
				File:    file,
				Line:    line,
				Column:  col,
				Err:     err,
			}
		}
		seen[target] = true

		inlined, err := s.inline(ctx, string(content), target, seen, depth+1)
		if err != nil {
			return "", err
		}
		inlined = strings.TrimRight(inlined, "\n")
		if stmt.conditions != "" {
			fmt.Fprintf(&b, "@media %s {\n%s\n}", stmt.conditions, inlined)
		} else {
			b.WriteString(inlined)
		}
	}
	return b.String(), nil
}

func (s *ImportInliner) read(path string) ([]byte, error) {
	if s.ReadFile != nil {
		return s.ReadFile(path)
	}
	return os.ReadFile(path)
}

// parseImport reads the statement starting at the @import token at index i.
func parseImport(tokens []token, i int) importStatement {
	stmt := importStatement{start: i, offset: tokens[i].offset}
	j := i + 1
	j = skipTrivia(tokens, j)
	if j < len(tokens) {
		switch tok := tokens[j]; tok.tt {
		case css.StringToken:
			stmt.url = unquote(tok.data)
			j++
		case css.URLToken:
			stmt.url = urlTokenValue(tok.data)
			j++
		case css.FunctionToken:
			if strings.EqualFold(tok.data, "url(") {
				k := skipTrivia(tokens, j+1)
				if k < len(tokens) && tokens[k].tt == css.StringToken {
					stmt.url = unquote(tokens[k].data)
					k = skipTrivia(tokens, k+1)
					if k < len(tokens) && tokens[k].tt == css.RightParenthesisToken {
						j = k + 1
					}
				}
			}
		}
	}

	condStart := j
	parens := 0
	for j < len(tokens) {
		switch tokens[j].tt {
		case css.FunctionToken, css.LeftParenthesisToken:
			parens++
		case css.RightParenthesisToken:
			parens--
		}
		if parens <= 0 && (tokens[j].tt == css.SemicolonToken || tokens[j].tt == css.LeftBraceToken) {
			break
		}
		j++
	}
	stmt.conditions = strings.TrimSpace(joinTokens(tokens[condStart:j]))
	if j < len(tokens) && tokens[j].tt == css.SemicolonToken {
		j++
	}
	stmt.end = j
	return stmt
}

func skipTrivia(tokens []token, j int) int {
	for j < len(tokens) && (tokens[j].tt == css.WhitespaceToken || tokens[j].tt == css.CommentToken) {
		j++
	}
	return j
}

func joinTokens(tokens []token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.data)
	}
	return b.String()
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func urlTokenValue(s string) string {
	if len(s) >= 4 && strings.EqualFold(s[:4], "url(") {
		s = s[4:]
	}
	s = strings.TrimSuffix(s, ")")
	return unquote(strings.TrimSpace(s))
}

func isLocalImport(url string) bool {
	if url == "" {
		return false
	}
	lower := strings.ToLower(url)
	for _, prefix := range []string{"http://", "https://", "//", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

func hasUnsupportedCondition(conditions string) bool {
	lower := strings.ToLower(conditions)
	return strings.HasPrefix(lower, "layer") || strings.Contains(lower, "supports(")
}
