package pipeline

import (
	"errors"
	"io"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type token struct {
	tt     css.TokenType
	data   string
	offset int
}

// tokenize splits text into CSS tokens. Concatenating the data of every token
// reproduces text exactly.
func tokenize(text string) ([]token, error) {
	l := css.NewLexer(parse.NewInputString(text))
	var tokens []token
	offset := 0
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return tokens, err
			}
			return tokens, nil
		}
		tokens = append(tokens, token{tt: tt, data: string(data), offset: offset})
		offset += len(data)
	}
}
