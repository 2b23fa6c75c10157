// Package series reads Prometheus series selectors of the form
// name{label="value",...}.
package series

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrSyntax = errors.New("invalid series selector")

type Scanner struct {
}

func NewScanner() *Scanner {
	return &Scanner{}
}

func (*Scanner) Scan(data string) (TokenList, error) {
	var tokens TokenList
	runes := []rune(data)
	index := 0

	next := func() rune {
		current := runes[index]
		index = index + 1
		return current
	}

	peek := func() rune {
		return runes[index]
	}

	isNameRune := func(r rune) bool {
		return r == '_' || r == ':' || unicode.IsLetter(r) || unicode.IsDigit(r)
	}

	name := func(first rune, pos int) Token {
		sb := strings.Builder{}
		sb.WriteRune(first)
		for index < len(runes) && isNameRune(peek()) {
			sb.WriteRune(next())
		}
		return Token{
			TokenType: TokenTypeName,
			StringVal: sb.String(),
			Pos:       pos,
		}
	}

	quoted := func(pos int) (Token, error) {
		sb := strings.Builder{}
		for index < len(runes) {
			r := next()
			switch r {
			case '"':
				return Token{
					TokenType: TokenTypeString,
					StringVal: sb.String(),
					Pos:       pos,
				}, nil
			case '\\':
				if index >= len(runes) {
					return Token{}, fmt.Errorf("%w: dangling escape at %v", ErrSyntax, index-1)
				}
				sb.WriteRune(next())
			default:
				sb.WriteRune(r)
			}
		}
		return Token{}, fmt.Errorf("%w: unterminated string starting at %v", ErrSyntax, pos)
	}

	for index < len(runes) {
		pos := index
		r := next()

		// ignore whitespace
		if unicode.IsSpace(r) {
			continue
		}

		switch r {
		case '{':
			tokens = append(tokens, Token{TokenType: TokenTypeLBrace, Pos: pos})
		case '}':
			tokens = append(tokens, Token{TokenType: TokenTypeRBrace, Pos: pos})
		case '=':
			tokens = append(tokens, Token{TokenType: TokenTypeEquals, Pos: pos})
		case ',':
			tokens = append(tokens, Token{TokenType: TokenTypeComma, Pos: pos})
		case '"':
			token, err := quoted(pos)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token)
		default:
			if !isNameRune(r) {
				return nil, fmt.Errorf("%w: unexpected character %q at %v", ErrSyntax, r, pos)
			}
			tokens = append(tokens, name(r, pos))
		}
	}

	return tokens, nil
}
