package expression

import (
	"errors"
	"unicode"
)

// ErrInvalidBuilderState is returned when a token is built from an empty buffer.
var ErrInvalidBuilderState = errors.New("token builder has no pending value")

const quote = '"'

// TokenBuilder accumulates the word characters of one pending token.
type TokenBuilder struct {
	buffer []rune
}

func NewTokenBuilder() *TokenBuilder {
	return &TokenBuilder{}
}

func (b *TokenBuilder) Append(r rune) {
	b.buffer = append(b.buffer, r)
}

func (b *TokenBuilder) HasValue() bool {
	return len(b.buffer) > 0
}

// Build classifies the pending characters and returns them as a token ending
// at endOffset.
func (b *TokenBuilder) Build(endOffset int) (Token, error) {
	if !b.HasValue() {
		return Token{}, ErrInvalidBuilderState
	}
	return b.drain(b.classify(), endOffset), nil
}

// BuildFunction returns the pending characters as the name of a function
// whose argument group opens at offset.
func (b *TokenBuilder) BuildFunction(offset int) (Token, error) {
	if !b.HasValue() {
		return Token{}, ErrInvalidBuilderState
	}
	return b.drain(KindFunction, offset), nil
}

func (b *TokenBuilder) drain(kind Kind, end int) Token {
	token := Token{
		Kind:  kind,
		Text:  string(b.buffer),
		Start: end - len(b.buffer),
		End:   end,
	}
	b.buffer = b.buffer[:0]
	return token
}

func (b *TokenBuilder) classify() Kind {
	if b.buffer[0] == quote {
		return KindStringLiteral
	}

	digits, points := 0, 0
	for _, r := range b.buffer {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.':
			points++
		default:
			return KindVariable
		}
	}

	if digits == 0 || points > 1 {
		return KindVariable
	}
	return KindNumberLiteral
}

func isWord(r rune) bool {
	return r == quote || r == '.' || r == '_' || unicode.IsNumber(r) || unicode.IsLetter(r)
}
