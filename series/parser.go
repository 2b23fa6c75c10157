package series

import (
	"fmt"

	"go.buf.build/protocolbuffers/go/prometheus/prometheus"
)

const nameLabel = "__name__"

// Parser turns selector tokens into a time series without samples.
type Parser struct {
	index  int
	tokens TokenList
}

func NewParser(tokens TokenList) *Parser {
	return &Parser{
		index:  0,
		tokens: tokens,
	}
}

func (p *Parser) hasTokens() bool {
	return p.index < len(p.tokens)
}

func (p *Parser) consume() {
	p.index = p.index + 1
}

func (p *Parser) next() (*Token, error) {
	if !p.hasTokens() {
		return nil, fmt.Errorf("%w: unexpected end of selector", ErrSyntax)
	}
	current := p.index
	p.index = p.index + 1
	return p.tokens.at(current), nil
}

func (p *Parser) peek() (*Token, error) {
	if !p.hasTokens() {
		return nil, fmt.Errorf("%w: unexpected end of selector", ErrSyntax)
	}
	return p.tokens.at(p.index), nil
}

func (p *Parser) expect(t TokenType) (*Token, error) {
	token, err := p.next()
	if err != nil {
		return nil, err
	}

	if token.TokenType == t {
		return token, nil
	}

	return nil, fmt.Errorf("%w: expected %v but got %v at %v", ErrSyntax, TokenMapping[t], TokenMapping[token.TokenType], token.Pos)
}

func (p *Parser) label() (*prometheus.Label, error) {
	name, err := p.expect(TokenTypeName)
	if err != nil {
		return nil, err
	}

	if _, err = p.expect(TokenTypeEquals); err != nil {
		return nil, err
	}

	value, err := p.expect(TokenTypeString)
	if err != nil {
		return nil, err
	}

	return &prometheus.Label{
		Name:  name.StringVal,
		Value: value.StringVal,
	}, nil
}

func (p *Parser) labels() ([]*prometheus.Label, error) {
	var labels []*prometheus.Label
	for {
		la, err := p.peek()
		if err != nil {
			return nil, err
		}
		if la.TokenType == TokenTypeRBrace {
			return labels, nil
		}

		label, err := p.label()
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)

		la, err = p.peek()
		if err != nil {
			return nil, err
		}
		switch la.TokenType {
		case TokenTypeComma:
			p.consume()
		case TokenTypeRBrace:
			return labels, nil
		default:
			return nil, fmt.Errorf("%w: expected , or } but got %v at %v", ErrSyntax, TokenMapping[la.TokenType], la.Pos)
		}
	}
}

// Parse reads <metric>{<label>="<value>", ...}. The label list is optional.
func (p *Parser) Parse() (*prometheus.TimeSeries, error) {
	token, err := p.expect(TokenTypeName)
	if err != nil {
		return nil, err
	}

	labels := []*prometheus.Label{{
		Name:  nameLabel,
		Value: token.StringVal,
	}}

	if p.hasTokens() {
		if _, err := p.expect(TokenTypeLBrace); err != nil {
			return nil, err
		}
		parsed, err := p.labels()
		if err != nil {
			return nil, err
		}
		labels = append(labels, parsed...)
		if _, err := p.expect(TokenTypeRBrace); err != nil {
			return nil, err
		}
	}

	if la, err := p.peek(); err == nil {
		return nil, fmt.Errorf("%w: trailing %v at %v", ErrSyntax, TokenMapping[la.TokenType], la.Pos)
	}

	return &prometheus.TimeSeries{
		Labels: labels,
	}, nil
}

// Parse scans and parses a selector.
func Parse(selector string) (*prometheus.TimeSeries, error) {
	tokens, err := NewScanner().Scan(selector)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}
