package expression

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedExpression is returned for an opening parenthesis without a
	// matching closing one.
	ErrMalformedExpression = errors.New("malformed expression")
	// ErrNestingTooDeep is returned, wrapped in ErrMalformedExpression, when
	// groups nest deeper than the scanner's MaxDepth.
	ErrNestingTooDeep = errors.New("parentheses nested too deep")
)

const DefaultMaxDepth = 64

// ProgressReporter receives the progress of a top-level scan in percent.
type ProgressReporter interface {
	ProgressUpdated(expression string, percent float64)
}

// Scanner splits expressions into tokens. A Scanner holds no per-call state
// and may be shared between goroutines.
type Scanner struct {
	// StepDelay is waited after every character. The wait is a suspension
	// point at which cancellation of the context takes effect.
	StepDelay time.Duration
	// MaxDepth bounds how deep parenthesized groups may nest.
	MaxDepth int
}

type Option func(*Scanner)

func WithStepDelay(delay time.Duration) Option {
	return func(s *Scanner) {
		s.StepDelay = delay
	}
}

func WithMaxDepth(depth int) Option {
	return func(s *Scanner) {
		s.MaxDepth = depth
	}
}

func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		MaxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.MaxDepth <= 0 {
		s.MaxDepth = DefaultMaxDepth
	}
	return s
}

// Tokenize scans expression and returns its tokens ordered by start offset.
// Progress is reported to reporter, which may be nil. On error or
// cancellation no tokens are returned.
func (s *Scanner) Tokenize(ctx context.Context, expression string, reporter ProgressReporter) (TokenList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runes := []rune(expression)
	sc := &scan{
		Scanner:    s,
		ctx:        ctx,
		expression: expression,
		length:     len(runes),
		reporter:   reporter,
	}

	if sc.length == 0 {
		sc.report(100)
		return nil, nil
	}

	sc.report(0)
	tokens, err := sc.group(runes, 0, 0)
	if err != nil {
		return nil, err
	}
	sc.report(100)
	return tokens, nil
}

// ExtractVariables returns the variable tokens of expression.
func (s *Scanner) ExtractVariables(ctx context.Context, expression string, reporter ProgressReporter) (TokenList, error) {
	tokens, err := s.Tokenize(ctx, expression, reporter)
	if err != nil {
		return nil, err
	}
	return tokens.Variables(), nil
}

type scan struct {
	*Scanner
	ctx        context.Context
	expression string
	length     int
	reporter   ProgressReporter
}

// group tokenizes runes, which start at absolute offset base and sit depth
// groups below the top level.
func (sc *scan) group(runes []rune, base int, depth int) (TokenList, error) {
	if depth > sc.MaxDepth {
		return nil, fmt.Errorf("%w: %w at offset %d", ErrMalformedExpression, ErrNestingTooDeep, base)
	}

	var tokens TokenList
	builder := NewTokenBuilder()

	flush := func(offset int) {
		if builder.HasValue() {
			tokens = append(tokens, mustBuild(builder.Build(offset)))
		}
	}

	index := 0
	for index < len(runes) {
		r := runes[index]
		offset := base + index

		switch {
		case r == '(':
			closing := matchingParen(runes, index)
			if closing < 0 {
				return nil, fmt.Errorf("%w: unmatched '(' at offset %d", ErrMalformedExpression, offset)
			}
			// a group without a preceding name is plain grouping
			if builder.HasValue() {
				tokens = append(tokens, mustBuild(builder.BuildFunction(offset)))
			}
			inner, err := sc.group(runes[index+1:closing], offset+1, depth+1)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, inner...)
			index = closing + 1
		case isWord(r):
			builder.Append(r)
			index++
		default:
			flush(offset)
			index++
		}

		if err := sc.suspend(); err != nil {
			return nil, err
		}
		if depth == 0 {
			sc.report(100 * float64(index) / float64(sc.length))
		}
	}

	flush(base + len(runes))
	return tokens, nil
}

func (sc *scan) suspend() error {
	if sc.StepDelay <= 0 {
		return sc.ctx.Err()
	}

	timer := time.NewTimer(sc.StepDelay)
	defer timer.Stop()

	select {
	case <-sc.ctx.Done():
		return sc.ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (sc *scan) report(percent float64) {
	if sc.reporter != nil {
		sc.reporter.ProgressUpdated(sc.expression, percent)
	}
}

// matchingParen returns the index of the ')' closing the '(' at open, or -1.
func matchingParen(runes []rune, open int) int {
	depth := 0
	for i := open; i < len(runes); i++ {
		switch runes[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// the scanner only builds after checking HasValue
func mustBuild(token Token, err error) Token {
	if err != nil {
		panic(err)
	}
	return token
}
