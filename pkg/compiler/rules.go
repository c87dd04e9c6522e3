package compiler

import "github.com/mray/scriptvm/pkg/scanner"

// Precedence levels, ascending.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . ()
	PrecPrimary
)

// next returns the next-higher precedence, used to parse a binary
// operator's right-hand side left-associatively.
func (p Precedence) next() Precedence {
	return p + 1
}

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[scanner.TokenKind]parseRule

func init() {
	rules = map[scanner.TokenKind]parseRule{
		scanner.TokenLeftParen:    {(*Parser).grouping, nil, PrecNone},
		scanner.TokenMinus:        {(*Parser).unary, (*Parser).binary, PrecTerm},
		scanner.TokenPlus:         {nil, (*Parser).binary, PrecTerm},
		scanner.TokenSlash:        {nil, (*Parser).binary, PrecFactor},
		scanner.TokenStar:         {nil, (*Parser).binary, PrecFactor},
		scanner.TokenBang:         {(*Parser).unary, nil, PrecNone},
		scanner.TokenBangEqual:    {nil, (*Parser).binary, PrecEquality},
		scanner.TokenEqualEqual:   {nil, (*Parser).binary, PrecEquality},
		scanner.TokenGreater:      {nil, (*Parser).binary, PrecComparison},
		scanner.TokenGreaterEqual: {nil, (*Parser).binary, PrecComparison},
		scanner.TokenLess:         {nil, (*Parser).binary, PrecComparison},
		scanner.TokenLessEqual:    {nil, (*Parser).binary, PrecComparison},
		scanner.TokenIdentifier:   {(*Parser).variable, nil, PrecNone},
		scanner.TokenString:       {(*Parser).stringLiteral, nil, PrecNone},
		scanner.TokenNumber:       {(*Parser).number, nil, PrecNone},
		scanner.TokenAnd:          {nil, (*Parser).and_, PrecAnd},
		scanner.TokenOr:           {nil, (*Parser).or_, PrecOr},
		scanner.TokenFalse:        {(*Parser).literal, nil, PrecNone},
		scanner.TokenTrue:         {(*Parser).literal, nil, PrecNone},
		scanner.TokenNil:          {(*Parser).literal, nil, PrecNone},
	}
}

func getRule(kind scanner.TokenKind) parseRule {
	if rule, ok := rules[kind]; ok {
		return rule
	}
	return parseRule{precedence: PrecNone}
}
