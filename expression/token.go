package expression

const (
	KindFunction Kind = iota
	KindVariable
	KindNumberLiteral
	KindStringLiteral
)

var KindMapping = map[Kind]string{
	KindFunction:      "function",
	KindVariable:      "variable",
	KindNumberLiteral: "number",
	KindStringLiteral: "string",
}

type Kind int

func (k Kind) String() string {
	if name, ok := KindMapping[k]; ok {
		return name
	}
	return "unknown"
}

// Token is a classified part of an expression. Start and End are rune
// offsets into the top-level expression, End exclusive.
type Token struct {
	Kind  Kind   `json:"kind"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type TokenList []Token

func (in TokenList) at(index int) *Token {
	if index < len(in) {
		return &in[index]
	}
	return nil
}

// Variables returns the variable tokens of the list, order preserved.
func (in TokenList) Variables() TokenList {
	var variables TokenList
	for i := range in {
		if token := in.at(i); token.Kind == KindVariable {
			variables = append(variables, *token)
		}
	}
	return variables
}
