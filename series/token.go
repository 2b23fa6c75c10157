package series

const (
	TokenTypeLBrace = iota
	TokenTypeRBrace
	TokenTypeName
	TokenTypeString
	TokenTypeEquals
	TokenTypeComma
)

var TokenMapping = map[TokenType]string{
	TokenTypeLBrace: "{",
	TokenTypeRBrace: "}",
	TokenTypeName:   "<name>",
	TokenTypeString: "<string>",
	TokenTypeEquals: "=",
	TokenTypeComma:  ",",
}

type TokenType int

type Token struct {
	TokenType TokenType
	StringVal string
	Pos       int
}

type TokenList []Token

func (in TokenList) at(index int) *Token {
	if index < len(in) {
		return &in[index]
	}
	return nil
}
