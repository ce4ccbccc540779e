package grammar

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
)

var miniCParser = buildParser()

func buildParser() *participle.Parser[Program] {
	p, err := participle.Build[Program](
		participle.Lexer(MiniCLexer),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(4),
	)
	if err != nil {
		panic(fmt.Errorf("failed to build miniC parser: %w", err))
	}
	return p
}

// ParseSource parses miniC source text into a raw parse tree. sourceName
// is used only for diagnostics (usually the path the source came from).
func ParseSource(sourceName, source string) (*Program, error) {
	return miniCParser.ParseString(sourceName, source)
}
