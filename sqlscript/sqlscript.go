// Package sqlscript splits SQL scripts into individual statements so they
// can be submitted as a batch. Quoted literals, quoted identifiers and
// comments are respected; a semicolon inside any of them does not end a
// statement.
package sqlscript

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments are stripped from the output.
	{Name: "LineComment", Pattern: `--[^\r\n]*`},
	{Name: "BlockComment", Pattern: `(?s)/\*.*?\*/`},

	// Literals and quoted identifiers may contain semicolons.
	{Name: "String", Pattern: `'(?:''|[^'])*'`},
	{Name: "QuotedIdent", Pattern: `"(?:""|[^"])*"`},
	{Name: "BacktickIdent", Pattern: "`[^`]*`"},

	{Name: "Semi", Pattern: `;`},

	// Everything else, including whitespace. Dash and slash are listed
	// separately so an unpaired one does not get eaten by the comment rules.
	{Name: "Text", Pattern: "[^;'\"`/-]+"},
	{Name: "Punct", Pattern: `[/-]`},
})

var (
	semiType    = sqlLexer.Symbols()["Semi"]
	lineComment = sqlLexer.Symbols()["LineComment"]
	blockCom    = sqlLexer.Symbols()["BlockComment"]
)

// Split breaks src into statements, in order, with comments removed and
// surrounding whitespace trimmed. Empty statements are dropped.
func Split(src string) ([]string, error) {
	lex, err := sqlLexer.Lex("script", strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to lex script: %w", err)
	}

	var statements []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to lex script: %w", err)
		}
		if tok.EOF() {
			break
		}

		switch tok.Type {
		case semiType:
			flush()
		case lineComment, blockCom:
			// Comments still separate words around them.
			current.WriteByte(' ')
		default:
			current.WriteString(tok.Value)
		}
	}
	flush()

	return statements, nil
}
