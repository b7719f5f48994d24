package compiler

import (
	"strings"

	"github.com/alecthomas/participle/lexer"
)

// Fields are runs of non-space characters; newlines end a statement and any
// other whitespace is dropped.
var sourceLexer = lexer.Must(lexer.Regexp(`(?P<Newline>\n)|(?P<Field>[^\s]+)|([^\S\n]+)`))

// SourceLine is one non-empty statement of the input.
type SourceLine struct {
	Number  int
	Fields  []string
	Columns []int
}

// Text joins the fields back into a normalized statement.
func (l SourceLine) Text() string {
	return strings.Join(l.Fields, " ")
}

// Column returns the column of field i, or of the statement start when i is
// out of range.
func (l SourceLine) Column(i int) int {
	if i >= 0 && i < len(l.Columns) {
		return l.Columns[i]
	}
	if len(l.Columns) > 0 {
		return l.Columns[0]
	}
	return 1
}

// Tokenize splits source text into statements. Blank lines are skipped.
func Tokenize(src string) ([]SourceLine, error) {
	lex, err := sourceLexer.Lex(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, err
	}

	symbols := sourceLexer.Symbols()
	newline, field := symbols["Newline"], symbols["Field"]

	var lines []SourceLine
	var cur SourceLine
	flush := func() {
		if len(cur.Fields) > 0 {
			lines = append(lines, cur)
		}
		cur = SourceLine{}
	}

	for _, tok := range tokens {
		switch tok.Type {
		case field:
			if len(cur.Fields) == 0 {
				cur.Number = tok.Pos.Line
			}
			cur.Fields = append(cur.Fields, tok.Value)
			cur.Columns = append(cur.Columns, tok.Pos.Column)
		case newline:
			flush()
		}
	}
	flush()
	return lines, nil
}

// TokenizeLine splits a single statement, as typed at a prompt, and gives it
// the line number n.
func TokenizeLine(text string, n int) SourceLine {
	lines, err := Tokenize(strings.ReplaceAll(text, "\n", " "))
	if err != nil || len(lines) == 0 {
		return SourceLine{Number: n}
	}
	line := lines[0]
	line.Number = n
	return line
}
