package loader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/sarchlab/cyclesim/insts"
)

var (
	asmLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `(?:;|//)[^\n]*`},
		{Name: "EOL", Pattern: `\n`},
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Directive", Pattern: `\.[A-Za-z_][A-Za-z0-9_]*`},
		{Name: "Int", Pattern: `-?(?:0[xX][0-9a-fA-F]+|0[oO][0-7]+|0[bB][01]+|[0-9]+)`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
		{Name: "Punct", Pattern: `[#\[\],:]`},
	})

	asmParser = participle.MustBuild[sourceFile](
		participle.Lexer(asmLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.UseLookahead(3),
	)
)

// sourceFile is a sequence of lines. Sections are tracked while assembling,
// not by the grammar, so a line means the same thing in either section.
type sourceFile struct {
	Lines []*sourceLine `@@*`
}

type sourceLine struct {
	Label *labelDef  `@@?`
	Stmt  *statement `@@?`
	End   string     `@EOL`
}

type labelDef struct {
	Pos  lexer.Position
	Name string `@Ident ":"`
}

type statement struct {
	Directive *directive   `  @@`
	Word      *namedWord   `| @@`
	Instr     *instruction `| @@`
	Value     *intLiteral  `| @@`
}

// directive is ".data", ".text", ".global name" or ".word value".
type directive struct {
	Pos  lexer.Position
	Name string  `@Directive`
	Arg  *symbol `@@?`
}

// namedWord is the "name .word value" data form.
type namedWord struct {
	Pos  lexer.Position
	Name string     `@Ident`
	Word *directive `@@`
}

type instruction struct {
	Pos      lexer.Position
	Mnemonic string     `@Ident`
	Operands []*operand `( @@ ( "," @@ )* )?`
}

type operand struct {
	Pos  lexer.Position
	Imm  *string `  "#" @( Int | Ident )`
	Mem  *string `| "[" @Ident "]"`
	Name *string `| @Ident`
	Bare *string `| @Int`
}

type symbol struct {
	Pos   lexer.Position
	Int   *string `  @Int`
	Ident *string `| @Ident`
}

type intLiteral struct {
	Pos  lexer.Position
	Text string `@Int`
}

func (s *symbol) text() string {
	if s.Int != nil {
		return *s.Int
	}
	return *s.Ident
}

func stmtLoc(s *statement) insts.SourceLocation {
	switch {
	case s.Directive != nil:
		return location(s.Directive.Pos)
	case s.Word != nil:
		return location(s.Word.Pos)
	case s.Instr != nil:
		return location(s.Instr.Pos)
	default:
		return location(s.Value.Pos)
	}
}

func location(pos lexer.Position) insts.SourceLocation {
	return insts.SourceLocation{Line: pos.Line, Column: pos.Column}
}

// parseSource runs the grammar over src and turns grammar errors into
// SyntaxErrors.
func parseSource(src string) (*sourceFile, error) {
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}

	file, err := asmParser.ParseString("", src)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			return nil, syntaxErrorf(location(perr.Position()), "%s", perr.Message())
		}
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	return file, nil
}

// parseInteger reads a decimal literal, or a hex, octal or binary literal
// with an explicit 0x, 0o or 0b prefix. A leading zero alone stays decimal.
func parseInteger(text string) (insts.Word, error) {
	digits, negative := strings.CutPrefix(text, "-")

	base := 10
	if len(digits) > 2 && digits[0] == '0' {
		switch digits[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 10 {
			digits = digits[2:]
		}
	}

	magnitude, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, err
	}

	if negative {
		if magnitude > 1<<63 {
			return 0, strconv.ErrRange
		}
		return -insts.Word(magnitude), nil
	}
	if magnitude > 1<<63-1 {
		return 0, strconv.ErrRange
	}
	return insts.Word(magnitude), nil
}
