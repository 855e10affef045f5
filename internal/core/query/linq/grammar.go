// Package linq parses LINQ-style query text into expression trees.
package linq

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// QueryLexer defines the token types of the query language.
var QueryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?[LlMmDd]?`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},

	// Multi-character operators must come before their prefixes.
	{Name: "Operator", Pattern: `=>|==|!=|<=|>=|&&|\|\||\?\?|[-+*/%<>!?:=.,(){}\[\]@]`},

	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// Expression is the lowest-precedence expression level.
type Expression struct {
	Pos  lexer.Position
	Test *Coalesce   `@@`
	Then *Expression `( "?" @@`
	Else *Expression `  ":" @@ )?`
}

type Coalesce struct {
	Left  *Or   `@@`
	Right []*Or `( "??" @@ )*`
}

type Or struct {
	Left  *And   `@@`
	Right []*And `( "||" @@ )*`
}

type And struct {
	Left  *Comparison   `@@`
	Right []*Comparison `( "&&" @@ )*`
}

type Comparison struct {
	Left  *Additive `@@`
	Op    string    `( @( "==" | "!=" | "<=" | ">=" | "<" | ">" )`
	Right *Additive `  @@ )?`
}

type Additive struct {
	Left *Multiplicative `@@`
	Rest []*AddOperand    `@@*`
}

type AddOperand struct {
	Op    string          `@( "+" | "-" )`
	Right *Multiplicative `@@`
}

type Multiplicative struct {
	Left *Unary        `@@`
	Rest []*MulOperand `@@*`
}

type MulOperand struct {
	Op    string `@( "*" | "/" | "%" )`
	Right *Unary `@@`
}

type Unary struct {
	Op      string   `  @( "!" | "-" )`
	Operand *Unary   `  @@`
	Postfix *Postfix `| @@`
}

// Postfix is a primary expression followed by member accesses and method calls.
type Postfix struct {
	Pos      lexer.Position
	Primary  *Primary  `@@`
	Suffixes []*Suffix `@@*`
}

type Suffix struct {
	Pos  lexer.Position
	Name string    `"." @Ident`
	Call *CallArgs `@@?`
}

type CallArgs struct {
	Open bool        `@"("`
	Args []*Argument `( @@ ( "," @@ )* )? ")"`
}

type Argument struct {
	Lambda *LambdaExpr `  @@`
	Expr   *Expression `| @@`
}

type LambdaExpr struct {
	Pos    lexer.Position
	Params []string    `( @Ident | "(" ( @Ident ( "," @Ident )* )? ")" ) "=>"`
	Body   *Expression `@@`
}

type Primary struct {
	New      *NewExpr    `  @@`
	Captured *string     `| "@" @Ident`
	Number   *string     `| @Number`
	String   *string     `| @String`
	True     bool        `| @"true"`
	False    bool        `| @"false"`
	Null     bool        `| @"null"`
	List     *ListExpr   `| @@`
	Paren    *Expression `| "(" @@ ")"`
	Func     *FuncCall   `| @@`
	Ident    *string     `| @Ident`
}

type NewExpr struct {
	Members []*NewMember `"new" "{" ( @@ ( "," @@ )* )? "}"`
}

type NewMember struct {
	Name  string      `( @Ident "=" )?`
	Value *Expression `@@`
}

type ListExpr struct {
	Items []*Expression `"[" ( @@ ( "," @@ )* )? "]"`
}

type FuncCall struct {
	Name string    `@Ident`
	Args *CallArgs `@@`
}

var parser = participle.MustBuild[Expression](
	participle.Lexer(QueryLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(16),
)
