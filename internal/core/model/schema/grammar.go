// Package schema parses the model definition language into a model.Model.
package schema

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// SchemaLexer defines the token types of the model definition language.
var SchemaLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Keywords
	{Name: "Keyword", Pattern: `\b(model|enum|type|extends)\b`},

	// Block attribute prefix (must come before single @)
	{Name: "BlockAttr", Pattern: `@@`},
	// Field attribute prefix
	{Name: "FieldAttr", Pattern: `@`},

	// Literals
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},

	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},
	{Name: "Punct", Pattern: `[{}()\[\],:.=?]`},

	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

// File is the root of a parsed definition.
type File struct {
	Pos   lexer.Position
	Decls []*Decl `@@*`
}

// Decl is one top-level declaration.
type Decl struct {
	Model *ModelDecl `  @@`
	Enum  *EnumDecl  `| @@`
	Type  *TypeDecl  `| @@`
}

// ModelDecl declares an entity type.
type ModelDecl struct {
	Pos     lexer.Position
	Name    string    `"model" @Ident`
	Base    string    `( "extends" @Ident )?`
	Members []*Member `"{" @@* "}"`
}

// TypeDecl declares an owned type.
type TypeDecl struct {
	Pos     lexer.Position
	Name    string    `"type" @Ident`
	Members []*Member `"{" @@* "}"`
}

// Member is a field or a block attribute inside a declaration body.
type Member struct {
	Block *Attribute `  "@@" @@`
	Field *Field     `| @@`
}

// Field is a property, navigation or owned navigation.
type Field struct {
	Pos        lexer.Position
	Name       string       `@Ident`
	Type       string       `@Ident`
	List       bool         `@( "[" "]" )?`
	Optional   bool         `@"?"?`
	Attributes []*Attribute `( "@" @@ )*`
}

// Attribute is a field (@name) or block (@@name) attribute.
type Attribute struct {
	Pos  lexer.Position
	Name string `@Ident ( @"." @Ident )*`
	Args []*Arg `( "(" ( @@ ( "," @@ )* )? ")" )?`
}

// Arg is a positional or named attribute argument.
type Arg struct {
	Name  string `( @Ident ":" )?`
	Value *Value `@@`
}

// Value is a literal argument value.
type Value struct {
	String *string  `  @String`
	Number *string  `| @Number`
	List   []*Value `| "[" ( @@ ( "," @@ )* )? "]"`
	Ident  *string  `| @Ident`
}

// EnumDecl declares an enum.
type EnumDecl struct {
	Pos     lexer.Position
	Name    string        `"enum" @Ident`
	Members []*EnumMember `"{" ( @@ ","? )* "}"`
}

// EnumMember is one enum member with an optional explicit value.
type EnumMember struct {
	Pos   lexer.Position
	Name  string  `@Ident`
	Value *string `( "=" @Number )?`
}

var parser = participle.MustBuild[File](
	participle.Lexer(SchemaLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
	participle.UseLookahead(4),
)
