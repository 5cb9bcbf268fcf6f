// Package token defines the lexical token kinds shared by the lexer
// and parser.
package token

import "github.com/ZadenRB/go-lexer"

// Kind identifies the category of a token. Its underlying type mirrors
// lexer.TokenType so internal/lexer can convert tokens to and from
// go-lexer's channel without loss.
type Kind lexer.TokenType

const (
	EOF Kind = iota
	Error

	Word
	AssignmentWord
	Name
	IONumber

	// Reserved words, recognized only at command-start position.
	If
	Then
	Else
	Elif
	Fi
	Do
	Done
	Case
	Esac
	While
	Until
	For
	Function
	LBrace
	RBrace
	Bang
	In

	// Control operators.
	And
	AndIf
	OpenParen
	CloseParen
	Semi
	DSemi
	DSemiAnd // ;;&
	SemiAnd  // ;&
	Newline
	Or
	OrIf
	PipeAnd // |&

	// Redirection operators.
	Less
	Great
	Clobber
	DLess
	DLessDash
	DGreat
	LessAnd
	GreatAnd
	LessGreat
	TLess // <<<

	// Combined fd-merge redirections.
	AndGreat  // &>
	AndDGreat // &>>
)

var names = map[Kind]string{
	EOF:            "EOF",
	Error:          "ERROR",
	Word:           "WORD",
	AssignmentWord: "ASSIGNMENT_WORD",
	Name:           "NAME",
	IONumber:       "IO_NUMBER",
	If:             "if", Then: "then", Else: "else", Elif: "elif", Fi: "fi",
	Do: "do", Done: "done", Case: "case", Esac: "esac",
	While: "while", Until: "until", For: "for", Function: "function",
	LBrace: "{", RBrace: "}", Bang: "!", In: "in",
	And: "&", AndIf: "&&", OpenParen: "(", CloseParen: ")",
	Semi: ";", DSemi: ";;", DSemiAnd: ";;&", SemiAnd: ";&", Newline: "\n",
	Or: "|", OrIf: "||", PipeAnd: "|&",
	Less: "<", Great: ">", Clobber: ">|", DLess: "<<", DLessDash: "<<-",
	DGreat: ">>", LessAnd: "<&", GreatAnd: ">&", LessGreat: "<>", TLess: "<<<",
	AndGreat: "&>", AndDGreat: "&>>",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// Operators is the maximal-munch operator table from spec.md §4.2.
var Operators = map[string]Kind{
	"&": And, "&&": AndIf, "|&": PipeAnd, "&>": AndGreat, "&>>": AndDGreat,
	"(": OpenParen, ")": CloseParen,
	";": Semi, ";;": DSemi, ";&": SemiAnd, ";;&": DSemiAnd,
	"\n": Newline,
	"|":  Or, "||": OrIf,
	"<": Less, ">": Great, ">|": Clobber,
	"<<": DLess, "<<-": DLessDash, "<<<": TLess,
	">>": DGreat, "<&": LessAnd, ">&": GreatAnd, "<>": LessGreat,
}

// ReservedWords is the table of words recognized only at
// command-start position (spec.md §4.3).
var ReservedWords = map[string]Kind{
	"if": If, "then": Then, "else": Else, "elif": Elif, "fi": Fi,
	"do": Do, "done": Done, "while": While, "until": Until, "for": For,
	"case": Case, "esac": Esac, "function": Function,
	"{": LBrace, "}": RBrace, "!": Bang, "in": In,
}

// SegmentKind identifies the kind of one quoting/expansion segment
// inside a Word token (spec.md §3).
type SegmentKind int

const (
	SegLiteral SegmentKind = iota
	SegSingleQuoted
	SegDoubleQuoted
	SegEscaped
	SegParam       // ${...} or $name or $N, $?, $$, $!, $#, $@, $*, $-
	SegCommandSub  // $(...) or `...`
	SegArithSub    // $((...))
	SegTildePrefix // ~ / ~+ / ~- / ~name
)

// Segment is one piece of a word, carrying the raw text the lexer
// collected for it. Expansion interprets Raw according to Kind; the
// parser never re-interprets it.
type Segment struct {
	Kind   SegmentKind
	Raw    string
	Quoted bool // true if this segment sits inside double quotes
}

// Token is one lexical token: an operator/reserved-word/structural
// token carries Value as its literal text; a Word token carries
// Segments too (Value is the concatenated raw text of its segments).
type Token struct {
	Type     Kind
	Value    string
	Segments []Segment
	Line     int
	Col      int
}
