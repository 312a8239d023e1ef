package dsl

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `(?:\d+\.\d+|\d+)(?:pt|mm|cm|in|px|%|x)?`},
		{Name: "String", Pattern: "\"(?:\\\\.|[^\"])*\"|`[^`]*`"},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[:;,]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	documentParser = participle.MustBuild[Document](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
	)

	scriptHeader = regexp.MustCompile(`^\s*script\s+[A-Za-z_]`)
)

// Document is the root AST node for a prompter script file.
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'script' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Section represents a top-level section (meta/settings/vars/body).
type Section struct {
	Meta     *MetaSection     `parser:"  @@"`
	Settings *SettingsSection `parser:"| @@"`
	Vars     *VarsSection     `parser:"| @@"`
	Body     *BodySection     `parser:"| @@"`
}

// Kind returns the human-readable section type.
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Settings != nil:
		return "settings"
	case s.Vars != nil:
		return "vars"
	case s.Body != nil:
		return "body"
	default:
		return "unknown"
	}
}

func (s *Section) block() *Block {
	switch {
	case s == nil:
		return nil
	case s.Meta != nil:
		return s.Meta.Block
	case s.Settings != nil:
		return s.Settings.Block
	case s.Vars != nil:
		return s.Vars.Block
	case s.Body != nil:
		return s.Body.Block
	}
	return nil
}

// MetaSection captures title/author assignments.
type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

// SettingsSection captures playback/display settings (speed, font-size, line-height).
type SettingsSection struct {
	Block *Block `parser:"'settings' @@"`
}

// VarsSection declares ${name} substitutions for the body.
type VarsSection struct {
	Block *Block `parser:"'vars' @@"`
}

// BodySection holds the paragraphs, one string literal each.
type BodySection struct {
	Block *Block `parser:"'body' @@"`
}

// Block is a delimited list of statements.
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | ',' | Newline )* )* '}'"`
}

// Statement inside a block (assignment or text literal).
type Statement struct {
	Pos        lexer.Position `parser:"" json:"-"`
	Assignment *Assignment    `parser:"  @@"`
	Text       *TextLiteral   `parser:"| @@"`
}

// Assignment uses colon syntax (key: value).
type Assignment struct {
	Key   string `parser:"@Ident"`
	Value *Value `parser:"':' Newline* @@"`
}

// TextLiteral encapsulates raw string statements within blocks.
type TextLiteral struct {
	Value StringLiteral `parser:"@String"`
}

// Value represents property values.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Ident  *string        `parser:"| @Ident"`
}

// Raw returns the value as written, with strings already unquoted.
func (v *Value) Raw() string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Ident != nil:
		return *v.Ident
	}
	return ""
}

// StringLiteral unquotes Go-style strings on capture, both "…" and `…`.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse parses script content from an io.Reader.
func Parse(r io.Reader) (*Document, error) {
	return documentParser.Parse("", r)
}

// ParseString parses script content from a string.
func ParseString(input string) (*Document, error) {
	return documentParser.ParseString("", input)
}

// LooksLikeScript reports whether input starts with a `script Name` header;
// anything else is treated by callers as plain text.
func LooksLikeScript(input string) bool {
	return scriptHeader.MatchString(input)
}

// Assignments 收集指定段落（meta/settings/vars）中的键值对，同名键以后者为准。
func (d *Document) Assignments(kind string) map[string]string {
	out := map[string]string{}
	if d == nil {
		return out
	}
	for _, sec := range d.Sections {
		if sec.Kind() != kind {
			continue
		}
		blk := sec.block()
		if blk == nil {
			continue
		}
		for _, st := range blk.Statements {
			if st.Assignment == nil {
				continue
			}
			out[st.Assignment.Key] = st.Assignment.Value.Raw()
		}
	}
	return out
}

// Body 将 body 段落中的每个字符串字面量视为一个段落，以空行连接。
func (d *Document) Body() string {
	if d == nil {
		return ""
	}
	var paras []string
	for _, sec := range d.Sections {
		if sec.Body == nil || sec.Body.Block == nil {
			continue
		}
		for _, st := range sec.Body.Block.Statements {
			if st.Text == nil {
				continue
			}
			paras = append(paras, string(st.Text.Value))
		}
	}
	return strings.Join(paras, "\n\n")
}
