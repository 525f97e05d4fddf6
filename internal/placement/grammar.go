// Package placement reads and writes the two text formats that pin down a
// panel arrangement by hand: placement files, which give every instance an
// absolute position, and layout files, which list jobs in rows.
package placement

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// placementLexer tokenizes placement files. The header comment carries the
// run id, every other '#' comment is dropped.
var placementLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Header", Pattern: `#[ \t]*gerbmerge[ \t]+placement[^\n]*`},
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Rotated", Pattern: `\*rotated(90|180|270)?`},
	{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*(#\d+)?`},
	{Name: "Whitespace", Pattern: `[\s]+`},
})

// layoutLexer tokenizes layout files.
var layoutLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Keyword", Pattern: `\b(row|rotated)\b`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*`},
	{Name: "Punct", Pattern: `[{}]`},
	{Name: "Whitespace", Pattern: `[\s]+`},
})

// placementFile is the grammar of a placement file:
//
//	# gerbmerge placement <id>
//	cpu 0 0 0 cpu#1
//	cpu 2.1 0 90 cpu#2
//
// Older files without rotation and label columns are accepted, with the
// rotation folded into the name as in "cpu*rotated 2.1 0".
type placementFile struct {
	Header  string             `@Header?`
	Records []*placementRecord `@@*`
}

type placementRecord struct {
	Pos lexer.Position

	Name     string  `@Ident`
	Legacy   string  `@Rotated?`
	X        float64 `@Number`
	Y        float64 `@Number`
	Rotation *int    `( @Number`
	Label    string  `  @Ident )?`
}

// layoutFile is the grammar of a layout file:
//
//	# bottom row first
//	row { cpu cpu rotated }
//	row { io }
type layoutFile struct {
	Rows []*layoutRow `@@*`
}

type layoutRow struct {
	Pos lexer.Position

	Entries []*layoutEntry `"row" "{" @@* "}"`
}

type layoutEntry struct {
	Name    string `@Ident`
	Rotated bool   `@"rotated"?`
}

var (
	placementParser = participle.MustBuild[placementFile](
		participle.Lexer(placementLexer),
		participle.Elide("Comment", "Whitespace"),
	)
	layoutParser = participle.MustBuild[layoutFile](
		participle.Lexer(layoutLexer),
		participle.Elide("Comment", "Whitespace"),
	)
)
