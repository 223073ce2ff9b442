package optimize

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
)

//go:embed schema/optimized.sql
var defaultDDL string

// DefaultDDL returns the built-in optimized schema script.
func DefaultDDL() string {
	return defaultDDL
}

// LoadDDL reads an optimized schema script from path. An empty path returns
// the built-in script.
func LoadDDL(path string) (string, error) {
	if path == "" {
		return defaultDDL, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	return string(b), nil
}

// indexDecl is an index declared by the schema script.
type indexDecl struct {
	Name  string
	Table string
}

var createIndexRe = regexp.MustCompile(`(?is)^CREATE\s+(?:UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?([\w"\[\]]+)\s+ON\s+([\w"\[\]]+)`)

// declaredIndexes returns the indexes created by stmts, in order.
func declaredIndexes(stmts []string) []indexDecl {
	var out []indexDecl
	for _, stmt := range stmts {
		m := createIndexRe.FindStringSubmatch(stmt)
		if m == nil {
			continue
		}
		out = append(out, indexDecl{Name: unquoteIdent(m[1]), Table: unquoteIdent(m[2])})
	}
	return out
}

func unquoteIdent(s string) string {
	return strings.Trim(s, `"[]`)
}

// splitStatements splits a SQL script on semicolons that are outside quotes
// and comments. Empty statements are dropped.
func splitStatements(script string) []string {
	var (
		out     []string
		cur     strings.Builder
		quote   rune
		comment bool
		block   bool
	)
	runes := []rune(script)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch {
		case comment:
			if c == '\n' {
				comment = false
				cur.WriteRune(c)
			}
			continue
		case block:
			if c == '*' && next == '/' {
				block = false
				i++
			}
			continue
		case quote != 0:
			cur.WriteRune(c)
			if c == quote {
				// Doubled quote is an escaped quote character.
				if next == quote {
					cur.WriteRune(next)
					i++
					continue
				}
				quote = 0
			}
			continue
		}

		switch {
		case c == '-' && next == '-':
			comment = true
			i++
		case c == '/' && next == '*':
			block = true
			i++
		case c == '\'' || c == '"' || c == '`':
			quote = c
			cur.WriteRune(c)
		case c == ';':
			flush()
		default:
			cur.WriteRune(c)
		}
	}
	flush()
	return out
}
