// Package migrations holds the schema for the curve record (PostgreSQL) and
// price history (ClickHouse) stores and applies it at startup.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

//go:embed postgres/*.sql clickhouse/*.sql
var schema embed.FS

// Migration is one embedded schema file.
type Migration struct {
	Name string
	SQL  string
}

// Load returns the files embedded for dialect ("postgres" or "clickhouse")
// in lexical order.
func Load(dialect string) ([]Migration, error) {
	names, err := fs.Glob(schema, dialect+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("glob %s migrations: %w", dialect, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no %s migrations embedded", dialect)
	}

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := schema.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, Migration{Name: path.Base(name), SQL: string(data)})
	}
	return out, nil
}

// Statements splits sql at semicolons that sit outside single-quoted
// literals. -- comments run to end of line and are dropped; '' inside a
// literal is an escaped quote.
func Statements(sql string) ([]string, error) {
	var (
		stmts   []string
		cur     strings.Builder
		inQuote bool
	)
	emit := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case inQuote:
			cur.WriteByte(c)
			if c != '\'' {
				continue
			}
			if i+1 < len(sql) && sql[i+1] == '\'' {
				cur.WriteByte('\'')
				i++
				continue
			}
			inQuote = false
		case c == '\'':
			inQuote = true
			cur.WriteByte(c)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i+1 < len(sql) && sql[i+1] != '\n' {
				i++
			}
		case c == ';':
			emit()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated string literal")
	}
	emit()
	return stmts, nil
}
