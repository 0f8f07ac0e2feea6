package schema

import "strings"

// QuoteIdent quotes an SQL identifier, doubling embedded quotes.
func QuoteIdent(s string) string {
	return `"` + escapeQuote(s, '"') + `"`
}

// QuoteLiteral quotes an SQL string literal, doubling embedded single quotes.
// A literal holding a backslash is written as an escape string (E prefix)
// with the backslash doubled.
func QuoteLiteral(s string) string {
	escaped := escapeQuote(s, '\'')
	if strings.ContainsRune(s, '\\') {
		return `E'` + strings.ReplaceAll(escaped, `\`, `\\`) + `'`
	}
	return `'` + escaped + `'`
}

// QualifiedName returns "schema"."name".
func QualifiedName(schemaName, name string) string {
	return QuoteIdent(schemaName) + "." + QuoteIdent(name)
}

// QuoteColumns quotes each column and joins them with ", ". Entries that
// are not plain identifiers are index expressions and are left as they are.
func QuoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		if isPlainIdent(c) {
			quoted[i] = QuoteIdent(c)
		} else {
			quoted[i] = c
		}
	}
	return strings.Join(quoted, ", ")
}

func escapeQuote(s string, q rune) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	for _, r := range s {
		if r == q {
			b.WriteRune(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '$'):
		default:
			return false
		}
	}
	return true
}
