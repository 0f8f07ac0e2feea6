package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
)

// Suffixes of generated constraint and index names.
const (
	SuffixUnique     = "key"
	SuffixPrimaryKey = "pk"
	SuffixForeignKey = "fk"
	SuffixCheck      = "chk"
	SuffixIndex      = "idx"
)

// CommentMarker tags schemas, column defaults and triggers managed by the
// tool.
const CommentMarker = "monolayer"

var generatedNameRe = regexp.MustCompile(`^(.+)_([0-9a-f]{8})_monolayer_(key|pk|fk|chk|idx)$`)

// HashValue returns the short content hash embedded in generated names.
func HashValue(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}

// GeneratedName builds "{table}_{hash}_monolayer_{suffix}".
func GeneratedName(table, hash, suffix string) string {
	return fmt.Sprintf("%s_%s_%s_%s", table, hash, CommentMarker, suffix)
}

// ParseGeneratedName splits a generated name into its parts.
func ParseGeneratedName(name string) (table, hash, suffix string, ok bool) {
	m := generatedNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", "", "", false
	}
	return m[1], m[2], m[3], true
}

// UniqueHash hashes the semantic content of a unique constraint.
func UniqueHash(columns []string, nullsDistinct bool) string {
	return HashValue(fmt.Sprintf("%t_%s", nullsDistinct, strings.Join(sortedCopy(columns), "_")))
}

// PrimaryKeyHash hashes the column set of a primary key.
func PrimaryKeyHash(columns []string) string {
	return HashValue(strings.Join(sortedCopy(columns), "_"))
}

// ForeignKeyHash hashes a foreign key. Column pairs are sorted by the
// referencing column so that declaration order does not matter.
func ForeignKeyHash(fk ForeignKeyInfo) string {
	pairs := make([]string, len(fk.Columns))
	for i, c := range fk.Columns {
		target := ""
		if i < len(fk.TargetColumns) {
			target = fk.TargetColumns[i]
		}
		pairs[i] = c + ":" + target
	}
	sort.Strings(pairs)
	return HashValue(fmt.Sprintf("%s_%s.%s_%s_%s",
		strings.Join(pairs, "_"), fk.TargetSchema, fk.TargetTable, fk.OnDelete, fk.OnUpdate))
}

// CheckHash hashes a check expression with whitespace collapsed.
func CheckHash(expression string) string {
	return HashValue(strings.Join(strings.Fields(expression), " "))
}

// IndexHash hashes an index definition. Column order is significant.
func IndexHash(idx IndexInfo) string {
	return HashValue(fmt.Sprintf("%t_%s_%s_%t_%s",
		idx.Unique, idx.Using, strings.Join(idx.Columns, ","), idx.NullsNotDistinct,
		strings.Join(strings.Fields(idx.Where), " ")))
}

// TriggerHash hashes a CREATE TRIGGER statement.
func TriggerHash(definition string) string {
	return HashValue(strings.Join(strings.Fields(definition), " "))
}

// TwoStepIndexName is the name of the unique index built concurrently before
// it is attached to a primary key or unique constraint.
func TwoStepIndexName(constraintName string) string {
	return constraintName + "_" + CommentMarker + "_idx"
}

// ToSnake converts a camelCase identifier to snake_case.
func ToSnake(name string) string {
	return strcase.ToSnake(name)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
