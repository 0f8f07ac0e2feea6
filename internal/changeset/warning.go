package changeset

import (
	"fmt"
	"strings"
)

// WarningType classifies the risk of a changeset.
type WarningType string

const (
	WarningBackwardIncompatible WarningType = "backwardIncompatible"
	WarningBlocking             WarningType = "blocking"
	WarningMightFail            WarningType = "mightFail"
	WarningDestructive          WarningType = "destructive"
)

// Code identifies a warning.
type Code string

const (
	CodeTableRename  Code = "BI001"
	CodeColumnRename Code = "BI002"

	CodeChangeColumnType   Code = "B001"
	CodeAddSerialColumn    Code = "B002"
	CodeAddVolatileDefault Code = "B003"

	CodeAddPrimaryKey             Code = "MF001"
	CodeAddUniqueConstraint       Code = "MF002"
	CodeAddForeignKey             Code = "MF003"
	CodeAddCheck                  Code = "MF004"
	CodeChangeColumnToNonNullable Code = "MF005"
	CodeAddNonNullableColumn      Code = "MF006"
	CodeAddUniqueIndex            Code = "MF007"

	CodeSchemaDrop  Code = "D001"
	CodeTableDrop   Code = "D002"
	CodeColumnDrop  Code = "D003"
	CodeTriggerDrop Code = "D004"
)

// Warning describes a risky operation. It never blocks generation.
type Warning struct {
	Type    WarningType `yaml:"type"`
	Code    Code        `yaml:"code"`
	Schema  string      `yaml:"schema"`
	Table   string      `yaml:"table,omitempty"`
	Columns []string    `yaml:"columns,omitempty"`
	// Object names the constraint, index or trigger involved.
	Object string `yaml:"object,omitempty"`
	From   string `yaml:"from,omitempty"`
	To     string `yaml:"to,omitempty"`
}

var descriptions = map[Code]string{
	CodeTableRename:               "Table rename",
	CodeColumnRename:              "Column rename",
	CodeChangeColumnType:          "Changed column type",
	CodeAddSerialColumn:           "Added serial column",
	CodeAddVolatileDefault:        "Added column with volatile default",
	CodeAddPrimaryKey:             "Added primary key to existing table",
	CodeAddUniqueConstraint:       "Added unique constraint to existing table",
	CodeAddForeignKey:             "Added foreign key to existing table",
	CodeAddCheck:                  "Added check constraint to existing table",
	CodeChangeColumnToNonNullable: "Changed column to non-nullable",
	CodeAddNonNullableColumn:      "Added non-nullable column",
	CodeAddUniqueIndex:            "Added unique index to existing table",
	CodeSchemaDrop:                "Dropped schema",
	CodeTableDrop:                 "Dropped table",
	CodeColumnDrop:                "Dropped column",
	CodeTriggerDrop:               "Dropped trigger",
}

// String renders the warning on one line, citing every object involved.
func (w Warning) String() string {
	var details []string
	if w.From != "" {
		details = append(details, fmt.Sprintf("from: '%s' to: '%s'", w.From, w.To))
	}
	if len(w.Columns) > 0 {
		details = append(details, fmt.Sprintf("columns: '%s'", strings.Join(w.Columns, "', '")))
	}
	if w.Object != "" {
		details = append(details, fmt.Sprintf("object: '%s'", w.Object))
	}
	if w.Table != "" {
		details = append(details, fmt.Sprintf("table: '%s'", w.Table))
	}
	details = append(details, fmt.Sprintf("schema: '%s'", w.Schema))
	return fmt.Sprintf("%s %s (%s)", w.Code, descriptions[w.Code], strings.Join(details, " "))
}

// RequiresAcknowledgement reports whether an operator must confirm the
// warning before the migration is applied.
func (w Warning) RequiresAcknowledgement() bool {
	switch w.Type {
	case WarningBlocking, WarningMightFail, WarningDestructive:
		return true
	}
	return false
}
