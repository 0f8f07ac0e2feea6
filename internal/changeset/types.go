// Package changeset turns schema differences into phase-tagged, prioritized
// and reversible units of DDL.
package changeset

import "strings"

// Phase is the rollout phase a changeset belongs to.
type Phase string

const (
	PhaseExpand   Phase = "expand"
	PhaseAlter    Phase = "alter"
	PhaseData     Phase = "data"
	PhaseContract Phase = "contract"
	// PhaseUnsafe marks changesets whose phase must be chosen by an operator.
	PhaseUnsafe Phase = "unsafe"
)

// Phases lists the executable phases in rollout order.
var Phases = []Phase{PhaseExpand, PhaseAlter, PhaseData, PhaseContract}

// ParsePhase validates a phase name.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(strings.ToLower(s))
	switch p {
	case PhaseExpand, PhaseAlter, PhaseData, PhaseContract, PhaseUnsafe:
		return p, true
	}
	return "", false
}

// Type identifies the operation a changeset performs.
type Type string

const (
	TypeCreateSchema         Type = "createSchema"
	TypeDropSchema           Type = "dropSchema"
	TypeCreateExtension      Type = "createExtension"
	TypeDropExtension        Type = "dropExtension"
	TypeCreateEnum           Type = "createEnum"
	TypeChangeEnum           Type = "changeEnum"
	TypeDropEnum             Type = "dropEnum"
	TypeCreateTable          Type = "createTable"
	TypeDropTable            Type = "dropTable"
	TypeRenameTable          Type = "renameTable"
	TypeCreateColumn         Type = "createColumn"
	TypeCreateNonNullColumn  Type = "createNonNullableColumn"
	TypeDropColumn           Type = "dropColumn"
	TypeRenameColumn         Type = "renameColumn"
	TypeChangeColumnType     Type = "changeColumnType"
	TypeChangeColumnDefault  Type = "changeColumnDefault"
	TypeChangeColumnIdentity Type = "changeColumnIdentity"
	TypeChangeColumnNullable Type = "changeColumnNullable"
	TypeCreatePrimaryKey     Type = "createPrimaryKey"
	TypeDropPrimaryKey       Type = "dropPrimaryKey"
	TypeRenamePrimaryKey     Type = "renamePrimaryKey"
	TypeCreateForeignKey     Type = "createForeignKey"
	TypeDropForeignKey       Type = "dropForeignKey"
	TypeRenameForeignKey     Type = "renameForeignKey"
	TypeCreateUnique         Type = "createUnique"
	TypeDropUnique           Type = "dropUnique"
	TypeRenameUnique         Type = "renameUnique"
	TypeCreateCheck          Type = "createCheck"
	TypeDropCheck            Type = "dropCheck"
	TypeRenameCheck          Type = "renameCheck"
	TypeCreateIndex          Type = "createIndex"
	TypeDropIndex            Type = "dropIndex"
	TypeRenameIndex          Type = "renameIndex"
	TypeCreateTrigger        Type = "createTrigger"
	TypeDropTrigger          Type = "dropTrigger"
	TypeChangeTrigger        Type = "changeTrigger"
)

// Step is one logical unit of DDL. OnFailure holds the statements that undo
// a partially applied step; they only run for non-transactional migrations.
type Step struct {
	SQL       []string `yaml:"sql"`
	OnFailure []string `yaml:"on_failure,omitempty"`
}

// Changeset is the output of one generator call. It is never modified
// after creation.
type Changeset struct {
	Priority   int
	Phase      Phase
	SchemaName string
	// TableName is the table's name after the migration; CurrentTableName
	// the name it has in the live database.
	TableName        string
	CurrentTableName string
	Type             Type
	Up               []Step
	Down             []Step
	Warnings         []Warning
	// NoTransaction is set for statements Postgres refuses to run inside a
	// transaction block, such as concurrent index builds.
	NoTransaction bool
}

// Transactional reports whether the changeset may run in a transaction.
func (c Changeset) Transactional() bool {
	return !c.NoTransaction
}

func step(sql ...string) Step {
	return Step{SQL: sql}
}

func steps(sql ...string) []Step {
	if len(sql) == 0 {
		return nil
	}
	return []Step{step(sql...)}
}
