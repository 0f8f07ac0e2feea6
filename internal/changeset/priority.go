package changeset

// Priorities order changesets inside a run. Lower runs first; changesets of
// equal priority keep their diff order.
const (
	PriorityCreateSchema    = 0
	PriorityCreateExtension = 1
	PriorityCreateEnum      = 2
	PriorityChangeEnum      = 3

	PriorityRenameTable      = 100
	PriorityRenameColumn     = 101
	PriorityRenameConstraint = 102

	PriorityDropIndex      = 800
	PriorityDropForeignKey = 810
	PriorityDropUnique     = 811
	PriorityDropCheck      = 812
	PriorityDropTrigger    = 1001
	PriorityDropPrimaryKey = 1004
	PriorityDropColumn     = 1005
	PriorityDropTable      = 1006

	PriorityCreateTable  = 2001
	PriorityCreateColumn = 2003

	PriorityChangeColumnType     = 3001
	PriorityChangeColumnDefault  = 3004
	PriorityChangeColumnIdentity = 3005
	PriorityChangeColumnNullable = 3011

	PriorityCreatePrimaryKey = 4001
	PriorityCreateUnique     = 4002
	PriorityCreateIndex      = 4003
	PriorityCreateForeignKey = 4004
	PriorityCreateCheck      = 4005
	PriorityCreateTrigger    = 4006
	PriorityChangeTrigger    = 4007

	PriorityDropEnum      = 5000
	PriorityDropExtension = 5001
	PriorityDropSchema    = 5002
)
