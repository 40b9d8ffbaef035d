package planner

import (
	"github.com/tuannm99/novasql/internal/record"
	"github.com/tuannm99/novasql/internal/sql/parser"
)

// Plan is the interface for executable plans.
type Plan interface {
	planNode()
}

// ----- Plan nodes -----

type CreateTablePlan struct {
	TableName string
	Schema    record.Schema
}

func (*CreateTablePlan) planNode() {}

type InsertPlan struct {
	TableName string
	Values    []parser.Expr // evaluated at execution
}

func (*InsertPlan) planNode() {}

type SeqScanPlan struct {
	TableName string
	Where     *WhereEq
	// TODO: projection, ...
}

func (*SeqScanPlan) planNode() {}

// IndexLookupPlan satisfies a WHERE <key column> = <literal> predicate via a
// BTree index instead of a full scan. Built only when the predicate column
// has a registered index (see buildSelectPlan).
type IndexLookupPlan struct {
	TableName     string
	IndexFileBase string
	Key           int64
	Where         *WhereEq // re-checked against the heap row; indexes may be stale
}

func (*IndexLookupPlan) planNode() {}

type DropTablePlan struct {
	TableName string
}

func (*DropTablePlan) planNode() {}

type UpdatePlan struct {
	TableName string
	Assigns   []Assignment
	Where     *WhereEq
}

func (*UpdatePlan) planNode() {}

type DeletePlan struct {
	TableName string
	Where     *WhereEq
}

func (*DeletePlan) planNode() {}

type CreateDatabasePlan struct {
	Name string
}

func (*CreateDatabasePlan) planNode() {}

type DropDatabasePlan struct {
	Name string
}

func (*DropDatabasePlan) planNode() {}

type UseDatabasePlan struct {
	Name string
}

func (*UseDatabasePlan) planNode() {}

// WhereEq is a bound (schema-checked, literal-evaluated) equality predicate,
// distinct from parser.WhereEq whose Value is still an unevaluated Expr.
type WhereEq struct {
	Column string
	Value  any
}

// Assignment is a bound SET clause entry (see WhereEq).
type Assignment struct {
	Column string
	Value  any
}
