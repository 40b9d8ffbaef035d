package planner

import (
	"fmt"
	"strings"

	"github.com/tuannm99/novasql"
	"github.com/tuannm99/novasql/internal/record"
	"github.com/tuannm99/novasql/internal/sql/parser"
)

// BuildPlan builds a physical plan from an AST Statement.
// db is nil-able: statements that don't need catalog access (CREATE/DROP
// TABLE, INSERT, CREATE/DROP/USE DATABASE) never dereference it.
func BuildPlan(stmt parser.Statement, db *novasql.Database) (Plan, error) {
	switch s := stmt.(type) {
	case *parser.CreateDatabaseStmt:
		return &CreateDatabasePlan{Name: s.Name}, nil
	case *parser.DropDatabaseStmt:
		return &DropDatabasePlan{Name: s.Name}, nil
	case *parser.UseDatabaseStmt:
		return &UseDatabasePlan{Name: s.Name}, nil

	case *parser.CreateTableStmt:
		return buildCreateTablePlan(s)
	case *parser.DropTableStmt:
		return &DropTablePlan{TableName: s.TableName}, nil

	case *parser.InsertStmt:
		return buildInsertPlan(s)
	case *parser.SelectStmt:
		return buildSelectPlan(db, s)
	case *parser.UpdateStmt:
		return buildUpdatePlan(db, s)
	case *parser.DeleteStmt:
		return buildDeletePlan(db, s)

	default:
		return nil, fmt.Errorf("planner: unsupported statement type %T", stmt)
	}
}

func buildCreateTablePlan(s *parser.CreateTableStmt) (Plan, error) {
	var cols []record.Column
	for _, c := range s.Columns {
		colType, err := mapSQLType(c.Type)
		if err != nil {
			return nil, err
		}
		cols = append(cols, record.Column{
			Name:     c.Name,
			Type:     colType,
			Nullable: true, // default
		})
	}
	return &CreateTablePlan{
		TableName: s.TableName,
		Schema:    record.Schema{Cols: cols},
	}, nil
}

func buildInsertPlan(s *parser.InsertStmt) (Plan, error) {
	return &InsertPlan{
		TableName: s.TableName,
		Values:    s.Values,
	}, nil
}

func buildSelectPlan(db *novasql.Database, s *parser.SelectStmt) (Plan, error) {
	if s.Where == nil {
		return &SeqScanPlan{TableName: s.TableName}, nil
	}

	schema, err := schemaFor(db, s.TableName)
	if err != nil {
		return nil, err
	}
	w, err := bindWhereEq(schema, s.Where)
	if err != nil {
		return nil, err
	}

	// Use the index only when its key column matches the predicate and the
	// predicate value is an int64 (the only key type internal/btree supports).
	if im := findIndexOn(db, s.TableName, s.Where.Column); im != nil {
		if key, ok := w.Value.(int64); ok {
			return &IndexLookupPlan{
				TableName:     s.TableName,
				IndexFileBase: im.FileBase,
				Key:           key,
				Where:         w,
			}, nil
		}
	}

	return &SeqScanPlan{TableName: s.TableName, Where: w}, nil
}

func buildUpdatePlan(db *novasql.Database, s *parser.UpdateStmt) (Plan, error) {
	schema, err := schemaFor(db, s.TableName)
	if err != nil {
		return nil, err
	}

	assigns := make([]Assignment, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		raw, err := literalValue(a.Value)
		if err != nil {
			return nil, err
		}
		v, err := coerceLiteralToColumn(schema, a.Column, raw)
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, Assignment{Column: a.Column, Value: v})
	}

	var w *WhereEq
	if s.Where != nil {
		w, err = bindWhereEq(schema, s.Where)
		if err != nil {
			return nil, err
		}
	}

	return &UpdatePlan{TableName: s.TableName, Assigns: assigns, Where: w}, nil
}

func buildDeletePlan(db *novasql.Database, s *parser.DeleteStmt) (Plan, error) {
	var w *WhereEq
	if s.Where != nil {
		schema, err := schemaFor(db, s.TableName)
		if err != nil {
			return nil, err
		}
		bound, err := bindWhereEq(schema, s.Where)
		if err != nil {
			return nil, err
		}
		w = bound
	}
	return &DeletePlan{TableName: s.TableName, Where: w}, nil
}

// schemaFor resolves a table's schema through the catalog. Only reached when
// a statement actually needs schema-aware binding (WHERE/SET), so db is
// never nil here in practice.
func schemaFor(db *novasql.Database, table string) (record.Schema, error) {
	if db == nil {
		return record.Schema{}, fmt.Errorf("planner: no database bound, cannot resolve schema for %q", table)
	}
	tbl, err := db.OpenTable(table)
	if err != nil {
		return record.Schema{}, fmt.Errorf("planner: resolve schema for %q: %w", table, err)
	}
	return tbl.Schema, nil
}

// findIndexOn looks up a registered BTree index whose key column matches col.
// Returns nil (not an error) on any lookup failure: falling back to a seq
// scan is always correct, just slower.
func findIndexOn(db *novasql.Database, table, col string) *novasql.IndexMeta {
	if db == nil {
		return nil
	}
	idxs, err := db.ListIndexes(table)
	if err != nil {
		return nil
	}
	for i := range idxs {
		if idxs[i].Kind == novasql.IndexKindBTree && idxs[i].KeyColumn == col {
			return &idxs[i]
		}
	}
	return nil
}

func literalValue(e parser.Expr) (any, error) {
	lit, ok := e.(*parser.LiteralExpr)
	if !ok {
		return nil, fmt.Errorf("planner: only literal expressions are supported, got %T", e)
	}
	return lit.Value, nil
}

// bindWhereEq schema-checks a parsed equality predicate and evaluates its
// literal, turning parser.WhereEq (Column, unevaluated Expr) into a bound
// WhereEq (Column, concrete value) ready for the executor to compare against
// scanned rows.
func bindWhereEq(schema record.Schema, w *parser.WhereEq) (*WhereEq, error) {
	raw, err := literalValue(w.Value)
	if err != nil {
		return nil, err
	}
	v, err := coerceLiteralToColumn(schema, w.Column, raw)
	if err != nil {
		return nil, err
	}
	return &WhereEq{Column: w.Column, Value: v}, nil
}

// coerceLiteralToColumn type-checks a literal value against col's declared
// type, coercing int/int32 literals to int64 the way coerceInsertValues does
// for INSERT.
func coerceLiteralToColumn(schema record.Schema, col string, value any) (any, error) {
	var target *record.Column
	for i := range schema.Cols {
		if schema.Cols[i].Name == col {
			target = &schema.Cols[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("planner: unknown column %q", col)
	}

	if value == nil {
		if !target.Nullable {
			return nil, fmt.Errorf("planner: column %q is NOT NULL", col)
		}
		return nil, nil
	}

	switch target.Type {
	case record.ColInt64:
		switch x := value.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		default:
			return nil, fmt.Errorf("planner: column %q expects INT64, got %T", col, value)
		}
	case record.ColText:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("planner: column %q expects TEXT, got %T", col, value)
		}
		return s, nil
	case record.ColBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("planner: column %q expects BOOL, got %T", col, value)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("planner: unsupported column type on %q", col)
	}
}

func mapSQLType(t string) (record.ColumnType, error) {
	switch strings.ToUpper(t) {
	case "INT", "INTEGER":
		return record.ColInt64, nil
	case "TEXT":
		return record.ColText, nil
	case "BOOL", "BOOLEAN":
		return record.ColBool, nil
	default:
		return 0, fmt.Errorf("unsupported column type: %s", t)
	}
}
