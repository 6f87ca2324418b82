package etl

import (
	"fmt"

	"github.com/savannahlabs/edp/pkg/models"
	"github.com/savannahlabs/edp/pkg/utils"
)

// Validator checks flat rows against a target table schema before any load
// job is submitted. Mismatched input is rejected, never coerced.
type Validator struct {
	Entity string
	Schema models.TableSchema
}

func NewValidator(entity string, schema models.TableSchema) *Validator {
	return &Validator{Entity: entity, Schema: schema}
}

// ValidateRow checks one flat row: required columns present, every value of
// the declared type, no columns the schema doesn't know.
func (v *Validator) ValidateRow(row models.FlatRow, rowNum int) error {
	for _, col := range v.Schema.Columns {
		val, ok := row[col.Name]
		if !ok || val == nil {
			if col.Required {
				return &SchemaMismatchError{
					Entity: v.Entity,
					Column: col.Name,
					Row:    rowNum,
					Err:    fmt.Errorf("required column is null"),
				}
			}
			continue
		}
		if err := utils.CheckType(val, col.Type); err != nil {
			return &SchemaMismatchError{Entity: v.Entity, Column: col.Name, Row: rowNum, Err: err}
		}
	}
	for name := range row {
		if _, ok := v.Schema.Column(name); !ok {
			return &SchemaMismatchError{
				Entity: v.Entity,
				Column: name,
				Row:    rowNum,
				Err:    fmt.Errorf("column not declared by table %s", v.Schema.Table),
			}
		}
	}
	return nil
}

// ValidateCSV checks a staged CSV file: header must match the schema's
// column order exactly, and every cell must parse as its column's type.
func (v *Validator) ValidateCSV(header []string, records [][]string) error {
	want := v.Schema.ColumnNames()
	if len(header) != len(want) {
		return &SchemaMismatchError{
			Entity: v.Entity,
			Err:    fmt.Errorf("header has %d columns, table %s declares %d", len(header), v.Schema.Table, len(want)),
		}
	}
	for i, name := range header {
		if name != want[i] {
			return &SchemaMismatchError{
				Entity: v.Entity,
				Column: name,
				Err:    fmt.Errorf("header column %d is %q, want %q", i, name, want[i]),
			}
		}
	}

	for rowNum, record := range records {
		if len(record) != len(want) {
			return &SchemaMismatchError{
				Entity: v.Entity,
				Row:    rowNum + 1,
				Err:    fmt.Errorf("row has %d cells, want %d", len(record), len(want)),
			}
		}
		for i, cell := range record {
			if _, err := utils.ParseValue(cell, v.Schema.Columns[i]); err != nil {
				return &SchemaMismatchError{
					Entity: v.Entity,
					Column: v.Schema.Columns[i].Name,
					Row:    rowNum + 1,
					Err:    err,
				}
			}
		}
	}
	return nil
}
