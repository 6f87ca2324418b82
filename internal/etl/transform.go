package etl

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/savannahlabs/edp/internal/observability"
	"github.com/savannahlabs/edp/pkg/logger"
	"github.com/savannahlabs/edp/pkg/models"
	"github.com/savannahlabs/edp/pkg/utils"
)

const sourceSystemCode = "PUBLIC_DUMMYJSON_API"

// Audit columns are filled by the transformer, not mapped from the source.
const (
	colCreateName = "record_create_name"
	colCreateTime = "record_create_datetime"
	colUpdateName = "record_update_name"
	colUpdateTime = "record_update_datetime"
	colSourceCode = "source_system_code"
)

// Transformer converts one entity's raw staged file into a flat CSV staged
// file. The flattening is deterministic: schema column order fixes the
// output columns, input order fixes the row order, so the same staged input
// always yields byte-identical output.
type Transformer struct {
	Store ObjectStore
	Cfg   *models.EntityConfig

	// AuditUser is stamped into the record_create/update_name columns.
	AuditUser string
}

func NewTransformer(store ObjectStore, cfg *models.EntityConfig, auditUser string) *Transformer {
	return &Transformer{Store: store, Cfg: cfg, AuditUser: auditUser}
}

// TransformResult reports what one transform produced.
type TransformResult struct {
	Rows    int
	Skipped int
}

// Transform reads the raw NDJSON staged file for the run, flattens every
// record, validates each flat row against the table schema and writes the
// CSV staged file plus completion marker. Malformed records are handled per
// the entity's policy: skip counts and logs them, fail aborts the batch on
// the first one.
func (t *Transformer) Transform(ctx context.Context, run *models.PipelineRun) (*TransformResult, error) {
	rawKey := run.RawPath(t.Cfg.Name)
	data, err := GetComplete(ctx, t.Store, rawKey)
	if err != nil {
		return nil, &TransformError{Entity: t.Cfg.Name, Err: err}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Cfg.Schema.ColumnNames()); err != nil {
		return nil, &TransformError{Entity: t.Cfg.Name, Err: err}
	}

	result := &TransformResult{}
	validator := NewValidator(t.Cfg.Name, t.Cfg.Schema)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	recordNum := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		recordNum++

		var staged models.StagedRecord
		if err := json.Unmarshal(line, &staged); err != nil {
			if herr := t.handleMalformed(recordNum, result, &TransformError{Entity: t.Cfg.Name, Record: recordNum, Err: err}); herr != nil {
				return nil, herr
			}
			continue
		}

		rows, terr := t.flattenRecord(staged, recordNum)
		if terr != nil {
			if herr := t.handleMalformed(recordNum, result, terr); herr != nil {
				return nil, herr
			}
			continue
		}

		// Type mismatches are caught here, per record, before anything is
		// serialized; malformed policy applies the same as a missing field.
		valid := true
		for _, row := range rows {
			if verr := validator.ValidateRow(row, recordNum); verr != nil {
				if herr := t.handleMalformed(recordNum, result, verr); herr != nil {
					return nil, herr
				}
				valid = false
				break
			}
		}
		if !valid {
			continue
		}

		for _, row := range rows {
			cells := make([]string, len(t.Cfg.Schema.Columns))
			for i, col := range t.Cfg.Schema.Columns {
				cells[i] = utils.FormatValue(row[col.Name])
			}
			if err := w.Write(cells); err != nil {
				return nil, &TransformError{Entity: t.Cfg.Name, Record: recordNum, Err: err}
			}
			result.Rows++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &TransformError{Entity: t.Cfg.Name, Err: err}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, &TransformError{Entity: t.Cfg.Name, Err: err}
	}

	outKey := run.CleansePath(t.Cfg.Name)
	if err := PutComplete(ctx, t.Store, outKey, buf.Bytes()); err != nil {
		return nil, &TransformError{Entity: t.Cfg.Name, Err: err}
	}

	observability.RowsTransformed.WithLabelValues(t.Cfg.Name).Add(float64(result.Rows))
	logger.Infof("transformed %d %s rows (%d skipped) to %s", result.Rows, t.Cfg.Name, result.Skipped, t.Store.URI(outKey))
	return result, nil
}

func (t *Transformer) handleMalformed(recordNum int, result *TransformResult, terr error) error {
	if t.Cfg.Malformed() == models.PolicySkip {
		logger.Warnf("skipping malformed %s record %d: %v", t.Cfg.Name, recordNum, terr)
		observability.RecordsSkipped.WithLabelValues(t.Cfg.Name).Inc()
		result.Skipped++
		return nil
	}
	return terr
}

// flattenRecord turns one raw record into its flat rows. Entities with an
// explode field produce one row per list element, duplicating the parent's
// scalar fields; everything else produces exactly one row.
func (t *Transformer) flattenRecord(staged models.StagedRecord, recordNum int) ([]models.FlatRow, error) {
	if staged.Data == nil {
		return nil, &TransformError{Entity: t.Cfg.Name, Record: recordNum, Err: fmt.Errorf("record has no data object")}
	}

	if err := t.checkRequired(staged.Data, nil, recordNum); err != nil {
		return nil, err
	}

	if t.Cfg.Explode == "" {
		row, err := t.buildRow(staged, nil, recordNum)
		if err != nil {
			return nil, err
		}
		return []models.FlatRow{row}, nil
	}

	elements, err := listField(staged.Data, t.Cfg.Explode)
	if err != nil {
		return nil, &TransformError{Entity: t.Cfg.Name, Record: recordNum, Field: t.Cfg.Explode, Err: err}
	}

	rows := make([]models.FlatRow, 0, len(elements))
	for _, elem := range elements {
		if err := t.checkRequired(staged.Data, elem, recordNum); err != nil {
			return nil, err
		}
		row, err := t.buildRow(staged, elem, recordNum)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// buildRow resolves each schema column for one output row. elem is the
// current exploded list element, nil when the entity doesn't explode.
func (t *Transformer) buildRow(staged models.StagedRecord, elem map[string]interface{}, recordNum int) (models.FlatRow, error) {
	row := make(models.FlatRow, len(t.Cfg.Schema.Columns))

	for _, col := range t.Cfg.Schema.Columns {
		if t.fillFixed(row, col, staged.Metadata) {
			continue
		}
		if col.Source == "" {
			row[col.Name] = nil
			continue
		}

		val, ok := t.resolve(staged.Data, elem, col.Source)
		if !ok || val == nil {
			row[col.Name] = nil
			continue
		}
		if !utils.IsScalar(val) {
			return nil, &TransformError{
				Entity: t.Cfg.Name,
				Record: recordNum,
				Field:  col.Source,
				Err:    fmt.Errorf("value at %s is not a scalar (%T)", col.Source, val),
			}
		}
		row[col.Name] = val
	}

	if sk := t.Cfg.SurrogateKey; sk != nil {
		row[sk.Column] = t.surrogate(staged.Data, elem, sk.Fields)
	}
	return row, nil
}

// fillFixed handles surrogate-key and audit columns, which have no source
// path. Audit datetimes come from the record's extraction timestamp, which
// is derived from the logical run date: re-transforming is repeatable.
func (t *Transformer) fillFixed(row models.FlatRow, col models.Column, meta models.RecordMetadata) bool {
	if sk := t.Cfg.SurrogateKey; sk != nil && col.Name == sk.Column {
		return true // filled after all source columns resolve
	}
	switch col.Name {
	case colCreateName, colUpdateName:
		row[col.Name] = t.AuditUser
	case colCreateTime, colUpdateTime:
		row[col.Name] = meta.ExtractionTimestamp
	case colSourceCode:
		code := meta.SourceSystem
		if code == "" {
			code = sourceSystemCode
		}
		row[col.Name] = code
	default:
		return false
	}
	return true
}

// resolve walks a dotted source path. Paths prefixed with the explode field
// resolve inside the current element; everything else resolves against the
// parent record.
func (t *Transformer) resolve(rec models.RawRecord, elem map[string]interface{}, path string) (interface{}, bool) {
	if t.Cfg.Explode != "" && elem != nil && strings.HasPrefix(path, t.Cfg.Explode+".") {
		return lookupPath(elem, strings.TrimPrefix(path, t.Cfg.Explode+"."))
	}
	return lookupPath(rec, path)
}

func (t *Transformer) surrogate(rec models.RawRecord, elem map[string]interface{}, fields []string) string {
	var sb strings.Builder
	for _, f := range fields {
		if val, ok := t.resolve(rec, elem, f); ok && val != nil {
			sb.WriteString(utils.FormatValue(val))
		}
	}
	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func (t *Transformer) checkRequired(rec models.RawRecord, elem map[string]interface{}, recordNum int) error {
	for _, f := range t.Cfg.RequiredFields {
		// Element-scoped paths are only checkable once an element is in hand.
		elemScoped := t.Cfg.Explode != "" && strings.HasPrefix(f, t.Cfg.Explode+".")
		if elemScoped && elem == nil {
			continue
		}
		if !elemScoped && elem != nil {
			continue // parent paths were checked before exploding
		}
		if val, ok := t.resolve(rec, elem, f); !ok || val == nil {
			return &TransformError{
				Entity: t.Cfg.Name,
				Record: recordNum,
				Field:  f,
				Err:    fmt.Errorf("required field missing"),
			}
		}
	}
	return nil
}

// lookupPath walks nested objects with a deterministic dot-path convention.
func lookupPath(obj map[string]interface{}, path string) (interface{}, bool) {
	segments := utils.SplitPath(path)
	var cur interface{} = obj
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// listField returns the named list-valued field as object elements.
func listField(rec models.RawRecord, field string) ([]map[string]interface{}, error) {
	val, ok := rec[field]
	if !ok || val == nil {
		return nil, nil
	}
	list, ok := val.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %s is not a list", field)
	}
	elements := make([]map[string]interface{}, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("element %d of %s is not an object", i, field)
		}
		elements = append(elements, m)
	}
	return elements, nil
}
