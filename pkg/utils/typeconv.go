package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/savannahlabs/edp/pkg/models"
)

// CheckType verifies that a flat-row value already holds the Go type that
// maps to the column type. No coercion happens here; a mismatch is an error
// for the caller to surface.
func CheckType(val interface{}, t models.ColumnType) error {
	if val == nil {
		return nil
	}
	switch t {
	case models.TypeString:
		if _, ok := val.(string); !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
	case models.TypeInt64:
		switch v := val.(type) {
		case int64:
		case int:
		case float64:
			if v != math.Trunc(v) {
				return fmt.Errorf("expected integer, got fractional %v", v)
			}
		default:
			return fmt.Errorf("expected integer, got %T", val)
		}
	case models.TypeFloat64:
		switch val.(type) {
		case float64, int64, int:
		default:
			return fmt.Errorf("expected number, got %T", val)
		}
	case models.TypeBool:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", val)
		}
	case models.TypeTimestamp:
		switch v := val.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return fmt.Errorf("expected RFC3339 timestamp, got %q", v)
			}
		default:
			return fmt.Errorf("expected timestamp, got %T", val)
		}
	default:
		return fmt.Errorf("unknown column type %q", t)
	}
	return nil
}

// ParseValue converts a CSV cell back into the typed value a column
// declares. An empty cell means null.
func ParseValue(s string, col models.Column) (interface{}, error) {
	if s == "" {
		if col.Required {
			return nil, fmt.Errorf("column %s: required value is empty", col.Name)
		}
		return nil, nil
	}
	switch col.Type {
	case models.TypeString:
		return s, nil
	case models.TypeInt64:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not an integer", col.Name, s)
		}
		return v, nil
	case models.TypeFloat64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not a number", col.Name, s)
		}
		return v, nil
	case models.TypeBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not a bool", col.Name, s)
		}
		return v, nil
	case models.TypeTimestamp:
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not an RFC3339 timestamp", col.Name, s)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("column %s: unknown type %q", col.Name, col.Type)
	}
}

// FormatValue renders a typed value as a CSV cell. The formatting is fixed
// so that re-transforming the same input yields byte-identical output.
func FormatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// IsScalar reports whether a decoded JSON value is a scalar a flat row may
// hold.
func IsScalar(val interface{}) bool {
	switch val.(type) {
	case nil, string, bool, float64, int64, int:
		return true
	default:
		return false
	}
}

// SplitPath splits a dotted source path into its segments.
func SplitPath(path string) []string {
	return strings.Split(path, ".")
}
