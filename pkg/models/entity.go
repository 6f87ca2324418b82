package models

import (
	"encoding/json"
	"fmt"
)

// ColumnType enumerates the scalar types a warehouse column may hold.
type ColumnType string

const (
	TypeString    ColumnType = "STRING"
	TypeInt64     ColumnType = "INT64"
	TypeFloat64   ColumnType = "FLOAT64"
	TypeBool      ColumnType = "BOOL"
	TypeTimestamp ColumnType = "TIMESTAMP"
)

// LoadMode controls the write disposition of a warehouse load job.
type LoadMode string

const (
	ModeReplace LoadMode = "replace"
	ModeAppend  LoadMode = "append"
)

// MalformedPolicy decides what the transformer does with records that are
// missing required fields.
type MalformedPolicy string

const (
	PolicyFail MalformedPolicy = "fail"
	PolicySkip MalformedPolicy = "skip"
)

// Column is one column of a target warehouse table. Source is the dotted
// path into the raw record that feeds it; audit and surrogate-key columns
// leave Source empty and are filled by the transformer.
type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Required bool       `json:"required,omitempty"`
	Source   string     `json:"source,omitempty"`
}

// TableSchema describes a warehouse table.
type TableSchema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// ColumnNames returns the column names in declaration order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (s *TableSchema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// SurrogateKey describes a generated key column: an md5 over the listed
// source paths, written into Column.
type SurrogateKey struct {
	Column string   `json:"column"`
	Fields []string `json:"fields"`
}

// EntityConfig drives every stage for one entity. One enumerated config per
// entity replaces per-entity scripts.
type EntityConfig struct {
	Name           string          `json:"name"`
	Endpoint       string          `json:"endpoint"`
	ListKey        string          `json:"listKey"`
	Explode        string          `json:"explode,omitempty"`
	Mode           LoadMode        `json:"mode"`
	OnMalformed    MalformedPolicy `json:"onMalformed,omitempty"`
	RequiredFields []string        `json:"requiredFields,omitempty"`
	SurrogateKey   *SurrogateKey   `json:"surrogateKey,omitempty"`
	Schema         TableSchema     `json:"schema"`
}

// Validate checks an entity config for the mistakes a registry file is
// likely to contain.
func (e *EntityConfig) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("entity config missing name")
	}
	if e.Endpoint == "" || e.ListKey == "" {
		return fmt.Errorf("entity %s: endpoint and listKey are required", e.Name)
	}
	switch e.Mode {
	case ModeReplace, ModeAppend:
	default:
		return fmt.Errorf("entity %s: unknown load mode %q", e.Name, e.Mode)
	}
	switch e.OnMalformed {
	case "", PolicyFail, PolicySkip:
	default:
		return fmt.Errorf("entity %s: unknown malformed policy %q", e.Name, e.OnMalformed)
	}
	if e.Schema.Table == "" || len(e.Schema.Columns) == 0 {
		return fmt.Errorf("entity %s: schema must name a table and at least one column", e.Name)
	}
	for _, c := range e.Schema.Columns {
		switch c.Type {
		case TypeString, TypeInt64, TypeFloat64, TypeBool, TypeTimestamp:
		default:
			return fmt.Errorf("entity %s: column %s has unknown type %q", e.Name, c.Name, c.Type)
		}
	}
	if e.SurrogateKey != nil {
		if _, ok := e.Schema.Column(e.SurrogateKey.Column); !ok {
			return fmt.Errorf("entity %s: surrogate key column %s not in schema", e.Name, e.SurrogateKey.Column)
		}
	}
	return nil
}

// Malformed returns the effective malformed-record policy. Failing the
// batch is the default; skipping is always an explicit opt-in.
func (e *EntityConfig) Malformed() MalformedPolicy {
	if e.OnMalformed == "" {
		return PolicyFail
	}
	return e.OnMalformed
}

// Registry is the parsed entities.json file.
type Registry struct {
	Entities []EntityConfig `json:"entities"`
}

// LoadRegistry parses an entity registry and validates every entry.
func LoadRegistry(data []byte) (*Registry, error) {
	var r Registry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if len(r.Entities) == 0 {
		return nil, fmt.Errorf("entity registry defines no entities")
	}
	seen := make(map[string]bool, len(r.Entities))
	for i := range r.Entities {
		e := &r.Entities[i]
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("duplicate entity %s in registry", e.Name)
		}
		seen[e.Name] = true
	}
	return &r, nil
}

// Entity returns the config for a named entity.
func (r *Registry) Entity(name string) (*EntityConfig, error) {
	for i := range r.Entities {
		if r.Entities[i].Name == name {
			return &r.Entities[i], nil
		}
	}
	return nil, fmt.Errorf("entity %s not found in registry", name)
}
