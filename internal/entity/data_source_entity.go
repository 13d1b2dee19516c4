package entity

import (
	"time"

	"euno-analytics-be/pkg/schema"

	"github.com/google/uuid"
)

const (
	SourceKindFile       = "file"
	SourceKindConnection = "connection"
)

// DataSource is read-only to the engine; connectors refresh it elsewhere.
type DataSource struct {
	Id            uuid.UUID
	UserId        uuid.UUID
	Name          string
	SourceKind    string
	RowCount      int
	SchemaProfile []schema.Column
	Columns       []string // column order of SampleRows
	SampleRows    []schema.Row
	RefreshedAt   *time.Time
	CreatedAt     time.Time
}
