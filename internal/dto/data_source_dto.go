package dto

import (
	"time"

	"euno-analytics-be/pkg/schema"

	"github.com/google/uuid"
)

// RegisterDataSourceRequest uploads an already parsed table
type RegisterDataSourceRequest struct {
	Name    string       `json:"name" validate:"required,max=200"`
	Columns []string     `json:"columns"`
	Rows    []schema.Row `json:"rows" validate:"required,min=1"`
}

type DataSourceResponse struct {
	Id            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	SourceKind    string          `json:"source_kind"`
	RowCount      int             `json:"row_count"`
	SchemaProfile []schema.Column `json:"schema_profile"`
	RefreshedAt   *time.Time      `json:"refreshed_at,omitempty"`
}
