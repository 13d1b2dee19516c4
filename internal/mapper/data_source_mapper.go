package mapper

import (
	"bytes"
	"encoding/json"

	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/model"
	"euno-analytics-be/pkg/schema"

	"gorm.io/datatypes"
)

type DataSourceMapper struct{}

func NewDataSourceMapper() *DataSourceMapper {
	return &DataSourceMapper{}
}

// sampleDocument keeps the column order next to the rows
type sampleDocument struct {
	Columns []string     `json:"columns"`
	Rows    []schema.Row `json:"rows"`
}

func (m *DataSourceMapper) ToEntity(ds *model.DataSource) (*entity.DataSource, error) {
	if ds == nil {
		return nil, nil
	}

	var profile []schema.Column
	if len(ds.SchemaProfile) > 0 {
		if err := json.Unmarshal(ds.SchemaProfile, &profile); err != nil {
			return nil, err
		}
	}

	var sample sampleDocument
	if len(ds.SampleRows) > 0 {
		// UseNumber keeps integers from turning into float64 noise
		dec := json.NewDecoder(bytes.NewReader(ds.SampleRows))
		dec.UseNumber()
		if err := dec.Decode(&sample); err != nil {
			return nil, err
		}
	}

	return &entity.DataSource{
		Id:            ds.Id,
		UserId:        ds.UserId,
		Name:          ds.Name,
		SourceKind:    ds.SourceKind,
		RowCount:      ds.RowCount,
		SchemaProfile: profile,
		Columns:       sample.Columns,
		SampleRows:    sample.Rows,
		RefreshedAt:   ds.RefreshedAt,
		CreatedAt:     ds.CreatedAt,
	}, nil
}

func (m *DataSourceMapper) ToModel(ds *entity.DataSource) (*model.DataSource, error) {
	if ds == nil {
		return nil, nil
	}

	profile, err := json.Marshal(ds.SchemaProfile)
	if err != nil {
		return nil, err
	}
	sample, err := json.Marshal(sampleDocument{Columns: ds.Columns, Rows: ds.SampleRows})
	if err != nil {
		return nil, err
	}

	return &model.DataSource{
		Id:            ds.Id,
		UserId:        ds.UserId,
		Name:          ds.Name,
		SourceKind:    ds.SourceKind,
		RowCount:      ds.RowCount,
		SchemaProfile: datatypes.JSON(profile),
		SampleRows:    datatypes.JSON(sample),
		RefreshedAt:   ds.RefreshedAt,
		CreatedAt:     ds.CreatedAt,
	}, nil
}
