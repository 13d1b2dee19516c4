package implementation

import (
	"context"
	"errors"

	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/mapper"
	"euno-analytics-be/internal/model"
	"euno-analytics-be/internal/repository/contract"
	"euno-analytics-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DataSourceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DataSourceMapper
}

func NewDataSourceRepository(db *gorm.DB) contract.DataSourceRepository {
	return &DataSourceRepositoryImpl{
		db:     db,
		mapper: mapper.NewDataSourceMapper(),
	}
}

func (r *DataSourceRepositoryImpl) Create(ctx context.Context, ds *entity.DataSource) error {
	if ds.Id == uuid.Nil {
		ds.Id = uuid.New()
	}
	m, err := r.mapper.ToModel(ds)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	ds.CreatedAt = m.CreatedAt
	return nil
}

func (r *DataSourceRepositoryImpl) Update(ctx context.Context, ds *entity.DataSource) error {
	m, err := r.mapper.ToModel(ds)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *DataSourceRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DataSource, error) {
	var m model.DataSource
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}

func (r *DataSourceRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DataSource, error) {
	var models []*model.DataSource
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.DataSource, 0, len(models))
	for _, m := range models {
		e, err := r.mapper.ToEntity(m)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}
