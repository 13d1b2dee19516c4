package contract

import (
	"context"

	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/repository/specification"
)

type DataSourceRepository interface {
	Create(ctx context.Context, ds *entity.DataSource) error
	Update(ctx context.Context, ds *entity.DataSource) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DataSource, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DataSource, error)
}
