package service

import (
	"context"
	"fmt"
	"time"

	"euno-analytics-be/internal/dto"
	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/repository/memory"
	"euno-analytics-be/internal/repository/specification"
	"euno-analytics-be/internal/repository/unitofwork"
	"euno-analytics-be/pkg/schema"

	"github.com/google/uuid"
)

// MaxStoredSampleRows caps the rows kept per data source
const MaxStoredSampleRows = 500

// DataSourceProvider is the engine's read side of user data. Every lookup is
// scoped to the owner; another user's source reads as not found.
type DataSourceProvider interface {
	Get(ctx context.Context, userId, id uuid.UUID) (*entity.DataSource, error)
	// GetMany returns the sources in the order asked for. Any missing id
	// makes the whole call fail with dto.ErrNotFound.
	GetMany(ctx context.Context, userId uuid.UUID, ids []uuid.UUID) ([]*entity.DataSource, error)
	GetSchemaProfile(ctx context.Context, userId, id uuid.UUID) ([]schema.Column, error)
	GetSampleRows(ctx context.Context, userId, id uuid.UUID, n int) (schema.ResultSet, error)
	// Register stores a freshly loaded table, profiling it on the way in
	Register(ctx context.Context, userId uuid.UUID, name, kind string, rs schema.ResultSet) (*entity.DataSource, error)
}

type dataSourceProvider struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.DataSourceCache
}

func NewDataSourceProvider(uowFactory unitofwork.RepositoryFactory, cache *memory.DataSourceCache) DataSourceProvider {
	return &dataSourceProvider{uowFactory: uowFactory, cache: cache}
}

func (p *dataSourceProvider) Get(ctx context.Context, userId, id uuid.UUID) (*entity.DataSource, error) {
	if ds, ok := p.cache.Get(id); ok {
		if ds.UserId != userId {
			return nil, dto.ErrNotFound
		}
		return ds, nil
	}

	uow := p.uowFactory.NewUnitOfWork(ctx)
	ds, err := uow.DataSourceRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, fmt.Errorf("load data source %s: %w", id, err)
	}
	if ds == nil {
		return nil, dto.ErrNotFound
	}

	p.remember(ds)
	return ds, nil
}

func (p *dataSourceProvider) GetMany(ctx context.Context, userId uuid.UUID, ids []uuid.UUID) ([]*entity.DataSource, error) {
	found := make(map[uuid.UUID]*entity.DataSource, len(ids))
	var missing []uuid.UUID
	for _, id := range ids {
		ds, ok := p.cache.Get(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		if ds.UserId != userId {
			return nil, dto.ErrNotFound
		}
		found[id] = ds
	}

	if len(missing) > 0 {
		uow := p.uowFactory.NewUnitOfWork(ctx)
		loaded, err := uow.DataSourceRepository().FindAll(ctx,
			specification.ByIDs{IDs: missing},
			specification.UserOwnedBy{UserID: userId},
		)
		if err != nil {
			return nil, fmt.Errorf("load data sources: %w", err)
		}
		for _, ds := range loaded {
			p.remember(ds)
			found[ds.Id] = ds
		}
	}

	res := make([]*entity.DataSource, 0, len(ids))
	for _, id := range ids {
		ds, ok := found[id]
		if !ok {
			return nil, dto.ErrNotFound
		}
		res = append(res, ds)
	}
	return res, nil
}

func (p *dataSourceProvider) remember(ds *entity.DataSource) {
	// older rows may predate profiling
	if len(ds.SchemaProfile) == 0 {
		ds.SchemaProfile = schema.Profile(schema.NewResultSet(ds.Columns, ds.SampleRows))
	}
	p.cache.Save(ds)
}

func (p *dataSourceProvider) GetSchemaProfile(ctx context.Context, userId, id uuid.UUID) ([]schema.Column, error) {
	ds, err := p.Get(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	return ds.SchemaProfile, nil
}

func (p *dataSourceProvider) GetSampleRows(ctx context.Context, userId, id uuid.UUID, n int) (schema.ResultSet, error) {
	ds, err := p.Get(ctx, userId, id)
	if err != nil {
		return schema.ResultSet{}, err
	}
	rs := schema.NewResultSet(ds.Columns, ds.SampleRows)
	if n > 0 {
		rs = rs.Head(n)
	}
	return rs, nil
}

func (p *dataSourceProvider) Register(ctx context.Context, userId uuid.UUID, name, kind string, rs schema.ResultSet) (*entity.DataSource, error) {
	if kind == "" {
		kind = entity.SourceKindFile
	}
	now := time.Now().UTC()
	sample := rs.Head(MaxStoredSampleRows)

	ds := &entity.DataSource{
		Id:            uuid.New(),
		UserId:        userId,
		Name:          name,
		SourceKind:    kind,
		RowCount:      len(rs.Rows),
		SchemaProfile: schema.Profile(rs),
		Columns:       rs.Columns,
		SampleRows:    sample.Rows,
		RefreshedAt:   &now,
	}

	uow := p.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DataSourceRepository().Create(ctx, ds); err != nil {
		return nil, fmt.Errorf("register data source: %w", err)
	}
	p.cache.Save(ds)
	return ds, nil
}
