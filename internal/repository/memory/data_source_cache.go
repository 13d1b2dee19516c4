package memory

import (
	"time"

	"euno-analytics-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DataSourceCache keeps recently used data sources (profile and sample rows)
// in memory. Entries expire so a connector refresh is picked up.
type DataSourceCache struct {
	cache *cache.Cache
}

func NewDataSourceCache(ttl time.Duration) *DataSourceCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DataSourceCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *DataSourceCache) Save(ds *entity.DataSource) {
	r.cache.Set(ds.Id.String(), ds, cache.DefaultExpiration)
}

func (r *DataSourceCache) Get(id uuid.UUID) (*entity.DataSource, bool) {
	if x, found := r.cache.Get(id.String()); found {
		return x.(*entity.DataSource), true
	}
	return nil, false
}

func (r *DataSourceCache) Delete(id uuid.UUID) {
	r.cache.Delete(id.String())
}
