// Package catalog looks up candidate property listings for a conversation.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/db"
	"github.com/sells-group/lead-engine/internal/model"
)

// maxResults caps how many candidate properties a single lookup returns.
const maxResults = 5

// PriceRange bounds a budget filter.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Filter narrows a catalog search. Zero values are omitted from the query.
type Filter struct {
	District     string             `json:"district,omitempty"`
	PropertyType model.PropertyType `json:"property_type,omitempty"`
	PriceRange   *PriceRange        `json:"price_range,omitempty"`
	Bedrooms     int                `json:"bedrooms,omitempty"`
}

// Client performs filtered lookups of available property records.
type Client interface {
	Search(ctx context.Context, filter Filter) ([]model.PropertyRecord, error)
	Get(ctx context.Context, id string) (*model.PropertyRecord, error)
}

// PostgresCatalog implements Client over a pgx pool. Unit-mix and
// visual-asset sub-records are stored as JSONB columns on the listing row.
type PostgresCatalog struct {
	pool db.Pool
}

// NewPostgres creates a catalog client with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresCatalog, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "catalog: ping")
	}
	return &PostgresCatalog{pool: pool}, nil
}

// NewWithPool wraps an existing pool (used by tests and the serve wiring).
func NewWithPool(pool db.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

// Close releases the underlying pool.
func (c *PostgresCatalog) Close() {
	c.pool.Close()
}

const selectColumns = `id, project_name, developer, district, property_type, price_from, price_to, top_year, tenure, unit_mix, visual_assets`

// Search implements Client. Filters are ANDed; results are ordered by price
// ascending and capped at 5 available listings.
func (c *PostgresCatalog) Search(ctx context.Context, filter Filter) ([]model.PropertyRecord, error) {
	var (
		conds = []string{"is_available = true"}
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.District != "" {
		conds = append(conds, "district = "+arg(filter.District))
	}
	if filter.PropertyType != "" {
		conds = append(conds, "property_type = "+arg(string(filter.PropertyType)))
	}
	if filter.PriceRange != nil {
		conds = append(conds, "price_from >= "+arg(filter.PriceRange.Min))
		conds = append(conds, "price_from <= "+arg(filter.PriceRange.Max))
	}
	if filter.Bedrooms > 0 {
		// unit_mix is a JSONB array of {unit_type, size_sqft, ...} objects.
		conds = append(conds, "unit_mix @> "+arg(fmt.Sprintf(`[{"unit_type": "%d-bedroom"}]`, filter.Bedrooms)))
	}

	query := fmt.Sprintf(
		"SELECT %s FROM properties WHERE %s ORDER BY price_from ASC LIMIT %d",
		selectColumns, strings.Join(conds, " AND "), maxResults,
	)

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: search")
	}
	defer rows.Close()

	var records []model.PropertyRecord
	for rows.Next() {
		rec, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate rows")
	}

	return records, nil
}

// Get implements Client.
func (c *PostgresCatalog) Get(ctx context.Context, id string) (*model.PropertyRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM properties WHERE id = $1", selectColumns)

	rows, err := c.pool.Query(ctx, query, id)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: get")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, eris.Wrap(err, "catalog: get")
		}
		return nil, eris.Errorf("catalog: property %s not found", id)
	}
	return scanProperty(rows)
}

func scanProperty(rows pgx.Rows) (*model.PropertyRecord, error) {
	var (
		rec         model.PropertyRecord
		unitMixJSON []byte
		visualJSON  []byte
	)
	if err := rows.Scan(
		&rec.ID, &rec.ProjectName, &rec.Developer, &rec.District, &rec.PropertyType,
		&rec.PriceFrom, &rec.PriceTo, &rec.TOPYear, &rec.Tenure,
		&unitMixJSON, &visualJSON,
	); err != nil {
		return nil, eris.Wrap(err, "catalog: scan property")
	}

	if len(unitMixJSON) > 0 {
		if err := json.Unmarshal(unitMixJSON, &rec.UnitMix); err != nil {
			return nil, eris.Wrapf(err, "catalog: unmarshal unit_mix for %s", rec.ID)
		}
	}
	if len(visualJSON) > 0 {
		if err := json.Unmarshal(visualJSON, &rec.VisualAssets); err != nil {
			return nil, eris.Wrapf(err, "catalog: unmarshal visual_assets for %s", rec.ID)
		}
	}

	return &rec, nil
}
