package gamedb

import (
	"context"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
)

const (
	QueryVehicleInfo   = "vehicle_info"
	QueryCargoInfo     = "cargo_info"
	QueryPartInfo      = "part_info"
	QueryHeaviestCargo = "heaviest_cargo"
	QueryCargoBySpace  = "cargo_by_space"
)

var QueryTypes = []string{QueryVehicleInfo, QueryCargoInfo, QueryPartInfo, QueryHeaviestCargo, QueryCargoBySpace}

// Filters are the optional model-provided narrowing parameters of a
// structured query. Numbers arrive as JSON numbers or strings.
type Filters map[string]any

func (f Filters) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func (f Filters) Number(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, v != 0
	case int:
		return float64(v), v != 0
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil && n != 0
	}
	return 0, false
}

func visible(column string) sq.Or {
	return sq.Or{sq.Eq{column: 0}, sq.Eq{column: nil}}
}

func matchesTerm(term string) sq.Or {
	pattern := "%" + term + "%"
	return sq.Or{sq.Like{"id": pattern}, sq.Like{"name": pattern}}
}

func (d *DB) Vehicles(ctx context.Context, term string, filters Filters) ([]map[string]any, error) {
	q := d.sq.
		Select("id", "name", "vehicle_type", "truck_class", "cost", "comport").
		From("vehicles").
		Where(matchesTerm(term)).
		Where(visible("is_hidden")).
		Where(visible("is_disabled"))
	if vehicleType := filters.String("vehicle_type"); vehicleType != "" {
		q = q.Where(sq.Eq{"vehicle_type": vehicleType})
	}
	if maxCost, ok := filters.Number("max_cost"); ok {
		q = q.Where(sq.LtOrEq{"cost": maxCost})
	}
	return d.selectRows(ctx, q.OrderBy("cost").Limit(10))
}

func (d *DB) Cargo(ctx context.Context, term string, filters Filters) ([]map[string]any, error) {
	q := d.sq.
		Select("id", "name", "cargo_type", "actual_weight_kg", "payment_per_km", "volume_size").
		From("active_cargos").
		Where(matchesTerm(term))
	if cargoType := filters.String("cargo_type"); cargoType != "" {
		q = q.Where(sq.Eq{"cargo_type": cargoType})
	}
	if minWeight, ok := filters.Number("min_weight"); ok {
		q = q.Where(sq.GtOrEq{"actual_weight_kg": minWeight})
	}
	return d.selectRows(ctx, q.OrderBy("actual_weight_kg DESC").Limit(10))
}

func (d *DB) Parts(ctx context.Context, term string, filters Filters) ([]map[string]any, error) {
	q := d.sq.
		Select("id", "name", "part_type", "cost", "mass_kg").
		From("vehicle_parts").
		Where(matchesTerm(term)).
		Where(visible("is_hidden"))
	if partType := filters.String("part_type"); partType != "" {
		q = q.Where(sq.Eq{"part_type": partType})
	}
	if maxCost, ok := filters.Number("max_cost"); ok {
		q = q.Where(sq.LtOrEq{"cost": maxCost})
	}
	return d.selectRows(ctx, q.OrderBy("cost").Limit(10))
}

func (d *DB) HeaviestCargo(ctx context.Context, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > MaxRows {
		limit = 5
	}
	q := d.sq.
		Select("id", "name", "cargo_type", "actual_weight_kg").
		From("active_cargos").
		OrderBy("actual_weight_kg DESC").
		Limit(uint64(limit))
	return d.selectRows(ctx, q)
}

func (d *DB) CargoBySpaceType(ctx context.Context, spaceType string) ([]map[string]any, error) {
	q := d.sq.
		Select("c.id", "c.name", "c.actual_weight_kg", "c.cargo_type").
		Distinct().
		From("active_cargos c").
		Join("cargo_space_types cst ON c.id = cst.cargo_id").
		Where(sq.Eq{"cst.space_type": spaceType}).
		OrderBy("c.actual_weight_kg DESC").
		Limit(20)
	return d.selectRows(ctx, q)
}

// HandleQuery dispatches a structured query by type. The returned map is
// what the tool hands back to the model.
func (d *DB) HandleQuery(ctx context.Context, queryType, searchTerm string, rawFilters map[string]any) (map[string]any, error) {
	filters := Filters(rawFilters)
	var (
		key     string
		results []map[string]any
		err     error
	)
	switch queryType {
	case QueryVehicleInfo, QueryCargoInfo, QueryPartInfo:
		if searchTerm == "" {
			return map[string]any{"error": "search_term required"}, nil
		}
		switch queryType {
		case QueryVehicleInfo:
			key = "vehicles"
			results, err = d.Vehicles(ctx, searchTerm, filters)
		case QueryCargoInfo:
			key = "cargo"
			results, err = d.Cargo(ctx, searchTerm, filters)
		default:
			key = "parts"
			results, err = d.Parts(ctx, searchTerm, filters)
		}
	case QueryHeaviestCargo:
		key = "cargo"
		limit := 5
		if n, ok := filters.Number("limit"); ok {
			limit = int(n)
		}
		results, err = d.HeaviestCargo(ctx, limit)
	case QueryCargoBySpace:
		spaceType := filters.String("space_type")
		if spaceType == "" {
			return map[string]any{"error": "space_type filter required"}, nil
		}
		key = "cargo"
		results, err = d.CargoBySpaceType(ctx, spaceType)
	default:
		return map[string]any{"error": fmt.Sprintf("Unknown query_type: %s", queryType)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to run %s query: %w", queryType, err)
	}
	return map[string]any{key: results}, nil
}

func (d *DB) selectRows(ctx context.Context, q sq.SelectBuilder) ([]map[string]any, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, d.queryTimeout)
	defer cancel()
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results, _, err := scanRows(rows, 0)
	return results, err
}
