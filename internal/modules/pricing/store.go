// README: Tariff repository backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cabnex/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

type cityRow struct {
	ID         types.ID
	Name       string
	HillCharge float64
	BufferKm   int
}

// ActiveTariffsFor returns the active rules of the city whose name starts
// with cityKey, falling back to the "default" city.
func (s *Store) ActiveTariffsFor(ctx context.Context, cityKey string) (TariffSet, error) {
	return withDefault(ctx, cityKey,
		func(ctx context.Context, key string) ([]TariffRule, bool, error) {
			return s.cityTariffs(ctx, prefixPattern(key))
		},
		func(ctx context.Context, key string) ([]TariffRule, bool, error) {
			return s.cityTariffs(ctx, key)
		},
	)
}

// ActiveTariffsForRoute returns the active rules of the transfer matching the
// place ID or whose name starts with routeKey, falling back to the "default"
// transfer.
func (s *Store) ActiveTariffsForRoute(ctx context.Context, placeID, routeKey string) (TariffSet, error) {
	key := routeKey
	if key == "" {
		key = placeID
	}
	return withDefault(ctx, key,
		func(ctx context.Context, _ string) ([]TariffRule, bool, error) {
			return s.transferTariffs(ctx, placeID, prefixPattern(routeKey))
		},
		func(ctx context.Context, key string) ([]TariffRule, bool, error) {
			return s.transferTariffs(ctx, "", key)
		},
	)
}

// CityCharges returns one city's buffer, hill charge and per-category permit
// charges. There is no default fallback here.
func (s *Store) CityCharges(ctx context.Context, cityKey string) (CityCharges, bool, error) {
	if cityKey == "" {
		return CityCharges{}, false, nil
	}
	city, ok, err := s.findCity(ctx, prefixPattern(cityKey))
	if err != nil || !ok {
		return CityCharges{}, ok, err
	}

	rows, err := s.db.Query(ctx, `
        SELECT category_id::text, permit_charge
        FROM city_tariffs
        WHERE city_id = $1`, string(city.ID),
	)
	if err != nil {
		return CityCharges{}, false, fmt.Errorf("query city permits: %w", err)
	}
	defer rows.Close()

	charges := CityCharges{
		CityKey:    city.Name,
		BufferKm:   city.BufferKm,
		HillCharge: city.HillCharge,
		Permits:    map[types.ID]float64{},
	}
	for rows.Next() {
		var categoryID string
		var permit float64
		if err := rows.Scan(&categoryID, &permit); err != nil {
			return CityCharges{}, false, err
		}
		charges.Permits[types.ID(categoryID)] += permit
	}
	return charges, true, rows.Err()
}

func (s *Store) RentalPackage(ctx context.Context, id types.ID) (RentalPackage, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id::text, kilometer, duration
        FROM rental_packages
        WHERE id = $1`, string(id),
	)
	var pkg RentalPackage
	var pkgID string
	err := row.Scan(&pkgID, &pkg.DistanceKm, &pkg.DurationHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return RentalPackage{}, ErrNotFound
	}
	if err != nil {
		return RentalPackage{}, err
	}
	pkg.ID = types.ID(pkgID)
	return pkg, nil
}

// ActiveActivities lists the active activity packages of the matched city.
// Unknown cities have no activities.
func (s *Store) ActiveActivities(ctx context.Context, cityKey string) ([]Activity, error) {
	if cityKey == "" {
		return nil, nil
	}
	city, ok, err := s.findCity(ctx, prefixPattern(cityKey))
	if err != nil || !ok {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
        SELECT id::text, city_id::text, title, description, duration, price, cancellation_policy
        FROM activity_packages
        WHERE city_id = $1 AND is_active
        ORDER BY title`, string(city.ID),
	)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var id, cityID string
		if err := rows.Scan(&id, &cityID, &a.Title, &a.Description, &a.DurationHours, &a.Price, &a.CancellationPolicy); err != nil {
			return nil, err
		}
		a.ID = types.ID(id)
		a.CityID = types.ID(cityID)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) findCity(ctx context.Context, namePattern string) (cityRow, bool, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id::text, name, hill_charge, buffer_km
        FROM cities
        WHERE is_active AND regexp_replace(lower(name), '\s+', '-', 'g') LIKE $1 ESCAPE '\'
        ORDER BY length(name), name
        LIMIT 1`, namePattern,
	)
	var c cityRow
	var id string
	err := row.Scan(&id, &c.Name, &c.HillCharge, &c.BufferKm)
	if errors.Is(err, pgx.ErrNoRows) {
		return cityRow{}, false, nil
	}
	if err != nil {
		return cityRow{}, false, fmt.Errorf("find city: %w", err)
	}
	c.ID = types.ID(id)
	return c, true, nil
}

func (s *Store) cityTariffs(ctx context.Context, namePattern string) ([]TariffRule, bool, error) {
	city, ok, err := s.findCity(ctx, namePattern)
	if err != nil || !ok {
		return nil, ok, err
	}

	rows, err := s.db.Query(ctx, `
        SELECT cat.id::text, cat.name, cat.icon_url, cat.image_url,
               t.base_fare, t.market_fare, t.per_km_charge, t.per_hour_charge,
               t.free_km_per_day, t.free_hours_per_day, t.extra_km_charge, t.extra_hour_charge,
               t.driver_allowance, t.night_charge, t.permit_charge, t.tax_slab, t.is_active
        FROM city_tariffs t
        JOIN car_categories cat ON cat.id = t.category_id AND cat.is_active
        WHERE t.city_id = $1
        ORDER BY cat.name`, string(city.ID),
	)
	if err != nil {
		return nil, false, fmt.Errorf("query city tariffs: %w", err)
	}
	defer rows.Close()

	var rules []TariffRule
	for rows.Next() {
		var r TariffRule
		var categoryID string
		if err := rows.Scan(
			&categoryID, &r.Category.Name, &r.Category.IconURL, &r.Category.ImageURL,
			&r.BaseFare, &r.MarketFare, &r.PerDistanceCharge, &r.PerTimeCharge,
			&r.FreeDistancePerDay, &r.FreeHoursPerDay, &r.ExtraDistanceCharge, &r.ExtraTimeCharge,
			&r.DriverAllowance, &r.NightCharge, &r.PermitCharge, &r.TaxSlab, &r.Active,
		); err != nil {
			return nil, false, err
		}
		r.Category.ID = types.ID(categoryID)
		r.HillCharge = city.HillCharge
		r.BufferDistance = city.BufferKm
		rules = append(rules, r)
	}
	return rules, true, rows.Err()
}

func (s *Store) transferTariffs(ctx context.Context, placeID, namePattern string) ([]TariffRule, bool, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id::text
        FROM transfers
        WHERE is_active
          AND (($1 <> '' AND place_id = $1) OR regexp_replace(lower(name), '\s+', '-', 'g') LIKE $2 ESCAPE '\')
        ORDER BY ($1 <> '' AND place_id = $1) DESC, length(name), name
        LIMIT 1`, placeID, namePattern,
	)
	var transferID string
	err := row.Scan(&transferID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find transfer: %w", err)
	}

	rows, err := s.db.Query(ctx, `
        SELECT cat.id::text, cat.name, cat.icon_url, cat.image_url,
               t.base_fare, t.base_km, t.extra_km_charge, t.hill_charge, t.tax_slab, t.is_active
        FROM transfer_tariffs t
        JOIN car_categories cat ON cat.id = t.category_id AND cat.is_active
        WHERE t.transfer_id = $1
        ORDER BY cat.name`, transferID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("query transfer tariffs: %w", err)
	}
	defer rows.Close()

	var rules []TariffRule
	for rows.Next() {
		var r TariffRule
		var categoryID string
		if err := rows.Scan(
			&categoryID, &r.Category.Name, &r.Category.IconURL, &r.Category.ImageURL,
			&r.BaseFare, &r.FreeDistanceBaseline, &r.ExtraDistanceCharge, &r.HillCharge, &r.TaxSlab, &r.Active,
		); err != nil {
			return nil, false, err
		}
		r.Category.ID = types.ID(categoryID)
		rules = append(rules, r)
	}
	return rules, true, rows.Err()
}

// prefixPattern builds a LIKE prefix pattern for a normalized key; names are
// compared lower-cased with whitespace runs replaced by hyphens. An empty key
// yields an empty pattern, which matches nothing.
func prefixPattern(key string) string {
	if key == "" {
		return ""
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.ToLower(key)) + "%"
}
