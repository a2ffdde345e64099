package pricing

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"cabnex/internal/types"
)

func TestStore_ActiveTariffsFor(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	f := seedCatalogue(t, db)

	set, err := store.ActiveTariffsFor(ctx, "new-delhi")
	if err != nil {
		t.Fatalf("ActiveTariffsFor() error = %v", err)
	}
	if set.Source != SourceMatched || len(set.Rules) != 1 {
		t.Fatalf("ActiveTariffsFor(new-delhi) = %+v, want 1 matched rule", set)
	}
	if set.Rules[0].Category.ID != f.sedan || set.Rules[0].DriverAllowance != 300 {
		t.Errorf("rule = %+v", set.Rules[0])
	}

	set, err = store.ActiveTariffsFor(ctx, "shim")
	if err != nil {
		t.Fatalf("ActiveTariffsFor() error = %v", err)
	}
	if set.Source != SourceMatched || len(set.Rules) != 1 || set.Rules[0].HillCharge != 500 || set.Rules[0].BufferDistance != 20 {
		t.Errorf("ActiveTariffsFor(shim) = %+v, want Shimla rule carrying city charges", set)
	}

	set, err = store.ActiveTariffsFor(ctx, "mumbai")
	if err != nil {
		t.Fatalf("ActiveTariffsFor() error = %v", err)
	}
	if set.Source != SourceDefault || len(set.Rules) != 1 {
		t.Errorf("ActiveTariffsFor(mumbai) = %+v, want default rule", set)
	}

	if _, err := db.Exec(ctx, `DELETE FROM cities WHERE name = 'default'`); err != nil {
		t.Fatalf("delete default: %v", err)
	}
	set, err = store.ActiveTariffsFor(ctx, "mumbai")
	if err != nil {
		t.Fatalf("ActiveTariffsFor() error = %v", err)
	}
	if set.Source != SourceNone || !set.Empty() {
		t.Errorf("ActiveTariffsFor(mumbai) without default = %+v, want empty", set)
	}
}

func TestStore_ActiveTariffsForRoute(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	seedCatalogue(t, db)

	tests := []struct {
		name       string
		placeID    string
		routeKey   string
		wantSource TariffSource
		wantBase   float64
	}{
		{"by place id", "ChIJ-ndls", "", SourceMatched, 500},
		{"by name prefix", "ChIJ-other", "new-delhi-railway", SourceMatched, 500},
		{"default transfer", "ChIJ-unknown", "anand-vihar", SourceDefault, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := store.ActiveTariffsForRoute(ctx, tt.placeID, tt.routeKey)
			if err != nil {
				t.Fatalf("ActiveTariffsForRoute() error = %v", err)
			}
			if set.Source != tt.wantSource || len(set.Rules) != 1 || set.Rules[0].BaseFare != tt.wantBase {
				t.Errorf("ActiveTariffsForRoute() = %+v", set)
			}
		})
	}
}

func TestStore_CityCharges(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	f := seedCatalogue(t, db)

	charges, ok, err := store.CityCharges(ctx, "shimla")
	if err != nil || !ok {
		t.Fatalf("CityCharges() = %v, %v", ok, err)
	}
	if charges.BufferKm != 20 || charges.HillCharge != 500 || charges.Permits[f.sedan] != 250 {
		t.Errorf("CityCharges() = %+v", charges)
	}

	if _, ok, err := store.CityCharges(ctx, "mumbai"); err != nil || ok {
		t.Errorf("CityCharges(mumbai) = %v, %v; want no match", ok, err)
	}
}

func TestStore_RentalPackageAndActivities(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	f := seedCatalogue(t, db)

	pkg, err := store.RentalPackage(ctx, f.pkg)
	if err != nil {
		t.Fatalf("RentalPackage() error = %v", err)
	}
	if pkg.DistanceKm != 80 || pkg.DurationHours != 8 {
		t.Errorf("RentalPackage() = %+v", pkg)
	}
	if _, err := store.RentalPackage(ctx, "00000000-0000-4000-8000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RentalPackage(missing) error = %v, want ErrNotFound", err)
	}

	acts, err := store.ActiveActivities(ctx, "new-delhi")
	if err != nil {
		t.Fatalf("ActiveActivities() error = %v", err)
	}
	if len(acts) != 1 || acts[0].Title != "Old Delhi walk" {
		t.Errorf("ActiveActivities() = %+v", acts)
	}
}

type catalogue struct {
	sedan types.ID
	pkg   types.ID
}

func seedCatalogue(t *testing.T, db *pgxpool.Pool) catalogue {
	t.Helper()
	ctx := context.Background()

	var f catalogue
	var sedan, suv, delhi, shimla, def, station, defStation, pkg string
	mustScan := func(dst *string, sql string, args ...any) {
		t.Helper()
		if err := db.QueryRow(ctx, sql, args...).Scan(dst); err != nil {
			t.Fatalf("seed %q: %v", sql, err)
		}
	}
	mustExec := func(sql string, args ...any) {
		t.Helper()
		if _, err := db.Exec(ctx, sql, args...); err != nil {
			t.Fatalf("seed %q: %v", sql, err)
		}
	}

	mustScan(&sedan, `INSERT INTO car_categories (name) VALUES ('Sedan') RETURNING id::text`)
	mustScan(&suv, `INSERT INTO car_categories (name, is_active) VALUES ('SUV', FALSE) RETURNING id::text`)
	mustScan(&def, `INSERT INTO cities (name) VALUES ('default') RETURNING id::text`)
	mustScan(&delhi, `INSERT INTO cities (name, place_id) VALUES ('New Delhi', 'ChIJ-delhi') RETURNING id::text`)
	mustScan(&shimla, `INSERT INTO cities (name, hill_charge, buffer_km) VALUES ('Shimla', 500, 20) RETURNING id::text`)

	for _, city := range []string{def, delhi, shimla} {
		mustExec(`
            INSERT INTO city_tariffs (city_id, category_id, free_km_per_day, per_km_charge, extra_km_charge,
                                      driver_allowance, night_charge, permit_charge, tax_slab)
            VALUES ($1, $2, 300, 10, 12, 300, 200, 250, 5)`, city, sedan)
		// inactive category never surfaces
		mustExec(`INSERT INTO city_tariffs (city_id, category_id) VALUES ($1, $2)`, city, suv)
	}

	mustScan(&station, `INSERT INTO transfers (name, place_id) VALUES ('New Delhi Railway Station', 'ChIJ-ndls') RETURNING id::text`)
	mustScan(&defStation, `INSERT INTO transfers (name) VALUES ('default') RETURNING id::text`)
	mustExec(`INSERT INTO transfer_tariffs (transfer_id, category_id, base_fare, base_km, extra_km_charge) VALUES ($1, $2, 500, 20, 15)`, station, sedan)
	mustExec(`INSERT INTO transfer_tariffs (transfer_id, category_id, base_fare, base_km, extra_km_charge) VALUES ($1, $2, 400, 15, 12)`, defStation, sedan)

	mustScan(&pkg, `INSERT INTO rental_packages (kilometer, duration) VALUES (80, 8) RETURNING id::text`)
	mustExec(`INSERT INTO activity_packages (city_id, title, price) VALUES ($1, 'Old Delhi walk', 1499)`, delhi)
	mustExec(`INSERT INTO activity_packages (city_id, title, price, is_active) VALUES ($1, 'Retired tour', 99, FALSE)`, delhi)

	f.sedan = types.ID(sedan)
	f.pkg = types.ID(pkg)
	return f
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("CABNEX_TEST_DSN")
	if dsn == "" {
		t.Skip("CABNEX_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, `
        TRUNCATE TABLE activity_packages, rental_packages,
                       transfer_tariffs, transfers, city_tariffs, cities, car_categories`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	conn, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	// packages share one test database; serialize schema setup
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(7301)`); err != nil {
		return err
	}
	defer conn.Exec(ctx, `SELECT pg_advisory_unlock(7301)`)
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
