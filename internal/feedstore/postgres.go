// Package feedstore adapts an already-imported GTFS Postgres schema (the
// layout produced by tools such as postgis-gtfs-importer) into the routing
// core's feed.Feed contract.
package feedstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gtfs-router/internal/feed"
)

// Open establishes a pooled connection to dsn. The pool sizing mirrors what
// a single router instance needs: a handful of concurrent Find requests,
// each of which only touches the feed once at startup/refresh, not per
// query (Load is called up front and the result is held in memory).
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Load reads the whole GTFS schema into an in-memory feed.Feed. Feeds are
// small enough (thousands to low millions of rows) that holding the full
// timetable in memory is the right trade for the routing core's
// pointer-free packed arrays, which need a complete view to build from.
func Load(ctx context.Context, db *sql.DB) (*feed.InMemory, error) {
	stops, err := loadStops(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("feedstore: load stops: %w", err)
	}
	routes, err := loadRoutes(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("feedstore: load routes: %w", err)
	}
	trips, err := loadTrips(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("feedstore: load trips: %w", err)
	}
	stopTimes, err := loadStopTimes(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("feedstore: load stop_times: %w", err)
	}
	calendars, err := loadCalendars(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("feedstore: load calendar: %w", err)
	}

	return &feed.InMemory{
		StopsData:     stops,
		RoutesData:    routes,
		TripsData:     trips,
		StopTimesData: stopTimes,
		CalendarsData: calendars,
	}, nil
}

func loadStops(ctx context.Context, db *sql.DB) ([]feed.Stop, error) {
	latlon, err := hasColumns(ctx, db, "public", "stops", "stop_lat", "stop_lon")
	if err != nil {
		return nil, err
	}
	var q string
	if latlon["stop_lat"] && latlon["stop_lon"] {
		q = `SELECT stop_id, COALESCE(stop_name, ''), COALESCE(stop_lat, 0), COALESCE(stop_lon, 0) FROM stops`
	} else {
		q = `SELECT stop_id, COALESCE(stop_name, ''), COALESCE(ST_Y(stop_loc::geometry), 0), COALESCE(ST_X(stop_loc::geometry), 0) FROM stops`
	}
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []feed.Stop
	for rows.Next() {
		var s feed.Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func loadRoutes(ctx context.Context, db *sql.DB) ([]feed.Route, error) {
	rows, err := db.QueryContext(ctx, `SELECT route_id, COALESCE(route_short_name, '') FROM routes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []feed.Route
	for rows.Next() {
		var r feed.Route
		if err := rows.Scan(&r.ID, &r.ShortName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadTrips(ctx context.Context, db *sql.DB) ([]feed.Trip, error) {
	rows, err := db.QueryContext(ctx, `SELECT trip_id, route_id, service_id, COALESCE(direction_id, 0) FROM trips`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []feed.Trip
	for rows.Next() {
		var t feed.Trip
		var dir int
		if err := rows.Scan(&t.ID, &t.RouteID, &t.ServiceID, &dir); err != nil {
			return nil, err
		}
		t.DirectionID = feed.DirectionID(dir)
		out = append(out, t)
	}
	return out, rows.Err()
}

func loadStopTimes(ctx context.Context, db *sql.DB) ([]feed.StopTime, error) {
	rows, err := db.QueryContext(ctx, `
SELECT trip_id, stop_id, COALESCE(arrival_time::text, ''), COALESCE(departure_time::text, '')
FROM stop_times`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []feed.StopTime
	for rows.Next() {
		var st feed.StopTime
		var arr, dep string
		if err := rows.Scan(&st.TripID, &st.StopID, &arr, &dep); err != nil {
			return nil, err
		}
		st.ArrivalSeconds = parseDaySeconds(arr)
		st.DepartureSeconds = parseDaySeconds(dep)
		out = append(out, st)
	}
	return out, rows.Err()
}

func loadCalendars(ctx context.Context, db *sql.DB) ([]feed.Calendar, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT service_id FROM calendar
UNION
SELECT DISTINCT service_id FROM calendar_dates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []feed.Calendar
	for rows.Next() {
		var c feed.Calendar
		if err := rows.Scan(&c.ServiceID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// parseDaySeconds parses HH:MM:SS, allowing hours >= 24 for trips that run
// past midnight, matching the GTFS stop_times convention.
func parseDaySeconds(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec := 0
	if len(parts) > 2 {
		sec, _ = strconv.Atoi(parts[2])
	}
	total := h*3600 + m*60 + sec
	if total < 0 {
		return 0
	}
	return total
}

// hasColumns reports, for the given table, which of cols actually exist —
// importer versions differ on whether stop geometry is lat/lon columns or a
// PostGIS geography column.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	for _, c := range cols {
		res[c] = false
	}
	rows, err := db.QueryContext(ctx, `SELECT column_name FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
