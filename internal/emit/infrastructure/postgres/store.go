package postgres

import (
	"context"
	"database/sql"
	"errors"

	"buildsim/internal/emit"
	"buildsim/internal/units"
)

// Store mirrors the emission tables into postgres for multi-run archives.
// The driver is registered by the caller (pgx stdlib).
type Store struct {
	db  *sql.DB
	run string
}

// NewStore wraps an open connection. The run label distinguishes rows of
// concurrent or repeated simulations sharing one database.
func NewStore(db *sql.DB, run string) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres store: nil db")
	}
	if run == "" {
		return nil, errors.New("postgres store: run label is required")
	}
	return &Store{db: db, run: run}, nil
}

// EnsureSchema creates the emission tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS report_dictionary (
	run_label     TEXT NOT NULL,
	report_id     INTEGER NOT NULL,
	is_meter      BOOLEAN NOT NULL,
	cumulative    BOOLEAN NOT NULL,
	key_value     TEXT NOT NULL,
	name          TEXT NOT NULL,
	units         TEXT NOT NULL,
	store_type    TEXT NOT NULL,
	frequency     INTEGER NOT NULL,
	schedule_name TEXT,
	PRIMARY KEY (run_label, report_id)
);
CREATE TABLE IF NOT EXISTS time_indexes (
	id            BIGSERIAL PRIMARY KEY,
	run_label     TEXT NOT NULL,
	interval_type INTEGER NOT NULL,
	day_of_sim    INTEGER NOT NULL,
	environment   TEXT NOT NULL,
	calendar_year INTEGER,
	month         INTEGER,
	day           INTEGER,
	hour          INTEGER,
	start_minute  INTEGER,
	end_minute    INTEGER,
	dst           BOOLEAN,
	day_type      TEXT,
	warmup        BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS report_data (
	id            BIGSERIAL PRIMARY KEY,
	time_index_id BIGINT NOT NULL REFERENCES time_indexes(id),
	report_id     INTEGER NOT NULL,
	value         DOUBLE PRECISION NOT NULL,
	min_value     DOUBLE PRECISION,
	min_date      INTEGER,
	max_value     DOUBLE PRECISION,
	max_date      INTEGER
)`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// WriteDictionary upserts one dictionary row for this run.
func (s *Store) WriteDictionary(ctx context.Context, entry emit.DictionaryEntry) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO report_dictionary (
	run_label, report_id, is_meter, cumulative, key_value, name, units, store_type, frequency, schedule_name
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (run_label, report_id) DO UPDATE SET
	name = EXCLUDED.name, units = EXCLUDED.units, frequency = EXCLUDED.frequency`,
		s.run, entry.ReportID, entry.IsMeter, entry.Cumulative, entry.Key, entry.Name,
		entry.Units.String(), entry.StoreType, entry.Frequency.SQLInterval(), entry.ScheduleName,
	)
	return err
}

// WriteTimeIndex inserts one timestamp row and returns its id.
func (s *Store) WriteTimeIndex(ctx context.Context, ts emit.TimeIndex) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("postgres store: nil db")
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO time_indexes (
	run_label, interval_type, day_of_sim, environment, calendar_year, month, day,
	hour, start_minute, end_minute, dst, day_type, warmup
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id`,
		s.run, ts.Frequency.SQLInterval(), ts.DayOfSim, ts.Environment, ts.CalendarYear,
		ts.Month, ts.Day, ts.Hour, ts.StartMinute, ts.EndMinute, ts.DST, ts.DayType, ts.Warmup,
	).Scan(&id)
	return id, err
}

// WriteData inserts one data row.
func (s *Store) WriteData(ctx context.Context, timeIndexID int64, rec emit.Record, _ units.ReportFrequency) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store: nil db")
	}
	var minV, maxV sql.NullFloat64
	var minD, maxD sql.NullInt64
	if rec.HasExtremes {
		minV = sql.NullFloat64{Float64: rec.Min, Valid: true}
		maxV = sql.NullFloat64{Float64: rec.Max, Valid: true}
		minD = sql.NullInt64{Int64: int64(rec.MinDate), Valid: true}
		maxD = sql.NullInt64{Int64: int64(rec.MaxDate), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO report_data (time_index_id, report_id, value, min_value, min_date, max_value, max_date)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		timeIndexID, rec.ReportID, rec.Value, minV, minD, maxV, maxD,
	)
	return err
}

// Close releases nothing; the caller owns the connection pool.
func (s *Store) Close() error { return nil }
