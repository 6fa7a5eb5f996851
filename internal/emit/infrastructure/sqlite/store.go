package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"buildsim/internal/emit"
	"buildsim/internal/units"
)

// Store is the embedded SQL sink: dictionary, time-index and data tables
// in a single sqlite file, written as the simulation runs.
type Store struct {
	db *sql.DB
}

// Open creates or opens the results database and prepares the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite store: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	// Single writer, so WAL with relaxed sync is safe and much faster.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite store: %s: %w", pragma, err)
		}
	}
	store := &Store{db: db}
	if err := store.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS report_dictionary (
	report_id     INTEGER PRIMARY KEY,
	is_meter      INTEGER NOT NULL,
	cumulative    INTEGER NOT NULL,
	key_value     TEXT NOT NULL,
	name          TEXT NOT NULL,
	units         TEXT NOT NULL,
	store_type    TEXT NOT NULL,
	frequency     INTEGER NOT NULL,
	schedule_name TEXT
);
CREATE TABLE IF NOT EXISTS time_indexes (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	interval_type INTEGER NOT NULL,
	day_of_sim    INTEGER NOT NULL,
	environment   TEXT NOT NULL,
	calendar_year INTEGER,
	month         INTEGER,
	day           INTEGER,
	hour          INTEGER,
	start_minute  INTEGER,
	end_minute    INTEGER,
	dst           INTEGER,
	day_type      TEXT,
	warmup        INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS report_data (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	time_index_id INTEGER NOT NULL REFERENCES time_indexes(id),
	report_id     INTEGER NOT NULL REFERENCES report_dictionary(report_id),
	value         REAL NOT NULL,
	min_value     REAL,
	min_date      INTEGER,
	max_value     REAL,
	max_date      INTEGER
);
CREATE INDEX IF NOT EXISTS idx_report_data_report ON report_data(report_id, time_index_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite store: create schema: %w", err)
	}
	return nil
}

// WriteDictionary upserts one dictionary row.
func (s *Store) WriteDictionary(ctx context.Context, entry emit.DictionaryEntry) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO report_dictionary (
	report_id, is_meter, cumulative, key_value, name, units, store_type, frequency, schedule_name
) VALUES (?,?,?,?,?,?,?,?,?)`,
		entry.ReportID, entry.IsMeter, entry.Cumulative, entry.Key, entry.Name,
		entry.Units.String(), entry.StoreType, entry.Frequency.SQLInterval(), entry.ScheduleName,
	)
	return err
}

// WriteTimeIndex inserts one timestamp row and returns its id.
func (s *Store) WriteTimeIndex(ctx context.Context, ts emit.TimeIndex) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("sqlite store: nil db")
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO time_indexes (
	interval_type, day_of_sim, environment, calendar_year, month, day, hour,
	start_minute, end_minute, dst, day_type, warmup
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		ts.Frequency.SQLInterval(), ts.DayOfSim, ts.Environment, ts.CalendarYear,
		ts.Month, ts.Day, ts.Hour, ts.StartMinute, ts.EndMinute, ts.DST, ts.DayType, ts.Warmup,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// WriteData inserts one data row. Extremes are stored only when the window
// carries them.
func (s *Store) WriteData(ctx context.Context, timeIndexID int64, rec emit.Record, _ units.ReportFrequency) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store: nil db")
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
VALUES (?,?,?,?,?,?,?)`,
		timeIndexID, rec.ReportID, rec.Value, minV, minD, maxV, maxD,
	)
	return err
}

// Close checkpoints and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	_, _ = s.db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
