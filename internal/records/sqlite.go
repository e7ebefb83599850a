package records

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coinsentry/coinsentry/internal/types"
)

// SQLite is a durable Store backed by a single-table SQLite database.
// Per-channel outcomes are stored as a JSON column; the queryable fields get
// their own columns.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening record db %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS delivery_records (
		notification_id TEXT PRIMARY KEY,
		per_channel     TEXT NOT NULL,
		success_count   INTEGER NOT NULL,
		failure_count   INTEGER NOT NULL,
		attempts        INTEGER NOT NULL,
		failed          INTEGER NOT NULL,
		stored_at       DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_delivery_records_stored_at ON delivery_records(stored_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing record schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Save(rec types.DeliveryRecord) error {
	perChannel, err := json.Marshal(rec.PerChannel)
	if err != nil {
		return fmt.Errorf("encoding channel results: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO delivery_records
		 (notification_id, per_channel, success_count, failure_count, attempts, failed, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.NotificationID, string(perChannel), rec.SuccessCount, rec.FailureCount,
		rec.Attempts, rec.Failed, rec.StoredAt,
	)
	if err != nil {
		return fmt.Errorf("saving delivery record %s: %w", rec.NotificationID, err)
	}
	return nil
}

func (s *SQLite) Get(notificationID string) (types.DeliveryRecord, bool, error) {
	row := s.db.QueryRow(
		`SELECT notification_id, per_channel, success_count, failure_count, attempts, failed, stored_at
		 FROM delivery_records WHERE notification_id = ?`, notificationID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return types.DeliveryRecord{}, false, nil
	}
	if err != nil {
		return types.DeliveryRecord{}, false, fmt.Errorf("loading delivery record %s: %w", notificationID, err)
	}
	return rec, true, nil
}

func (s *SQLite) List(limit int) ([]types.DeliveryRecord, error) {
	rows, err := s.db.Query(
		`SELECT notification_id, per_channel, success_count, failure_count, attempts, failed, stored_at
		 FROM delivery_records ORDER BY stored_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing delivery records: %w", err)
	}
	defer rows.Close()

	var out []types.DeliveryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Sweep(maxAge time.Duration) (int, error) {
	res, err := s.db.Exec(`DELETE FROM delivery_records WHERE stored_at < ?`,
		time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("sweeping delivery records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLite) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (types.DeliveryRecord, error) {
	var (
		rec        types.DeliveryRecord
		perChannel string
	)
	if err := row.Scan(&rec.NotificationID, &perChannel, &rec.SuccessCount,
		&rec.FailureCount, &rec.Attempts, &rec.Failed, &rec.StoredAt); err != nil {
		return types.DeliveryRecord{}, err
	}
	if err := json.Unmarshal([]byte(perChannel), &rec.PerChannel); err != nil {
		return types.DeliveryRecord{}, err
	}
	return rec, nil
}
