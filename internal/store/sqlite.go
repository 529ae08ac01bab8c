package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS relay_jobs (
	tx_hash             TEXT PRIMARY KEY,
	source_domain       INTEGER NOT NULL,
	status              TEXT NOT NULL,
	attested_message    BLOB,
	attestation         BLOB,
	attestation_nonce   BLOB,
	mint_recipient      TEXT,
	destination_domain  INTEGER,
	amount              TEXT,
	dest_tx_hash        TEXT,
	dest_block_number   INTEGER,
	outcome             TEXT,
	error_message       TEXT,
	poll_attempts       INTEGER NOT NULL DEFAULT 0,
	retry_count         INTEGER NOT NULL DEFAULT 0,
	created_at          INTEGER NOT NULL,
	attested_at         INTEGER,
	submitted_at        INTEGER,
	confirmed_at        INTEGER,
	updated_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS relay_jobs_status_idx ON relay_jobs (status);
CREATE INDEX IF NOT EXISTS relay_jobs_created_at_idx ON relay_jobs (created_at);
`

// SQLiteStore is a single-writer, WAL-journaled implementation of Store,
// backed by a pure-Go sqlite driver. Within this process every statement
// goes through a single pooled connection, so reads and writes are
// serialized rather than run concurrently; each read sees a point-in-time
// snapshot, and a busy_timeout covers contention from other processes.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) a WAL-mode sqlite database at
// path and ensures the schema exists. Schema creation is idempotent, so
// it is safe to call on every process startup.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// sqlite tolerates only one writer at a time; a single connection avoids
	// SQLITE_BUSY races between goroutines within this process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, job *RelayJob) error {
	now := job.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_jobs (tx_hash, source_domain, status, poll_attempts, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, ?, ?)
	`, job.TxHash, job.SourceDomain, StatusPending, unixMilli(now), unixMilli(now))
	if err != nil {
		if isUniqueConstraint(err) {
			return ErrConflict
		}
		return fmt.Errorf("store: create: %w", err)
	}
	job.Status = StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, txHash string) (*RelayJob, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE tx_hash = ?`, txHash)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	return job, nil
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, statuses []Status, limit int) ([]*RelayJob, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+1)
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, st)
	}
	query := selectColumns + ` WHERE status IN (` + strings.Join(placeholders, ",") + `) ORDER BY created_at ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list by status: %w", err)
	}
	defer rows.Close()

	var jobs []*RelayJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list by status: scan: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *SQLiteStore) OldestByStatus(ctx context.Context, status Status) (*RelayJob, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE status = ? ORDER BY created_at ASC LIMIT 1`, status)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJobs
	}
	if err != nil {
		return nil, fmt.Errorf("store: oldest by status: %w", err)
	}
	return job, nil
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	counts := map[Status]int{
		StatusPending:   0,
		StatusPolling:   0,
		StatusAttested:  0,
		StatusSubmitted: 0,
		StatusConfirmed: 0,
		StatusFailed:    0,
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM relay_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("store: count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("store: count by status: scan: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) MarkPolling(ctx context.Context, txHash string) error {
	return s.updateStatusOneOf(ctx, txHash, StatusPolling, []Status{StatusPending, StatusPolling})
}

func (s *SQLiteStore) IncrementPollAttempt(ctx context.Context, txHash string) error {
	return s.exec1(ctx, `
		UPDATE relay_jobs SET poll_attempts = poll_attempts + 1, updated_at = ? WHERE tx_hash = ?
	`, unixMilli(now()), txHash)
}

func (s *SQLiteStore) MarkAttested(ctx context.Context, txHash string, f AttestedFields) error {
	n := now()
	return s.exec1(ctx, `
		UPDATE relay_jobs SET
			status = ?,
			attested_message = ?,
			attestation = ?,
			attestation_nonce = ?,
			mint_recipient = ?,
			destination_domain = ?,
			amount = ?,
			poll_attempts = poll_attempts + 1,
			attested_at = ?,
			updated_at = ?
		WHERE tx_hash = ?
	`, StatusAttested, f.AttestedMessage, f.Attestation, f.AttestationNonce, f.MintRecipient,
		f.DestinationDomain, f.Amount, unixMilli(n), unixMilli(n), txHash)
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, txHash, reason string) error {
	return s.exec1(ctx, `
		UPDATE relay_jobs SET status = ?, error_message = ?, updated_at = ? WHERE tx_hash = ?
	`, StatusFailed, reason, unixMilli(now()), txHash)
}

func (s *SQLiteStore) MarkSubmitted(ctx context.Context, txHash, destTxHash string) error {
	n := now()
	return s.exec1(ctx, `
		UPDATE relay_jobs SET status = ?, dest_tx_hash = ?, submitted_at = ?, updated_at = ? WHERE tx_hash = ?
	`, StatusSubmitted, destTxHash, unixMilli(n), unixMilli(n), txHash)
}

func (s *SQLiteStore) MarkConfirmed(ctx context.Context, txHash string, outcome Outcome, destBlockNumber int64) error {
	n := now()
	return s.exec1(ctx, `
		UPDATE relay_jobs SET status = ?, outcome = ?, dest_block_number = ?, confirmed_at = ?, updated_at = ? WHERE tx_hash = ?
	`, StatusConfirmed, outcome, destBlockNumber, unixMilli(n), unixMilli(n), txHash)
}

func (s *SQLiteStore) RequeueAttested(ctx context.Context, txHash, reason string) error {
	return s.exec1(ctx, `
		UPDATE relay_jobs SET status = ?, retry_count = retry_count + 1, error_message = ?, updated_at = ? WHERE tx_hash = ?
	`, StatusAttested, reason, unixMilli(now()), txHash)
}

func (s *SQLiteStore) IncrementRetryFailed(ctx context.Context, txHash, reason string) error {
	return s.exec1(ctx, `
		UPDATE relay_jobs SET status = ?, retry_count = retry_count + 1, error_message = ?, updated_at = ? WHERE tx_hash = ?
	`, StatusFailed, reason, unixMilli(now()), txHash)
}

// updateStatusOneOf moves txHash to newStatus provided its current status is
// one of from, refreshing updated_at. If the row exists but its status is
// not one of from, nothing is changed and nil is returned; if no row
// exists, ErrNotFound is returned.
func (s *SQLiteStore) updateStatusOneOf(ctx context.Context, txHash string, newStatus Status, from []Status) error {
	placeholders := make([]string, len(from))
	args := []any{newStatus, unixMilli(now())}
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, st)
	}
	args = append(args, txHash)
	query := `UPDATE relay_jobs SET status = ?, updated_at = ? WHERE status IN (` +
		strings.Join(placeholders, ",") + `) AND tx_hash = ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	if n == 0 {
		// either the row doesn't exist, or it's already past newStatus;
		// disambiguate for the caller.
		if _, err := s.Get(ctx, txHash); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) exec1(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var now = func() time.Time { return time.Now().UTC() }

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms sql.NullInt64) time.Time {
	if !ms.Valid || ms.Int64 == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms.Int64).UTC()
}

func isUniqueConstraint(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "constraint failed: UNIQUE")
}

const selectColumns = `
	SELECT tx_hash, source_domain, status, attested_message, attestation, attestation_nonce,
		mint_recipient, destination_domain, amount, dest_tx_hash, dest_block_number, outcome,
		error_message, poll_attempts, retry_count, created_at, attested_at, submitted_at,
		confirmed_at, updated_at
	FROM relay_jobs
`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*RelayJob, error) {
	var (
		j                                               RelayJob
		attestedMessage, attestation, attestationNonce  []byte
		mintRecipient, destTxHash, outcome, errorMsg    sql.NullString
		destinationDomain, destBlockNumber              sql.NullInt64
		amount                                          sql.NullString
		createdAt, attestedAt, submittedAt, confirmedAt sql.NullInt64
		updatedAt                                       sql.NullInt64
	)
	if err := row.Scan(
		&j.TxHash, &j.SourceDomain, &j.Status, &attestedMessage, &attestation, &attestationNonce,
		&mintRecipient, &destinationDomain, &amount, &destTxHash, &destBlockNumber, &outcome,
		&errorMsg, &j.PollAttempts, &j.RetryCount, &createdAt, &attestedAt, &submittedAt,
		&confirmedAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	j.AttestedMessage = attestedMessage
	j.Attestation = attestation
	j.AttestationNonce = attestationNonce
	j.MintRecipient = mintRecipient.String
	j.DestTxHash = destTxHash.String
	j.Outcome = Outcome(outcome.String)
	j.ErrorMessage = errorMsg.String
	j.Amount = amount.String
	if destinationDomain.Valid {
		j.DestinationDomain = int(destinationDomain.Int64)
	}
	if destBlockNumber.Valid {
		j.DestBlockNumber = destBlockNumber.Int64
	}
	j.CreatedAt = fromUnixMilli(createdAt)
	j.AttestedAt = fromUnixMilli(attestedAt)
	j.SubmittedAt = fromUnixMilli(submittedAt)
	j.ConfirmedAt = fromUnixMilli(confirmedAt)
	j.UpdatedAt = fromUnixMilli(updatedAt)
	return &j, nil
}

var _ Store = (*SQLiteStore)(nil)
