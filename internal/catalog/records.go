package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vellum-editor/vellum/internal/backup"
	"github.com/vellum-editor/vellum/internal/health"
)

// timeLayout is how instants are stored: RFC 3339 with nanoseconds, UTC.
const timeLayout = time.RFC3339Nano

// BundleRecord is one known bundle.
type BundleRecord struct {
	ID    uuid.UUID `json:"id"`
	Path  string    `json:"path"`
	Title string    `json:"title"`

	// SchemaVersion mirrors the metadata record; nil for legacy bundles.
	SchemaVersion *int `json:"schema_version,omitempty"`

	// Healthy is the verdict of the most recent validation, nil before the
	// first one.
	Healthy *bool `json:"healthy,omitempty"`

	// LastValidatedAt is when that validation ran.
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`

	// SourceFingerprint is the BLAKE2b-256 hex digest of the source file
	// the last time this subsystem read it.
	SourceFingerprint string `json:"source_fingerprint,omitempty"`
}

// BackupRecord is one retained snapshot.
type BackupRecord struct {
	ID       int64     `json:"id"`
	BundleID uuid.UUID `json:"bundle_id"`

	// Reason records what prompted the snapshot: "migration", "repair" or
	// "manual".
	Reason string `json:"reason"`

	backup.Descriptor
}

// ValidationRecord is one row of the validation journal.
type ValidationRecord struct {
	ID           int64          `json:"id"`
	BundleID     uuid.UUID      `json:"bundle_id"`
	RunAt        time.Time      `json:"run_at"`
	Healthy      bool           `json:"healthy"`
	Issues       []health.Issue `json:"issues"`
	SourceBytes  int64          `json:"source_bytes"`
	HistoryBytes int64          `json:"history_bytes"`
}

// SizeRatio mirrors health.Result's diagnostic ratio for journal rows.
func (r ValidationRecord) SizeRatio() float64 {
	if r.SourceBytes == 0 {
		return 0
	}
	return float64(r.HistoryBytes) / float64(r.SourceBytes)
}

// RecordBundle upserts a bundle's identity row. Validation verdict columns
// are owned by RecordValidation and are left alone on conflict.
func (c *Catalog) RecordBundle(ctx context.Context, rec BundleRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO bundles (id, path, title, schema_version, source_fingerprint)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			schema_version = excluded.schema_version,
			source_fingerprint = excluded.source_fingerprint
	`, rec.ID.String(), rec.Path, rec.Title, rec.SchemaVersion, rec.SourceFingerprint)
	if err != nil {
		return fmt.Errorf("record bundle: %w", err)
	}
	return nil
}

// GetBundle returns the record for id, or nil when the catalog has none.
func (c *Catalog) GetBundle(ctx context.Context, id uuid.UUID) (*BundleRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, path, title, schema_version, healthy, last_validated_at, source_fingerprint
		FROM bundles WHERE id = ?
	`, id.String())
	rec, err := scanBundle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bundle: %w", err)
	}
	return &rec, nil
}

// ListBundles returns every known bundle, ordered by title.
func (c *Catalog) ListBundles(ctx context.Context) ([]BundleRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, path, title, schema_version, healthy, last_validated_at, source_fingerprint
		FROM bundles ORDER BY title, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	var out []BundleRecord
	for rows.Next() {
		rec, err := scanBundle(rows)
		if err != nil {
			return nil, fmt.Errorf("list bundles: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	return out, nil
}

// RecordBackup retains a snapshot descriptor. Recording the same backup
// location twice is idempotent.
func (c *Catalog) RecordBackup(ctx context.Context, bundleID uuid.UUID, desc backup.Descriptor, reason string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO backups (bundle_id, path, bundle_name, title, created_at, size_bytes, checksum, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING
	`,
		bundleID.String(),
		desc.Location,
		desc.BundleName,
		desc.Title,
		desc.CreatedAt.UTC().Format(timeLayout),
		desc.SizeBytes,
		desc.Checksum,
		reason,
	)
	if err != nil {
		return fmt.Errorf("record backup: %w", err)
	}
	return nil
}

// ListBackups returns the retained snapshots for a bundle, newest first.
func (c *Catalog) ListBackups(ctx context.Context, bundleID uuid.UUID) ([]BackupRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, bundle_id, path, bundle_name, title, created_at, size_bytes, checksum, reason
		FROM backups WHERE bundle_id = ?
		ORDER BY created_at DESC, id DESC
	`, bundleID.String())
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()
	return collectBackups(rows)
}

// ListAllBackups returns every retained snapshot, newest first.
func (c *Catalog) ListAllBackups(ctx context.Context) ([]BackupRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, bundle_id, path, bundle_name, title, created_at, size_bytes, checksum, reason
		FROM backups ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()
	return collectBackups(rows)
}

// DeleteBackup discards a retained snapshot record. It does not touch the
// snapshot's files; callers remove those separately if the user asked.
func (c *Catalog) DeleteBackup(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete backup: no backup with id %d", id)
	}
	return nil
}

// RecordValidation journals one validation pass and rolls the verdict up
// onto the bundle row, atomically.
func (c *Catalog) RecordValidation(ctx context.Context, bundleID uuid.UUID, runAt time.Time, result health.Result) error {
	issues := result.Issues
	if issues == nil {
		issues = []health.Issue{}
	}
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("record validation: %w", err)
	}
	stamp := runAt.UTC().Format(timeLayout)

	return c.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO validations (bundle_id, run_at, healthy, issue_count, issues, source_bytes, history_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, bundleID.String(), stamp, result.Healthy, len(result.Issues), string(issuesJSON),
			result.SourceBytes, result.HistoryBytes); err != nil {
			return fmt.Errorf("record validation: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE bundles SET healthy = ?, last_validated_at = ? WHERE id = ?
		`, result.Healthy, stamp, bundleID.String()); err != nil {
			return fmt.Errorf("record validation: %w", err)
		}
		return nil
	})
}

// LatestValidation returns the most recent journal row for a bundle, or nil
// when it has never been validated.
func (c *Catalog) LatestValidation(ctx context.Context, bundleID uuid.UUID) (*ValidationRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, bundle_id, run_at, healthy, issue_count, issues, source_bytes, history_bytes
		FROM validations WHERE bundle_id = ?
		ORDER BY run_at DESC, id DESC LIMIT 1
	`, bundleID.String())

	var (
		rec        ValidationRecord
		rawID      string
		rawRunAt   string
		rawIssues  string
		issueCount int
	)
	err := row.Scan(&rec.ID, &rawID, &rawRunAt, &rec.Healthy, &issueCount, &rawIssues,
		&rec.SourceBytes, &rec.HistoryBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest validation: %w", err)
	}
	if rec.BundleID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("latest validation: %w", err)
	}
	if rec.RunAt, err = time.Parse(timeLayout, rawRunAt); err != nil {
		return nil, fmt.Errorf("latest validation: %w", err)
	}
	if err := json.Unmarshal([]byte(rawIssues), &rec.Issues); err != nil {
		return nil, fmt.Errorf("latest validation: %w", err)
	}
	return &rec, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBundle(s scanner) (BundleRecord, error) {
	var (
		rec      BundleRecord
		rawID    string
		healthy  sql.NullBool
		rawStamp sql.NullString
		version  sql.NullInt64
	)
	if err := s.Scan(&rawID, &rec.Path, &rec.Title, &version, &healthy, &rawStamp, &rec.SourceFingerprint); err != nil {
		return BundleRecord{}, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return BundleRecord{}, fmt.Errorf("bundle id: %w", err)
	}
	rec.ID = id
	if version.Valid {
		v := int(version.Int64)
		rec.SchemaVersion = &v
	}
	if healthy.Valid {
		h := healthy.Bool
		rec.Healthy = &h
	}
	if rawStamp.Valid {
		t, err := time.Parse(timeLayout, rawStamp.String)
		if err != nil {
			return BundleRecord{}, fmt.Errorf("last_validated_at: %w", err)
		}
		rec.LastValidatedAt = &t
	}
	return rec, nil
}

func collectBackups(rows *sql.Rows) ([]BackupRecord, error) {
	var out []BackupRecord
	for rows.Next() {
		var (
			rec      BackupRecord
			rawID    string
			rawStamp string
		)
		if err := rows.Scan(&rec.ID, &rawID, &rec.Location, &rec.BundleName, &rec.Title,
			&rawStamp, &rec.SizeBytes, &rec.Checksum, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("backup bundle id: %w", err)
		}
		rec.BundleID = id
		if rec.CreatedAt, err = time.Parse(timeLayout, rawStamp); err != nil {
			return nil, fmt.Errorf("backup created_at: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan backups: %w", err)
	}
	return out, nil
}
