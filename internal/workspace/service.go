// Package workspace orchestrates bundle lifecycle operations: the open-time
// flow (classify, migrate, validate, repair, each risky step preceded by a
// backup) and the individual operations behind the CLI and the editor.
//
// Per-bundle operations are serialized: validation, repair and migration of
// the same bundle read-then-write the same files, so the service holds one
// mutex per bundle path and distinct bundles proceed in parallel. All
// methods are blocking filesystem work; callers dispatch them off any
// interactive thread.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/vellum-editor/vellum/internal/backup"
	"github.com/vellum-editor/vellum/internal/bundle"
	"github.com/vellum-editor/vellum/internal/catalog"
	"github.com/vellum-editor/vellum/internal/health"
	"github.com/vellum-editor/vellum/internal/history"
	"github.com/vellum-editor/vellum/internal/migrate"
	"github.com/vellum-editor/vellum/internal/schema"
)

// Backup reasons recorded in the catalog.
const (
	ReasonMigration = "migration"
	ReasonRepair    = "repair"
	ReasonManual    = "manual"
)

// Service wires the integrity components together behind one per-bundle
// lock. The catalog is optional: with a nil catalog the service still does
// everything except retain records.
type Service struct {
	validator *health.Validator
	repairer  *health.Repairer
	migrator  *migrate.Migrator
	backups   *backup.Service
	catalog   *catalog.Catalog
	clock     bundle.Clock

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New builds a service around the given replication engine and clock.
// cat may be nil.
func New(engine history.Engine, clock bundle.Clock, cat *catalog.Catalog) *Service {
	return &Service{
		validator: health.NewValidator(engine),
		repairer:  health.NewRepairer(engine, clock),
		migrator:  migrate.New(clock),
		backups:   backup.NewService(clock),
		catalog:   cat,
		clock:     clock,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Catalog returns the service's catalog, nil when none was wired in.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// bundleLock returns the mutex serializing operations on one bundle path.
func (s *Service) bundleLock(path string) *sync.Mutex {
	key := filepath.Clean(path)
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// Validate runs one validation pass and records the outcome in the catalog.
func (s *Service) Validate(ctx context.Context, path string) (health.Result, error) {
	lock := s.bundleLock(path)
	lock.Lock()
	defer lock.Unlock()

	b := bundle.At(path)
	result, err := s.validator.Validate(ctx, b)
	if err != nil {
		return health.Result{}, err
	}
	s.record(ctx, b, &result)
	return result, nil
}

// RepairReport is the outcome of a repair entry point: the safety snapshot
// taken first, then what repair did.
type RepairReport struct {
	Backup backup.Descriptor   `json:"backup"`
	Result health.RepairResult `json:"result"`
}

// Repair snapshots the bundle, runs the repair sequence, and records the
// post-repair validation in the catalog.
func (s *Service) Repair(ctx context.Context, path string) (RepairReport, error) {
	lock := s.bundleLock(path)
	lock.Lock()
	defer lock.Unlock()
	return s.repairLocked(ctx, bundle.At(path))
}

func (s *Service) repairLocked(ctx context.Context, b bundle.Bundle) (RepairReport, error) {
	desc, err := s.backups.Backup(ctx, b)
	if err != nil {
		return RepairReport{}, fmt.Errorf("backup before repair: %w", err)
	}
	s.retainBackup(ctx, b, desc, ReasonRepair)

	result, err := s.repairer.Repair(ctx, b)
	if err != nil {
		return RepairReport{Backup: desc}, err
	}
	s.record(ctx, b, nil)
	return RepairReport{Backup: desc, Result: result}, nil
}

// MigrateReport is the outcome of a migration entry point. Backup is nil
// when the bundle was already current and no snapshot was needed.
type MigrateReport struct {
	Backup *backup.Descriptor `json:"backup,omitempty"`
	Report migrate.Report     `json:"report"`
}

// Migrate brings the bundle to the current schema version, snapshotting
// first when a migration will actually run.
func (s *Service) Migrate(ctx context.Context, path string) (MigrateReport, error) {
	lock := s.bundleLock(path)
	lock.Lock()
	defer lock.Unlock()
	return s.migrateLocked(ctx, bundle.At(path))
}

func (s *Service) migrateLocked(ctx context.Context, b bundle.Bundle) (MigrateReport, error) {
	class, err := s.classify(b)
	if err != nil {
		return MigrateReport{}, err
	}
	if class.Kind == schema.ClassCurrent {
		report, err := s.migrator.Migrate(ctx, b)
		return MigrateReport{Report: report}, err
	}

	desc, err := s.backups.Backup(ctx, b)
	if err != nil {
		return MigrateReport{}, fmt.Errorf("backup before migration: %w", err)
	}
	s.retainBackup(ctx, b, desc, ReasonMigration)

	report, err := s.migrator.Migrate(ctx, b)
	if err != nil {
		return MigrateReport{Backup: &desc}, err
	}
	s.record(ctx, b, nil)
	return MigrateReport{Backup: &desc, Report: report}, nil
}

// Backup takes a user-requested snapshot and retains it in the catalog.
func (s *Service) Backup(ctx context.Context, path string) (backup.Descriptor, error) {
	lock := s.bundleLock(path)
	lock.Lock()
	defer lock.Unlock()

	b := bundle.At(path)
	desc, err := s.backups.Backup(ctx, b)
	if err != nil {
		return backup.Descriptor{}, err
	}
	s.retainBackup(ctx, b, desc, ReasonManual)
	return desc, nil
}

// VerifyBackup checks a snapshot's completeness.
func (s *Service) VerifyBackup(backupPath string) (backup.VerifyReport, error) {
	return s.backups.Verify(backupPath)
}

// Restore replaces the bundle at dest with the backup, all-or-nothing,
// holding the destination's lock for the duration.
func (s *Service) Restore(ctx context.Context, backupPath, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.bundleLock(dest)
	lock.Lock()
	defer lock.Unlock()

	if err := s.backups.Restore(backupPath, dest); err != nil {
		return err
	}
	s.record(ctx, bundle.At(dest), nil)
	return nil
}

// CheckForPartialSync reports whether the bundle carries interrupted-write
// markers. Read-only; no lock needed.
func (s *Service) CheckForPartialSync(path string) bool {
	return health.CheckForPartialSync(bundle.At(path))
}

// classify reads the bundle's stored version. Unreadable or absent metadata
// classifies as legacy; repair is the step that puts a record back.
func (s *Service) classify(b bundle.Bundle) (schema.Classification, error) {
	if !b.Exists() {
		return schema.Classification{}, fmt.Errorf("bundle %s does not exist", b.Path())
	}
	meta, err := b.ReadMetadata()
	if err != nil {
		slog.Warn("metadata unreadable during classification", "bundle", b.Path(), "error", err)
		return schema.Check(nil), nil
	}
	return schema.Check(meta.SchemaVersion), nil
}

// record mirrors the bundle's identity (and optionally a validation result)
// into the catalog. Catalog trouble is logged, never fatal: the registry is
// an index, not an authority.
func (s *Service) record(ctx context.Context, b bundle.Bundle, result *health.Result) {
	if s.catalog == nil {
		return
	}
	meta, err := b.ReadMetadata()
	if err != nil {
		slog.Debug("bundle not recorded, metadata unreadable", "bundle", b.Path(), "error", err)
		return
	}
	rec := catalog.BundleRecord{
		ID:            meta.ID,
		Path:          b.Path(),
		Title:         meta.Title,
		SchemaVersion: meta.SchemaVersion,
	}
	if source, err := b.ReadSource(); err == nil {
		sum := blake2b.Sum256(source)
		rec.SourceFingerprint = fmt.Sprintf("%x", sum)
	}
	if err := s.catalog.RecordBundle(ctx, rec); err != nil {
		slog.Warn("catalog record failed", "bundle", b.Path(), "error", err)
		return
	}
	if result != nil {
		if err := s.catalog.RecordValidation(ctx, meta.ID, s.clock.Now(), *result); err != nil {
			slog.Warn("catalog validation record failed", "bundle", b.Path(), "error", err)
		}
	}
}

// retainBackup stores a snapshot descriptor in the catalog.
func (s *Service) retainBackup(ctx context.Context, b bundle.Bundle, desc backup.Descriptor, reason string) {
	if s.catalog == nil {
		return
	}
	meta, err := b.ReadMetadata()
	if err != nil {
		slog.Debug("backup not retained, metadata unreadable", "bundle", b.Path(), "error", err)
		return
	}
	if err := s.catalog.RecordBundle(ctx, catalog.BundleRecord{
		ID: meta.ID, Path: b.Path(), Title: meta.Title, SchemaVersion: meta.SchemaVersion,
	}); err != nil {
		slog.Warn("catalog record failed", "bundle", b.Path(), "error", err)
		return
	}
	if err := s.catalog.RecordBackup(ctx, meta.ID, desc, reason); err != nil {
		slog.Warn("backup not retained", "bundle", b.Path(), "error", err)
	}
}
