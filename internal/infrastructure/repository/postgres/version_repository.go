package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

// Session-scoped advisory lock key shared by every retrain process.
const retrainLockKey = int64(2026083002)

type VersionRepository struct {
	db *sql.DB
}

func NewVersionRepository(db *sql.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// AcquireRetrainLock takes the retrain advisory lock on a dedicated
// connection. Session locks live as long as their connection, so the
// connection is pinned until the release func runs.
func (r *VersionRepository) AcquireRetrainLock(ctx context.Context) (func(), error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, retrainLockKey).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("try retrain lock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, domain.WrapError(domain.ErrTemporary, "acquire retrain lock",
			errors.New("another retraining run holds the lock"))
	}

	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, retrainLockKey)
		_ = conn.Close()
	}
	return release, nil
}

func (r *VersionRepository) Active(ctx context.Context) (*domain.ModelVersion, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT version, path, remote_ref, active, created_at
FROM model_versions
WHERE active
ORDER BY created_at DESC
LIMIT 1
`)

	var version domain.ModelVersion
	var remoteRef sql.NullString
	err := row.Scan(&version.Version, &version.Path, &remoteRef, &version.Active, &version.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active version: %w", err)
	}
	version.RemoteRef = remoteRef.String
	return &version, nil
}

// Activate records the new version and flips the active pointer to it in one
// transaction, so readers always see exactly one active version.
func (r *VersionRepository) Activate(ctx context.Context, version domain.ModelVersion) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `UPDATE model_versions SET active = FALSE WHERE active`); err != nil {
		return fmt.Errorf("deactivate previous versions: %w", err)
	}

	createdAt := version.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO model_versions (version, path, remote_ref, active, created_at)
VALUES ($1,$2,$3,TRUE,$4)
ON CONFLICT (version) DO UPDATE SET path = EXCLUDED.path, active = TRUE
`, version.Version, version.Path, nullableString(version.RemoteRef), createdAt)
	if err != nil {
		return fmt.Errorf("insert model version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate tx: %w", err)
	}
	return nil
}

func (r *VersionRepository) SetRemoteRef(ctx context.Context, version, remoteRef string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE model_versions SET remote_ref = $2 WHERE version = $1
`, version, remoteRef)
	if err != nil {
		return fmt.Errorf("set remote ref: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set remote ref rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "set remote ref", fmt.Errorf("version %s", version))
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
