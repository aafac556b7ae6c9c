// Package store persists rank checks, discovery reports and competitor
// snapshots. SQLite is the default backend; Postgres is used for shared
// deployments.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/placerank/internal/config"
	"github.com/sells-group/placerank/internal/model"
)

const (
	defaultSQLitePath     = "placerank.db"
	defaultDiscoveryLimit = 20
)

// ErrNotFound is returned when a record addressed by ID does not exist.
var ErrNotFound = eris.New("store: not found")

// Store is the result sink. Append operations assign ID (and CreatedAt or
// CheckedAt when zero) on the passed record.
type Store interface {
	// Rank checks
	AppendCheck(ctx context.Context, r *model.RankCheckResult) error
	QueryChecks(ctx context.Context, keyword string, since time.Time) ([]model.RankCheckResult, error)
	DeleteCheck(ctx context.Context, id string) error

	// Discovery reports
	AppendDiscovery(ctx context.Context, r *model.DiscoveryReport) error
	ListDiscoveries(ctx context.Context, limit int) ([]model.DiscoveryReport, error)

	// Competitor snapshots
	AppendSnapshot(ctx context.Context, s *model.CompetitorSnapshot) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the configured backend and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "sqlite", "":
		path := cfg.DatabaseURL
		if path == "" {
			path = defaultSQLitePath
		}
		s, err = NewSQLite(path)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func discoveryLimit(limit int) int {
	if limit <= 0 {
		return defaultDiscoveryLimit
	}
	return limit
}

func stamp(id *string, at *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if at.IsZero() {
		*at = time.Now().UTC()
	}
}
