package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/placerank/internal/db"
	"github.com/sells-group/placerank/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.NewPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS rank_checks (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	keyword         TEXT NOT NULL,
	found           BOOLEAN NOT NULL DEFAULT false,
	rank            INTEGER NOT NULL DEFAULT 0,
	place_id        TEXT NOT NULL DEFAULT '',
	place_name      TEXT NOT NULL DEFAULT '',
	n1              DOUBLE PRECISION NOT NULL DEFAULT 0,
	n2              DOUBLE PRECISION NOT NULL DEFAULT 0,
	n3              DOUBLE PRECISION NOT NULL DEFAULT 0,
	visitor_reviews INTEGER NOT NULL DEFAULT 0,
	blog_reviews    INTEGER NOT NULL DEFAULT 0,
	total_biz       INTEGER NOT NULL DEFAULT 0,
	is_ad           BOOLEAN NOT NULL DEFAULT false,
	matched_by      TEXT NOT NULL DEFAULT '',
	target          JSONB NOT NULL DEFAULT '{}',
	checked_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rank_checks_keyword_checked ON rank_checks(keyword, checked_at DESC);

CREATE TABLE IF NOT EXISTS discovery_reports (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	place_url  TEXT NOT NULL,
	place_id   TEXT NOT NULL,
	place_name TEXT NOT NULL,
	place      JSONB NOT NULL,
	stats      JSONB NOT NULL,
	keywords   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_discovery_reports_created ON discovery_reports(created_at DESC);

CREATE TABLE IF NOT EXISTS competitor_snapshots (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	keyword    TEXT NOT NULL,
	platform   TEXT NOT NULL,
	total_biz  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS competitor_entries (
	snapshot_id       TEXT NOT NULL REFERENCES competitor_snapshots(id) ON DELETE CASCADE,
	rank              INTEGER NOT NULL,
	place_id          TEXT NOT NULL,
	name              TEXT NOT NULL,
	tel               TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	category          TEXT[] NOT NULL DEFAULT '{}',
	review_count      INTEGER NOT NULL DEFAULT 0,
	blog_review_count INTEGER NOT NULL DEFAULT 0,
	rating            DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_ad             BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (snapshot_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_competitor_snapshots_keyword ON competitor_snapshots(keyword, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_competitor_entries_place ON competitor_entries(place_id);
`

var competitorColumns = []string{
	"snapshot_id", "rank", "place_id", "name", "tel", "address", "category",
	"review_count", "blog_review_count", "rating", "is_ad",
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) AppendCheck(ctx context.Context, r *model.RankCheckResult) error {
	stamp(&r.ID, &r.CheckedAt)
	targetJSON, err := json.Marshal(r.Target)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal target")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rank_checks (id, keyword, found, rank, place_id, place_name, n1, n2, n3,
			visitor_reviews, blog_reviews, total_biz, is_ad, matched_by, target, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, r.Keyword, r.Found, r.Rank, r.PlaceID, r.PlaceName, r.N1, r.N2, r.N3,
		r.VisitorReviews, r.BlogReviews, r.TotalCompetitorCount, r.IsAd, string(r.MatchedBy),
		targetJSON, r.CheckedAt,
	)
	return eris.Wrap(err, "postgres: insert rank check")
}

func (s *PostgresStore) QueryChecks(ctx context.Context, keyword string, since time.Time) ([]model.RankCheckResult, error) {
	query := `SELECT id, keyword, found, rank, place_id, place_name, n1, n2, n3,
		visitor_reviews, blog_reviews, total_biz, is_ad, matched_by, target, checked_at
		FROM rank_checks WHERE checked_at >= $1`
	args := []any{since}
	if keyword != "" {
		query += fmt.Sprintf(` AND keyword = $%d`, len(args)+1)
		args = append(args, keyword)
	}
	query += ` ORDER BY checked_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query rank checks")
	}
	defer rows.Close()

	out := []model.RankCheckResult{}
	for rows.Next() {
		var (
			r          model.RankCheckResult
			matchedBy  string
			targetJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.Keyword, &r.Found, &r.Rank, &r.PlaceID, &r.PlaceName,
			&r.N1, &r.N2, &r.N3, &r.VisitorReviews, &r.BlogReviews, &r.TotalCompetitorCount,
			&r.IsAd, &matchedBy, &targetJSON, &r.CheckedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rank check")
		}
		r.MatchedBy = model.MatchRule(matchedBy)
		if len(targetJSON) > 0 {
			if err := json.Unmarshal(targetJSON, &r.Target); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal target")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: query rank checks iterate")
}

func (s *PostgresStore) DeleteCheck(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rank_checks WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete rank check %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "rank check %s", id)
	}
	return nil
}

func (s *PostgresStore) AppendDiscovery(ctx context.Context, r *model.DiscoveryReport) error {
	stamp(&r.ID, &r.CreatedAt)
	placeJSON, statsJSON, keywordsJSON, err := marshalDiscovery(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal discovery")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO discovery_reports (id, place_url, place_id, place_name, place, stats, keywords, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.PlaceURL, r.Place.ID, r.Place.Name, placeJSON, statsJSON, keywordsJSON, r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert discovery report")
}

func (s *PostgresStore) ListDiscoveries(ctx context.Context, limit int) ([]model.DiscoveryReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, place_url, place, stats, keywords, created_at
		FROM discovery_reports ORDER BY created_at DESC LIMIT $1`,
		discoveryLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list discovery reports")
	}
	defer rows.Close()

	out := []model.DiscoveryReport{}
	for rows.Next() {
		var (
			r                 model.DiscoveryReport
			place, stats, kws []byte
		)
		if err := rows.Scan(&r.ID, &r.PlaceURL, &place, &stats, &kws, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan discovery report")
		}
		if err := unmarshalDiscovery(&r, place, stats, kws); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal discovery report")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list discovery reports iterate")
}

// AppendSnapshot writes the snapshot header and COPYs its rows in one
// transaction.
func (s *PostgresStore) AppendSnapshot(ctx context.Context, snap *model.CompetitorSnapshot) error {
	stamp(&snap.ID, &snap.CreatedAt)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: snapshot: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO competitor_snapshots (id, keyword, platform, total_biz, created_at) VALUES ($1, $2, $3, $4, $5)`,
		snap.ID, snap.Keyword, snap.Platform, snap.Total, snap.CreatedAt,
	); err != nil {
		return eris.Wrap(err, "postgres: insert competitor snapshot")
	}

	rows := make([][]any, 0, len(snap.Competitors))
	for _, c := range snap.Competitors {
		category := c.Category
		if category == nil {
			category = []string{}
		}
		rows = append(rows, []any{
			snap.ID, c.Rank, c.ID, c.Name, c.Phone, c.Address, category,
			c.ReviewCount, c.BlogReviewCount, c.Rating, c.IsAd,
		})
	}
	if _, err := db.CopyFrom(ctx, tx, "competitor_entries", competitorColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: copy competitor entries")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: snapshot: commit")
}
