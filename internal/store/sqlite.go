package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/placerank/internal/model"
)

// sqliteTime is fixed width so stored timestamps sort lexically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS rank_checks (
	id              TEXT PRIMARY KEY,
	keyword         TEXT NOT NULL,
	found           INTEGER NOT NULL DEFAULT 0,
	rank            INTEGER NOT NULL DEFAULT 0,
	place_id        TEXT NOT NULL DEFAULT '',
	place_name      TEXT NOT NULL DEFAULT '',
	n1              REAL NOT NULL DEFAULT 0,
	n2              REAL NOT NULL DEFAULT 0,
	n3              REAL NOT NULL DEFAULT 0,
	visitor_reviews INTEGER NOT NULL DEFAULT 0,
	blog_reviews    INTEGER NOT NULL DEFAULT 0,
	total_biz       INTEGER NOT NULL DEFAULT 0,
	is_ad           INTEGER NOT NULL DEFAULT 0,
	matched_by      TEXT NOT NULL DEFAULT '',
	target          TEXT NOT NULL DEFAULT '{}',
	checked_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS discovery_reports (
	id         TEXT PRIMARY KEY,
	place_url  TEXT NOT NULL,
	place_id   TEXT NOT NULL,
	place_name TEXT NOT NULL,
	place      TEXT NOT NULL,
	stats      TEXT NOT NULL,
	keywords   TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS competitor_snapshots (
	id         TEXT PRIMARY KEY,
	keyword    TEXT NOT NULL,
	platform   TEXT NOT NULL,
	total_biz  INTEGER NOT NULL DEFAULT 0,
	sellers    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rank_checks_keyword_checked ON rank_checks(keyword, checked_at);
CREATE INDEX IF NOT EXISTS idx_discovery_reports_created ON discovery_reports(created_at);
CREATE INDEX IF NOT EXISTS idx_competitor_snapshots_keyword ON competitor_snapshots(keyword);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendCheck(ctx context.Context, r *model.RankCheckResult) error {
	stamp(&r.ID, &r.CheckedAt)
	targetJSON, err := json.Marshal(r.Target)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal target")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rank_checks (id, keyword, found, rank, place_id, place_name, n1, n2, n3,
			visitor_reviews, blog_reviews, total_biz, is_ad, matched_by, target, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Keyword, r.Found, r.Rank, r.PlaceID, r.PlaceName, r.N1, r.N2, r.N3,
		r.VisitorReviews, r.BlogReviews, r.TotalCompetitorCount, r.IsAd, string(r.MatchedBy),
		string(targetJSON), r.CheckedAt.UTC().Format(sqliteTime),
	)
	return eris.Wrap(err, "sqlite: insert rank check")
}

func (s *SQLiteStore) QueryChecks(ctx context.Context, keyword string, since time.Time) ([]model.RankCheckResult, error) {
	query := `SELECT id, keyword, found, rank, place_id, place_name, n1, n2, n3,
		visitor_reviews, blog_reviews, total_biz, is_ad, matched_by, target, checked_at
		FROM rank_checks WHERE checked_at >= ?`
	args := []any{since.UTC().Format(sqliteTime)}
	if keyword != "" {
		query += ` AND keyword = ?`
		args = append(args, keyword)
	}
	query += ` ORDER BY checked_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query rank checks")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.RankCheckResult{}
	for rows.Next() {
		var (
			r          model.RankCheckResult
			matchedBy  string
			targetJSON string
			checkedAt  string
		)
		if err := rows.Scan(&r.ID, &r.Keyword, &r.Found, &r.Rank, &r.PlaceID, &r.PlaceName,
			&r.N1, &r.N2, &r.N3, &r.VisitorReviews, &r.BlogReviews, &r.TotalCompetitorCount,
			&r.IsAd, &matchedBy, &targetJSON, &checkedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rank check")
		}
		r.MatchedBy = model.MatchRule(matchedBy)
		if err := json.Unmarshal([]byte(targetJSON), &r.Target); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal target")
		}
		if r.CheckedAt, err = time.Parse(sqliteTime, checkedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse checked_at")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query rank checks iterate")
}

func (s *SQLiteStore) DeleteCheck(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rank_checks WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete rank check %s", id)
	}
	return checkRowsAffected(res, "rank check", id)
}

func (s *SQLiteStore) AppendDiscovery(ctx context.Context, r *model.DiscoveryReport) error {
	stamp(&r.ID, &r.CreatedAt)
	placeJSON, statsJSON, keywordsJSON, err := marshalDiscovery(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal discovery")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO discovery_reports (id, place_url, place_id, place_name, place, stats, keywords, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PlaceURL, r.Place.ID, r.Place.Name, string(placeJSON), string(statsJSON),
		string(keywordsJSON), r.CreatedAt.UTC().Format(sqliteTime),
	)
	return eris.Wrap(err, "sqlite: insert discovery report")
}

func (s *SQLiteStore) ListDiscoveries(ctx context.Context, limit int) ([]model.DiscoveryReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, place_url, place, stats, keywords, created_at
		FROM discovery_reports ORDER BY created_at DESC LIMIT ?`,
		discoveryLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list discovery reports")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.DiscoveryReport{}
	for rows.Next() {
		var (
			r                         model.DiscoveryReport
			place, stats, kws, create string
		)
		if err := rows.Scan(&r.ID, &r.PlaceURL, &place, &stats, &kws, &create); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan discovery report")
		}
		if err := unmarshalDiscovery(&r, []byte(place), []byte(stats), []byte(kws)); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal discovery report")
		}
		if r.CreatedAt, err = time.Parse(sqliteTime, create); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse created_at")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list discovery reports iterate")
}

func (s *SQLiteStore) AppendSnapshot(ctx context.Context, snap *model.CompetitorSnapshot) error {
	stamp(&snap.ID, &snap.CreatedAt)
	sellers, err := json.Marshal(snap.Competitors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal competitors")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO competitor_snapshots (id, keyword, platform, total_biz, sellers, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Keyword, snap.Platform, snap.Total, string(sellers),
		snap.CreatedAt.UTC().Format(sqliteTime),
	)
	return eris.Wrap(err, "sqlite: insert competitor snapshot")
}

// checkRowsAffected returns ErrNotFound when an update or delete touched
// nothing.
func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func marshalDiscovery(r *model.DiscoveryReport) (place, stats, keywords []byte, err error) {
	if place, err = json.Marshal(r.Place); err != nil {
		return nil, nil, nil, err
	}
	if stats, err = json.Marshal(r.Stats); err != nil {
		return nil, nil, nil, err
	}
	if keywords, err = json.Marshal(r.Keywords); err != nil {
		return nil, nil, nil, err
	}
	return place, stats, keywords, nil
}

func unmarshalDiscovery(r *model.DiscoveryReport, place, stats, keywords []byte) error {
	if err := json.Unmarshal(place, &r.Place); err != nil {
		return err
	}
	if err := json.Unmarshal(stats, &r.Stats); err != nil {
		return err
	}
	return json.Unmarshal(keywords, &r.Keywords)
}
