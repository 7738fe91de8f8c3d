// Package audit persists verification outcomes to SQLite for later
// inspection. Query text is never stored, only its SHA-256 hash.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/danielpatrickdp/cag-verifier/internal/pipeline"
	"github.com/danielpatrickdp/cag-verifier/internal/revise"
	"github.com/danielpatrickdp/cag-verifier/internal/router"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS verifications (
	id             TEXT PRIMARY KEY,
	request_id     TEXT NOT NULL,
	query_hash     TEXT NOT NULL,
	decision       TEXT NOT NULL,
	confidence     REAL NOT NULL,
	requires_human INTEGER NOT NULL,
	stages         INTEGER NOT NULL,
	processing_ms  REAL NOT NULL,
	issues_json    TEXT NOT NULL,
	revisions_json TEXT NOT NULL,
	reason         TEXT,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verifications_created ON verifications(created_at);
CREATE INDEX IF NOT EXISTS idx_verifications_decision ON verifications(decision);
`
// #endregion schema

// timeLayout is RFC 3339 with a fixed-width fraction so stored timestamps
// sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("verification not found")

// ErrAmbiguousID is returned by Get when an id prefix matches several entries.
var ErrAmbiguousID = errors.New("id prefix matches more than one verification")

// #region types

// Entry is one stored verification.
type Entry struct {
	ID            string            `json:"id"`
	RequestID     string            `json:"requestId"`
	QueryHash     string            `json:"queryHash"`
	Decision      router.Decision   `json:"decision"`
	Confidence    float64           `json:"confidence"`
	RequiresHuman bool              `json:"requiresHuman"`
	Stages        int               `json:"stagesCompleted"`
	ProcessingMs  float64           `json:"processingTimeMs"`
	Issues        []check.Issue     `json:"issues"`
	Revisions     []revise.Revision `json:"revisions"`
	Reason        string            `json:"reason,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Store is a pipeline.Recorder backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ pipeline.Recorder = (*Store)(nil)

// #endregion types

// #region constructor

// Open opens (or creates) the audit database at path and migrates it.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps :memory: databases coherent and serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, logger: logger.Named("audit")}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region record

// Record stores res. The query is reduced to its hash before it touches disk.
func (s *Store) Record(ctx context.Context, query string, res pipeline.Result) error {
	issues, err := json.Marshal(nonNilIssues(res.Issues))
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	revisions, err := json.Marshal(nonNilRevisions(res.Revisions))
	if err != nil {
		return fmt.Errorf("marshal revisions: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verifications (id, request_id, query_hash, decision, confidence, requires_human, stages,
		 processing_ms, issues_json, revisions_json, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		res.ID,
		HashQuery(query),
		res.Decision.String(),
		res.Confidence,
		boolToInt(res.RequiresHuman),
		res.StagesCompleted,
		res.ProcessingTimeMs,
		string(issues),
		string(revisions),
		nullIfEmpty(res.Reason),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record verification: %w", err)
	}
	s.logger.Debug("recorded", zap.String("id", id), zap.String("request_id", res.ID))
	return nil
}

// #endregion record

// #region queries

const selectColumns = `SELECT id, request_id, query_hash, decision, confidence, requires_human, stages,
	processing_ms, issues_json, revisions_json, reason, created_at FROM verifications`

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent: %w", err)
	}
	return out, nil
}

// Get returns the entry whose stored id is id or starts with it, so the
// shortened ids shown in listings resolve. A prefix shared by several
// entries is ErrAmbiguousID.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	if id == "" {
		return Entry{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE substr(id, 1, length(?)) = ? ORDER BY id LIMIT 2`, id, id)
	if err != nil {
		return Entry{}, fmt.Errorf("query verification: %w", err)
	}
	defer rows.Close()

	var found []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return Entry{}, err
		}
		found = append(found, e)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, fmt.Errorf("iterate verification: %w", err)
	}
	switch len(found) {
	case 0:
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return found[0], nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
}

// CountByDecision returns the number of stored entries per decision name.
func (s *Store) CountByDecision(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT decision, COUNT(*) FROM verifications GROUP BY decision`)
	if err != nil {
		return nil, fmt.Errorf("count by decision: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[d] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                 Entry
		decision, created string
		issues, revisions string
		human             int
		reason            sql.NullString
	)
	err := row.Scan(&e.ID, &e.RequestID, &e.QueryHash, &decision, &e.Confidence, &human, &e.Stages,
		&e.ProcessingMs, &issues, &revisions, &reason, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan verification: %w", err)
	}
	if e.Decision, err = router.ParseDecision(decision); err != nil {
		return Entry{}, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(issues), &e.Issues); err != nil {
		return Entry{}, fmt.Errorf("entry %s issues: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(revisions), &e.Revisions); err != nil {
		return Entry{}, fmt.Errorf("entry %s revisions: %w", e.ID, err)
	}
	if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Entry{}, fmt.Errorf("entry %s created_at: %w", e.ID, err)
	}
	e.RequiresHuman = human != 0
	e.Reason = reason.String
	return e, nil
}

// #endregion queries

// #region helpers

// HashQuery returns the hex SHA-256 of query.
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNilIssues(is []check.Issue) []check.Issue {
	if is == nil {
		return []check.Issue{}
	}
	return is
}

func nonNilRevisions(rs []revise.Revision) []revise.Revision {
	if rs == nil {
		return []revise.Revision{}
	}
	return rs
}

// #endregion helpers
