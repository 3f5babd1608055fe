package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/audit/internal/domain"
)

//go:embed schema.sql
var schema string

// SQLite keeps the log in a sqlite table ordered by an autoincrement
// sequence column. Each append reads the newest row and inserts the next
// one in a single BEGIN IMMEDIATE transaction, which takes the database
// write lock up front and so excludes other processes for its duration.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at dbPath and applies the schema.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectVersion = `
	SELECT id, created_at, content, old_length, new_length, added_words, removed_words
	FROM versions`

func (s *SQLite) Load(ctx context.Context) ([]domain.Version, error) {
	rows, err := s.db.QueryContext(ctx, selectVersion+` ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := []domain.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}

	return versions, nil
}

func (s *SQLite) Append(ctx context.Context, build BuildFunc) (domain.Version, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Version{}, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var last *domain.Version
	prev, err := scanVersion(tx.QueryRowContext(ctx, selectVersion+` ORDER BY seq DESC LIMIT 1`))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return domain.Version{}, 0, err
	default:
		last = &prev
	}

	v := build(last)

	added, err := json.Marshal(v.AddedWords)
	if err != nil {
		return domain.Version{}, 0, fmt.Errorf("encode added words: %w", err)
	}
	removed, err := json.Marshal(v.RemovedWords)
	if err != nil {
		return domain.Version{}, 0, fmt.Errorf("encode removed words: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO versions (id, created_at, content, old_length, new_length, added_words, removed_words)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Timestamp.UTC().Format(time.RFC3339Nano), v.Content, v.OldLength, v.NewLength, string(added), string(removed),
	)
	if err != nil {
		return domain.Version{}, 0, fmt.Errorf("insert version: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM versions`).Scan(&count); err != nil {
		return domain.Version{}, 0, fmt.Errorf("count versions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Version{}, 0, fmt.Errorf("commit: %w", err)
	}
	return v, count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanVersion decodes one row of selectVersion. sql.ErrNoRows and context
// errors are passed through; any other failure is domain.ErrStorageCorrupt.
func scanVersion(row scanner) (domain.Version, error) {
	var (
		v              domain.Version
		createdAt      string
		added, removed string
	)
	if err := row.Scan(&v.ID, &createdAt, &v.Content, &v.OldLength, &v.NewLength, &added, &removed); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return v, err
		}
		return v, fmt.Errorf("scan version: %w: %v", domain.ErrStorageCorrupt, err)
	}

	var err error
	v.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return v, fmt.Errorf("version %s timestamp: %w: %v", v.ID, domain.ErrStorageCorrupt, err)
	}
	if err := json.Unmarshal([]byte(added), &v.AddedWords); err != nil {
		return v, fmt.Errorf("version %s added words: %w: %v", v.ID, domain.ErrStorageCorrupt, err)
	}
	if err := json.Unmarshal([]byte(removed), &v.RemovedWords); err != nil {
		return v, fmt.Errorf("version %s removed words: %w: %v", v.ID, domain.ErrStorageCorrupt, err)
	}
	return v, nil
}
