package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/evanschultz/brainboard/internal/app"
	"github.com/evanschultz/brainboard/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

const (
	metaVision    = "vision"
	metaExtraJSON = "extra_json"
	metaSavedAt   = "saved_at"
)

var memoryDBSeq atomic.Int64

// Repository stores the board snapshot in sqlite.
type Repository struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	dsn := fmt.Sprintf("file:brainboard-mem-%d?mode=memory&cache=shared", memoryDBSeq.Add(1))
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	repo := &Repository{db: db, clock: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS board_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS phases (
			name TEXT PRIMARY KEY,
			position INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS features (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			user_problem TEXT NOT NULL DEFAULT '',
			key_components_json TEXT NOT NULL DEFAULT '[]',
			phase TEXT NOT NULL,
			tags_json TEXT NOT NULL DEFAULT '[]',
			extra_json TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_features_position ON features(position);`,
		`CREATE INDEX IF NOT EXISTS idx_phases_position ON phases(position);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// SaveBoard replaces the stored snapshot in one transaction.
func (r *Repository) SaveBoard(ctx context.Context, board domain.Board) (err error) {
	extraRaw, err := encodeExtra(board.Extra)
	if err != nil {
		return fmt.Errorf("encode board extra_json: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{`DELETE FROM features`, `DELETE FROM phases`, `DELETE FROM board_meta`} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	meta := [][2]string{
		{metaVision, board.Vision},
		{metaExtraJSON, extraRaw},
		{metaSavedAt, r.clock().UTC().Format(time.RFC3339Nano)},
	}
	for _, kv := range meta {
		if _, err = tx.ExecContext(ctx, `INSERT INTO board_meta(key, value) VALUES(?, ?)`, kv[0], kv[1]); err != nil {
			return err
		}
	}

	for pos, name := range board.Phases {
		if _, err = tx.ExecContext(ctx, `INSERT INTO phases(name, position) VALUES(?, ?)`, name, pos); err != nil {
			return err
		}
	}

	for pos, f := range board.Features {
		if err = insertFeature(ctx, tx, pos, f); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// LoadBoard reads the stored snapshot. It returns app.ErrNotFound when no
// board has been saved.
func (r *Repository) LoadBoard(ctx context.Context) (domain.Board, error) {
	meta, err := r.loadMeta(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	vision, ok := meta[metaVision]
	if !ok {
		return domain.Board{}, app.ErrNotFound
	}

	phases, err := r.loadPhases(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	features, err := r.loadFeatures(ctx)
	if err != nil {
		return domain.Board{}, err
	}

	board, err := domain.NewBoard(vision, features, phases)
	if err != nil {
		return domain.Board{}, fmt.Errorf("decode stored board: %w", err)
	}
	board.Extra, err = decodeExtra(meta[metaExtraJSON])
	if err != nil {
		return domain.Board{}, fmt.Errorf("decode board extra_json: %w", err)
	}
	return board, nil
}

// SavedAt reports when the snapshot was last written.
func (r *Repository) SavedAt(ctx context.Context) (time.Time, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM board_meta WHERE key = ?`, metaSavedAt).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, app.ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return parseTS(raw), nil
}

func (r *Repository) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM board_meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (r *Repository) loadPhases(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM phases ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *Repository) loadFeatures(ctx context.Context) ([]domain.Feature, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, user_problem, key_components_json, phase, tags_json, extra_json
		FROM features
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Feature, 0)
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func insertFeature(ctx context.Context, execer execerContext, pos int, f domain.Feature) error {
	componentsRaw, err := json.Marshal(nonNil(f.KeyComponents))
	if err != nil {
		return fmt.Errorf("encode feature key_components_json: %w", err)
	}
	tagsRaw, err := json.Marshal(nonNil(f.Tags))
	if err != nil {
		return fmt.Errorf("encode feature tags_json: %w", err)
	}
	extraRaw, err := encodeExtra(f.Extra)
	if err != nil {
		return fmt.Errorf("encode feature extra_json: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO features(id, position, title, description, user_problem, key_components_json, phase, tags_json, extra_json)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, pos, f.Title, f.Description, f.UserProblem, string(componentsRaw), f.Phase, string(tagsRaw), extraRaw)
	return err
}

// scanFeature handles scan feature.
func scanFeature(s scanner) (domain.Feature, error) {
	var (
		in            domain.FeatureInput
		componentsRaw string
		tagsRaw       string
		extraRaw      string
	)
	if err := s.Scan(&in.ID, &in.Title, &in.Description, &in.UserProblem, &componentsRaw, &in.Phase, &tagsRaw, &extraRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Feature{}, app.ErrNotFound
		}
		return domain.Feature{}, err
	}
	if err := decodeList(componentsRaw, &in.KeyComponents); err != nil {
		return domain.Feature{}, fmt.Errorf("decode feature key_components_json: %w", err)
	}
	if err := decodeList(tagsRaw, &in.Tags); err != nil {
		return domain.Feature{}, fmt.Errorf("decode feature tags_json: %w", err)
	}
	extra, err := decodeExtra(extraRaw)
	if err != nil {
		return domain.Feature{}, fmt.Errorf("decode feature extra_json: %w", err)
	}
	in.Extra = extra
	return domain.NewFeature(in)
}

func decodeList(raw string, out *[]string) error {
	if strings.TrimSpace(raw) == "" {
		raw = "[]"
	}
	return json.Unmarshal([]byte(raw), out)
}

func encodeExtra(extra map[string]json.RawMessage) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeExtra(raw string) (map[string]json.RawMessage, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// parseTS parses a stored timestamp, returning the zero time on failure.
func parseTS(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
