package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hunterjsb/boardbot/internal/engine"
	"github.com/hunterjsb/boardbot/internal/grid"
)

//go:embed migrations/*.sql
var migrations embed.FS

const timeLayout = time.RFC3339Nano

// SQLiteStore persists team state in a single SQLite file
type SQLiteStore struct {
	db *sql.DB
}

var _ engine.Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one writer keeps SQLite free of lock contention and :memory: on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("executing %s: %w", p, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(log.StandardLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// classify marks busy/locked errors as transient so the engine retries them
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", engine.ErrTransient, err)
		}
	}
	return err
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func encodeTiles(tiles []grid.Tile) (string, error) {
	ids := make([]string, len(tiles))
	for i, t := range tiles {
		ids[i] = t.String()
	}
	b, err := json.Marshal(ids)
	return string(b), err
}

func decodeTiles(raw string) ([]grid.Tile, error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decoding explored tiles: %w", err)
	}
	tiles := make([]grid.Tile, 0, len(ids))
	for _, id := range ids {
		t, err := grid.ParseTile(id)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, t)
	}
	return tiles, nil
}

func parseTime(raw string) time.Time {
	t, _ := time.Parse(timeLayout, raw)
	return t
}

// CreateTeam inserts a new team
func (s *SQLiteStore) CreateTeam(ctx context.Context, team engine.Team) error {
	explored, err := encodeTiles(team.Explored)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO teams (name, channel_id, location, explored, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, team.Name, team.ChannelID, team.Location.String(), explored, team.CreatedAt.UTC().Format(timeLayout))
	if isConstraint(err) {
		return fmt.Errorf("%w: %s", engine.ErrTeamExists, team.Name)
	}
	return classify(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(row rowScanner) (engine.Team, error) {
	var (
		team                        engine.Team
		location, explored, created string
	)
	if err := row.Scan(&team.Name, &team.ChannelID, &location, &explored, &created); err != nil {
		return engine.Team{}, err
	}

	loc, err := grid.ParseTile(location)
	if err != nil {
		return engine.Team{}, err
	}
	team.Location = loc
	if team.Explored, err = decodeTiles(explored); err != nil {
		return engine.Team{}, err
	}
	team.CreatedAt = parseTime(created)
	return team, nil
}

const teamColumns = `name, channel_id, location, explored, created_at`

// GetTeam looks a team up by name, case-insensitively
func (s *SQLiteStore) GetTeam(ctx context.Context, name string) (engine.Team, error) {
	team, err := scanTeam(s.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return team, fmt.Errorf("%w: %s", engine.ErrTeamNotFound, name)
	}
	return team, classify(err)
}

// TeamByChannel looks a team up by its channel
func (s *SQLiteStore) TeamByChannel(ctx context.Context, channelID string) (engine.Team, error) {
	team, err := scanTeam(s.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE channel_id = ? AND channel_id != '' LIMIT 1`, channelID))
	if errors.Is(err, sql.ErrNoRows) {
		return team, fmt.Errorf("%w: no team for this channel", engine.ErrTeamNotFound)
	}
	return team, classify(err)
}

// ListTeams returns every team ordered by name
func (s *SQLiteStore) ListTeams(ctx context.Context) ([]engine.Team, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY name`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var teams []engine.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, classify(rows.Err())
}

// SetLocation writes the location and explored set in one statement
func (s *SQLiteStore) SetLocation(ctx context.Context, name string, tile grid.Tile, explored []grid.Tile) error {
	enc, err := encodeTiles(explored)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE teams SET location = ?, explored = ? WHERE name = ?`, tile.String(), enc, name)
	if err != nil {
		return classify(err)
	}
	return requireRow(res, name)
}

func requireRow(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", engine.ErrTeamNotFound, name)
	}
	return nil
}

// GetEventProgress returns the progress record, NotStarted when absent
func (s *SQLiteStore) GetEventProgress(ctx context.Context, name string, tile grid.Tile, slot int) (engine.Progress, error) {
	p := engine.Progress{Team: name, Tile: tile, Slot: slot, Status: engine.NotStarted}

	var status, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT screenshots, items, status, updated_at
		FROM event_progress
		WHERE team = ? AND tile = ? AND slot = ?
	`, name, tile.String(), slot).Scan(&p.Screenshots, &p.Items, &status, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, classify(err)
	}
	p.Status = engine.SlotStatus(status)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// SetEventProgress upserts the progress record and inserts awarded in one transaction
func (s *SQLiteStore) SetEventProgress(ctx context.Context, p engine.Progress, awarded *engine.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertProgress(ctx, tx, p); err != nil {
		return err
	}
	if awarded != nil {
		if err := insertItem(ctx, tx, *awarded); err != nil {
			return err
		}
	}
	return classify(tx.Commit())
}

func upsertProgress(ctx context.Context, tx *sql.Tx, p engine.Progress) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO event_progress (team, tile, slot, screenshots, items, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (team, tile, slot) DO UPDATE SET
			screenshots = excluded.screenshots,
			items = excluded.items,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, p.Team, p.Tile.String(), p.Slot, p.Screenshots, p.Items, string(p.Status), p.UpdatedAt.UTC().Format(timeLayout))
	if isConstraint(err) {
		return fmt.Errorf("%w: %s", engine.ErrTeamNotFound, p.Team)
	}
	return classify(err)
}

func insertItem(ctx context.Context, tx *sql.Tx, it engine.Item) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO items (id, team, kind, name, description, one_off, consumed, tile, slot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.Team, string(it.Kind), it.Name, it.Description, boolInt(it.OneOff), boolInt(it.Consumed),
		it.Tile.String(), it.Slot, it.CreatedAt.UTC().Format(timeLayout))
	return classify(err)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ListItems returns a team's items in the order they were awarded
func (s *SQLiteStore) ListItems(ctx context.Context, team string, includeConsumed bool) ([]engine.Item, error) {
	query := `
		SELECT id, team, kind, name, description, one_off, consumed, tile, slot, created_at
		FROM items
		WHERE team = ?`
	if !includeConsumed {
		query += ` AND consumed = 0`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, team)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var items []engine.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, classify(rows.Err())
}

func scanItem(row rowScanner) (engine.Item, error) {
	var (
		it                  engine.Item
		kind, tile, created string
		oneOff, consumed    int
	)
	if err := row.Scan(&it.ID, &it.Team, &kind, &it.Name, &it.Description, &oneOff, &consumed, &tile, &it.Slot, &created); err != nil {
		return it, err
	}
	t, err := grid.ParseTile(tile)
	if err != nil {
		return it, err
	}
	it.Kind = engine.ItemKind(kind)
	it.OneOff = oneOff == 1
	it.Consumed = consumed == 1
	it.Tile = t
	it.CreatedAt = parseTime(created)
	return it, nil
}

// ConsumeItem marks an unconsumed item as used
func (s *SQLiteStore) ConsumeItem(ctx context.Context, team, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET consumed = 1 WHERE id = ? AND team = ? AND consumed = 0`, id, team)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", engine.ErrItemNotFound, id)
	}
	return nil
}

// ResetTeam moves the team to start and deletes its progress and items
func (s *SQLiteStore) ResetTeam(ctx context.Context, name string, start grid.Tile) error {
	explored, err := encodeTiles([]grid.Tile{start})
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE teams SET location = ?, explored = ? WHERE name = ?`, start.String(), explored, name)
	if err != nil {
		return classify(err)
	}
	if err := requireRow(res, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM event_progress WHERE team = ?`, name); err != nil {
		return classify(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE team = ?`, name); err != nil {
		return classify(err)
	}
	return classify(tx.Commit())
}
