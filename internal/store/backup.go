package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hunterjsb/boardbot/internal/engine"
	"github.com/hunterjsb/boardbot/internal/grid"
)

// BackupVersion is bumped whenever the dump layout changes
const BackupVersion = 1

// Backup is the full state of every team
type Backup struct {
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exported_at"`
	Teams      []TeamBackup `json:"teams"`
}

// TeamBackup is one team with its progress and items
type TeamBackup struct {
	Name      string           `json:"name"`
	ChannelID string           `json:"channel_id"`
	Location  string           `json:"location"`
	Explored  []string         `json:"explored"`
	CreatedAt time.Time        `json:"created_at"`
	Progress  []ProgressBackup `json:"progress"`
	Items     []ItemBackup     `json:"items"`
}

type ProgressBackup struct {
	Tile        string    `json:"tile"`
	Slot        int       `json:"slot"`
	Screenshots int       `json:"screenshots"`
	Items       int       `json:"items"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ItemBackup struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OneOff      bool      `json:"one_off"`
	Consumed    bool      `json:"consumed"`
	Tile        string    `json:"tile"`
	Slot        int       `json:"slot"`
	CreatedAt   time.Time `json:"created_at"`
}

// Export writes a zstd-compressed JSON dump of every team to w
func (s *SQLiteStore) Export(ctx context.Context, w io.Writer) (int, error) {
	teams, err := s.ListTeams(ctx)
	if err != nil {
		return 0, err
	}

	b := Backup{Version: BackupVersion, ExportedAt: time.Now().UTC()}
	for _, team := range teams {
		tb := TeamBackup{
			Name:      team.Name,
			ChannelID: team.ChannelID,
			Location:  team.Location.String(),
			CreatedAt: team.CreatedAt,
		}
		for _, t := range team.Explored {
			tb.Explored = append(tb.Explored, t.String())
		}
		if tb.Progress, err = s.listProgress(ctx, team.Name); err != nil {
			return 0, err
		}
		items, err := s.ListItems(ctx, team.Name, true)
		if err != nil {
			return 0, err
		}
		for _, it := range items {
			tb.Items = append(tb.Items, ItemBackup{
				ID:          it.ID,
				Kind:        string(it.Kind),
				Name:        it.Name,
				Description: it.Description,
				OneOff:      it.OneOff,
				Consumed:    it.Consumed,
				Tile:        it.Tile.String(),
				Slot:        it.Slot,
				CreatedAt:   it.CreatedAt,
			})
		}
		b.Teams = append(b.Teams, tb)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}
	if err := json.NewEncoder(enc).Encode(b); err != nil {
		_ = enc.Close()
		return 0, fmt.Errorf("encoding backup: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return len(b.Teams), nil
}

func (s *SQLiteStore) listProgress(ctx context.Context, team string) ([]ProgressBackup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tile, slot, screenshots, items, status, updated_at
		FROM event_progress
		WHERE team = ?
		ORDER BY tile, slot
	`, team)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []ProgressBackup
	for rows.Next() {
		var (
			p       ProgressBackup
			updated string
		)
		if err := rows.Scan(&p.Tile, &p.Slot, &p.Screenshots, &p.Items, &p.Status, &updated); err != nil {
			return nil, err
		}
		p.UpdatedAt = parseTime(updated)
		out = append(out, p)
	}
	return out, classify(rows.Err())
}

// ReadBackup decodes a dump written by Export
func ReadBackup(r io.Reader) (Backup, error) {
	var b Backup
	dec, err := zstd.NewReader(r)
	if err != nil {
		return b, err
	}
	defer dec.Close()

	if err := json.NewDecoder(dec).Decode(&b); err != nil {
		return b, fmt.Errorf("decoding backup: %w", err)
	}
	if b.Version != BackupVersion {
		return b, fmt.Errorf("unsupported backup version %d", b.Version)
	}
	return b, nil
}

// Import replaces all stored state with the contents of a dump
func (s *SQLiteStore) Import(ctx context.Context, r io.Reader) (int, error) {
	b, err := ReadBackup(r)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM items`, `DELETE FROM event_progress`, `DELETE FROM teams`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, classify(err)
		}
	}

	for _, tb := range b.Teams {
		team, err := tb.team()
		if err != nil {
			return 0, fmt.Errorf("team %s: %w", tb.Name, err)
		}
		explored, err := encodeTiles(team.Explored)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO teams (name, channel_id, location, explored, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, team.Name, team.ChannelID, team.Location.String(), explored, team.CreatedAt.UTC().Format(timeLayout)); err != nil {
			return 0, classify(err)
		}

		for _, pb := range tb.Progress {
			t, err := grid.ParseTile(pb.Tile)
			if err != nil {
				return 0, fmt.Errorf("team %s: %w", tb.Name, err)
			}
			p := engine.Progress{
				Team:        team.Name,
				Tile:        t,
				Slot:        pb.Slot,
				Screenshots: pb.Screenshots,
				Items:       pb.Items,
				Status:      engine.SlotStatus(pb.Status),
				UpdatedAt:   pb.UpdatedAt,
			}
			if err := upsertProgress(ctx, tx, p); err != nil {
				return 0, err
			}
		}

		for _, ib := range tb.Items {
			t, err := grid.ParseTile(ib.Tile)
			if err != nil {
				return 0, fmt.Errorf("team %s: %w", tb.Name, err)
			}
			it := engine.Item{
				ID:          ib.ID,
				Team:        team.Name,
				Kind:        engine.ItemKind(ib.Kind),
				Name:        ib.Name,
				Description: ib.Description,
				OneOff:      ib.OneOff,
				Consumed:    ib.Consumed,
				Tile:        t,
				Slot:        ib.Slot,
				CreatedAt:   ib.CreatedAt,
			}
			if err := insertItem(ctx, tx, it); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classify(err)
	}
	return len(b.Teams), nil
}

func (tb TeamBackup) team() (engine.Team, error) {
	loc, err := grid.ParseTile(tb.Location)
	if err != nil {
		return engine.Team{}, err
	}
	team := engine.Team{Name: tb.Name, ChannelID: tb.ChannelID, Location: loc, CreatedAt: tb.CreatedAt}
	for _, id := range tb.Explored {
		t, err := grid.ParseTile(id)
		if err != nil {
			return engine.Team{}, err
		}
		team.Explored = append(team.Explored, t)
	}
	return team, nil
}
