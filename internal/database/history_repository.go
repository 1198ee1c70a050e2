package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/hxnx/chime/internal/music"
)

const historyRepoTimeout = 2 * time.Second

// HistoryEntry is one played track in a guild's listening log.
type HistoryEntry struct {
	Title       string
	URL         string
	Source      string
	RequestedBy string
	PlayedAt    time.Time
}

// HistoryRepository records every track that reaches playback. All
// methods degrade to no-ops when the database is not configured, so
// the bot runs fine without Postgres.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{db: GetDB()}
}

func (r *HistoryRepository) RecordPlay(guildID string, track music.Track) error {
	if r == nil || r.db == nil {
		return nil
	}
	if guildID == "" || track.Title == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyRepoTimeout)
	defer cancel()

	const query = `
		INSERT INTO play_history (guild_id, track_title, track_url, source, requested_by)
		VALUES ($1, $2, $3, $4, $5);
	`

	_, err := r.db.ExecContext(ctx, query, guildID, track.Title, track.URL, string(track.Source), track.RequestedBy)
	return err
}

func (r *HistoryRepository) ListRecent(guildID string, limit int) ([]HistoryEntry, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if guildID == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyRepoTimeout)
	defer cancel()

	const query = `
		SELECT track_title, track_url, source, requested_by, played_at
		FROM play_history
		WHERE guild_id = $1
		ORDER BY played_at DESC
		LIMIT $2;
	`

	rows, err := r.db.QueryContext(ctx, query, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Title, &e.URL, &e.Source, &e.RequestedBy, &e.PlayedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
