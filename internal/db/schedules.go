package db

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
)

type scheduleRow struct {
	ID              string         `db:"id"`
	DisplayID       string         `db:"display_id"`
	Name            string         `db:"name"`
	StartTime       time.Time      `db:"start_time"`
	EndTime         *time.Time     `db:"end_time"`
	Priority        int            `db:"priority"`
	IsActive        bool           `db:"is_active"`
	SingleContentID *string        `db:"single_content_id"`
	ContentIDs      pq.StringArray `db:"content_ids"`
	PlaylistID      *string        `db:"playlist_id"`
}

// FetchSchedules returns every schedule for the display in creation order,
// which is the order ties are broken in.
func (s *Store) FetchSchedules(ctx context.Context, displayID string) ([]model.Schedule, error) {
	var rows []scheduleRow
	const q = `
	SELECT id, display_id, COALESCE(name, '') AS name, start_time, end_time,
	       priority, is_active, single_content_id, content_ids, playlist_id
	  FROM display_schedules
	 WHERE display_id = $1
	 ORDER BY created_at, id;`
	if err := s.db.SelectContext(ctx, &rows, q, displayID); err != nil {
		log.Error().Err(err).Str("display_id", displayID).Msg("FetchSchedules failed")
		return nil, fmt.Errorf("select schedules: %w", err)
	}

	var playlistIDs []string
	for _, r := range rows {
		if r.PlaylistID != nil {
			playlistIDs = append(playlistIDs, *r.PlaylistID)
		}
	}
	playlists, err := s.loadPlaylists(ctx, playlistIDs)
	if err != nil {
		return nil, err
	}

	out := make([]model.Schedule, 0, len(rows))
	for _, r := range rows {
		sched := model.Schedule{
			ID:        r.ID,
			DisplayID: r.DisplayID,
			Name:      r.Name,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Priority:  r.Priority,
			IsActive:  r.IsActive,
		}
		var ids []string
		if r.ContentIDs != nil {
			ids = []string(r.ContentIDs)
		}
		var pl *model.Playlist
		if r.PlaylistID != nil {
			// a dangling reference yields an empty playlist, which fails validation
			p := playlists[*r.PlaylistID]
			pl = &p
		}
		sched.AssignBinding(r.SingleContentID, ids, pl)
		out = append(out, sched)
	}
	return out, nil
}
