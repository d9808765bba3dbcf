package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
)

type playlistRow struct {
	ID   string `db:"id"`
	Name string `db:"name"`
	Loop bool   `db:"loop"`
}

type playlistItemRow struct {
	PlaylistID string `db:"playlist_id"`
	model.PlaylistItem
}

// loadPlaylists fetches the given playlists with their items in position
// order, keyed by playlist ID.
func (s *Store) loadPlaylists(ctx context.Context, ids []string) (map[string]model.Playlist, error) {
	out := make(map[string]model.Playlist, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var heads []playlistRow
	if err := s.db.SelectContext(ctx, &heads,
		`SELECT id, name, loop FROM playlists WHERE id = ANY($1);`, pq.Array(ids)); err != nil {
		log.Error().Err(err).Msg("[db] loadPlaylists: failed to select playlists")
		return nil, fmt.Errorf("select playlists: %w", err)
	}
	for _, h := range heads {
		out[h.ID] = model.Playlist{Name: h.Name, Loop: h.Loop}
	}

	var items []playlistItemRow
	const q = `
	SELECT playlist_id, content_id, duration
	  FROM playlist_items
	 WHERE playlist_id = ANY($1)
	 ORDER BY playlist_id, position;`
	if err := s.db.SelectContext(ctx, &items, q, pq.Array(ids)); err != nil {
		log.Error().Err(err).Msg("[db] loadPlaylists: failed to select playlist items")
		return nil, fmt.Errorf("select playlist items: %w", err)
	}
	for _, it := range items {
		p, ok := out[it.PlaylistID]
		if !ok {
			continue
		}
		p.Items = append(p.Items, it.PlaylistItem)
		out[it.PlaylistID] = p
	}
	return out, nil
}
