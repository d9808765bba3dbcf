package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/provider"
)

type contentRow struct {
	model.Content
	SlideURLs pq.StringArray `db:"slides"`
	Meta      []byte         `db:"metadata"`
}

func (s *Store) FetchContent(ctx context.Context, contentID string) (model.Content, error) {
	var row contentRow
	const q = `
	SELECT id, name, type, url, duration, slides, metadata, updated_at
	  FROM content
	 WHERE id = $1;`
	err := s.db.GetContext(ctx, &row, q, contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Content{}, fmt.Errorf("content %q: %w", contentID, provider.ErrNotFound)
	}
	if err != nil {
		log.Error().Err(err).Str("content_id", contentID).Msg("FetchContent failed")
		return model.Content{}, fmt.Errorf("select content: %w", err)
	}

	c := row.Content
	if len(row.SlideURLs) > 0 {
		c.Slides = []string(row.SlideURLs)
	}
	if len(row.Meta) > 0 {
		if err := json.Unmarshal(row.Meta, &c.Metadata); err != nil {
			log.Warn().Err(err).Str("content_id", contentID).Msg("ignoring malformed content metadata")
		}
	}
	return c, nil
}
