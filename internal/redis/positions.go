package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
)

const positionTTL = 7 * 24 * time.Hour

func positionKey(displayID string) string {
	return fmt.Sprintf("player:%s:position", displayID)
}

// PositionStore keeps the last playlist position per display.
type PositionStore struct {
	rdb *redis.Client
}

func NewPositionStore(rdb *redis.Client) *PositionStore {
	return &PositionStore{rdb: rdb}
}

func (p *PositionStore) Load(ctx context.Context, displayID string) (model.Position, bool, error) {
	data, err := p.rdb.Get(ctx, positionKey(displayID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Position{}, false, nil
	}
	if err != nil {
		return model.Position{}, false, fmt.Errorf("load position: %w", err)
	}
	var pos model.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return model.Position{}, false, fmt.Errorf("decode position: %w", err)
	}
	return pos, true, nil
}

func (p *PositionStore) Save(ctx context.Context, displayID string, pos model.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	if err := p.rdb.Set(ctx, positionKey(displayID), data, positionTTL).Err(); err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}
