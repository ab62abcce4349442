package presence

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/internal/identity"
	"github.com/chorushq/sessionkit/kv"
	"github.com/chorushq/sessionkit/services/logging"
	"go.uber.org/zap"
)

const keyPrefix = "presence:"

// Service tracks per-room recency in a time-ordered set scored by last-seen
// epoch millis. Stale members age out by score, not TTL: pruning happens
// opportunistically on count queries rather than on every touch, trading a
// little freshness for far less write amplification.
type Service struct {
	store  kv.Store
	config *config.Config
	logger *logging.Service
	now    func() time.Time
}

type PresenceService interface {
	Touch(ctx context.Context, roomID, username string) error
	CountLive(ctx context.Context, roomID string, maxAge time.Duration) (int, error)
	LiveMembers(ctx context.Context, roomID string, maxAge time.Duration) ([]string, error)
	Remove(ctx context.Context, roomID, username string) error
}

func NewService(store kv.Store, cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		store:  store,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

func roomKey(roomID string) string {
	return keyPrefix + roomID
}

// Touch marks username live in roomID as of now. Re-adding a previously
// removed member needs no special casing.
func (s *Service) Touch(ctx context.Context, roomID, username string) error {
	username = identity.Normalize(username)

	err := s.store.ZAdd(ctx, roomKey(roomID), kv.Z{
		Member: username,
		Score:  float64(s.now().UnixMilli()),
	})
	if err != nil {
		return fmt.Errorf("failed to touch presence: %w", err)
	}

	return nil
}

// CountLive counts members seen within maxAge, pruning older entries first.
// A non-positive maxAge falls back to the configured default.
func (s *Service) CountLive(ctx context.Context, roomID string, maxAge time.Duration) (int, error) {
	cutoff := s.cutoff(maxAge)
	key := roomKey(roomID)

	pruned, err := s.store.ZRemRangeByScore(ctx, key, math.Inf(-1), cutoff-1)
	if err != nil {
		return 0, fmt.Errorf("failed to prune presence: %w", err)
	}
	if pruned > 0 && s.logger != nil {
		s.logger.Debug("pruned stale presence entries",
			zap.String("room_id", roomID),
			zap.Int64("pruned", pruned))
	}

	count, err := s.store.ZCount(ctx, key, cutoff, math.Inf(1))
	if err != nil {
		return 0, fmt.Errorf("failed to count presence: %w", err)
	}

	return int(count), nil
}

// LiveMembers returns the usernames seen within maxAge.
func (s *Service) LiveMembers(ctx context.Context, roomID string, maxAge time.Duration) ([]string, error) {
	members, err := s.store.ZRangeByScore(ctx, roomKey(roomID), s.cutoff(maxAge), math.Inf(1))
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}
	return members, nil
}

// Remove drops username from the room on leave or disconnect.
func (s *Service) Remove(ctx context.Context, roomID, username string) error {
	username = identity.Normalize(username)

	if err := s.store.ZRem(ctx, roomKey(roomID), username); err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}

	return nil
}

func (s *Service) cutoff(maxAge time.Duration) float64 {
	if maxAge <= 0 {
		maxAge = s.config.Presence.MaxAge
	}
	return float64(s.now().Add(-maxAge).UnixMilli())
}
