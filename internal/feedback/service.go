// Package feedback applies user ratings back onto suggestion scores,
// keeping the database (the authority) and the in-memory mirror in
// lockstep.
package feedback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mentorlab/mentorbot/internal/knowledge"
	"github.com/mentorlab/mentorbot/internal/storage"
)

// Ratings accepted from feedback buttons.
const (
	RatingGood = "good"
	RatingBad  = "bad"
)

// ScoreStore is the persistent side of a score adjustment. Implemented by
// storage.Store.
type ScoreStore interface {
	AdjustSuggestionScore(id string, delta int) (int, error)
	SaveFeedbackLog(f storage.FeedbackLog) error
}

// Service serializes score adjustments and records feedback logs.
type Service struct {
	store  ScoreStore
	cache  *knowledge.Cache
	logger *slog.Logger

	// mu serializes read-modify-write score updates so concurrent ratings
	// on the same id cannot lose increments.
	mu sync.Mutex
}

// NewService creates a feedback Service.
func NewService(store ScoreStore, cache *knowledge.Cache) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		logger: slog.Default(),
	}
}

// Delta maps a rating to its score adjustment.
func Delta(rating string) (int, error) {
	switch rating {
	case RatingGood:
		return 1, nil
	case RatingBad:
		return -1, nil
	default:
		return 0, fmt.Errorf("unknown rating %q", rating)
	}
}

// Apply adjusts the score for suggestionID by the rating's delta in the
// database and mirrors the change into the cache. An unknown id is logged
// and ignored; it is not an error to the caller.
func (s *Service) Apply(suggestionID, rating string) error {
	delta, err := Delta(rating)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newScore, err := s.store.AdjustSuggestionScore(suggestionID, delta)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("feedback for unknown suggestion ignored", "suggestion_id", suggestionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("adjusting score for %s: %w", suggestionID, err)
	}

	s.cache.ApplyScore(suggestionID, delta)
	s.logger.Info("suggestion score updated", "suggestion_id", suggestionID, "rating", rating, "score", newScore)
	return nil
}

// Record writes the feedback audit log row. Kept separate from Apply:
// ratings on remote or rule answers carry no suggestion id but are still
// logged.
func (s *Service) Record(userID int64, replyText, rating, suggestionID string) error {
	return s.store.SaveFeedbackLog(storage.FeedbackLog{
		UserID:       userID,
		ReplyText:    replyText,
		Rating:       rating,
		SuggestionID: suggestionID,
	})
}
