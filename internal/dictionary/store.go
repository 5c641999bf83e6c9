package dictionary

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/heyito/ito-sub003/internal/shared"
	"github.com/heyito/ito-sub003/internal/transcription"
	"github.com/redis/go-redis/v9"
)

const (
	wordsKey = "dictionary:words"
	maxWords = 500
)

// Store keeps the user's custom vocabulary in a redis set.
type Store struct {
	redis *redis.Client
	log   *slog.Logger
}

func NewStore(redisClient *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		redis: redisClient,
		log:   logger.With("component", "dictionary"),
	}
}

func (s *Store) Add(ctx context.Context, words ...string) error {
	members := make([]any, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if !transcription.ValidVocabularyWord(w) {
			return fmt.Errorf("word %q: %w", w, shared.ErrValidation)
		}
		members = append(members, w)
	}
	if len(members) == 0 {
		return nil
	}
	return s.redis.SAdd(ctx, wordsKey, members...).Err()
}

func (s *Store) Remove(ctx context.Context, words ...string) error {
	members := make([]any, 0, len(words))
	for _, w := range words {
		members = append(members, strings.TrimSpace(w))
	}
	if len(members) == 0 {
		return nil
	}
	return s.redis.SRem(ctx, wordsKey, members...).Err()
}

// Words returns the dictionary sorted alphabetically.
func (s *Store) Words(ctx context.Context) ([]string, error) {
	words, err := s.redis.SMembers(ctx, wordsKey).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(words)
	return words, nil
}

// Vocabulary joins the dictionary into a comma-separated hint that always
// passes metadata validation. Words that would not are skipped.
func (s *Store) Vocabulary(ctx context.Context) (string, error) {
	words, err := s.Words(ctx)
	if err != nil {
		return "", err
	}
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !transcription.ValidVocabularyWord(w) {
			s.log.Debug("skipping invalid vocabulary word", "word", w)
			continue
		}
		if len(kept) == maxWords {
			s.log.Warn("vocabulary truncated", "total", len(words), "kept", maxWords)
			break
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, ", "), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
