// Package search finds users by username. Meilisearch serves queries when it
// is reachable; otherwise the store's prefix scan answers directly. Both
// paths honor the same contract: a result's username starts with the query.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// UserRecord is the data indexed for a user.
type UserRecord struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Fallback answers username searches when Meilisearch is unavailable and
// feeds full reindexes.
type Fallback interface {
	SearchUsersByPrefix(ctx context.Context, prefix string, limit int) ([]UserRecord, error)
	LoadAllRecords(ctx context.Context) ([]UserRecord, error)
}

// Service is the facade that tries Meilisearch first and falls back to the store.
type Service struct {
	meili    *Meili
	fallback Fallback
	log      *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured. When it is set, a recovery of the index triggers a reindex from
// the store so accounts created during the outage become searchable.
func NewService(meili *Meili, fallback Fallback, log *zap.Logger) *Service {
	s := &Service{meili: meili, fallback: fallback, log: log}
	if meili != nil {
		meili.setRecoverHook(func() {
			s.ReindexFromStore(context.Background())
		})
	}
	return s
}

// SearchUsers returns users whose username starts with prefix.
func (s *Service) SearchUsers(ctx context.Context, prefix string, limit int) ([]UserRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	if s.meili != nil && s.meili.Healthy() {
		records, err := s.meili.SearchUsers(prefix, limit)
		if err == nil {
			return filterPrefix(records, prefix), nil
		}
		s.log.Warn("meilisearch search failed, falling back to store",
			zap.String("prefix", prefix), zap.Error(err))
	}

	records, err := s.fallback.SearchUsersByPrefix(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	return nonNil(records), nil
}

// IndexUser pushes a user into the search index (fire-and-forget).
func (s *Service) IndexUser(rec UserRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexUser(rec); err != nil {
			s.log.Warn("index user failed", zap.String("userId", rec.ID), zap.Error(err))
		}
	}()
}

// ReindexFromStore reloads every user from the store and pushes them into
// Meilisearch. Runs at startup and after the index recovers, so the index
// catches up on accounts it missed while unreachable.
func (s *Service) ReindexFromStore(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	records, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		s.log.Warn("reindex load failed", zap.Error(err))
		return
	}
	if len(records) == 0 {
		return
	}
	if err := s.meili.IndexUsers(records); err != nil {
		s.log.Warn("reindex failed", zap.Error(err))
	}
}

// filterPrefix enforces the range-scan contract on index hits. The engine
// ranks by relevance and tolerates typos, so a hit's username is not
// guaranteed to start with the query; anything outside
// [prefix, prefix+sentinel) is dropped before it reaches the caller.
func filterPrefix(records []UserRecord, prefix string) []UserRecord {
	filtered := make([]UserRecord, 0, len(records))
	for _, rec := range records {
		if strings.HasPrefix(rec.Username, prefix) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func nonNil(r []UserRecord) []UserRecord {
	if r == nil {
		return []UserRecord{}
	}
	return r
}
