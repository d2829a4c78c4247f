package search

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxUsers = "taskboard_users"

// Meili talks to Meilisearch for username lookups.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	log     *zap.Logger

	mu        sync.Mutex
	onRecover func()
}

// setRecoverHook registers a callback to run after the index comes back from
// an outage.
func (m *Meili) setRecoverHook(fn func()) {
	m.mu.Lock()
	m.onRecover = fn
	m.mu.Unlock()
}

// NewMeili creates a Meilisearch client and configures the user index.
// The caller should proceed without it if the initial connection fails.
func NewMeili(url, apiKey string, log *zap.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
		log:    log,
	}

	if _, err := client.Health(); err != nil {
		log.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxUsers,
		PrimaryKey: "id",
	}); err != nil {
		m.log.Warn("create user index (may already exist)", zap.Error(err))
	}

	// Only the username is searchable. Matching against full names would
	// surface users whose username has nothing to do with the query.
	index := m.client.Index(idxUsers)
	searchable := []string{"username"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.Warn("update searchable attrs", zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
				m.mu.Lock()
				hook := m.onRecover
				m.mu.Unlock()
				if hook != nil {
					go hook()
				}
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// SearchUsers queries the user index by username prefix.
func (m *Meili) SearchUsers(prefix string, limit int) ([]UserRecord, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	resp, err := m.client.Index(idxUsers).Search(prefix, &meili.SearchRequest{
		Limit: int64(limit),
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	records := make([]UserRecord, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		rec := UserRecord{
			ID:       decodeString(hit, "id"),
			Username: decodeString(hit, "username"),
			FullName: decodeString(hit, "fullName"),
			Email:    decodeString(hit, "email"),
		}
		if rec.ID == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexUser upserts one user document into the index.
func (m *Meili) IndexUser(rec UserRecord) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	if _, err := m.client.Index(idxUsers).AddDocuments([]UserRecord{rec}, nil); err != nil {
		return fmt.Errorf("meilisearch index user: %w", err)
	}
	return nil
}

// IndexUsers upserts a batch of user documents, used by full reindexes.
func (m *Meili) IndexUsers(recs []UserRecord) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	if _, err := m.client.Index(idxUsers).AddDocuments(recs, nil); err != nil {
		return fmt.Errorf("meilisearch index users: %w", err)
	}
	return nil
}
