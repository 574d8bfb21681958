package memorydb

import (
	"context"
	"sort"
	"sync"

	"coachmastery/database"
)

// Store is an in-memory implementation of database.Store used by tests
// and local development.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*database.User // keyed by email
	sessions []database.SessionRecord
	usage    []database.UsageLog
}

func Connect() *Store {
	return &Store{users: make(map[string]*database.User)}
}

func (s *Store) CreateUser(ctx context.Context, user *database.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *user
	s.users[user.Email] = &copied
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[email]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *Store) SaveSession(ctx context.Context, record *database.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = append(s.sessions, *record)
	return nil
}

func (s *Store) GetUserHistory(ctx context.Context, userID string, limit int) ([]database.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.SessionRecord
	for _, record := range s.sessions {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AddUsageLog(ctx context.Context, log *database.UsageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usage = append(s.usage, *log)
	return nil
}

func (s *Store) GetUserUsage(ctx context.Context, userID string) (*database.UsageSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := database.UsageSummary{UserID: userID}
	for _, log := range s.usage {
		if log.UserID != userID {
			continue
		}
		summary.TotalCalls++
		summary.TotalTokens += int64(log.TotalTokens)
		summary.TotalCostUSD += log.CostUSD
	}
	return &summary, nil
}
