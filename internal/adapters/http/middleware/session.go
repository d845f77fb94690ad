package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionTTL is how long a login lasts.
const SessionTTL = 24 * time.Hour

// Session represents an authenticated session.
type Session struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore persists sessions by opaque token.
type SessionStore interface {
	Create(ctx context.Context, s Session) (string, error)
	Get(ctx context.Context, token string) (Session, bool)
	Delete(ctx context.Context, token string) error
	// DeleteAccount drops every session of an account and reports how many went.
	DeleteAccount(ctx context.Context, accountID string) (int, error)
}

// MemorySessionStore keeps sessions in process memory. Sessions are lost on
// restart; use RedisSessionStore when running more than one instance.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session), now: time.Now}
}

// Create stores a new session and returns the token.
// PRE: s.AccountID and s.Role are non-empty
// POST: Session is stored with CreatedAt set, token is returned
func (m *MemorySessionStore) Create(_ context.Context, s Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	s.CreatedAt = m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = s
	return token, nil
}

// Get retrieves a session by token. Expired sessions are removed.
// POST: Returns session if present and younger than SessionTTL
func (m *MemorySessionStore) Get(_ context.Context, token string) (Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if m.now().Sub(s.CreatedAt) > SessionTTL {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return Session{}, false
	}
	return s, true
}

// Delete removes a session by token.
func (m *MemorySessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// DeleteAccount removes every session of an account, e.g. after it is disabled.
func (m *MemorySessionStore) DeleteAccount(_ context.Context, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, s := range m.sessions {
		if s.AccountID == accountID {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

// RedisSessionStore keeps sessions in Redis under "session:<token>" with a TTL.
// The tokens of each account are tracked in the set "account_sessions:<id>".
type RedisSessionStore struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisSessionStore creates a store on an existing client.
func NewRedisSessionStore(rdb redis.Cmdable) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, prefix: "session:"}
}

func accountSessionsKey(accountID string) string {
	return "account_sessions:" + accountID
}

// Create stores the session as JSON with SessionTTL.
func (r *RedisSessionStore) Create(ctx context.Context, s Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	s.CreatedAt = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.prefix+token, data, SessionTTL)
		pipe.SAdd(ctx, accountSessionsKey(s.AccountID), token)
		pipe.Expire(ctx, accountSessionsKey(s.AccountID), SessionTTL)
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Get loads a session. Redis errors are logged and treated as no session.
func (r *RedisSessionStore) Get(ctx context.Context, token string) (Session, bool) {
	data, err := r.rdb.Get(ctx, r.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false
	}
	if err != nil {
		slog.Error("session_lookup_failed", "error", err)
		return Session{}, false
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		slog.Error("session_decode_failed", "error", err)
		return Session{}, false
	}
	return s, true
}

// Delete removes a session.
func (r *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return r.rdb.Del(ctx, r.prefix+token).Err()
}

// DeleteAccount removes every session listed for the account.
// POST: the account's tracking set is gone; returns the number of live sessions deleted
func (r *RedisSessionStore) DeleteAccount(ctx context.Context, accountID string) (int, error) {
	key := accountSessionsKey(accountID)
	tokens, err := r.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, r.prefix+t)
	}
	var n int64
	if len(keys) > 0 {
		if n, err = r.rdb.Del(ctx, keys...).Result(); err != nil {
			return 0, err
		}
	}
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return int(n), err
	}
	return int(n), nil
}

var (
	_ SessionStore = (*MemorySessionStore)(nil)
	_ SessionStore = (*RedisSessionStore)(nil)
)

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
