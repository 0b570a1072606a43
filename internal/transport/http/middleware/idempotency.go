package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// IdempotencyStore remembers the response to a keyed write so a retried
// request replays it instead of writing to the sheet again.
type IdempotencyStore interface {
	Check(ctx context.Context, actor, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, actor, endpoint, key, requestHash string, response json.RawMessage) error
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type PostgresIdempotencyStore struct {
	db *pgxpool.Pool
}

func NewPostgresIdempotencyStore(db *pgxpool.Pool) *PostgresIdempotencyStore {
	return &PostgresIdempotencyStore{db: db}
}

func (s *PostgresIdempotencyStore) Check(ctx context.Context, actor, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	var storedHash string
	var stored json.RawMessage
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE actor = $1 AND idem_key = $2 AND endpoint = $3
  `, actor, key, endpoint).Scan(&storedHash, &stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if storedHash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

func (s *PostgresIdempotencyStore) Save(ctx context.Context, actor, endpoint, key, requestHash string, response json.RawMessage) error {
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (actor, idem_key, endpoint, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (idem_key, actor, endpoint)
    DO UPDATE SET response_json = EXCLUDED.response_json
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
  `, actor, key, endpoint, requestHash, response)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

type memoryEntry struct {
	hash     string
	response json.RawMessage
	expires  time.Time
}

// MemoryIdempotencyStore is used when no database is configured. Entries
// expire after TTL.
type MemoryIdempotencyStore struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{TTL: ttl, Now: time.Now, entries: map[string]memoryEntry{}}
}

func memoryKey(actor, endpoint, key string) string {
	return actor + "\x00" + endpoint + "\x00" + key
}

func (s *MemoryIdempotencyStore) Check(_ context.Context, actor, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := memoryKey(actor, endpoint, key)
	entry, ok := s.entries[id]
	if !ok {
		return nil, false, nil
	}
	if s.Now().After(entry.expires) {
		delete(s.entries, id)
		return nil, false, nil
	}
	if entry.hash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	return entry.response, true, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, actor, endpoint, key, requestHash string, response json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	for id, entry := range s.entries {
		if now.After(entry.expires) {
			delete(s.entries, id)
		}
	}
	id := memoryKey(actor, endpoint, key)
	if existing, ok := s.entries[id]; ok && existing.hash != requestHash {
		return ErrIdempotencyConflict
	}
	s.entries[id] = memoryEntry{hash: requestHash, response: response, expires: now.Add(s.TTL)}
	return nil
}
