package cache

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sheetconsole/internal/platform/crypto"
)

// PostgresStore keeps cache entries in cache_entries so several console
// processes share one last-known copy.
type PostgresStore struct {
	DB  *pgxpool.Pool
	Box *crypto.Box
}

func NewPostgresStore(db *pgxpool.Pool, box *crypto.Box) *PostgresStore {
	return &PostgresStore{DB: db, Box: box}
}

func (s *PostgresStore) Load(ctx context.Context, key string, dst any) (bool, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, `SELECT payload FROM cache_entries WHERE cache_key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return decode(s.Box, raw, dst)
}

func (s *PostgresStore) Save(ctx context.Context, key string, value any) error {
	payload, err := encode(s.Box, value)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO cache_entries (cache_key, payload, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (cache_key)
    DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
  `, key, payload)
	return err
}
