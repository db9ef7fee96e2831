package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"sprintdeck/internal/domain"
)

// HashAPIKey returns a stable SHA-256 hex digest for the provided key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// Keys manages API keys, each granting access to a single org.
type Keys struct {
	DB *sql.DB
}

// Insert stores a hashed API key. KeyHash must already contain the hashed value.
func (k Keys) Insert(ctx context.Context, key domain.APIKey) error {
	if key.ID == "" {
		return errors.New("id required")
	}
	if key.OrgID == "" {
		return errors.New("org_id required")
	}
	if key.KeyHash == "" {
		return errors.New("key_hash required")
	}
	if key.CreatedAt == "" {
		key.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := k.DB.ExecContext(ctx, `INSERT INTO api_keys(id, org_id, name, key_hash, created_at) VALUES (?,?,?,?,?)`,
		key.ID, key.OrgID, nullable(key.Name), key.KeyHash, key.CreatedAt)
	return err
}

// GetByHash returns an API key by its hashed value.
func (k Keys) GetByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	if k.DB == nil {
		return domain.APIKey{}, errors.New("api keys require the sqlite backend")
	}
	row := k.DB.QueryRowContext(ctx, `SELECT id, org_id, COALESCE(name,''), key_hash, created_at FROM api_keys WHERE key_hash=? LIMIT 1`, hash)
	var key domain.APIKey
	err := row.Scan(&key.ID, &key.OrgID, &key.Name, &key.KeyHash, &key.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.APIKey{}, ErrNotFound
	}
	if err != nil {
		return domain.APIKey{}, err
	}
	return key, nil
}

// List returns API keys, optionally filtered by org.
func (k Keys) List(ctx context.Context, orgID string) ([]domain.APIKey, error) {
	query := `SELECT id, org_id, COALESCE(name,''), key_hash, created_at FROM api_keys`
	var args []any
	if orgID != "" {
		query += ` WHERE org_id=?`
		args = append(args, orgID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := k.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []domain.APIKey
	for rows.Next() {
		var key domain.APIKey
		if err := rows.Scan(&key.ID, &key.OrgID, &key.Name, &key.KeyHash, &key.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Delete removes an API key by ID.
func (k Keys) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("id required")
	}
	_, err := k.DB.ExecContext(ctx, `DELETE FROM api_keys WHERE id=?`, id)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
