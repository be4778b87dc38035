// Package keystore persists holder public keys in SQLite. It is provisioned
// next to the verifier and is independent of the nonce lifecycle.
package keystore

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("key not found")

type Key struct {
	KID       string    `json:"kid"`
	Holder    string    `json:"holder"`
	JWK       jwk.Key   `json:"jwk"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS keys (
    kid TEXT PRIMARY KEY,
    holder TEXT NOT NULL,
    jwk TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS keys_holder ON keys (holder);
`

// Open opens (or creates) the database at path in WAL mode.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; avoids "database is locked" under concurrent use
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Put stores the public part of key for holder. The key id is the key's own
// "kid" or, if it has none, its RFC 7638 SHA-256 thumbprint. An existing
// entry with the same id is replaced.
func (s *Store) Put(ctx context.Context, holder string, key jwk.Key) (*Key, error) {
	publicKey, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("get public key: %w", err)
	}
	kid := publicKey.KeyID()
	if kid == "" {
		kid, err = ThumbprintS256(publicKey)
		if err != nil {
			return nil, err
		}
		if err := publicKey.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, fmt.Errorf("set kid: %w", err)
		}
	}

	data, err := json.Marshal(publicKey)
	if err != nil {
		return nil, fmt.Errorf("encode jwk: %w", err)
	}

	createdAt := s.now().UTC().Truncate(time.Second)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO keys (kid, holder, jwk, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(kid) DO UPDATE SET holder = excluded.holder, jwk = excluded.jwk, created_at = excluded.created_at`,
		kid, holder, string(data), createdAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert key: %w", err)
	}

	return &Key{KID: kid, Holder: holder, JWK: publicKey, CreatedAt: createdAt}, nil
}

func (s *Store) Get(ctx context.Context, kid string) (*Key, error) {
	row := s.db.QueryRowContext(ctx, `SELECT kid, holder, jwk, created_at FROM keys WHERE kid = ?`, kid)
	key, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return key, err
}

// List returns all keys, optionally restricted to one holder, oldest first.
func (s *Store) List(ctx context.Context, holder string) ([]*Key, error) {
	query := `SELECT kid, holder, jwk, created_at FROM keys`
	args := []any{}
	if holder != "" {
		query += ` WHERE holder = ?`
		args = append(args, holder)
	}
	query += ` ORDER BY created_at, kid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*Key, 0)
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) Delete(ctx context.Context, kid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM keys WHERE kid = ?`, kid)
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(row scanner) (*Key, error) {
	var (
		key       Key
		data      string
		createdAt int64
	)
	if err := row.Scan(&key.KID, &key.Holder, &data, &createdAt); err != nil {
		return nil, err
	}
	parsed, err := jwk.ParseKey([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("parse stored jwk %s: %w", key.KID, err)
	}
	key.JWK = parsed
	key.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &key, nil
}

// ParseKey accepts a JWK in JSON or a PEM encoded key.
func ParseKey(data []byte) (jwk.Key, error) {
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("-----BEGIN")) {
		return jwk.ParseKey(data, jwk.WithPEM(true))
	}
	return jwk.ParseKey(data)
}

func GenerateKey() (jwk.Key, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	jwkKey, err := jwk.FromRaw(privateKey)
	if err != nil {
		return nil, fmt.Errorf("could not create jwk from key: %w", err)
	}

	t, err := ThumbprintS256(jwkKey)
	if err != nil {
		return nil, err
	}
	if err := jwkKey.Set(jwk.KeyIDKey, t); err != nil {
		return nil, fmt.Errorf("could not set kid: %w", err)
	}

	return jwkKey, nil
}

func ThumbprintS256(key jwk.Key) (string, error) {
	thumbprint, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("could not create thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}
