package keystore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
)

// DefaultKey is the redis key the account is stored under.
const DefaultKey = "restaurant-reviews:account"

const (
	keySize   = 32
	nonceSize = 24
	hkdfInfo  = "restaurant-reviews credential record v1"
)

// RedisStore keeps the account in a single redis key. The record is sealed
// with a key derived from the configured secret, so a reader of the redis
// database cannot recover the access token.
type RedisStore struct {
	client redis.Cmdable
	key    string
	seal   [keySize]byte
	logger *slog.Logger
}

// NewRedisStore creates a RedisStore. An empty key uses DefaultKey.
func NewRedisStore(client redis.Cmdable, key string, secret []byte, logger *slog.Logger) (*RedisStore, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidSecret
	}
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &RedisStore{
		client: client,
		key:    key,
		logger: logger.With("component", "redis_keystore", "key", key),
	}

	kdf := hkdf.New(sha256.New, secret, []byte(key), []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, s.seal[:]); err != nil {
		return nil, fmt.Errorf("failed to derive sealing key: %w", err)
	}

	return s, nil
}

// Save implements Store. The record expires from redis together with the
// account.
func (s *RedisStore) Save(ctx context.Context, account domain.Account) error {
	if err := account.Validate(); err != nil {
		return NewStoreError(s.key, "save", "account failed validation",
			fmt.Errorf("%w: %w", ErrInvalidAccount, err))
	}

	plaintext, err := json.Marshal(account)
	if err != nil {
		return NewStoreError(s.key, "save", "failed to encode account", err)
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return NewStoreError(s.key, "save", "failed to generate nonce", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &s.seal)
	encoded := base64.StdEncoding.EncodeToString(sealed)

	// A zero TTL would keep the record forever, so an account that is about
	// to expire, or already has, lives on for one more second at most.
	ttl := time.Until(account.ExpiresAt())
	if ttl < time.Second {
		ttl = time.Second
	}

	if err := s.client.Set(ctx, s.key, encoded, ttl).Err(); err != nil {
		return NewStoreError(s.key, "save", "failed to write record",
			fmt.Errorf("%w: %w", ErrUnavailable, err))
	}

	s.logger.Debug("saved account", "expires_at", account.ExpiresAt())
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (*domain.Account, error) {
	encoded, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, NewStoreError(s.key, "load", "failed to read record",
			fmt.Errorf("%w: %w", ErrUnavailable, err))
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(sealed) < nonceSize+secretbox.Overhead {
		return nil, NewStoreError(s.key, "load", "record is not a sealed box", ErrCorruptRecord)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.seal)
	if !ok {
		return nil, NewStoreError(s.key, "load", "record cannot be opened", ErrCorruptRecord)
	}

	var account domain.Account
	if err := json.Unmarshal(plaintext, &account); err != nil {
		return nil, NewStoreError(s.key, "load", "failed to decode account",
			fmt.Errorf("%w: %w", ErrCorruptRecord, err))
	}

	return &account, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return NewStoreError(s.key, "delete", "failed to delete record",
			fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	return nil
}
