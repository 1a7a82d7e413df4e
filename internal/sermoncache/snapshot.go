package sermoncache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore persists the cache blob between restarts. Load returns (nil, nil)
// when nothing has been stored yet.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

const DefaultRedisKey = "sanctuary:sermon-cache"

type RedisSnapshotStore struct {
	client *redis.Client
	key    string
}

func NewRedisSnapshotStore(client *redis.Client, key string) *RedisSnapshotStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSnapshotStore{client: client, key: key}
}

func (s *RedisSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load sermon cache: %w", err)
	}
	return b, nil
}

// Save stores the snapshot without expiry; entry age is tracked inside the blob.
func (s *RedisSnapshotStore) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save sermon cache: %w", err)
	}
	return nil
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

type FileSnapshotStore struct {
	path string
}

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

func (s *FileSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// Save writes to a temp file in the same directory and renames it into place.
func (s *FileSnapshotStore) Save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

type NopSnapshotStore struct{}

func (NopSnapshotStore) Load(context.Context) ([]byte, error) { return nil, nil }

func (NopSnapshotStore) Save(context.Context, []byte) error { return nil }
