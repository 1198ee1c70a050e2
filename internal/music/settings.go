package music

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	internalredis "github.com/hxnx/chime/internal/redis"
	redislib "github.com/redis/go-redis/v9"
)

// SettingsStore holds the process-wide shuffle flag and favorite
// playlist. Set updates the in-memory record; Flush persists it
// best-effort. A crash between Set and Flush loses at most the last
// mutation.
type SettingsStore interface {
	Get() Settings
	Set(Settings)
	Flush() error
}

// FileSettingsStore keeps the record in a single flat JSON document,
// read once at construction and overwritten wholesale on every Flush.
type FileSettingsStore struct {
	mu       sync.Mutex
	path     string
	settings Settings
}

func NewFileSettingsStore(path string) (*FileSettingsStore, error) {
	store := &FileSettingsStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := json.Unmarshal(data, &store.settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return store, nil
}

func (s *FileSettingsStore) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *FileSettingsStore) Set(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func (s *FileSettingsStore) Flush() error {
	s.mu.Lock()
	snapshot := s.settings
	path := s.path
	s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

const settingsRedisKey = "chime:settings"

// RedisSettingsStore keeps the same record as a Redis hash, for
// deployments without a writable local disk.
type RedisSettingsStore struct {
	mu       sync.Mutex
	client   *redislib.Client
	settings Settings
}

func NewRedisSettingsStore(client *redislib.Client) (*RedisSettingsStore, error) {
	if client == nil {
		client = internalredis.Client()
	}
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	store := &RedisSettingsStore{client: client}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := client.HGetAll(ctx, settingsRedisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings from redis: %w", err)
	}

	if v, ok := data["shuffle"]; ok {
		store.settings.Shuffle = v == "true"
	}
	if v, ok := data["favorite_playlist"]; ok {
		store.settings.FavoritePlaylist = v
	}
	return store, nil
}

func (s *RedisSettingsStore) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *RedisSettingsStore) Set(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func (s *RedisSettingsStore) Flush() error {
	s.mu.Lock()
	snapshot := s.settings
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	values := map[string]interface{}{
		"shuffle":           fmt.Sprintf("%t", snapshot.Shuffle),
		"favorite_playlist": snapshot.FavoritePlaylist,
	}
	return s.client.HSet(ctx, settingsRedisKey, values).Err()
}
