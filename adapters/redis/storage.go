package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"munchykit/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "munchy",
	}
}

// Store implements the engine.Storage interface using Redis as a key-value cache.
// Data structure:
// - {prefix}:{user_id}:profile -> JSON UserProfile
// - {prefix}:{user_id}:wins -> JSON array of wins, newest first
// - {prefix}:{user_id}:weight -> JSON array of weight entries, chronological
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, prefix: prefixOrDefault(config.KeyPrefix)}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, prefix: prefixOrDefault("")}
}

func prefixOrDefault(p string) string {
	if p == "" {
		return DefaultConfig().KeyPrefix
	}
	return p
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) profileKey(userID core.UserID) string {
	return fmt.Sprintf("%s:%s:profile", s.prefix, userID)
}

func (s *Store) winsKey(userID core.UserID) string {
	return fmt.Sprintf("%s:%s:wins", s.prefix, userID)
}

func (s *Store) weightKey(userID core.UserID) string {
	return fmt.Sprintf("%s:%s:weight", s.prefix, userID)
}

// Load fetches the three blobs in one round trip. Missing keys fall back
// to defaults independently.
func (s *Store) Load(ctx context.Context, userID core.UserID) (core.Snapshot, error) {
	snap := core.NewSnapshot()
	vals, err := s.client.MGet(ctx, s.profileKey(userID), s.winsKey(userID), s.weightKey(userID)).Result()
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load user state: %w", err)
	}
	targets := []any{&snap.Profile, &snap.Wins, &snap.Weights}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), targets[i]); err != nil {
			return core.Snapshot{}, fmt.Errorf("failed to decode %s: %w", []string{"profile", "wins", "weight"}[i], err)
		}
	}
	return snap.Clone(), nil
}

func (s *Store) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

// SaveProfile overwrites the stored profile
func (s *Store) SaveProfile(ctx context.Context, userID core.UserID, profile core.UserProfile) error {
	if err := s.set(ctx, s.profileKey(userID), profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// SaveWins overwrites the stored win list
func (s *Store) SaveWins(ctx context.Context, userID core.UserID, wins []core.Win) error {
	if wins == nil {
		wins = []core.Win{}
	}
	if err := s.set(ctx, s.winsKey(userID), wins); err != nil {
		return fmt.Errorf("failed to save wins: %w", err)
	}
	return nil
}

// SaveWeights overwrites the stored weight history
func (s *Store) SaveWeights(ctx context.Context, userID core.UserID, weights []core.WeightEntry) error {
	if weights == nil {
		weights = []core.WeightEntry{}
	}
	if err := s.set(ctx, s.weightKey(userID), weights); err != nil {
		return fmt.Errorf("failed to save weights: %w", err)
	}
	return nil
}

// SaveSnapshot replaces all three blobs in a single MULTI/EXEC.
func (s *Store) SaveSnapshot(ctx context.Context, userID core.UserID, snap core.Snapshot) error {
	profile, err := json.Marshal(snap.Profile)
	if err != nil {
		return err
	}
	wins, err := json.Marshal(snap.Clone().Wins)
	if err != nil {
		return err
	}
	weights, err := json.Marshal(snap.Clone().Weights)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.profileKey(userID), profile, 0)
		pipe.Set(ctx, s.winsKey(userID), wins, 0)
		pipe.Set(ctx, s.weightKey(userID), weights, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
