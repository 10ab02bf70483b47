// Package cache keeps short-lived build session snapshots and dataset lists
// in Redis so several server processes can share them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jonathan/model-builder/internal/logger"
	"github.com/jonathan/model-builder/internal/types"
)

const (
	defaultPrefix     = "model_builder"
	defaultSessionTTL = 24 * time.Hour
	datasetListTTL    = 10 * time.Minute
)

// Options configures a Store
type Options struct {
	Addr       string
	Prefix     string
	SessionTTL time.Duration
	Logger     *logger.Logger
}

// Store is a Redis-backed snapshot and dataset list cache
type Store struct {
	rdb        *goredis.Client
	prefix     string
	sessionTTL time.Duration
	log        *logger.Logger
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, opts Options) (*Store, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, opts), nil
}

// NewWithClient wraps an existing client
func NewWithClient(rdb *goredis.Client, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Store{
		rdb:        rdb,
		prefix:     prefix,
		sessionTTL: ttl,
		log:        log.With("service", "RedisCache"),
	}
}

// SaveSession stores a snapshot that expires after the session TTL
func (s *Store) SaveSession(ctx context.Context, session *types.BuildSession) error {
	if session == nil {
		return fmt.Errorf("session is nil")
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.sessionKey(session.ID), raw, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache session %s: %w", session.ID, err)
	}
	return nil
}

// LoadSession returns a cached snapshot, or nil when it is missing or expired
func (s *Store) LoadSession(ctx context.Context, id string) (*types.BuildSession, error) {
	raw, err := s.rdb.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached session %s: %w", id, err)
	}
	var session types.BuildSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached session %s: %w", id, err)
	}
	return &session, nil
}

// DeleteSession drops a snapshot
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.sessionKey(id)).Err()
}

// GetDatasets implements dataset.Cache
func (s *Store) GetDatasets(ctx context.Context, projectID int) ([]types.Dataset, bool, error) {
	raw, err := s.rdb.Get(ctx, s.datasetKey(projectID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var list []types.Dataset
	if err := json.Unmarshal(raw, &list); err != nil {
		s.log.Warn("dropping unreadable dataset list", "project_id", projectID, "error", err)
		return nil, false, nil
	}
	return list, true, nil
}

// SetDatasets implements dataset.Cache
func (s *Store) SetDatasets(ctx context.Context, projectID int, datasets []types.Dataset) error {
	if datasets == nil {
		datasets = []types.Dataset{}
	}
	raw, err := json.Marshal(datasets)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.datasetKey(projectID), raw, datasetListTTL).Err()
}

// Close closes the client
func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + ":session:" + id
}

func (s *Store) datasetKey(projectID int) string {
	return s.prefix + ":datasets:" + strconv.Itoa(projectID)
}
