// Package redis stores curve records in Redis as JSON documents indexed by
// sorted sets (score = created_at_ms).
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/storage"
)

// Options configures the Redis client.
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Prefix   string // key prefix, default "kelly"
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// CurveRecordStore implements storage.CurveRecordStore using Redis.
type CurveRecordStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewCurveRecordStore creates a new CurveRecordStore.
func NewCurveRecordStore(client goredis.UniversalClient, prefix string) *CurveRecordStore {
	if prefix == "" {
		prefix = "kelly"
	}
	return &CurveRecordStore{client: client, prefix: prefix}
}

// Compile-time interface check.
var _ storage.CurveRecordStore = (*CurveRecordStore)(nil)

func (s *CurveRecordStore) recordKey(id string) string {
	return fmt.Sprintf("%s:curve:%s", s.prefix, id)
}

func (s *CurveRecordStore) allKey() string {
	return s.prefix + ":curves"
}

func (s *CurveRecordStore) assetKey(asset string) string {
	return fmt.Sprintf("%s:curves:asset:%s", s.prefix, asset)
}

// Insert adds a new record. Returns ErrDuplicateKey if curve_id exists.
func (s *CurveRecordStore) Insert(ctx context.Context, r *domain.CurveRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}

	data, err := json.Marshal(storage.CloneRecord(r))
	if err != nil {
		return fmt.Errorf("marshal curve record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.recordKey(r.CurveID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("insert curve record: %w", err)
	}
	if !ok {
		return storage.ErrDuplicateKey
	}

	member := goredis.Z{Score: float64(r.CreatedAtMs), Member: r.CurveID}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, s.allKey(), member)
		pipe.ZAdd(ctx, s.assetKey(r.Asset), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("index curve record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *CurveRecordStore) GetByID(ctx context.Context, curveID string) (*domain.CurveRecord, error) {
	data, err := s.client.Get(ctx, s.recordKey(curveID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get curve record by id: %w", err)
	}

	var r domain.CurveRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal curve record: %w", err)
	}
	return &r, nil
}

// GetByAsset retrieves all records for an asset.
func (s *CurveRecordStore) GetByAsset(ctx context.Context, asset string) ([]*domain.CurveRecord, error) {
	return s.loadIndex(ctx, s.assetKey(asset))
}

// GetAll retrieves all records.
func (s *CurveRecordStore) GetAll(ctx context.Context) ([]*domain.CurveRecord, error) {
	return s.loadIndex(ctx, s.allKey())
}

// loadIndex reads the records listed in a sorted set, in score then id order.
func (s *CurveRecordStore) loadIndex(ctx context.Context, index string) ([]*domain.CurveRecord, error) {
	ids, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", index, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load curve records: %w", err)
	}

	records := make([]*domain.CurveRecord, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // index entry without document
		}
		var r domain.CurveRecord
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			return nil, fmt.Errorf("unmarshal curve record %s: %w", ids[i], err)
		}
		records = append(records, &r)
	}
	return records, nil
}
