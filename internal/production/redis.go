package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/comalice/chartkit/internal/core"
)

// RedisPersister stores snapshots as JSON strings under <prefix><machineID>
// and indexes machine IDs in a sorted set scored by expiry.
type RedisPersister struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type RedisOption func(*RedisPersister)

// WithTTL sets the expiration of stored snapshots.
func WithTTL(ttl time.Duration) RedisOption {
	return func(p *RedisPersister) {
		p.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(p *RedisPersister) {
		p.prefix = prefix
	}
}

// NewRedisPersister connects to a Redis server.
func NewRedisPersister(address, password string, db int, opts ...RedisOption) *RedisPersister {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisPersisterFromClient(rdb, opts...)
}

// NewRedisPersisterFromClient wraps an existing client.
func NewRedisPersisterFromClient(client *backend.Client, opts ...RedisOption) *RedisPersister {
	p := &RedisPersister{
		client: client,
		prefix: "chartkit:machine:",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RedisPersister) key(machineID string) string {
	return p.prefix + machineID
}

func (p *RedisPersister) indexKey() string {
	return p.prefix + "index"
}

// Save writes the snapshot and refreshes its index entry in one pipeline.
func (p *RedisPersister) Save(ctx context.Context, snapshot core.MachineSnapshot) error {
	data, err := core.MarshalSnapshot(snapshot)
	if err != nil {
		return err
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, p.key(snapshot.MachineID), data, p.ttl)

	score := float64(time.Now().Add(p.ttl).Unix())
	if p.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, p.indexKey(), backend.Z{Score: score, Member: snapshot.MachineID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save %s to redis: %w", snapshot.MachineID, err)
	}
	return nil
}

// Load reads a snapshot; a missing key wraps core.ErrNotFound.
func (p *RedisPersister) Load(ctx context.Context, machineID string) (core.MachineSnapshot, error) {
	val, err := p.client.Get(ctx, p.key(machineID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return core.MachineSnapshot{}, fmt.Errorf("machine %q: %w", machineID, core.ErrNotFound)
		}
		return core.MachineSnapshot{}, fmt.Errorf("get %s from redis: %w", machineID, err)
	}
	snapshot, err := core.UnmarshalSnapshot(val)
	if err != nil {
		return core.MachineSnapshot{}, err
	}
	snapshot.MachineID = machineID
	return snapshot, nil
}

func (p *RedisPersister) Delete(ctx context.Context, machineID string) error {
	pipe := p.client.Pipeline()
	pipe.Del(ctx, p.key(machineID))
	pipe.ZRem(ctx, p.indexKey(), machineID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the stored machine IDs, pruning expired index entries first.
func (p *RedisPersister) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := p.client.ZRemRangeByScore(ctx, p.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("prune expired machines: %w", err)
	}
	ids, err := p.client.ZRange(ctx, p.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (p *RedisPersister) Close() error {
	return p.client.Close()
}
