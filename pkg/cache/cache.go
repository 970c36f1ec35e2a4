package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/huaback/pkg/singleflight"
	"github.com/redis/go-redis/v9"
)

// Jitter 生成带随机偏移量的 TTL
//
// 比如名义 TTL 是 60 秒，实际返回值在 [60,66] 秒之间，每次调用重新取随机数。
// 避免同一时刻写入的大量 key 同时过期造成缓存雪崩。
func Jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	// 10% offset
	offset := rand.Int64N(int64(base/10) + 1)
	return base + time.Duration(offset)
}

// Store Redis 读穿缓存
//
// 读路径：先查 Redis，未命中时通过 singleflight 合并回源查询，
// 查到的结果带抖动 TTL 写回。空结果不缓存，下次未命中会重新回源。
type Store struct {
	client *redis.Client
	ttl    time.Duration
	group  *singleflight.Group
}

// NewStore 创建缓存实例，ttl 为名义存活时间
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		group:  singleflight.New(),
	}
}

// TTL 获取名义存活时间
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// GetString 获取原始字符串值，第二个返回值表示是否命中
func (s *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetString 以抖动 TTL 写入原始字符串值
func (s *Store) SetString(ctx context.Context, key, val string) error {
	return s.client.Set(ctx, key, val, Jitter(s.ttl)).Err()
}

// Delete 删除一个或多个 key，一次 DEL 命令完成
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Group 获取合并回源用的 singleflight 组
func (s *Store) Group() *singleflight.Group {
	return s.group
}

// loadResult 回源结果，found 为 false 表示后端也没有这条数据
type loadResult[T any] struct {
	val   T
	found bool
}

// GetOrLoad 读穿查询
//
// 命中时直接反序列化返回；未命中时通过 singleflight 回源，同一个 key 的并发
// 未命中只会触发一次 load。load 返回 found=false 时不写缓存（负结果不缓存），
// 返回错误时原样传给所有等待方。
func GetOrLoad[T any](ctx context.Context, s *Store, key string, load func(ctx context.Context) (T, bool, error)) (T, bool, error) {
	var zero T

	data, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var val T
		if err := json.Unmarshal(data, &val); err != nil {
			return zero, false, fmt.Errorf("cache: unmarshal key %q: %w", key, err)
		}
		return val, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		return zero, false, err
	}

	res, err := s.group.Do(ctx, key, func() (interface{}, error) {
		val, found, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if !found {
			return loadResult[T]{found: false}, nil
		}
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("cache: marshal key %q: %w", key, err)
		}
		if err := s.client.Set(ctx, key, data, Jitter(s.ttl)).Err(); err != nil {
			return nil, err
		}
		return loadResult[T]{val: val, found: true}, nil
	})
	if err != nil {
		return zero, false, err
	}

	lr, ok := res.(loadResult[T])
	if !ok {
		return zero, false, fmt.Errorf("cache: unexpected flight result type for key %q", key)
	}
	return lr.val, lr.found, nil
}
