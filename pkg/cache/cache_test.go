package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, ttl), mr
}

func TestJitterBounds(t *testing.T) {
	base := 60 * time.Second
	max := base + base/10
	for i := 0; i < 1000; i++ {
		got := Jitter(base)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, max)
	}
}

func TestJitterVaries(t *testing.T) {
	base := 60 * time.Second
	seen := make(map[time.Duration]struct{})
	for i := 0; i < 200; i++ {
		seen[Jitter(base)] = struct{}{}
	}
	// 每次调用重新取随机数，不应该是常量
	assert.Greater(t, len(seen), 1)
}

func TestJitterNonPositiveBase(t *testing.T) {
	assert.Equal(t, time.Duration(0), Jitter(0))
	assert.Equal(t, -time.Second, Jitter(-time.Second))
}

func TestStringRoundTripWithTTL(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	_, hit, err := s.GetString(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, s.SetString(ctx, "k", "v"))

	val, hit, err := s.GetString(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v", val)

	ttl := mr.TTL("k")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, time.Minute+6*time.Second)
}

func TestDeleteMultipleKeys(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.SetString(ctx, "a", "1"))
	require.NoError(t, s.SetString(ctx, "b", "2"))

	require.NoError(t, s.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))

	// 删除不存在的 key 不报错
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx))
}

func TestGetOrLoadCachesPositiveResult(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	ctx := context.Background()
	var loads int64

	load := func(ctx context.Context) (string, bool, error) {
		atomic.AddInt64(&loads, 1)
		return "value", true, nil
	}

	val, found, err := GetOrLoad(ctx, s, "k", load)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", val)
	assert.True(t, mr.Exists("k"))

	// 第二次命中缓存，不再回源
	val, found, err = GetOrLoad(ctx, s, "k", load)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", val)
	assert.Equal(t, int64(1), atomic.LoadInt64(&loads))
}

func TestGetOrLoadDoesNotCacheNegativeResult(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	ctx := context.Background()
	var loads int64

	load := func(ctx context.Context) (string, bool, error) {
		atomic.AddInt64(&loads, 1)
		return "", false, nil
	}

	for i := 0; i < 3; i++ {
		_, found, err := GetOrLoad(ctx, s, "missing", load)
		require.NoError(t, err)
		assert.False(t, found)
	}

	// 负结果不写缓存，每次未命中都重新回源
	assert.Equal(t, int64(3), atomic.LoadInt64(&loads))
	assert.False(t, mr.Exists("missing"))
}

func TestGetOrLoadDoesNotCacheError(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	ctx := context.Background()
	wantErr := errors.New("db gone")
	var loads int64

	load := func(ctx context.Context) (int64, bool, error) {
		if atomic.AddInt64(&loads, 1) == 1 {
			return 0, false, wantErr
		}
		return 7, true, nil
	}

	_, _, err := GetOrLoad(ctx, s, "k", load)
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, mr.Exists("k"))

	// 失败之后下一次调用正常回源
	val, found, err := GetOrLoad(ctx, s, "k", load)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(7), val)
}

func TestGetOrLoadCoalescesConcurrentMisses(t *testing.T) {
	s, _ := newTestStore(t, time.Minute)
	ctx := context.Background()
	var loads int64
	release := make(chan struct{})

	load := func(ctx context.Context) (string, bool, error) {
		atomic.AddInt64(&loads, 1)
		<-release
		return "shared", true, nil
	}

	const callers = 10
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, found, err := GetOrLoad(ctx, s, "hot", load)
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "shared", val)
		}()
	}

	require.Eventually(t, func() bool {
		return s.Group().InFlight("hot")
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// 并发未命中合并成一次回源
	assert.Equal(t, int64(1), atomic.LoadInt64(&loads))
}

func TestGetOrLoadStructValue(t *testing.T) {
	type row struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	s, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	want := row{ID: 3, Name: "ops"}
	got, found, err := GetOrLoad(ctx, s, "row", func(ctx context.Context) (row, bool, error) {
		return want, true, nil
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	// 命中路径走反序列化
	got, found, err = GetOrLoad(ctx, s, "row", func(ctx context.Context) (row, bool, error) {
		return row{}, false, errors.New("should not be called")
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}
