package edit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yushimatenjin/gaea-mcp/pkg/cache"
	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
)

// Locker serializes work on a key. Lock blocks until the key is free or ctx
// is done; the returned function releases the key and must be called
// exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// MemoryLocker is a Locker for a single process. Keys are released from
// memory once no caller holds or waits for them.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewMemoryLocker returns an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock)}
}

// Lock implements [Locker].
func (m *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, l)
		return nil, lockTimeout(key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			m.release(key, l)
		})
	}, nil
}

func (m *MemoryLocker) release(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// held returns the number of keys currently tracked.
func (m *MemoryLocker) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// RedisOptions configures a RedisLocker.
type RedisOptions struct {
	// Prefix is prepended to every redis key.
	Prefix string
	// TTL bounds how long a crashed holder can block a key.
	TTL time.Duration
	// Poll is the retry interval while waiting for a key.
	Poll time.Duration
}

// RedisLocker is a Locker shared by every process using the same redis
// server. A key is held with SET NX PX and a random token. While held, the
// expiry is pushed back every TTL/3, so a lock outlives the TTL as long as
// its holder is alive. Release deletes the key only while it still holds
// the token.
type RedisLocker struct {
	client redis.UniversalClient
	opts   RedisOptions
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// NewRedisLocker returns a RedisLocker using client. Zero options are
// replaced by defaults.
func NewRedisLocker(client redis.UniversalClient, opts RedisOptions) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "gaea-mcp:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Minute
	}
	if opts.Poll <= 0 {
		opts.Poll = 50 * time.Millisecond
	}
	return &RedisLocker{client: client, opts: opts}
}

// Key returns the redis key used for a lock key. Paths are hashed so any
// path length and character set maps to a fixed-size key.
func (r *RedisLocker) Key(key string) string {
	return r.opts.Prefix + cache.Hash([]byte(key))
}

// Lock implements [Locker].
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	rkey := r.Key(key)
	token := uuid.NewString()

	ticker := time.NewTicker(r.opts.Poll)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, rkey, token, r.opts.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, lockTimeout(key, ctx.Err())
			}
			return nil, gerrors.Wrap(gerrors.ErrCodeIO, err, "acquire lock for %s", key)
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, lockTimeout(key, ctx.Err())
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.renew(rkey, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, r.client, []string{rkey}, token).Err()
		})
	}, nil
}

// renew extends the expiry of rkey until stop is closed or the key no
// longer holds token.
func (r *RedisLocker) renew(rkey, token string, stop <-chan struct{}) {
	every := max(r.opts.TTL/3, time.Millisecond)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		n, err := renewScript.Run(ctx, r.client, []string{rkey}, token, r.opts.TTL.Milliseconds()).Int()
		cancel()
		if err == nil && n == 0 {
			return
		}
	}
}

func lockTimeout(key string, cause error) error {
	return gerrors.Wrap(gerrors.ErrCodeLocked, cause, "%s is being edited", key)
}

var (
	_ Locker = (*MemoryLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
)
