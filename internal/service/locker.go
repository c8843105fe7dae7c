package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix   = "section-lock:"
	lockRetryPeriod = 20 * time.Millisecond
)

// releaseScript deletes the lock key only while it still holds our token,
// so an expired lease taken over by another replica is left alone.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// SectionLocker serialises Enqueue, Dequeue and FinishService per section
// name.  Inside one process each section has a single-slot semaphore; when
// a Redis client is configured a lease in Redis is taken as well so
// replicas sharing one database serialise too.  Acquisition gives up after
// the configured wait with ErrLockTimeout.
type SectionLocker struct {
	mu    sync.Mutex
	slots map[string]*sectionSlot

	rdb    *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

type sectionSlot struct {
	sem  chan struct{}
	refs int
}

// NewSectionLocker returns a locker.  rdb may be nil for in-process locking
// only.  ttl is the Redis lease; wait bounds acquisition (0 waits for the
// caller's context only).
func NewSectionLocker(rdb *redis.Client, ttl, wait time.Duration, logger *zap.Logger) *SectionLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &SectionLocker{
		slots:  map[string]*sectionSlot{},
		rdb:    rdb,
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Lock acquires the critical section of one section name and returns the
// function that releases it.
func (l *SectionLocker) Lock(ctx context.Context, section string) (func(), error) {
	return l.LockMany(ctx, section)
}

// LockMany acquires several sections in a fixed order, so two callers
// locking overlapping sets cannot deadlock.  On failure nothing is held.
func (l *SectionLocker) LockMany(ctx context.Context, sections ...string) (func(), error) {
	names := uniqueSorted(sections)
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	var releases []func()
	unlockAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, name := range names {
		release, err := l.acquire(ctx, name)
		if err != nil {
			unlockAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return unlockAll, nil
}

func (l *SectionLocker) acquire(ctx context.Context, section string) (func(), error) {
	slot := l.ref(section)
	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(section)
		return nil, l.timeoutErr(ctx, section)
	}
	releaseLocal := func() {
		<-slot.sem
		l.unref(section)
	}
	if l.rdb == nil {
		return releaseLocal, nil
	}

	token, err := l.acquireRemote(ctx, section)
	if err != nil {
		releaseLocal()
		return nil, err
	}
	return func() {
		// The caller's context may already be done; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{lockKeyPrefix + section}, token).Err(); err != nil {
			l.logger.Warn("section lock release failed", zap.String("section", section), zap.Error(err))
		}
		releaseLocal()
	}, nil
}

// acquireRemote polls SET NX until it wins the lease or ctx ends.
func (l *SectionLocker) acquireRemote(ctx context.Context, section string) (string, error) {
	key := lockKeyPrefix + section
	token := uuid.NewString()
	ticker := time.NewTicker(lockRetryPeriod)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return "", l.timeoutErr(ctx, section)
			}
			return "", errors.Wrapf(err, "acquire redis lock for section %q", section)
		}
		if ok {
			return token, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", l.timeoutErr(ctx, section)
		}
	}
}

func (l *SectionLocker) timeoutErr(ctx context.Context, section string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		l.logger.Warn("section lock wait exceeded", zap.String("section", section), zap.Duration("wait", l.wait))
		return errors.WithMessagef(ErrLockTimeout, "section %q", section)
	}
	return ctx.Err()
}

func (l *SectionLocker) ref(section string) *sectionSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[section]
	if !ok {
		s = &sectionSlot{sem: make(chan struct{}, 1)}
		l.slots[section] = s
	}
	s.refs++
	return s
}

func (l *SectionLocker) unref(section string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[section]; ok {
		s.refs--
		if s.refs == 0 {
			delete(l.slots, section)
		}
	}
}

func uniqueSorted(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
