package teamlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrLockTimeout = errors.New("team_lock_timeout")

// Locker serializes work per team. Lock blocks until the team's lock is held
// or the wait budget (or ctx) runs out, in which case the error wraps
// ErrLockTimeout. The returned func releases the lock and is safe to call
// more than once.
type Locker interface {
	Lock(ctx context.Context, teamID snowflake.ID) (func(), error)
}

type Config struct {
	// TTL bounds how long a crashed holder can keep a distributed lock.
	TTL time.Duration
	// Wait bounds how long Lock blocks before giving up.
	Wait time.Duration
	// RetryInterval is the polling period while waiting on a distributed lock.
	RetryInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		TTL:           30 * time.Second,
		Wait:          10 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.Wait <= 0 {
		c.Wait = def.Wait
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = def.RetryInterval
	}
	return c
}

// LocalLocker is an in-process keyed mutex. It is correct only when a single
// process runs snapshot jobs.
type LocalLocker struct {
	cfg   Config
	mu    sync.Mutex
	slots map[snowflake.ID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(cfg Config) *LocalLocker {
	return &LocalLocker{
		cfg:   cfg.withDefaults(),
		slots: make(map[snowflake.ID]*slot),
	}
}

func (l *LocalLocker) Lock(ctx context.Context, teamID snowflake.ID) (func(), error) {
	s := l.acquire(teamID)

	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.Wait)
	defer cancel()

	select {
	case s.ch <- struct{}{}:
	case <-waitCtx.Done():
		l.release(teamID)
		return nil, fmt.Errorf("%w: team %s: %v", ErrLockTimeout, teamID, waitCtx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(teamID)
		})
	}, nil
}

func (l *LocalLocker) acquire(teamID snowflake.ID) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[teamID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[teamID] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) release(teamID snowflake.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[teamID]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, teamID)
	}
}
