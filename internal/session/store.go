package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pagepal/pagepal/internal/log"
)

const (
	// keyPrefix namespaces session entries in the shared cache.
	keyPrefix = "pagepal:session:"

	// defaultSweepInterval is how often the in-process tier evicts idle sessions.
	defaultSweepInterval = time.Minute

	// defaultProbeInterval is how long the store waits before re-checking a
	// cache that was marked unavailable. Until then every operation
	// short-circuits to the in-process tier.
	defaultProbeInterval = 30 * time.Second
)

// Store manages session persistence over a two-tier backend: an external
// cache (Redis) with per-entry TTL, and an in-process fallback map swept
// periodically. Every operation goes through the same tier decision in one
// place; callers never see which tier served them.
//
// Store is safe for concurrent use by multiple goroutines. The
// read-modify-write cycle across separate calls (Get then Save) is not
// atomic: concurrent turns on one session can lose updates. That race is
// accepted, not designed out.
type Store struct {
	cache  cacheClient // nil = cache tier disabled entirely
	ttl    time.Duration
	logger log.Logger

	mu    sync.RWMutex
	local map[string]*Session

	stateMu   sync.Mutex
	cacheUp   bool
	lastProbe time.Time

	sweepInterval time.Duration
	probeInterval time.Duration
}

// NewStore creates a session store backed by the given Redis client.
// A nil client disables the cache tier; the store then runs purely in-process
// (the local development mode).
func NewStore(client *redis.Client, ttl time.Duration, logger log.Logger) *Store {
	var c cacheClient
	if client != nil {
		c = &redisCache{client: client}
	}
	return newStoreWithCache(c, ttl, logger)
}

func newStoreWithCache(c cacheClient, ttl time.Duration, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		cache:         c,
		ttl:           ttl,
		logger:        logger,
		local:         make(map[string]*Session),
		cacheUp:       c != nil,
		sweepInterval: defaultSweepInterval,
		probeInterval: defaultProbeInterval,
	}
}

// Create creates a session with defaults, merged with any provided overrides.
// If the session already exists it is returned unchanged (idempotent).
func (s *Store) Create(ctx context.Context, id string, initial *Update) (*Session, error) {
	if existing, err := s.load(ctx, id); err == nil {
		return existing, nil
	}

	sess := newSession(id, time.Now())
	if initial != nil {
		applyUpdate(sess, initial)
	}
	if err := s.persist(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session %s: %w", id, err)
	}

	s.logger.Debug("created session", "id", id)
	return sess, nil
}

// Get retrieves a session, refreshing its LastActivity as a side effect.
// Returns ErrSessionNotFound if absent or expired.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.LastActivity = time.Now()
	if err := s.persist(ctx, sess); err != nil {
		// The read itself succeeded; a failed activity refresh is not fatal.
		s.logger.Warn("failed to refresh session activity", "id", id, "error", err)
	}
	return sess, nil
}

// GetOrCreate fetches the session or creates it with defaults if absent.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if sess, err := s.Get(ctx, id); err == nil {
		return sess, nil
	}
	return s.Create(ctx, id, nil)
}

// Save persists the session, resetting its idle TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	sess.LastActivity = time.Now()
	if err := s.persist(ctx, sess); err != nil {
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}
	return nil
}

// AddMessage appends a message to the session's history.
// Fails with ErrSessionNotFound if the session does not exist.
func (s *Store) AddMessage(ctx context.Context, id string, msg Message) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	sess.History = append(sess.History, msg)
	return s.Save(ctx, sess)
}

// Update applies a partial mutation: UserID replaces, Context and Preferences
// merge shallowly. Returns the updated session, or ErrSessionNotFound.
func (s *Store) Update(ctx context.Context, id string, upd Update) (*Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	applyUpdate(sess, &upd)
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ResetContext replaces the session's context map wholesale with an empty
// one. The only sanctioned non-merge context mutation.
func (s *Store) ResetContext(ctx context.Context, id string) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	sess.Context = map[string]any{}
	return s.Save(ctx, sess)
}

// Delete removes the session from both tiers.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.cacheAvailable(ctx) {
		if err := s.cache.Del(ctx, keyPrefix+id); err != nil {
			s.markCacheDown(err)
		}
	}

	s.mu.Lock()
	delete(s.local, id)
	s.mu.Unlock()

	s.logger.Debug("deleted session", "id", id)
	return nil
}

// Run sweeps idle sessions from the in-process tier until ctx is canceled.
// The cache tier expires entries on its own; this loop only covers the
// fallback map, where no TTL is enforced otherwise.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.local {
		if now.Sub(sess.LastActivity) > s.ttl {
			delete(s.local, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("swept idle sessions", "evicted", evicted)
	}
}

// load fetches a session through the current tier. The cache is authoritative
// while available; the local map doubles as a warm mirror for fallback.
func (s *Store) load(ctx context.Context, id string) (*Session, error) {
	if s.cacheAvailable(ctx) {
		raw, err := s.cache.Get(ctx, keyPrefix+id)
		switch {
		case err == nil:
			var sess Session
			if uerr := json.Unmarshal([]byte(raw), &sess); uerr != nil {
				return nil, fmt.Errorf("decoding session %s: %w", id, uerr)
			}
			s.mirror(&sess)
			return &sess, nil
		case err == errCacheMiss:
			// Authoritative miss: drop any stale fallback copy too.
			s.mu.Lock()
			delete(s.local, id)
			s.mu.Unlock()
			return nil, ErrSessionNotFound
		default:
			s.markCacheDown(err)
		}
	}

	s.mu.RLock()
	sess, ok := s.local[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

// persist writes a session through the current tier, always mirroring into
// the local map so a cache outage does not lose live sessions.
func (s *Store) persist(ctx context.Context, sess *Session) error {
	s.mirror(sess)

	if !s.cacheAvailable(ctx) {
		return nil
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}
	if err := s.cache.Set(ctx, keyPrefix+sess.ID, string(raw), s.ttl); err != nil {
		s.markCacheDown(err)
		// The local mirror already holds the write; degrade silently.
	}
	return nil
}

func (s *Store) mirror(sess *Session) {
	s.mu.Lock()
	s.local[sess.ID] = cloneSession(sess)
	s.mu.Unlock()
}

// cacheAvailable reports whether the cache tier should be used, lazily
// re-probing a downed cache after probeInterval.
func (s *Store) cacheAvailable(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.cacheUp {
		return true
	}
	if time.Since(s.lastProbe) < s.probeInterval {
		return false
	}

	s.lastProbe = time.Now()
	if err := s.cache.Ping(ctx); err != nil {
		return false
	}

	s.cacheUp = true
	s.logger.Info("session cache recovered, resuming cache tier")
	return true
}

func (s *Store) markCacheDown(err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.cacheUp {
		s.logger.Warn("session cache unavailable, falling back to in-process store", "error", err)
	}
	s.cacheUp = false
	s.lastProbe = time.Now()
}

func applyUpdate(sess *Session, upd *Update) {
	if upd.UserID != nil {
		sess.UserID = *upd.UserID
	}
	if sess.Context == nil {
		sess.Context = map[string]any{}
	}
	for k, v := range upd.Context {
		sess.Context[k] = v
	}
	if sess.Preferences == nil {
		sess.Preferences = map[string]string{}
	}
	for k, v := range upd.Preferences {
		sess.Preferences[k] = v
	}
}

// cloneSession makes a defensive copy so callers and the local mirror never
// alias each other's maps and slices.
func cloneSession(sess *Session) *Session {
	out := *sess
	out.History = make([]Message, len(sess.History))
	copy(out.History, sess.History)
	out.Context = make(map[string]any, len(sess.Context))
	for k, v := range sess.Context {
		out.Context[k] = v
	}
	out.Preferences = make(map[string]string, len(sess.Preferences))
	for k, v := range sess.Preferences {
		out.Preferences[k] = v
	}
	return &out
}
