package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrPoolExhausted is returned by Acquire when no valid entry is left.
var ErrPoolExhausted = errors.New("identity pool exhausted")

const (
	// DefaultRefreshAfter is the number of issued identities after which
	// the pool re-reads its directory.
	DefaultRefreshAfter = 1000

	// DefaultValidateConcurrency bounds the number of concurrent probes.
	DefaultValidateConcurrency = 10

	refreshTimeout = time.Minute
)

// Config holds the collaborators and tuning of a Pool.
type Config struct {
	// Lister supplies candidate addresses. Required.
	Lister Lister

	// Prober validates entries after each refresh. Nil skips validation.
	Prober Prober

	// Scheme is the proxy scheme of every entry ("http" or "socks5").
	Scheme string

	// RefreshAfter triggers a background refresh after that many
	// issuances. Zero uses DefaultRefreshAfter; negative disables it.
	RefreshAfter int

	// ValidateConcurrency bounds concurrent probes.
	ValidateConcurrency int

	// UserAgent picks the agent attached to each issued identity.
	UserAgent func() string

	Logger logrus.FieldLogger
}

type entry struct {
	address string
	slot    int
}

// Pool is a rotating set of proxy identities.
//
// The pool keeps an arena of valid entries and a cursor. Acquire walks the
// arena cyclically, Invalidate removes an entry by address, and Refresh
// replaces the whole arena. All methods are safe for concurrent use;
// Validate runs without holding the lock, so probing never blocks Acquire.
type Pool struct {
	lister        Lister
	prober        Prober
	scheme        string
	refreshAfter  int
	validateLimit int
	userAgent     func() string
	log           logrus.FieldLogger

	refreshing singleflight.Group

	mu         sync.Mutex
	entries    []entry
	generation uint64
	issued     int
	root       *Shard
}

// NewPool creates an empty pool. Call Refresh to populate it.
func NewPool(cfg Config) *Pool {
	p := &Pool{
		lister:        cfg.Lister,
		prober:        cfg.Prober,
		scheme:        cfg.Scheme,
		refreshAfter:  cfg.RefreshAfter,
		validateLimit: cfg.ValidateConcurrency,
		userAgent:     cfg.UserAgent,
		log:           cfg.Logger,
	}
	if p.scheme == "" {
		p.scheme = "http"
	}
	if p.refreshAfter == 0 {
		p.refreshAfter = DefaultRefreshAfter
	}
	if p.validateLimit <= 0 {
		p.validateLimit = DefaultValidateConcurrency
	}
	if p.userAgent == nil {
		p.userAgent = RandomUserAgent
	}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}
	p.root = &Shard{pool: p, index: 0, count: 1}
	return p
}

// Acquire returns the next identity of the cyclic sequence.
func (p *Pool) Acquire() (Identity, error) {
	return p.root.Acquire()
}

// Invalidate removes every entry with id's address. It is idempotent.
//
// Identities issued before the last refresh are ignored: a late failure
// must not remove a freshly listed entry that shares the address.
func (p *Pool) Invalidate(id Identity) {
	p.invalidate(id)
}

func (p *Pool) invalidate(id Identity) bool {
	p.mu.Lock()
	current := p.generation
	if id.Generation != current {
		p.mu.Unlock()
		p.log.WithFields(logrus.Fields{
			"proxy":      id.String(),
			"generation": id.Generation,
			"current":    current,
		}).Debug("stale proxy ignored")
		return false
	}
	removed := p.removeLocked(id.Address)
	left := len(p.entries)
	p.mu.Unlock()

	if removed {
		p.log.WithFields(logrus.Fields{"proxy": id.String(), "left": left}).Debug("proxy invalidated")
	}
	return removed
}

func (p *Pool) removeLocked(address string) bool {
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.address != address {
			kept = append(kept, e)
		}
	}
	removed := len(kept) != len(p.entries)
	clear(p.entries[len(kept):])
	p.entries = kept
	return removed
}

// Len returns the number of valid entries.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Generation returns the number of successful refreshes so far.
func (p *Pool) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Snapshot returns the current entries as identities.
func (p *Pool) Snapshot() []Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]Identity, 0, len(p.entries))
	for _, e := range p.entries {
		ids = append(ids, Identity{Address: e.address, Scheme: p.scheme, Generation: p.generation})
	}
	return ids
}

// Shard returns a view of the pool that only issues the entries whose
// position in the last refresh is index modulo count. Shards with
// different indexes never issue the same entry.
func (p *Pool) Shard(index, count int) *Shard {
	if count < 1 {
		count = 1
	}
	return &Shard{pool: p, index: ((index % count) + count) % count, count: count}
}

// After returns a rotation over the pool; see Rotation.
func (p *Pool) After(interval, groups int) *Rotation[Identity] {
	return p.root.After(interval, groups)
}

// Refresh replaces the arena with a fresh listing and resets the usage
// counter. Concurrent calls share a single fetch. When a prober is
// configured, the new entries are validated in the background.
//
// An empty listing is an error and leaves the current arena in place.
func (p *Pool) Refresh(ctx context.Context) error {
	_, err, _ := p.refreshing.Do("refresh", func() (any, error) {
		addrs, err := p.lister.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("refresh identity pool: %w", err)
		}
		if len(addrs) == 0 {
			return nil, errors.New("refresh identity pool: no proxies listed")
		}

		entries := make([]entry, 0, len(addrs))
		for i, addr := range addrs {
			entries = append(entries, entry{address: addr, slot: i})
		}

		p.mu.Lock()
		p.entries = entries
		p.generation++
		p.issued = 0
		gen := p.generation
		p.mu.Unlock()

		p.log.WithFields(logrus.Fields{"proxies": len(entries), "generation": gen}).Info("identity pool refreshed")

		if p.prober != nil {
			ids := p.Snapshot()
			go p.Validate(context.WithoutCancel(ctx), ids)
		}
		return nil, nil
	})
	return err
}

func (p *Pool) autoRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := p.Refresh(ctx); err != nil {
		p.log.WithError(err).Warn("identity pool refresh failed")
	}
}

// Validate probes ids concurrently and invalidates every entry whose probe
// fails. It returns the number of entries removed; results for ids of an
// older generation remove nothing.
func (p *Pool) Validate(ctx context.Context, ids []Identity) int {
	if p.prober == nil {
		return 0
	}

	var g errgroup.Group
	g.SetLimit(p.validateLimit)

	var removed atomic.Int32
	for _, id := range ids {
		g.Go(func() error {
			if err := p.prober.Probe(ctx, id); err != nil {
				p.log.WithField("proxy", id.String()).WithError(err).Debug("proxy failed validation")
				if p.invalidate(id) {
					removed.Add(1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	p.log.WithField("valid", p.Len()).Info("proxy validation finished")
	return int(removed.Load())
}

// Shard is a disjoint view of a Pool.
type Shard struct {
	pool   *Pool
	index  int
	count  int
	cursor int // guarded by pool.mu
}

// Acquire returns the next identity of the shard.
func (s *Shard) Acquire() (Identity, error) {
	p := s.pool
	p.mu.Lock()

	n := len(p.entries)
	for k := range n {
		i := (s.cursor + k) % n
		e := p.entries[i]
		if e.slot%s.count != s.index {
			continue
		}
		s.cursor = (i + 1) % n

		p.issued++
		refresh := p.refreshAfter > 0 && p.issued >= p.refreshAfter
		if refresh {
			p.issued = 0
		}
		id := Identity{
			Address:    e.address,
			Scheme:     p.scheme,
			UserAgent:  p.userAgent(),
			Generation: p.generation,
		}
		p.mu.Unlock()

		if refresh {
			go p.autoRefresh()
		}
		return id, nil
	}

	p.mu.Unlock()
	return Identity{}, ErrPoolExhausted
}

// Invalidate removes id from the underlying pool.
func (s *Shard) Invalidate(id Identity) {
	s.pool.Invalidate(id)
}

// Len returns the number of valid entries this shard can issue.
func (s *Shard) Len() int {
	p := s.pool
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.entries {
		if e.slot%s.count == s.index {
			n++
		}
	}
	return n
}

// After returns a rotation over this shard; see Rotation.
func (s *Shard) After(interval, groups int) *Rotation[Identity] {
	return NewRotation(interval, groups, s.Acquire)
}
