package memkv

import (
    "container/heap"
    "hash/fnv"
    "sync"
    "sync/atomic"
    "time"
)

type Options struct {
    Shards        int           // number of shards (default 256)
    SweepInterval time.Duration // how often expired keys are collected (default 1s)
}

func (o Options) withDefaults() Options {
    if o.Shards <= 0 { o.Shards = 256 }
    if o.SweepInterval <= 0 { o.SweepInterval = time.Second }
    return o
}

type Store struct {
    opts    Options
    shards  []shard
    nowFn   func() time.Time
    closeCh chan struct{}
    closeOnce sync.Once
    wg      sync.WaitGroup

    expMu sync.Mutex
    expq  expQueue

    mKeys    atomic.Int64
    mSets    atomic.Uint64
    mGets    atomic.Uint64
    mHits    atomic.Uint64
    mDels    atomic.Uint64
    mExpired atomic.Uint64
}

type shard struct {
    mu sync.RWMutex
    m  map[string]entry
}

type entry struct {
    val      []byte
    expireAt int64 // unix nano; 0 = never
}

func (e entry) expired(now int64) bool { return e.expireAt != 0 && e.expireAt <= now }

// New creates a store and starts its sweeper. Call Close to stop it.
func New(opts Options) *Store {
    opts = opts.withDefaults()
    s := &Store{
        opts:    opts,
        shards:  make([]shard, opts.Shards),
        nowFn:   time.Now,
        closeCh: make(chan struct{}),
    }
    for i := range s.shards {
        s.shards[i].m = make(map[string]entry)
    }
    s.wg.Add(1)
    go s.sweeper()
    return s
}

// Close stops the sweeper. Data stays readable.
func (s *Store) Close() {
    s.closeOnce.Do(func() { close(s.closeCh) })
    s.wg.Wait()
}

func (s *Store) shardFor(key string) *shard {
    h := fnv.New32a()
    _, _ = h.Write([]byte(key))
    return &s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *Store) deadline(ttl time.Duration) int64 {
    if ttl <= 0 { return 0 }
    return s.nowFn().Add(ttl).UnixNano()
}

// Set stores val under key. Returns true if the key was created rather than overwritten.
func (s *Store) Set(key string, val []byte, ttl time.Duration) bool {
    exp := s.deadline(ttl)
    v := append([]byte(nil), val...)
    sh := s.shardFor(key)
    sh.mu.Lock()
    prev, present := sh.m[key]
    live := present && !prev.expired(s.nowFn().UnixNano())
    sh.m[key] = entry{val: v, expireAt: exp}
    sh.mu.Unlock()
    if !present { s.mKeys.Add(1) }
    s.mSets.Add(1)
    if exp != 0 { s.enqueueExpire(key, exp) }
    return !live
}

// SetNX stores val only if key is absent (or expired). The check and the
// write happen under one shard lock. Returns true if the value was stored.
func (s *Store) SetNX(key string, val []byte, ttl time.Duration) bool {
    exp := s.deadline(ttl)
    sh := s.shardFor(key)
    sh.mu.Lock()
    prev, present := sh.m[key]
    if present && !prev.expired(s.nowFn().UnixNano()) {
        sh.mu.Unlock()
        return false
    }
    sh.m[key] = entry{val: append([]byte(nil), val...), expireAt: exp}
    sh.mu.Unlock()
    if !present { s.mKeys.Add(1) }
    s.mSets.Add(1)
    if exp != 0 { s.enqueueExpire(key, exp) }
    return true
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key string) ([]byte, bool) {
    s.mGets.Add(1)
    sh := s.shardFor(key)
    sh.mu.RLock()
    e, ok := sh.m[key]
    sh.mu.RUnlock()
    if !ok || e.expired(s.nowFn().UnixNano()) { return nil, false }
    s.mHits.Add(1)
    return append([]byte(nil), e.val...), true
}

func (s *Store) Exists(key string) bool { _, ok := s.Get(key); return ok }

// Delete removes key. Returns true if it was present.
func (s *Store) Delete(key string) bool {
    sh := s.shardFor(key)
    sh.mu.Lock()
    _, ok := sh.m[key]
    if ok { delete(sh.m, key) }
    sh.mu.Unlock()
    if ok {
        s.mKeys.Add(-1)
        s.mDels.Add(1)
    }
    return ok
}

// Expire sets a new TTL on an existing key; ttl <= 0 makes it permanent.
func (s *Store) Expire(key string, ttl time.Duration) bool {
    exp := s.deadline(ttl)
    sh := s.shardFor(key)
    sh.mu.Lock()
    e, ok := sh.m[key]
    if ok && !e.expired(s.nowFn().UnixNano()) {
        e.expireAt = exp
        sh.m[key] = e
    } else {
        ok = false
    }
    sh.mu.Unlock()
    if ok && exp != 0 { s.enqueueExpire(key, exp) }
    return ok
}

// Len returns the number of stored keys, including expired keys not yet swept.
func (s *Store) Len() int { return int(s.mKeys.Load()) }

type Stats struct {
    Keys    int64
    Sets    uint64
    Gets    uint64
    Hits    uint64
    Dels    uint64
    Expired uint64
}

func (s *Store) Metrics() Stats {
    return Stats{
        Keys:    s.mKeys.Load(),
        Sets:    s.mSets.Load(),
        Gets:    s.mGets.Load(),
        Hits:    s.mHits.Load(),
        Dels:    s.mDels.Load(),
        Expired: s.mExpired.Load(),
    }
}

type expItem struct {
    key  string
    when int64
}

type expQueue []expItem

func (q expQueue) Len() int           { return len(q) }
func (q expQueue) Less(i, j int) bool { return q[i].when < q[j].when }
func (q expQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *expQueue) Push(x any)        { *q = append(*q, x.(expItem)) }
func (q *expQueue) Pop() any          { old := *q; n := len(old); it := old[n-1]; *q = old[:n-1]; return it }

func (s *Store) enqueueExpire(key string, when int64) {
    s.expMu.Lock()
    heap.Push(&s.expq, expItem{key: key, when: when})
    s.expMu.Unlock()
}

func (s *Store) sweeper() {
    defer s.wg.Done()
    t := time.NewTicker(s.opts.SweepInterval)
    defer t.Stop()
    for {
        select {
        case <-s.closeCh:
            return
        case <-t.C:
            s.sweep()
        }
    }
}

// sweep drops every key whose deadline has passed. Heap items for keys that
// were rewritten or re-expired are stale and skipped.
func (s *Store) sweep() {
    now := s.nowFn().UnixNano()
    for {
        s.expMu.Lock()
        if len(s.expq) == 0 || s.expq[0].when > now {
            s.expMu.Unlock()
            return
        }
        it := heap.Pop(&s.expq).(expItem)
        s.expMu.Unlock()

        sh := s.shardFor(it.key)
        sh.mu.Lock()
        e, ok := sh.m[it.key]
        if ok && e.expired(now) {
            delete(sh.m, it.key)
            s.mKeys.Add(-1)
            s.mExpired.Add(1)
        }
        sh.mu.Unlock()
    }
}
