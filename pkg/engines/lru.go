package engines

import (
	"context"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/events"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
)

// DefaultLRUInterval paces the recycle-bin expiry sweep.
const DefaultLRUInterval = time.Minute

// DefaultRecycleTTL is how long a file sits in the recycle bin before
// the LRU engine purges it for real, absent a per-space override
// (real EOS's Lru.cc keys this off both age and bin size; this CORE
// tracks only age, per spec §2 item 8).
const DefaultRecycleTTL = 24 * time.Hour

// LRU ages out RecycleRoot entries (spec §4.9): once a recycled file's
// sys.recycle.time xattr is older than the configured TTL, it is
// hard-deleted via the ordinary UnlinkFile path, the same one a direct
// `rm -f` takes.
type LRU struct {
	store  *namespace.Store
	ttl    time.Duration
	broker *events.Broker
}

func NewLRU(store *namespace.Store) *LRU {
	return &LRU{store: store, ttl: DefaultRecycleTTL}
}

// WithTTL overrides the default recycle-bin retention, for callers
// wiring a space-specific policy.
func (l *LRU) WithTTL(ttl time.Duration) *LRU {
	l.ttl = ttl
	return l
}

// WithBroker attaches an event broker; a nil broker is a silent
// no-op.
func (l *LRU) WithBroker(b *events.Broker) *LRU {
	l.broker = b
	return l
}

func (l *LRU) Name() string            { return "lru" }
func (l *LRU) Interval() time.Duration { return DefaultLRUInterval }

func (l *LRU) RunOnce(ctx context.Context) error {
	now := time.Now()
	for _, f := range l.store.Files() {
		recycledAt, ok := f.Xattrs["sys.recycle.time"]
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, recycledAt)
		if err != nil {
			continue
		}
		if now.Sub(t) < l.ttl {
			continue
		}
		dir, err := l.store.PathOf(f.ParentID)
		if err != nil {
			continue
		}
		p := dir
		if dir != "/" {
			p += "/"
		}
		p += f.Name
		if err := l.store.UnlinkFile(p); err != nil {
			return err
		}
		if l.broker != nil {
			l.broker.Publish(&events.Event{
				Type:     events.EventFilePurged,
				Message:  "recycle-bin entry purged: " + p,
				Metadata: map[string]string{"path": p},
			})
		}
	}
	return nil
}
