package hierarchy

import "sync"

// subscriberBuffer bounds how far a consumer may lag before snapshots are
// dropped for it.
const subscriberBuffer = 8

// Envelope carries one broadcast snapshot with its monotonically increasing
// sequence number.
type Envelope struct {
	Seq      uint64   `json:"seq"`
	Snapshot Snapshot `json:"snapshot"`
}

// Broadcaster fans snapshots out to subscribers. Delivery is best-effort: a
// subscriber whose buffer is full misses that snapshot, and the producer
// never blocks.
type Broadcaster struct {
	mu     sync.Mutex
	seq    uint64
	subs   map[int]chan Envelope
	nextID int
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Envelope)}
}

// Subscribe returns a channel of envelopes and a cancel function. The channel
// is closed on cancel or broadcaster shutdown.
func (b *Broadcaster) Subscribe() (<-chan Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Envelope, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish assigns the next sequence number and delivers the snapshot to every
// subscriber that can take it. Returns the assigned sequence number.
func (b *Broadcaster) Publish(snapshot Snapshot) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return b.seq
	}
	b.seq++
	env := Envelope{Seq: b.seq, Snapshot: snapshot}
	for _, ch := range b.subs {
		select {
		case ch <- env:
		default:
		}
	}
	return b.seq
}

// Close shuts the broadcaster down and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
