package feed

import (
	"sort"
	"sync"

	"github.com/yitech/candlechart/model/kline"
)

// pending holds the live updates a client has not been sent yet, one per
// candle timestamp. A newer update for the same candle replaces the queued one.
type pending struct {
	mu     sync.Mutex
	items  map[int32]kline.Item
	notify chan struct{}
}

func newPending() *pending {
	return &pending{items: make(map[int32]kline.Item), notify: make(chan struct{}, 1)}
}

// put queues it, overwriting any update for the same timestamp.
func (p *pending) put(it kline.Item) {
	p.mu.Lock()
	p.items[it.Timestamp] = it
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// drain empties the queue and returns its updates oldest first.
func (p *pending) drain() []kline.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) == 0 {
		return nil
	}
	out := make([]kline.Item, 0, len(p.items))
	for ts, it := range p.items {
		out = append(out, it)
		delete(p.items, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
