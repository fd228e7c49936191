package adapter

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/yitech/candlechart/model/kline"
)

// Book is a price-level order book fed from exchange depth messages. It is
// owned by a single stream goroutine and is not safe for concurrent use.
type Book struct {
	bids map[float64]float64
	asks map[float64]float64
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{
		bids: make(map[float64]float64),
		asks: make(map[float64]float64),
	}
}

// Apply updates the book from ["price","size"] string pairs. A snapshot
// replaces the book; a delta sets each level, removing it when size is zero.
func (b *Book) Apply(bids, asks [][]string, snapshot bool) error {
	if snapshot {
		clear(b.bids)
		clear(b.asks)
	}
	if err := applySide(b.bids, bids); err != nil {
		return fmt.Errorf("bids: %w", err)
	}
	if err := applySide(b.asks, asks); err != nil {
		return fmt.Errorf("asks: %w", err)
	}
	return nil
}

func applySide(side map[float64]float64, levels [][]string) error {
	for i, lv := range levels {
		if len(lv) < 2 {
			return fmt.Errorf("level[%d] has %d fields", i, len(lv))
		}
		p, err := strconv.ParseFloat(lv[0], 64)
		if err != nil {
			return fmt.Errorf("level[%d] price: %w", i, err)
		}
		v, err := strconv.ParseFloat(lv[1], 64)
		if err != nil {
			return fmt.Errorf("level[%d] size: %w", i, err)
		}
		if v == 0 {
			delete(side, p)
			continue
		}
		side[p] = v
	}
	return nil
}

// Empty reports whether both sides are empty.
func (b *Book) Empty() bool {
	return len(b.bids) == 0 && len(b.asks) == 0
}

// Levels returns up to depth levels from each side nearest the touch, merged
// and sorted by price ascending.
func (b *Book) Levels(depth int) []kline.PriceVolume {
	bids := sortedSide(b.bids, true)
	asks := sortedSide(b.asks, false)
	if depth > 0 {
		bids = bids[:min(depth, len(bids))]
		asks = asks[:min(depth, len(asks))]
	}
	out := make([]kline.PriceVolume, 0, len(bids)+len(asks))
	for i := len(bids) - 1; i >= 0; i-- {
		out = append(out, bids[i])
	}
	return append(out, asks...)
}

func sortedSide(side map[float64]float64, desc bool) []kline.PriceVolume {
	out := make([]kline.PriceVolume, 0, len(side))
	for p, v := range side {
		out = append(out, kline.PriceVolume{Price: p, Volume: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}
