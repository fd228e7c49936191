package kline

import (
	"math"
	"sort"
)

// PriceVolume is one depth level: the volume resting or traded at a price.
type PriceVolume struct {
	Price  float64
	Volume float64
}

// Item is one candle plus the depth/histogram snapshot taken at its timestamp.
// Timestamp is in seconds.
type Item struct {
	Timestamp  int32
	Open       float64
	High       float64
	Low        float64
	Close      float64
	BuyVolume  float64
	SellVolume float64
	Volumes    []PriceVolume
}

// Volume is the total traded volume of the candle.
func (it *Item) Volume() float64 {
	return it.BuyVolume + it.SellVolume
}

// Bullish reports whether the candle closed at or above its open.
func (it *Item) Bullish() bool {
	return it.Close >= it.Open
}

// Finite reports whether every price and volume field is a finite number.
func (it *Item) Finite() bool {
	for _, v := range [...]float64{it.Open, it.High, it.Low, it.Close, it.BuyVolume, it.SellVolume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, pv := range it.Volumes {
		if math.IsNaN(pv.Price) || math.IsInf(pv.Price, 0) || math.IsNaN(pv.Volume) || math.IsInf(pv.Volume, 0) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers never share the Volumes backing array.
func (it Item) Clone() Item {
	if it.Volumes != nil {
		it.Volumes = append([]PriceVolume(nil), it.Volumes...)
	}
	return it
}

// Profile spreads the candle's volume across levels price buckets between Low
// and High. Buy volume is weighted toward the bottom of the range and sell
// volume toward the top, which is what a tape of that candle tends to look
// like. Used for items that arrive without a real depth snapshot.
func Profile(it *Item, levels int) []PriceVolume {
	if levels <= 0 || it.High <= it.Low {
		if it.Volume() <= 0 {
			return nil
		}
		return []PriceVolume{{Price: it.Close, Volume: it.Volume()}}
	}

	step := (it.High - it.Low) / float64(levels)
	out := make([]PriceVolume, levels)
	var buyW, sellW float64
	for i := range out {
		// position in (0,1), bottom to top
		pos := (float64(i) + 0.5) / float64(levels)
		buyW += 1 - pos
		sellW += pos
	}
	for i := range out {
		pos := (float64(i) + 0.5) / float64(levels)
		v := 0.0
		if buyW > 0 {
			v += it.BuyVolume * (1 - pos) / buyW
		}
		if sellW > 0 {
			v += it.SellVolume * pos / sellW
		}
		out[i] = PriceVolume{Price: it.Low + step*(float64(i)+0.5), Volume: v}
	}
	return out
}

// MergeLevels sums volume per identical price across a and b, returning the
// result sorted by price ascending.
func MergeLevels(a, b []PriceVolume) []PriceVolume {
	if len(a) == 0 {
		return append([]PriceVolume(nil), b...)
	}
	if len(b) == 0 {
		return append([]PriceVolume(nil), a...)
	}
	byPrice := make(map[float64]float64, len(a)+len(b))
	for _, pv := range a {
		byPrice[pv.Price] += pv.Volume
	}
	for _, pv := range b {
		byPrice[pv.Price] += pv.Volume
	}
	out := make([]PriceVolume, 0, len(byPrice))
	for p, v := range byPrice {
		out = append(out, PriceVolume{Price: p, Volume: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// SplitVolume sets BuyVolume and SellVolume from a total for feeds that do not
// report the taker split. The buy share is where Close sits in the Low..High
// range; a flat candle splits evenly.
func (it *Item) SplitVolume(total float64) {
	share := 0.5
	if it.High > it.Low {
		share = (it.Close - it.Low) / (it.High - it.Low)
		share = math.Max(0, math.Min(1, share))
	}
	it.BuyVolume = total * share
	it.SellVolume = total - it.BuyVolume
}
