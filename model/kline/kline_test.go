package kline

import (
	"math"
	"testing"
)

func TestSplitVolume(t *testing.T) {
	cases := []struct {
		it        Item
		buy, sell float64
	}{
		{Item{High: 10, Low: 0, Close: 10}, 4, 0},
		{Item{High: 10, Low: 0, Close: 0}, 0, 4},
		{Item{High: 10, Low: 0, Close: 2.5}, 1, 3},
		{Item{High: 5, Low: 5, Close: 5}, 2, 2},
	}
	for i, tc := range cases {
		tc.it.SplitVolume(4)
		if tc.it.BuyVolume != tc.buy || tc.it.SellVolume != tc.sell {
			t.Errorf("case %d: expected %v/%v, got %v/%v", i, tc.buy, tc.sell, tc.it.BuyVolume, tc.it.SellVolume)
		}
	}
}

func TestProfile(t *testing.T) {
	it := Item{Low: 100, High: 110, BuyVolume: 6, SellVolume: 4}
	levels := Profile(&it, 5)
	if len(levels) != 5 {
		t.Fatalf("Expected 5 levels, got %d", len(levels))
	}
	var sum float64
	for i, pv := range levels {
		sum += pv.Volume
		if pv.Price < it.Low || pv.Price > it.High {
			t.Errorf("level %d outside the range: %v", i, pv.Price)
		}
	}
	if math.Abs(sum-10) > 1e-9 {
		t.Errorf("Expected the profile to conserve volume 10, got %v", sum)
	}

	flat := Item{Low: 5, High: 5, Close: 5, BuyVolume: 1}
	if got := Profile(&flat, 5); len(got) != 1 || got[0].Price != 5 {
		t.Errorf("Expected a single level at close, got %+v", got)
	}
	if got := Profile(&Item{}, 5); got != nil {
		t.Errorf("Expected nil for an empty candle, got %+v", got)
	}
}

func TestMergeLevels(t *testing.T) {
	a := []PriceVolume{{Price: 2, Volume: 1}, {Price: 1, Volume: 1}}
	b := []PriceVolume{{Price: 2, Volume: 3}, {Price: 3, Volume: 1}}
	got := MergeLevels(a, b)
	want := []PriceVolume{{1, 1}, {2, 4}, {3, 1}}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("level %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if got := MergeLevels(nil, b); &got[0] == &b[0] {
		t.Error("Expected a copy, not the input slice")
	}
}

func TestFiniteAndClone(t *testing.T) {
	it := Item{Open: 1, Volumes: []PriceVolume{{1, 1}}}
	c := it.Clone()
	c.Volumes[0].Volume = 9
	if it.Volumes[0].Volume != 1 {
		t.Error("Expected Clone to deep-copy Volumes")
	}
	if !it.Finite() {
		t.Error("Expected a finite item")
	}
	it.Volumes[0].Price = math.Inf(1)
	if it.Finite() {
		t.Error("Expected an infinite level to fail Finite")
	}
}
