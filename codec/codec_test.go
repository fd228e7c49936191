package codec

import (
	"errors"
	"math"
	"testing"

	"github.com/yitech/candlechart/charterr"
	"github.com/yitech/candlechart/model/kline"
)

func sampleItems() []kline.Item {
	return []kline.Item{
		{Timestamp: 60, Open: 10, High: 12, Low: 9, Close: 11, BuyVolume: 3, SellVolume: 2,
			Volumes: []kline.PriceVolume{{Price: 9.5, Volume: 1}, {Price: 11.5, Volume: 4}}},
		{Timestamp: 120, Open: 11, High: 13, Low: 10, Close: 10.5, BuyVolume: 1, SellVolume: 6},
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	in := sampleItems()
	out, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Expected %d items, got %d", len(in), len(out))
	}
	if out[0].Timestamp != 60 || out[0].Close != 11 || len(out[0].Volumes) != 2 || out[0].Volumes[1].Volume != 4 {
		t.Errorf("item[0] mismatch: %+v", out[0])
	}
	if out[1].SellVolume != 6 || out[1].Volumes != nil {
		t.Errorf("item[1] mismatch: %+v", out[1])
	}
}

func TestDecode_DoesNotAliasInput(t *testing.T) {
	buf := Encode(sampleItems())
	out, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range buf {
		buf[i] = 0
	}
	if out[0].High != 12 || out[0].Volumes[0].Price != 9.5 {
		t.Errorf("decoded items changed after input was cleared: %+v", out[0])
	}
}

func TestDecode_Rejects(t *testing.T) {
	good := Encode(sampleItems())

	badMagic := append([]byte(nil), good...)
	copy(badMagic, "KLI2")

	hugeCount := append([]byte(nil), good[:8]...)
	le.PutUint32(hugeCount[4:], 1000)

	tests := []struct {
		name string
		buf  []byte
		kind error
	}{
		{"empty", nil, charterr.ErrBuffer},
		{"short identifier", []byte("KL"), charterr.ErrBuffer},
		{"wrong identifier", badMagic, charterr.ErrBuffer},
		{"header only", []byte("KLI1"), charterr.ErrBuffer},
		{"truncated item", good[:len(good)-5], charterr.ErrBuffer},
		{"trailing bytes", append(append([]byte(nil), good...), 0, 0, 0), charterr.ErrBuffer},
		{"count too large", hugeCount, charterr.ErrBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf)
			if !errors.Is(err, tt.kind) {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestDecode_RejectsOutOfOrderTimestamps(t *testing.T) {
	items := sampleItems()
	items[1].Timestamp = 30
	_, err := Decode(Encode(items))
	if !errors.Is(err, charterr.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestDecode_RejectsNaN(t *testing.T) {
	items := sampleItems()
	items[0].High = math.NaN()
	_, err := Decode(Encode(items))
	if !errors.Is(err, charterr.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestDecode_EmptyDataset(t *testing.T) {
	out, err := Decode(Encode(nil))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected no items, got %d", len(out))
	}
}

func FuzzDecode(f *testing.F) {
	f.Add(Encode(sampleItems()))
	f.Add([]byte("KLI1\x01\x00\x00\x00"))
	f.Fuzz(func(t *testing.T, buf []byte) {
		items, err := Decode(buf)
		if err != nil {
			if charterr.Kind(err) == nil {
				t.Fatalf("error without a kind: %v", err)
			}
			return
		}
		for i := 1; i < len(items); i++ {
			if items[i].Timestamp < items[i-1].Timestamp {
				t.Fatalf("accepted out-of-order timestamps")
			}
		}
	})
}
