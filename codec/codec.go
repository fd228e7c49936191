// Package codec reads and writes the KLI1 binary kline feed.
//
// Layout, little-endian:
//
//	magic     [4]byte "KLI1"
//	count     uint32
//	count × item:
//	  timestamp int32
//	  open, high, low, close, buy_volume, sell_volume  6 × float64
//	  levels    uint32
//	  levels × {price float64, volume float64}
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/yitech/candlechart/charterr"
	"github.com/yitech/candlechart/model/kline"
)

// Magic is the 4-byte format identifier every buffer must start with.
const Magic = "KLI1"

const (
	headerSize = 8
	itemSize   = 4 + 6*8 + 4
	levelSize  = 16

	// MaxItems and MaxLevels bound the counts a buffer may claim.
	MaxItems  = 1 << 22
	MaxLevels = 1 << 16
)

var le = binary.LittleEndian

// Decode parses buf into a time-ascending item slice. buf is only read during
// the call; nothing in the result aliases it.
func Decode(buf []byte) ([]kline.Item, error) {
	if len(buf) < len(Magic) {
		return nil, fmt.Errorf("codec: %w: %d bytes, shorter than identifier", charterr.ErrBuffer, len(buf))
	}
	if string(buf[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("codec: %w: identifier %q, want %q", charterr.ErrBuffer, buf[:len(Magic)], Magic)
	}
	if len(buf) < headerSize {
		return nil, fmt.Errorf("codec: %w: truncated header", charterr.ErrBuffer)
	}

	count := le.Uint32(buf[4:8])
	if count > MaxItems {
		return nil, fmt.Errorf("codec: %w: item count %d exceeds %d", charterr.ErrBuffer, count, MaxItems)
	}
	if uint64(count)*itemSize > uint64(len(buf)-headerSize) {
		return nil, fmt.Errorf("codec: %w: %d items do not fit in %d bytes", charterr.ErrBuffer, count, len(buf))
	}

	items := make([]kline.Item, count)
	off := headerSize
	for i := range items {
		if len(buf)-off < itemSize {
			return nil, fmt.Errorf("codec: %w: item[%d] truncated", charterr.ErrBuffer, i)
		}
		it := &items[i]
		it.Timestamp = int32(le.Uint32(buf[off:]))
		it.Open = readFloat(buf, off+4)
		it.High = readFloat(buf, off+12)
		it.Low = readFloat(buf, off+20)
		it.Close = readFloat(buf, off+28)
		it.BuyVolume = readFloat(buf, off+36)
		it.SellVolume = readFloat(buf, off+44)
		levels := le.Uint32(buf[off+52:])
		off += itemSize

		if levels > MaxLevels {
			return nil, fmt.Errorf("codec: %w: item[%d] level count %d exceeds %d", charterr.ErrBuffer, i, levels, MaxLevels)
		}
		if uint64(levels)*levelSize > uint64(len(buf)-off) {
			return nil, fmt.Errorf("codec: %w: item[%d] levels truncated", charterr.ErrBuffer, i)
		}
		if levels > 0 {
			it.Volumes = make([]kline.PriceVolume, levels)
			for j := range it.Volumes {
				it.Volumes[j] = kline.PriceVolume{
					Price:  readFloat(buf, off),
					Volume: readFloat(buf, off+8),
				}
				off += levelSize
			}
		}

		if !it.Finite() {
			return nil, fmt.Errorf("codec: %w: item[%d] has non-finite values", charterr.ErrValidation, i)
		}
		if i > 0 && it.Timestamp < items[i-1].Timestamp {
			return nil, fmt.Errorf("codec: %w: item[%d] timestamp %d before %d",
				charterr.ErrValidation, i, it.Timestamp, items[i-1].Timestamp)
		}
	}

	if off != len(buf) {
		return nil, fmt.Errorf("codec: %w: %d trailing bytes", charterr.ErrBuffer, len(buf)-off)
	}
	return items, nil
}

// Encode serializes items into a new KLI1 buffer.
func Encode(items []kline.Item) []byte {
	size := headerSize
	for i := range items {
		size += itemSize + len(items[i].Volumes)*levelSize
	}
	buf := make([]byte, 0, size)
	buf = append(buf, Magic...)
	buf = le.AppendUint32(buf, uint32(len(items)))
	for i := range items {
		buf = AppendItem(buf, &items[i])
	}
	return buf
}

// AppendItem appends the wire form of one item (without the buffer header).
func AppendItem(buf []byte, it *kline.Item) []byte {
	buf = le.AppendUint32(buf, uint32(it.Timestamp))
	for _, v := range [...]float64{it.Open, it.High, it.Low, it.Close, it.BuyVolume, it.SellVolume} {
		buf = le.AppendUint64(buf, math.Float64bits(v))
	}
	buf = le.AppendUint32(buf, uint32(len(it.Volumes)))
	for _, pv := range it.Volumes {
		buf = le.AppendUint64(buf, math.Float64bits(pv.Price))
		buf = le.AppendUint64(buf, math.Float64bits(pv.Volume))
	}
	return buf
}

func readFloat(buf []byte, off int) float64 {
	return math.Float64frombits(le.Uint64(buf[off:]))
}
