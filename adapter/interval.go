package adapter

import (
	"fmt"
	"strconv"
	"time"
)

// ParseInterval converts "30s", "1m", "4h", "1d" or "1w" into a duration.
func ParseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("adapter: bad interval %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("adapter: bad interval %q", interval)
	}
	var unit time.Duration
	switch interval[len(interval)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("adapter: bad interval unit in %q", interval)
	}
	return time.Duration(n) * unit, nil
}

// Seconds converts a millisecond open time to the int32 seconds of kline.Item.
func Seconds(ms int64) int32 {
	return int32(ms / 1000)
}

// Floats parses decimal strings in order, naming the first bad field.
func Floats(fields ...string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
