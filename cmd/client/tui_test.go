package main

import (
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yitech/candlechart/chart"
	"github.com/yitech/candlechart/codec"
	"github.com/yitech/candlechart/config"
	"github.com/yitech/candlechart/model/kline"
)

func testModel(t *testing.T) *model {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	m, err := newModel(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), &statusLine{})
	if err != nil {
		t.Fatalf("newModel: %v", err)
	}
	return m
}

func testBuf(n int) []byte {
	items := make([]kline.Item, n)
	for i := range items {
		p := 100 + float64(i%7)
		items[i] = kline.Item{Timestamp: int32(60 * i), Open: p, High: p + 2, Low: p - 2, Close: p + 1, BuyVolume: 1, SellVolume: 2}
	}
	return codec.Encode(items)
}

func TestModel_SnapshotAndDraw(t *testing.T) {
	m := testModel(t)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.ingest(feedMsg{buf: testBuf(200), snapshot: true})
	if m.engine.Len() != 200 {
		t.Fatalf("Expected 200 items, got %d", m.engine.Len())
	}
	m.draw()
	if len(m.lines) != 38 {
		t.Errorf("Expected 38 chart lines, got %d", len(m.lines))
	}

	m.ingest(feedMsg{buf: codec.Encode([]kline.Item{{Timestamp: 60 * 200, Open: 1, High: 1, Low: 1, Close: 1}})})
	if m.engine.Len() != 201 {
		t.Errorf("Expected the tick to append, got %d", m.engine.Len())
	}
}

func TestModel_Keys(t *testing.T) {
	m := testModel(t)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.ingest(feedMsg{buf: testBuf(200), snapshot: true})

	m.key("m")
	if m.engine.RenderMode() != chart.HeatMap {
		t.Errorf("Expected heat-map mode, got %v", m.engine.RenderMode())
	}
	m.key("m")
	if m.engine.RenderMode() != chart.Candlestick {
		t.Errorf("Expected candlestick mode, got %v", m.engine.RenderMode())
	}

	before := m.engine.Range()
	m.key("left")
	if m.engine.Range().Start >= before.Start {
		t.Errorf("Expected left to pan back from %d, got %d", before.Start, m.engine.Range().Start)
	}
	if cmd := m.key("q"); cmd == nil {
		t.Error("Expected q to quit")
	}
}

func TestModel_Pixel(t *testing.T) {
	m := testModel(t)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	x, y, ok := m.pixel(10, 1)
	if !ok || x != 42 || y != 4 {
		t.Errorf("Expected (42, 4), got (%d, %d, %v)", x, y, ok)
	}
	if _, _, ok := m.pixel(10, 0); ok {
		t.Error("Expected the header row to be outside the chart")
	}
	if _, _, ok := m.pixel(10, 39); ok {
		t.Error("Expected the footer row to be outside the chart")
	}
}

func TestModel_SnapshotKeepsPannedView(t *testing.T) {
	m := testModel(t)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.ingest(feedMsg{buf: testBuf(200), snapshot: true})

	m.key("left")
	m.key("left")
	before := m.engine.Range()
	first, _ := m.engine.At(before.Start)

	// the resent snapshot has grown by three candles
	m.ingest(feedMsg{buf: testBuf(203), snapshot: true})
	after := m.engine.Range()
	got, _ := m.engine.At(after.Start)
	if got.Timestamp != first.Timestamp || after.Count != before.Count {
		t.Errorf("Expected the window to stay at ts %d x%d, got ts %d x%d",
			first.Timestamp, before.Count, got.Timestamp, after.Count)
	}

	// at the live edge a snapshot follows the newest data
	m.engine.SetWindow(after.Total-after.Count, after.Count)
	m.ingest(feedMsg{buf: testBuf(205), snapshot: true})
	if rng := m.engine.Range(); rng.End() != 205 {
		t.Errorf("Expected the window to end at the newest candle, got %+v", rng)
	}
}
