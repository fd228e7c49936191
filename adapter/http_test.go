package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"code":"0"}`))
	}))
	defer srv.Close()

	var out struct {
		Code string `json:"code"`
	}
	q := url.Values{"symbol": {"BTCUSDT"}}
	if err := GetJSON(context.Background(), srv.Client(), "test", srv.URL, q, &out); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out.Code != "0" {
		t.Errorf("Expected code 0, got %q", out.Code)
	}

	err := GetJSON(context.Background(), srv.Client(), "test", srv.URL, url.Values{}, &out)
	if err == nil || !strings.HasPrefix(err.Error(), "test: unexpected status") {
		t.Errorf("Expected a status error, got %v", err)
	}
}
