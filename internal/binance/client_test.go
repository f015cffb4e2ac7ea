package binance

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"futsentry/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	coins := map[string]string{"BTCUSDT": "bitcoin"}
	return NewClient(srv.URL, srv.URL, coins, 5*time.Second, 100), srv
}

func TestGlobalLongShortRatio(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/futures/data/globalLongShortAccountRatio" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("unexpected symbol: %s", got)
		}
		if got := r.URL.Query().Get("period"); got != "1h" {
			t.Errorf("unexpected period: %s", got)
		}
		w.Write([]byte(`[{"symbol":"BTCUSDT","longShortRatio":"1.8123","longAccount":"0.6444","shortAccount":"0.3556","timestamp":1700000000000}]`))
	}))

	sample, err := client.GlobalLongShortRatio(context.Background(), "BTCUSDT", models.Interval1h)
	if err != nil {
		t.Fatalf("GlobalLongShortRatio error: %v", err)
	}
	if sample.Ratio == nil {
		t.Fatal("expected ratio to be present")
	}
	if *sample.Ratio != 1.8123 {
		t.Errorf("ratio = %f, want 1.8123", *sample.Ratio)
	}
	if sample.Kind != models.RatioGlobalAccount {
		t.Errorf("kind = %s, want GLOBAL_ACCOUNT", sample.Kind)
	}
	if sample.CapturedAt.IsZero() {
		t.Error("captured_at should be set")
	}
}

func TestGlobalLongShortRatioEmptyPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))

	sample, err := client.GlobalLongShortRatio(context.Background(), "BTCUSDT", models.Interval1h)
	if err != nil {
		t.Fatalf("empty payload should not error, got: %v", err)
	}
	if sample.Ratio != nil {
		t.Error("expected ratio to be absent for empty payload")
	}
}

func TestTakerLongShortRatio(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/futures/data/takerlongshortRatio" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`[{"buySellRatio":"0.9412","buyVol":"5160.28","sellVol":"5482.93","timestamp":1700000000000}]`))
	}))

	sample, err := client.TakerLongShortRatio(context.Background(), "BTCUSDT", models.Interval4h)
	if err != nil {
		t.Fatalf("TakerLongShortRatio error: %v", err)
	}
	if sample.Ratio == nil || *sample.Ratio != 0.9412 {
		t.Errorf("ratio = %v, want 0.9412", sample.Ratio)
	}
	if sample.Kind != models.RatioTaker {
		t.Errorf("kind = %s, want TAKER", sample.Kind)
	}
}

func TestUpstreamErrorClassification(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))

	_, err := client.GlobalLongShortRatio(context.Background(), "BTCUSDT", models.Interval1h)
	if !errors.Is(err, models.ErrUpstream) {
		t.Errorf("non-2xx should wrap ErrUpstream, got: %v", err)
	}
}

func TestMalformedPayloadIsUpstreamError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))

	_, err := client.TakerLongShortRatio(context.Background(), "BTCUSDT", models.Interval1h)
	if !errors.Is(err, models.ErrUpstream) {
		t.Errorf("malformed JSON should wrap ErrUpstream, got: %v", err)
	}
}

func TestOpenInterest(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/openInterest" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"openInterest":"10659.509","symbol":"BTCUSDT","time":1700000000000}`))
	}))

	oi, err := client.OpenInterest(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("OpenInterest error: %v", err)
	}
	if oi.Contracts == nil || *oi.Contracts != 10659.509 {
		t.Errorf("contracts = %v, want 10659.509", oi.Contracts)
	}
	if oi.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %s, want BTCUSDT", oi.Symbol)
	}
}

func TestOpenInterestMissingField(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTCUSDT","time":1700000000000}`))
	}))

	oi, err := client.OpenInterest(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("missing field should not error, got: %v", err)
	}
	if oi.Contracts != nil {
		t.Error("expected open interest to be absent when field is missing")
	}
}

func klineHandler(t *testing.T, payload string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/klines" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "5m" {
			t.Errorf("unexpected interval: %s", got)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("unexpected limit: %s", got)
		}
		w.Write([]byte(payload))
	})
}

func TestPriceChangePct(t *testing.T) {
	// prev close 30000, last close 30800 -> +2.6667%
	payload := `[
		[1700000000000,"29900","30100","29800","30000","812.4",1700000299999,"0","100","0","0","0"],
		[1700000300000,"30000","30900","29950","30800","901.1",1700000599999,"0","100","0","0","0"]
	]`
	client, _ := newTestClient(t, klineHandler(t, payload))

	pct, ok, err := client.PriceChangePct(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("PriceChangePct error: %v", err)
	}
	if !ok {
		t.Fatal("expected price change to be present")
	}
	if math.Abs(pct-2.6667) > 0.0001 {
		t.Errorf("pct = %f, want 2.6667", pct)
	}
}

func TestPriceChangePctSingleCandle(t *testing.T) {
	payload := `[[1700000000000,"29900","30100","29800","30000","812.4",1700000299999,"0","100","0","0","0"]]`
	client, _ := newTestClient(t, klineHandler(t, payload))

	_, ok, err := client.PriceChangePct(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("single candle should not error, got: %v", err)
	}
	if ok {
		t.Error("expected price change to be absent with a single candle")
	}
}

func TestPriceChangePctZeroPrevClose(t *testing.T) {
	payload := `[
		[1700000000000,"0","0","0","0","0",1700000299999,"0","0","0","0","0"],
		[1700000300000,"30000","30900","29950","30800","901.1",1700000599999,"0","100","0","0","0"]
	]`
	client, _ := newTestClient(t, klineHandler(t, payload))

	_, ok, err := client.PriceChangePct(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("zero prev close should not error, got: %v", err)
	}
	if ok {
		t.Error("expected price change to be absent when prev close is zero")
	}
}

func TestSpotPrice(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Errorf("unexpected ids: %s", got)
		}
		w.Write([]byte(`{"bitcoin":{"usd":64250.12}}`))
	}))

	sample, err := client.SpotPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("SpotPrice error: %v", err)
	}
	if sample.ClosePrice != 64250.12 {
		t.Errorf("price = %f, want 64250.12", sample.ClosePrice)
	}
	if sample.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %s, want BTCUSDT", sample.Symbol)
	}
	if sample.CapturedAt.IsZero() {
		t.Error("captured_at should be set")
	}
}

func TestSpotPriceUnmappedSymbol(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for unmapped symbol")
	}))

	_, err := client.SpotPrice(context.Background(), "DOGEUSDT")
	if err == nil {
		t.Error("expected error for symbol without coin mapping")
	}
}
