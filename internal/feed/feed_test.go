package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yegors/stand-status/internal/stands"
	"github.com/yegors/stand-status/pkg/logger"
)

var fastRetry = RetryConfig{MaxRetries: 2, InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 2}

func serveFile(t *testing.T, path string) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestVATSIMClient(t *testing.T) {
	server := serveFile(t, "testdata/vatsim-data.json")
	client := NewVATSIMClient(server.URL, 5*time.Second, 0, fastRetry, logger.NewNop())

	aircraft, err := client.Aircraft(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(aircraft) != 2 {
		t.Fatalf("Expected 2 pilots, got %d", len(aircraft))
	}

	a := aircraft[0]
	if a.Callsign != "BAW123" || a.Latitude != 51.15712 || a.Longitude != -0.17373 || a.Altitude != 196 || a.Groundspeed != 0 {
		t.Errorf("Unexpected first pilot: %+v", a)
	}
	if a.Extra["departure"] != "EGKK" || a.Extra["aircraft_short"] != "A320" {
		t.Errorf("Expected flight plan extras, got %v", a.Extra)
	}
	if a.Extra["cid"] != 1000001 {
		t.Errorf("Expected cid 1000001, got %v", a.Extra["cid"])
	}

	if _, ok := aircraft[1].Extra["departure"]; ok {
		t.Error("Expected no flight plan extras without a flight plan")
	}
}

func TestVATSIMClientUnavailable(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewVATSIMClient(server.URL, time.Second, 0, fastRetry, logger.NewNop())
	_, err := client.Aircraft(context.Background())
	if !errors.Is(err, stands.ErrFeedUnavailable) {
		t.Errorf("Expected ErrFeedUnavailable, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestVATSIMClientBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer server.Close()

	client := NewVATSIMClient(server.URL, time.Second, 0, RetryConfig{}, logger.NewNop())
	if _, err := client.Aircraft(context.Background()); !errors.Is(err, stands.ErrFeedUnavailable) {
		t.Errorf("Expected ErrFeedUnavailable, got %v", err)
	}
}

func TestLocalClient(t *testing.T) {
	server := serveFile(t, "testdata/aircraft.json")
	client := NewLocalClient(server.URL, time.Second, fastRetry, logger.NewNop())

	aircraft, err := client.Aircraft(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(aircraft) != 2 {
		t.Fatalf("Expected 2 positioned targets, got %d", len(aircraft))
	}

	ground := aircraft[0]
	if ground.Callsign != "RYR4TK" || ground.Altitude != 0 || ground.Extra["on_ground"] != true {
		t.Errorf("Unexpected ground target: %+v", ground)
	}
	if ground.Extra["registration"] != "EI-EFA" || ground.Extra["transponder"] != "7000" {
		t.Errorf("Expected registration and squawk extras, got %v", ground.Extra)
	}

	airborne := aircraft[1]
	if airborne.Callsign != "406B2A" {
		t.Errorf("Expected hex fallback callsign, got %q", airborne.Callsign)
	}
	if airborne.Altitude != 2400 || airborne.Groundspeed != 160.2 {
		t.Errorf("Unexpected airborne target: %+v", airborne)
	}
}

func TestLocalClientSkipsUnknownKinematics(t *testing.T) {
	server := serveFile(t, "testdata/aircraft-partial.json")
	client := NewLocalClient(server.URL, time.Second, fastRetry, logger.NewNop())

	aircraft, err := client.Aircraft(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(aircraft) != 1 {
		t.Fatalf("Expected only the target with full kinematics, got %d: %+v", len(aircraft), aircraft)
	}
	if aircraft[0].Callsign != "EZY81A" || aircraft[0].Altitude != 0 || aircraft[0].Groundspeed != 2.5 {
		t.Errorf("Unexpected target: %+v", aircraft[0])
	}
}

func TestFlexibleField(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		ok     bool
		ground bool
	}{
		{"number", `{"v": 2400}`, 2400, true, false},
		{"ground", `{"v": "ground"}`, 0, true, true},
		{"numeric string", `{"v": "1250"}`, 1250, true, false},
		{"null", `{"v": null}`, 0, false, false},
		{"absent", `{}`, 0, false, false},
		{"text", `{"v": "unknown"}`, 0, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var doc struct {
				V FlexibleField `json:"v"`
			}
			if err := json.Unmarshal([]byte(tc.input), &doc); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			got, ok := doc.V.Float64()
			if got != tc.want || ok != tc.ok {
				t.Errorf("Expected (%v, %v), got (%v, %v)", tc.want, tc.ok, got, ok)
			}
			if doc.V.IsGround() != tc.ground {
				t.Errorf("Expected ground %v, got %v", tc.ground, doc.V.IsGround())
			}
		})
	}
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("Recovers after transient failure", func(t *testing.T) {
		calls := 0
		got, err := retryWithBackoff(context.Background(), fastRetry, func() (int, error) {
			calls++
			if calls < 2 {
				return 0, &StatusError{StatusCode: http.StatusBadGateway}
			}
			return 42, nil
		})
		if err != nil || got != 42 || calls != 2 {
			t.Errorf("Expected 42 after 2 calls, got %d after %d calls (%v)", got, calls, err)
		}
	})

	t.Run("Stops on permanent failure", func(t *testing.T) {
		calls := 0
		_, err := retryWithBackoff(context.Background(), fastRetry, func() (int, error) {
			calls++
			return 0, &StatusError{StatusCode: http.StatusNotFound}
		})
		if err == nil || calls != 1 {
			t.Errorf("Expected a single attempt, got %d (%v)", calls, err)
		}
	})

	t.Run("Honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}
		_, err := retryWithBackoff(ctx, cfg, func() (int, error) {
			return 0, errors.New("connection refused")
		})
		if err == nil {
			t.Error("Expected an error after cancellation")
		}
	})
}

func TestNew(t *testing.T) {
	if _, err := New(Config{SourceType: SourceLocal}, logger.NewNop()); err == nil {
		t.Error("Expected error for local feed without URL")
	}
	if _, err := New(Config{SourceType: "opensky"}, logger.NewNop()); err == nil {
		t.Error("Expected error for unsupported source type")
	}
	f, err := New(Config{SourceType: SourceVATSIM}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.(*VATSIMClient); !ok {
		t.Errorf("Expected VATSIM client, got %T", f)
	}
}
