package standdata

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yegors/stand-status/internal/coordinates"
	"github.com/yegors/stand-status/pkg/logger"
)

func newOverpassServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile("testdata/overpass_response.csv")
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		query := r.URL.Query().Get("data")
		if !strings.Contains(query, `icao="EGKK"`) || !strings.Contains(query, "parking_position") {
			http.Error(w, "unexpected query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewOSMClientValidatesICAO(t *testing.T) {
	for _, code := range []string{"1234", "EGK", "EGKKX", "EG1K", ""} {
		if _, err := NewOSMClient(code, OSMConfig{}, nil, logger.NewNop()); !errors.Is(err, ErrInvalidICAOCode) {
			t.Errorf("Expected ErrInvalidICAOCode for %q, got %v", code, err)
		}
	}

	c, err := NewOSMClient("egkk", OSMConfig{}, nil, logger.NewNop())
	if err != nil {
		t.Fatalf("Expected lowercase code to be accepted, got %v", err)
	}
	if c.ICAO() != "EGKK" {
		t.Errorf("Expected EGKK, got %s", c.ICAO())
	}
}

func TestOSMQuery(t *testing.T) {
	c, err := NewOSMClient("EGKK", OSMConfig{Timeout: 30 * time.Second}, nil, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	q := c.Query(51.148056, -0.190278, 6)
	for _, want := range []string{"[bbox:51.", `[icao="EGKK"]`, "[timeout:30]", "out tags center;", "::lat,::lon"} {
		if !strings.Contains(q, want) {
			t.Errorf("Expected query to contain %q:\n%s", want, q)
		}
	}
}

func TestParseOverpassCSV(t *testing.T) {
	body, err := os.ReadFile("testdata/overpass_response.csv")
	if err != nil {
		t.Fatal(err)
	}
	want, err := os.ReadFile("testdata/overpass_expected.csv")
	if err != nil {
		t.Fatal(err)
	}

	got, err := ParseOverpassCSV(body)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestFetchStandDataUsesCache(t *testing.T) {
	var hits int32
	server := newOverpassServer(t, &hits)

	cache, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewOSMClient("EGKK", OSMConfig{OverpassURL: server.URL}, cache, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	data, err := c.Stands(ctx, 51.148056, -0.190278, 6)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(data) != 6 || data[5].Name != "Remote 1" {
		t.Fatalf("Expected 6 stands ending with Remote 1, got %+v", data)
	}

	if _, err := os.Stat(cache.Path("EGKK")); err != nil {
		t.Errorf("Expected cache file to exist: %v", err)
	}

	// Second fetch is served from cache
	if _, err := c.FetchStandData(ctx, 51.148056, -0.190278, 6); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("Expected 1 request to overpass, got %d", got)
	}

	// Expired entries are refetched
	c.SetCacheTTL(0)
	if _, err := c.FetchStandData(ctx, 51.148056, -0.190278, 6); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("Expected 2 requests after expiry, got %d", got)
	}
}

func TestFetchStandDataServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, err := NewOSMClient("EGKK", OSMConfig{OverpassURL: server.URL}, nil, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.FetchStandData(context.Background(), 51.148056, -0.190278, 6); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestFileCacheDelete(t *testing.T) {
	cache, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewOSMClient("EGKK", OSMConfig{}, cache, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := cache.Put(ctx, "EGKK", []byte("id,latitude,longitude\n")); err != nil {
		t.Fatal(err)
	}

	deleted, err := c.DeleteCachedData(ctx)
	if err != nil || !deleted {
		t.Errorf("Expected cached data to be deleted, got %v %v", deleted, err)
	}

	deleted, err = c.DeleteCachedData(ctx)
	if err != nil || deleted {
		t.Errorf("Expected nothing left to delete, got %v %v", deleted, err)
	}
}

func TestOSMSourceRequiresDecimal(t *testing.T) {
	c, err := NewOSMClient("EGKK", OSMConfig{}, nil, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewOSMSource(c, coordinates.FormatCAA, 51.1, -0.19, 6); !errors.Is(err, coordinates.ErrInvalidCoordinateFormat) {
		t.Errorf("Expected ErrInvalidCoordinateFormat, got %v", err)
	}
	if _, err := NewOSMSource(c, coordinates.FormatDecimal, 51.1, -0.19, 6); err != nil {
		t.Errorf("Expected decimal OSM source, got %v", err)
	}
}
