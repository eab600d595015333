package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/metrics"
)

var (
	fairbanks = domain.Coordinates{Lat: 64.8378, Lon: -147.7164}
	college   = domain.Coordinates{Lat: 64.8561, Lon: -147.8130}
	northPole = domain.Coordinates{Lat: 64.7511, Lon: -147.3494}
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *OSRMRouteProvider {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := NewOSRMRouteProvider(srv.URL+"/", "driving", 2*time.Second, metrics.NewCollector())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestOSRMRouteDuration(t *testing.T) {
	var gotPath, gotQuery string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"duration":900.5,"legs":[{"duration":400.5},{"duration":500}]}]}`))
	})

	res, err := p.RouteDuration(context.Background(), []domain.Coordinates{fairbanks, college, northPole})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPath := "/route/v1/driving/-147.716400,64.837800;-147.813000,64.856100;-147.349400,64.751100"
	if gotPath != wantPath {
		t.Fatalf("path = %q, want %q", gotPath, wantPath)
	}
	for _, q := range []string{"overview=false", "steps=false", "annotations=duration"} {
		if !strings.Contains(gotQuery, q) {
			t.Fatalf("query %q missing %q", gotQuery, q)
		}
	}

	if res.TotalSeconds != 900.5 {
		t.Fatalf("TotalSeconds = %v, want 900.5", res.TotalSeconds)
	}
	if len(res.LegSeconds) != 2 || res.LegSeconds[0] != 400.5 || res.LegSeconds[1] != 500 {
		t.Fatalf("LegSeconds = %v", res.LegSeconds)
	}
}

func TestOSRMRouteDurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `upstream down`},
		{"malformed json", http.StatusOK, `{"code":`},
		{"backend code", http.StatusOK, `{"code":"NoRoute","message":"Impossible route"}`},
		{"zero routes", http.StatusOK, `{"code":"Ok","routes":[]}`},
		{"leg mismatch", http.StatusOK, `{"code":"Ok","routes":[{"duration":10,"legs":[{"duration":10}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := p.RouteDuration(context.Background(), []domain.Coordinates{fairbanks, college, northPole})
			if err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestOSRMStatusErrorCarriesCode(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := p.RouteDuration(context.Background(), []domain.Coordinates{fairbanks, college})

	var se *httpStatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected httpStatusError, got %v", err)
	}
	if se.Code != http.StatusTooManyRequests {
		t.Fatalf("code = %d, want 429", se.Code)
	}
}

func TestOSRMRequiresTwoCoordinates(t *testing.T) {
	calls := 0
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) { calls++ })

	if _, err := p.RouteDuration(context.Background(), []domain.Coordinates{fairbanks}); err == nil {
		t.Fatalf("expected error for a single coordinate")
	}
	if calls != 0 {
		t.Fatalf("expected no request, got %d", calls)
	}
}

func TestNewOSRMRouteProviderRequiresBaseURL(t *testing.T) {
	if _, err := NewOSRMRouteProvider("  ", "", time.Second, nil); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func TestOSRMHonorsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	p, err := NewOSRMRouteProvider(srv.URL, "driving", 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if _, err := p.RouteDuration(context.Background(), []domain.Coordinates{fairbanks, college}); err == nil {
		t.Fatalf("expected timeout error")
	}
}
