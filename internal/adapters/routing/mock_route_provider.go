package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/ports"
)

var ErrMockUnavailable = errors.New("mock routing backend unavailable")

type MockPair struct {
	From, To domain.Coordinates
	Seconds  float64
}

// MockRouteProvider is a deterministic RouteProvider for tests and offline runs.
//
// Each leg uses the matching MockPair when one exists, otherwise straight-line
// distance at SpeedMps. With SpeedMps zero, an unmatched leg is an error.
type MockRouteProvider struct {
	SpeedMps float64
	Fail     bool

	m map[string]float64

	mu    sync.Mutex
	calls [][]domain.Coordinates
}

func NewMockRouteProvider(speedMps float64, pairs []MockPair) *MockRouteProvider {
	m := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		m[pairKey(p.From, p.To)] = p.Seconds
	}
	return &MockRouteProvider{SpeedMps: speedMps, m: m}
}

func pairKey(a, b domain.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f|%.6f,%.6f", a.Lat, a.Lon, b.Lat, b.Lon)
}

func (p *MockRouteProvider) RouteDuration(ctx context.Context, coords []domain.Coordinates) (ports.RouteResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]domain.Coordinates(nil), coords...))
	fail := p.Fail
	p.mu.Unlock()

	if fail {
		return ports.RouteResult{}, ErrMockUnavailable
	}

	if len(coords) < 2 {
		return ports.RouteResult{}, fmt.Errorf("need at least 2 coordinates, got %d", len(coords))
	}

	res := ports.RouteResult{LegSeconds: make([]float64, 0, len(coords)-1)}
	for i := 1; i < len(coords); i++ {
		sec, ok := p.m[pairKey(coords[i-1], coords[i])]
		if !ok {
			if p.SpeedMps <= 0 {
				return ports.RouteResult{}, fmt.Errorf("missing pair %v -> %v", coords[i-1], coords[i])
			}
			sec = domain.HaversineMeters(coords[i-1], coords[i]) / p.SpeedMps
		}
		res.LegSeconds = append(res.LegSeconds, sec)
		res.TotalSeconds += sec
	}

	return res, nil
}

// Calls returns a copy of every coordinate list requested so far.
func (p *MockRouteProvider) Calls() [][]domain.Coordinates {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([][]domain.Coordinates, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *MockRouteProvider) SetFail(fail bool) {
	p.mu.Lock()
	p.Fail = fail
	p.mu.Unlock()
}
