package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/metrics"
	"van-dispatch-service/internal/platform/obs"
	"van-dispatch-service/internal/ports"
)

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Duration float64 `json:"duration"`
		Legs     []struct {
			Duration float64 `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// OSRMRouteProvider implements RouteProvider against an OSRM-compatible
// /route/v1 endpoint.
//
// Coordinates are lat,lon inside the service and lon,lat on the wire.
// The provider is safe for concurrent use.
type OSRMRouteProvider struct {
	session *http.Client
	baseURL string
	profile string
	metrics *metrics.Collector
}

func NewOSRMRouteProvider(
	baseURL string,
	profile string,
	timeout time.Duration,
	m *metrics.Collector,
) (*OSRMRouteProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("routing base url is empty")
	}

	if profile == "" {
		profile = "driving"
	}

	provider := &OSRMRouteProvider{
		session: &http.Client{Timeout: timeout},
		baseURL: baseURL,
		profile: profile,
		metrics: m,
	}

	return provider, nil
}

// RouteDuration returns the total and per-leg road durations through coords.
func (o *OSRMRouteProvider) RouteDuration(
	ctx context.Context,
	coords []domain.Coordinates,
) (_ ports.RouteResult, err error) {
	defer obs.Time(ctx, "osrm.RouteDuration")(&err)

	if len(coords) < 2 {
		return ports.RouteResult{}, fmt.Errorf("route duration: need at least 2 coordinates, got %d", len(coords))
	}

	start := time.Now()
	defer func() { o.metrics.ObserveRouting(time.Since(start), err) }()

	endpoint := fmt.Sprintf("%s/route/v1/%s/%s", o.baseURL, o.profile, coordinatePath(coords))

	req, err := o.newRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("route duration: %w", err)
	}

	q := req.URL.Query()
	q.Set("overview", "false")
	q.Set("steps", "false")
	q.Set("annotations", "duration")
	req.URL.RawQuery = q.Encode()

	resp, err := o.do(req)
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("route duration: execute request: %w", err)
	}
	defer resp.Body.Close()

	var decoded routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.RouteResult{}, fmt.Errorf("route duration: decode response: %w", err)
	}

	if decoded.Code != "" && decoded.Code != "Ok" {
		return ports.RouteResult{}, fmt.Errorf("route duration: backend code %q: %s", decoded.Code, decoded.Message)
	}

	if len(decoded.Routes) == 0 {
		return ports.RouteResult{}, errors.New("route duration: response had zero routes")
	}

	route := decoded.Routes[0]
	if len(route.Legs) != len(coords)-1 {
		return ports.RouteResult{}, fmt.Errorf(
			"route duration: got %d legs for %d coordinates",
			len(route.Legs), len(coords),
		)
	}

	legs := make([]float64, 0, len(route.Legs))
	for _, l := range route.Legs {
		legs = append(legs, l.Duration)
	}

	return ports.RouteResult{
		TotalSeconds: route.Duration,
		LegSeconds:   legs,
	}, nil
}

// coordinatePath renders "lon,lat;lon,lat;..." for the route URL.
func coordinatePath(coords []domain.Coordinates) string {
	parts := make([]string, 0, len(coords))
	for _, c := range coords {
		ll := c.CoordsToList()
		parts = append(parts,
			strconv.FormatFloat(ll[0], 'f', 6, 64)+","+strconv.FormatFloat(ll[1], 'f', 6, 64),
		)
	}
	return strings.Join(parts, ";")
}
