package osrm

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/juanocv/magalu-cd-location/internal/resilience"
)

// tableResponse is the OSRM /table JSON payload. Durations and distances
// use null for unreachable pairs.
type tableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

func (c *client) Table(ctx context.Context, req TableRequest) (*TableResult, error) {
	if len(req.Sources) == 0 || len(req.Destinations) == 0 {
		return nil, eris.New("osrm: table needs at least one source and one destination")
	}

	reqURL := c.tableURL(req)

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, reqURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "osrm: table request")
	}

	var resp tableResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "osrm: parse table response")
	}
	if resp.Code != "Ok" {
		return nil, eris.Errorf("osrm: server answered %s: %s", resp.Code, resp.Message)
	}

	durations, err := toMatrix(resp.Durations, len(req.Sources), len(req.Destinations))
	if err != nil {
		return nil, eris.Wrap(err, "osrm: durations")
	}
	result := &TableResult{Durations: durations}

	if req.WithDistance {
		distances, err := toMatrix(resp.Distances, len(req.Sources), len(req.Destinations))
		if err != nil {
			return nil, eris.Wrap(err, "osrm: distances")
		}
		result.Distances = distances
	}

	return result, nil
}

func (c *client) TableChunked(ctx context.Context, req TableRequest, chunk int) (*TableResult, error) {
	if chunk <= 0 {
		chunk = DefaultDestinationChunk
	}
	if len(req.Destinations) <= chunk {
		return c.Table(ctx, req)
	}

	result := &TableResult{Durations: nanMatrix(len(req.Sources), len(req.Destinations))}
	if req.WithDistance {
		result.Distances = nanMatrix(len(req.Sources), len(req.Destinations))
	}

	for start := 0; start < len(req.Destinations); start += chunk {
		end := start + chunk
		if end > len(req.Destinations) {
			end = len(req.Destinations)
		}

		part, err := c.Table(ctx, TableRequest{
			Sources:      req.Sources,
			Destinations: req.Destinations[start:end],
			WithDistance: req.WithDistance,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "osrm: destinations %d..%d", start, end-1)
		}

		for si := range req.Sources {
			copy(result.Durations[si][start:end], part.Durations[si])
			if req.WithDistance {
				copy(result.Distances[si][start:end], part.Distances[si])
			}
		}
	}

	return result, nil
}

// tableURL builds /table/v1/{profile}/{lon,lat;...} with source and
// destination index parameters.
func (c *client) tableURL(req TableRequest) string {
	coords := make([]string, 0, len(req.Sources)+len(req.Destinations))
	for _, p := range req.Sources {
		coords = append(coords, formatCoord(p))
	}
	for _, p := range req.Destinations {
		coords = append(coords, formatCoord(p))
	}

	annotations := "duration"
	if req.WithDistance {
		annotations = "duration,distance"
	}
	params := url.Values{
		"sources":      {indexRange(0, len(req.Sources))},
		"destinations": {indexRange(len(req.Sources), len(req.Sources)+len(req.Destinations))},
		"annotations":  {annotations},
	}

	return strings.TrimSuffix(c.baseURL, "/") +
		"/table/v1/" + c.profile + "/" + strings.Join(coords, ";") +
		"?" + params.Encode()
}

func (c *client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "osrm: rate limit wait")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "osrm: build request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("osrm: http %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("osrm: http %d: %s", resp.StatusCode, firstLine(body))
	}

	return body, nil
}

// toMatrix converts the wire matrix to floats, null becoming NaN, and
// checks the shape matches the request.
func toMatrix(wire [][]*float64, nSources, nDest int) ([][]float64, error) {
	if len(wire) != nSources {
		return nil, eris.Errorf("osrm: got %d rows, want %d", len(wire), nSources)
	}
	out := make([][]float64, nSources)
	for i, row := range wire {
		if len(row) != nDest {
			return nil, eris.Errorf("osrm: row %d has %d columns, want %d", i, len(row), nDest)
		}
		out[i] = make([]float64, nDest)
		for j, v := range row {
			if v == nil {
				out[i][j] = math.NaN()
			} else {
				out[i][j] = *v
			}
		}
	}
	return out, nil
}

func nanMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = math.NaN()
		}
	}
	return m
}

func formatCoord(p Point) string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

// indexRange renders "start;start+1;...;end-1".
func indexRange(start, end int) string {
	parts := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		parts = append(parts, strconv.Itoa(i))
	}
	return strings.Join(parts, ";")
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
