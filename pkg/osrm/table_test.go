package osrm

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanocv/magalu-cd-location/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestTable_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/table/v1/driving/"))
		// Coordinates travel as lon,lat.
		assert.Contains(t, r.URL.Path, "-34.877,-8.0476")
		assert.Contains(t, r.URL.Path, "-38.5014,-12.9714")
		assert.Equal(t, "0", r.URL.Query().Get("sources"))
		assert.Equal(t, "1;2", r.URL.Query().Get("destinations"))
		assert.Equal(t, "duration", r.URL.Query().Get("annotations"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":"Ok","durations":[[2900.5,41520.1]]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	result, err := c.Table(context.Background(), TableRequest{
		Sources:      []Point{{Lat: -8.0476, Lon: -34.877}},
		Destinations: []Point{{Lat: -12.9714, Lon: -38.5014}, {Lat: -3.7319, Lon: -38.5267}},
	})
	require.NoError(t, err)
	require.Len(t, result.Durations, 1)
	assert.InDelta(t, 2900.5, result.Durations[0][0], 0.001)
	assert.InDelta(t, 41520.1, result.Durations[0][1], 0.001)
	assert.Nil(t, result.Distances)
}

func TestTable_WithDistance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "duration,distance", r.URL.Query().Get("annotations"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"code": "Ok",
			"durations": [[2900.5]],
			"distances": [[67210.3]]
		}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	result, err := c.Table(context.Background(), TableRequest{
		Sources:      []Point{{Lat: -8.0476, Lon: -34.877}},
		Destinations: []Point{{Lat: -12.9714, Lon: -38.5014}},
		WithDistance: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Distances, 1)
	assert.InDelta(t, 67210.3, result.Distances[0][0], 0.001)
}

func TestTable_NullBecomesNaN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":"Ok","durations":[[1800,null]]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	result, err := c.Table(context.Background(), TableRequest{
		Sources:      []Point{{Lat: -8.0476, Lon: -34.877}},
		Destinations: []Point{{Lat: -12.9714, Lon: -38.5014}, {Lat: -3.8576, Lon: -32.4297}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 1800, result.Durations[0][0], 0.001)
	assert.True(t, math.IsNaN(result.Durations[0][1]))
}

func TestTable_ServerRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":"InvalidQuery","message":"Query string malformed close to position 12"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Table(context.Background(), TableRequest{
		Sources:      []Point{{Lat: -8.0476, Lon: -34.877}},
		Destinations: []Point{{Lat: -12.9714, Lon: -38.5014}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidQuery")
	assert.Contains(t, err.Error(), "Query string malformed")
}

func TestTable_ShapeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":"Ok","durations":[[1800]]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Table(context.Background(), TableRequest{
		Sources:      []Point{{Lat: -8.0476, Lon: -34.877}},
		Destinations: []Point{{Lat: -12.9714, Lon: -38.5014}, {Lat: -3.7319, Lon: -38.5267}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")
}

func TestTable_EmptyRequest(t *testing.T) {
	c := NewClient()

	_, err := c.Table(context.Background(), TableRequest{
		Destinations: []Point{{Lat: -12.9714, Lon: -38.5014}},
	})
	require.Error(t, err)

	_, err = c.Table(context.Background(), TableRequest{
		Sources: []Point{{Lat: -8.0476, Lon: -34.877}},
	})
	require.Error(t, err)
}

func TestTable_RetriesTransient(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":"Ok","durations":[[1800]]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	result, err := c.Table(context.Background(), TableRequest{
		Sources:      []Point{{Lat: -8.0476, Lon: -34.877}},
		Destinations: []Point{{Lat: -12.9714, Lon: -38.5014}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.InDelta(t, 1800, result.Durations[0][0], 0.001)
}

func TestTable_BadRequestNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "Bad Request")
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := c.Table(context.Background(), TableRequest{
		Sources:      []Point{{Lat: -8.0476, Lon: -34.877}},
		Destinations: []Point{{Lat: -12.9714, Lon: -38.5014}},
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "http 400")
}

// TestTableChunked_Stitches drives a fake server whose durations encode
// which pair was asked for, so a bad stitch shows up as a wrong value.
// Source lat carries the source id, destination lon the destination id.
func TestTableChunked_Stitches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++

		path := strings.TrimPrefix(r.URL.Path, "/table/v1/driving/")
		var lons, lats []float64
		for _, cs := range strings.Split(path, ";") {
			parts := strings.Split(cs, ",")
			lon, _ := strconv.ParseFloat(parts[0], 64)
			lat, _ := strconv.ParseFloat(parts[1], 64)
			lons = append(lons, lon)
			lats = append(lats, lat)
		}
		nSrc := len(strings.Split(r.URL.Query().Get("sources"), ";"))
		nDst := len(lons) - nSrc
		assert.LessOrEqual(t, nDst, 2)

		rows := make([]string, nSrc)
		for i := 0; i < nSrc; i++ {
			cells := make([]string, nDst)
			for j := 0; j < nDst; j++ {
				cells[j] = strconv.FormatFloat(lats[i]*1000+lons[nSrc+j], 'f', -1, 64)
			}
			rows[i] = "[" + strings.Join(cells, ",") + "]"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":"Ok","durations":[`+strings.Join(rows, ",")+`]}`)
	}))
	defer srv.Close()

	sources := []Point{{Lat: 1}, {Lat: 2}}
	destinations := make([]Point, 5)
	for j := range destinations {
		destinations[j] = Point{Lon: float64(j)}
	}

	c := NewClient(WithBaseURL(srv.URL))
	result, err := c.TableChunked(context.Background(), TableRequest{
		Sources:      sources,
		Destinations: destinations,
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	require.Len(t, result.Durations, 2)
	for si := range sources {
		require.Len(t, result.Durations[si], 5)
		for j := range destinations {
			want := float64(si+1)*1000 + float64(j)
			assert.InDelta(t, want, result.Durations[si][j], 0.001, "source %d destination %d", si, j)
		}
	}
}

func TestTableChunked_SingleCallWhenSmall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":"Ok","durations":[[10,20,30]]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	result, err := c.TableChunked(context.Background(), TableRequest{
		Sources:      []Point{{Lat: -8.0476, Lon: -34.877}},
		Destinations: []Point{{Lon: 1}, {Lon: 2}, {Lon: 3}},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []float64{10, 20, 30}, result.Durations[0])
}

func TestTableChunked_PartialFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			_, _ = io.WriteString(w, `{"code":"Ok","durations":[[10,20]]}`)
			return
		}
		_, _ = io.WriteString(w, `{"code":"NoTable","message":"no route"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.TableChunked(context.Background(), TableRequest{
		Sources:      []Point{{Lat: 1}},
		Destinations: []Point{{Lon: 0}, {Lon: 1}, {Lon: 2}},
	}, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destinations 2..2")
	assert.Contains(t, err.Error(), "NoTable")
}

func TestTableURL(t *testing.T) {
	c := &client{baseURL: "http://localhost:5000/", profile: "driving"}
	u := c.tableURL(TableRequest{
		Sources:      []Point{{Lat: -8.0476, Lon: -34.877}},
		Destinations: []Point{{Lat: -12.9714, Lon: -38.5014}, {Lat: -3.7319, Lon: -38.5267}},
	})
	assert.Equal(t,
		"http://localhost:5000/table/v1/driving/-34.877,-8.0476;-38.5014,-12.9714;-38.5267,-3.7319"+
			"?annotations=duration&destinations=1%3B2&sources=0", u)
}
