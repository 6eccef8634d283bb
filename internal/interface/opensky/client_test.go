package opensky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"flightwatch-service/internal/domain/apperror"
	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/infrastructure/oauth"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

const sampleStates = `{"time":1700000000,"states":[
	["aaa111","DLH4  ","Germany",1,1,-39.5,-9.5,11000,false,240,45,0,null,11100,"1000",false,0,4],
	["bbb222","GRD1","Germany",1,1,-39.6,-9.6,0,true,0,0,0,null,null,null,false,0,17],
	["ccc333",null,"Brazil",1,1,null,null,5000,false,100,10,0,null,null,null,false,0,0],
	["ddd444"],
	[7, "ODD", 3]
]}`

type fakeOpenSky struct {
	*httptest.Server
	exchanges atomic.Int32
	requests  atomic.Int32
	lastQuery atomic.Value

	// number of leading state requests answered with 401
	reject int32
	status int
	body   string
}

func newFakeOpenSky(t *testing.T, reject int32, status int, body string) *fakeOpenSky {
	t.Helper()
	f := &fakeOpenSky{reject: reject, status: status, body: body}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		n := f.exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":1800}`, n)
	})
	mux.HandleFunc("/api/states/all", func(w http.ResponseWriter, r *http.Request) {
		n := f.requests.Add(1)
		f.lastQuery.Store(r.URL.RawQuery)
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if n <= f.reject {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(f.status)
		fmt.Fprint(w, f.body)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestClient(f *fakeOpenSky) *Client {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	log := logger.NewNopLogger()
	tokens := oauth.NewOpenSkyOAuth("client", "secret", f.URL+"/token", f.Client(), log, m)
	return NewClient(f.Client(), tokens, f.URL+"/api/", log, m)
}

func TestFetchByBoundingBoxKeepsAirborneFlights(t *testing.T) {
	f := newFakeOpenSky(t, 0, http.StatusOK, sampleStates)
	client := newTestClient(f)

	flights, err := client.FetchByBoundingBox(context.Background(), entity.BoundingBox{
		MinLatitude: -10, MaxLatitude: -9, MinLongitude: -40, MaxLongitude: -39,
	})
	if err != nil {
		t.Fatalf("FetchByBoundingBox: %v", err)
	}

	if len(flights) != 1 {
		t.Fatalf("flights = %d, want 1 (%v)", len(flights), entity.FlightNumbers(flights))
	}
	if flights[0].FlightNumber != "DLH4" || flights[0].Airline != "Germany" {
		t.Errorf("unexpected flight: %+v", flights[0])
	}

	query, _ := url.ParseQuery(f.lastQuery.Load().(string))
	want := map[string]string{"lamin": "-10", "lamax": "-9", "lomin": "-40", "lomax": "-39"}
	for k, v := range want {
		if got := query.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestFetchAllHasNoBoundingBox(t *testing.T) {
	f := newFakeOpenSky(t, 0, http.StatusOK, `{"time":1,"states":null}`)
	client := newTestClient(f)

	flights, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(flights) != 0 {
		t.Errorf("flights = %d, want 0", len(flights))
	}
	if q := f.lastQuery.Load().(string); q != "" {
		t.Errorf("query = %q, want empty", q)
	}
}

func TestFetchRetriesOnceAfterUnauthorized(t *testing.T) {
	f := newFakeOpenSky(t, 1, http.StatusOK, sampleStates)
	client := newTestClient(f)

	flights, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(flights) != 1 {
		t.Errorf("flights = %d, want 1", len(flights))
	}
	if got := f.exchanges.Load(); got != 2 {
		t.Errorf("token exchanges = %d, want 2", got)
	}
	if got := f.requests.Load(); got != 2 {
		t.Errorf("state requests = %d, want 2", got)
	}
}

func TestFetchFailsOnSecondUnauthorized(t *testing.T) {
	f := newFakeOpenSky(t, 2, http.StatusOK, sampleStates)
	client := newTestClient(f)

	_, err := client.FetchAll(context.Background())
	if !apperror.Is(err, apperror.KindExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	var appErr *apperror.Error
	if ok := errors.As(err, &appErr); !ok || appErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %v, want 401", err)
	}
	if got := f.requests.Load(); got != 2 {
		t.Errorf("state requests = %d, want exactly one retry", got)
	}
}

func TestFetchServiceUnavailable(t *testing.T) {
	f := newFakeOpenSky(t, 0, http.StatusServiceUnavailable, "down")
	client := newTestClient(f)

	_, err := client.FetchByBoundingBox(context.Background(), entity.BoundingBox{
		MinLatitude: 1, MaxLatitude: 2, MinLongitude: 1, MaxLongitude: 2,
	})
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected app error, got %v", err)
	}
	if appErr.Kind != apperror.KindExternalService || appErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("got kind %s status %d", appErr.Kind, appErr.StatusCode)
	}
	if appErr.Service != serviceName {
		t.Errorf("service = %q", appErr.Service)
	}
}

func TestFetchMalformedBody(t *testing.T) {
	f := newFakeOpenSky(t, 0, http.StatusOK, `{"states":[`)
	client := newTestClient(f)

	_, err := client.FetchAll(context.Background())
	if !apperror.Is(err, apperror.KindExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
}

func TestFormatDegrees(t *testing.T) {
	tests := map[float64]string{
		-10:      "-10",
		51.5:     "51.5",
		0.000001: "0.000001",
		180:      "180",
	}
	for in, want := range tests {
		if got := formatDegrees(in); got != want {
			t.Errorf("formatDegrees(%v) = %q, want %q", in, got, want)
		}
	}
}
