package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vesseltrail/internal/adapters/http/api"
	service "github.com/okian/vesseltrail/internal/app"
	"github.com/okian/vesseltrail/internal/domain/catalog"
	"github.com/okian/vesseltrail/internal/domain/colors"
	"github.com/okian/vesseltrail/internal/domain/filter"
	"github.com/okian/vesseltrail/internal/domain/model"
)

type mockDeps struct {
	lastCriteria model.FilterCriteria
	lastMetric   string
	queryErr     error
	sessionErr   error
	submitErr    error
}

func (m *mockDeps) Catalog() *catalog.Catalog { return catalog.Default() }

func (m *mockDeps) Query(_ context.Context, c model.FilterCriteria, metric string) (api.View, error) {
	m.lastCriteria, m.lastMetric = c, metric
	if m.queryErr != nil {
		return api.View{}, m.queryErr
	}
	return api.View{Status: model.StatusReady, Metric: colors.Metric(metric), PointCount: 2}, nil
}

func (m *mockDeps) QueryGeoJSON(_ context.Context, _ model.FilterCriteria, _ string) (*geojson.FeatureCollection, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{101.6, 3.1}))
	return fc, nil
}

func (m *mockDeps) CreateSession(context.Context) (api.View, error) {
	if m.sessionErr != nil {
		return api.View{}, m.sessionErr
	}
	return api.View{SessionID: "s-1", Status: model.StatusLoading, Generation: 1}, nil
}

func (m *mockDeps) Session(_ context.Context, id string) (api.View, error) {
	if m.sessionErr != nil {
		return api.View{}, m.sessionErr
	}
	return api.View{SessionID: id, Status: model.StatusReady}, nil
}

func (m *mockDeps) SubmitFilters(_ context.Context, _ string, c model.FilterCriteria) (uint64, error) {
	m.lastCriteria = c
	if m.submitErr != nil {
		return 0, m.submitErr
	}
	return 2, nil
}

func (m *mockDeps) SetMetric(_ context.Context, id, metric string) (api.View, error) {
	m.lastMetric = metric
	if _, err := colors.ParseMetric(metric); err != nil {
		return api.View{}, err
	}
	return api.View{SessionID: id, Metric: colors.Metric(metric)}, nil
}

func (m *mockDeps) SetTheme(_ context.Context, id string, theme model.Theme) (api.View, error) {
	if !theme.Valid() {
		return api.View{}, service.ErrInvalidTheme
	}
	return api.View{SessionID: id, Theme: theme}, nil
}

func (m *mockDeps) SessionGeoJSON(context.Context, string) (*geojson.FeatureCollection, error) {
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	return geojson.NewFeatureCollection(), nil
}

func (m *mockDeps) DeleteSession(context.Context, string) error { return m.sessionErr }

func (m *mockDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	return m
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("Then health serves the Prometheus exposition", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "vesseltrail_")
		})

		Convey("Then stats are JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
			So(decode(w)["serverTime"], ShouldNotBeEmpty)
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
		})

		Convey("Then the catalog lists the fleet", func() {
			w := do(mux, http.MethodGet, "/api/catalog", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w), ShouldContainKey, "companies")
		})

		Convey("Then a wrong method is rejected", func() {
			w := do(mux, http.MethodGet, "/api/trail", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then a nil mux panics", func() {
			So(func() { api.NewServer(deps).Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}

func TestQueryHandler(t *testing.T) {
	Convey("Given the trail query endpoint", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When the form carries date-only bounds", func() {
			w := do(mux, http.MethodPost, "/api/trail",
				`{"dateFrom":"2025-03-01","dateTo":"2025-03-02","companyIds":[" c1 ",""],"metric":"Power"}`)

			Convey("Then the upper bound covers the whole day", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastMetric, ShouldEqual, "Power")
				So(deps.lastCriteria.DateFrom.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(deps.lastCriteria.DateTo.Equal(time.Date(2025, 3, 2, 23, 59, 59, 999_999_999, time.UTC)), ShouldBeTrue)
				lastMicro := time.Date(2025, 3, 2, 23, 59, 59, 999_500_000, time.UTC)
				So(lastMicro.After(*deps.lastCriteria.DateTo), ShouldBeFalse)
				So(deps.lastCriteria.CompanyIDs, ShouldResemble, []string{"c1"})
			})
		})

		Convey("When no metric is given", func() {
			w := do(mux, http.MethodPost, "/api/trail", `{}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastMetric, ShouldEqual, "Default")
		})

		Convey("When GeoJSON is requested", func() {
			w := do(mux, http.MethodPost, "/api/trail?format=geojson", `{"metric":"SFOC"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/geo+json")
			So(decode(w)["type"], ShouldEqual, "FeatureCollection")
		})

		Convey("When the format is unknown", func() {
			w := do(mux, http.MethodPost, "/api/trail?format=kml", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body is malformed", func() {
			So(do(mux, http.MethodPost, "/api/trail", `{"dateFrom":`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/api/trail", `{"unknown":1}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/api/trail", `{"dateTo":"yesterday"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the criteria fail validation", func() {
			deps.queryErr = &filter.FieldError{Field: "dateFrom", Message: "Date From cannot be after Date To"}
			w := do(mux, http.MethodPost, "/api/trail", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			body := decode(w)
			So(body["code"], ShouldEqual, "invalid_criteria")
			So(body["field"], ShouldEqual, "dateFrom")
			So(body["message"], ShouldEqual, "Date From cannot be after Date To")
		})

		Convey("When the metric is unknown", func() {
			deps.queryErr = fmt.Errorf("%w: %q", colors.ErrUnknownMetric, "speed")
			So(do(mux, http.MethodPost, "/api/trail", `{}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the upstream fails", func() {
			deps.queryErr = fmt.Errorf("%w: timeout", service.ErrFetchFailed)
			w := do(mux, http.MethodPost, "/api/trail", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(decode(w)["code"], ShouldEqual, "upstream_error")
		})
	})
}

func TestSessionHandler(t *testing.T) {
	Convey("Given the session endpoints", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When creating a session", func() {
			w := do(mux, http.MethodPost, "/api/sessions", "")
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Header().Get("Location"), ShouldEqual, "/api/sessions/s-1")
			So(decode(w)["status"], ShouldEqual, "loading")
		})

		Convey("When reading a session", func() {
			w := do(mux, http.MethodGet, "/api/sessions/abc", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["sessionId"], ShouldEqual, "abc")
		})

		Convey("When submitting filters", func() {
			w := do(mux, http.MethodPost, "/api/sessions/abc/filters", `{"vesselId":"v1"}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			body := decode(w)
			So(body["generation"], ShouldEqual, 2.0)
			So(body["status"], ShouldEqual, "loading")
			So(deps.lastCriteria.VesselID, ShouldEqual, "v1")
		})

		Convey("When the queue is full", func() {
			deps.submitErr = fmt.Errorf("%w: queue full", service.ErrBusy)
			w := do(mux, http.MethodPost, "/api/sessions/abc/filters", `{}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decode(w)["code"], ShouldEqual, "backpressure")
		})

		Convey("When changing metric and theme", func() {
			So(do(mux, http.MethodPut, "/api/sessions/abc/metric", `{"metric":"sfoc"}`).Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodPut, "/api/sessions/abc/metric", `{"metric":"rpm"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPut, "/api/sessions/abc/theme", `{"theme":"dark"}`).Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodPut, "/api/sessions/abc/theme", `{"theme":"neon"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the metric is missing", func() {
			So(do(mux, http.MethodPut, "/api/sessions/abc/metric", "").Code, ShouldEqual, http.StatusBadRequest)
			w := do(mux, http.MethodPut, "/api/sessions/abc/metric", `{"metric":"  "}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldContainSubstring, "metric is required")
			So(deps.lastMetric, ShouldBeEmpty)
		})

		Convey("When fetching the trail as GeoJSON", func() {
			w := do(mux, http.MethodGet, "/api/sessions/abc/trail.geojson", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/geo+json")
		})

		Convey("When the session is unknown", func() {
			deps.sessionErr = fmt.Errorf("%w: abc", service.ErrSessionNotFound)
			So(do(mux, http.MethodGet, "/api/sessions/abc", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodDelete, "/api/sessions/abc", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/api/sessions/abc/trail.geojson", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When deleting a session", func() {
			So(do(mux, http.MethodDelete, "/api/sessions/abc", "").Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("When the service is not running", func() {
			deps.sessionErr = service.ErrNotStarted
			So(do(mux, http.MethodPost, "/api/sessions", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When something unexpected fails", func() {
			deps.sessionErr = errors.New("boom")
			So(do(mux, http.MethodGet, "/api/sessions/abc", "").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

type staticSource struct{ points []model.DataPoint }

func (s staticSource) Name() string { return "static" }

func (s staticSource) Load(context.Context) ([]model.DataPoint, error) { return s.points, nil }

func TestServerWithService(t *testing.T) {
	Convey("Given the API over a real service", t, func() {
		points := []model.DataPoint{
			{Timestamp: model.NewTimestamp(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)), Position: model.Position{101.6, 3.1}, Power: 90},
			{Timestamp: model.NewTimestamp(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)), Position: model.Position{101.7, 3.2}, Power: 120},
			{Timestamp: model.NewTimestamp(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)), Power: 80},
		}
		svc := service.New(
			service.WithSource(staticSource{points: points}),
			service.WithWorkerCount(1),
			service.WithClock(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		srv := httptest.NewServer(newMux(svc))
		defer srv.Close()

		Convey("When the trail is queried with the Power metric", func() {
			resp, err := http.Post(srv.URL+"/api/trail", "application/json", strings.NewReader(`{"metric":"Power"}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			var v api.View
			So(json.NewDecoder(resp.Body).Decode(&v), ShouldBeNil)

			Convey("Then the point without a position is skipped", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(len(v.Trail.Segments), ShouldEqual, 1)
				So(v.Trail.Segments[0].Color, ShouldEqual, "#FF0000")
				So(len(v.Trail.Markers), ShouldEqual, 2)
				So(v.Trail.Skipped, ShouldEqual, 1)
			})
		})

		Convey("When a session is created and polled", func() {
			resp, err := http.Post(srv.URL+"/api/sessions", "application/json", nil)
			So(err, ShouldBeNil)
			var created api.View
			So(json.NewDecoder(resp.Body).Decode(&created), ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)

			var v api.View
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) {
				r, err := http.Get(srv.URL + "/api/sessions/" + created.SessionID)
				So(err, ShouldBeNil)
				v = api.View{}
				_ = json.NewDecoder(r.Body).Decode(&v)
				r.Body.Close()
				if v.Status != model.StatusLoading {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}

			Convey("Then it settles with the loaded points", func() {
				So(v.Status, ShouldEqual, model.StatusReady)
				So(v.PointCount, ShouldEqual, 3)
				So(v.Notification, ShouldNotBeNil)
				So(v.Notification.Message, ShouldEqual, "Loaded 3 data points.")
			})
		})
	})
}
