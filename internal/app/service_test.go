package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/vesseltrail/internal/app"
	"github.com/okian/vesseltrail/internal/domain/colors"
	"github.com/okian/vesseltrail/internal/domain/filter"
	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/internal/domain/types"
	"github.com/okian/vesseltrail/pkg/logger"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func point(day int, pos model.Position, power float64) model.DataPoint {
	return model.DataPoint{
		Timestamp:      model.NewTimestamp(time.Date(2025, 3, day, 12, 0, 0, 0, time.UTC)),
		Position:       pos,
		Power:          power,
		LogFactorValue: 1.02,
		SFOCVisible:    day == 2,
	}
}

func fixture() []model.DataPoint {
	return []model.DataPoint{
		point(1, model.Position{101.60, 3.10}, 90),
		point(2, model.Position{101.70, 3.20}, 120),
		point(3, model.Position{101.80, 3.30}, 110),
	}
}

// stubSource serves fixed points. When gate is set, the first Load waits on it.
type stubSource struct {
	points []model.DataPoint
	err    error
	gate   chan struct{}
	calls  atomic.Int32
	once   sync.Once
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(ctx context.Context) ([]model.DataPoint, error) {
	n := s.calls.Add(1)
	if s.gate != nil && n == 1 {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.points, nil
}

func (s *stubSource) release() { s.once.Do(func() { close(s.gate) }) }

func newService(src *stubSource, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithSource(src),
		service.WithWorkerCount(2),
		service.WithQueueSize(8),
		service.WithFetchTimeout(2 * time.Second),
		service.WithClock(func() time.Time { return now }),
	}
	return service.New(append(base, opts...)...)
}

// waitFor polls the session until cond holds or a second passes.
func waitFor(svc *service.Service, id string, cond func(types.View) bool) types.View {
	deadline := time.Now().Add(time.Second)
	var v types.View
	for time.Now().Before(deadline) {
		var err error
		v, err = svc.Session(context.Background(), id)
		if err == nil && cond(v) {
			return v
		}
		time.Sleep(5 * time.Millisecond)
	}
	return v
}

func settled(v types.View) bool { return v.Status != model.StatusLoading }

func TestQuery(t *testing.T) {
	Convey("Given a service over three points", t, func() {
		ctx := context.Background()
		src := &stubSource{points: fixture()}
		svc := newService(src)

		Convey("When querying everything with the Power metric", func() {
			v, err := svc.Query(ctx, model.FilterCriteria{}, "Power")
			So(err, ShouldBeNil)

			Convey("Then the trail and cards are built from the result", func() {
				So(v.Status, ShouldEqual, model.StatusReady)
				So(v.PointCount, ShouldEqual, 3)
				So(len(v.Trail.Segments), ShouldEqual, 2)
				So(v.Trail.Segments[0].Color, ShouldEqual, "#FF0000")
				So(v.Trail.Segments[1].Color, ShouldEqual, "#FFAC1C")
				So(v.InfoCard.LogFactor, ShouldEqual, "1.02")
				So(v.SFOCVisible, ShouldBeTrue)
				So(v.AvailableMetrics, ShouldContain, colors.MetricSFOC)
				So(v.Notification.Message, ShouldEqual, "Loaded 3 data points.")
			})
		})

		Convey("When no point matches", func() {
			from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
			v, err := svc.Query(ctx, model.FilterCriteria{DateFrom: &from}, "Default")
			So(err, ShouldBeNil)
			So(v.Status, ShouldEqual, model.StatusEmpty)
			So(v.InfoCard, ShouldResemble, filter.UnavailableInfoCard())
			So(v.Notification.Kind, ShouldEqual, model.NotifyInfo)
			So(v.Notification.Message, ShouldEqual, "No data found for the selected filters.")
		})

		Convey("When the GeoJSON form is requested", func() {
			fc, err := svc.QueryGeoJSON(ctx, model.FilterCriteria{}, "power")
			So(err, ShouldBeNil)
			So(len(fc.Features), ShouldEqual, 5)
		})

		Convey("When the metric is unknown", func() {
			_, err := svc.Query(ctx, model.FilterCriteria{}, "speed")
			So(errors.Is(err, colors.ErrUnknownMetric), ShouldBeTrue)
		})

		Convey("When the dates are inverted", func() {
			from, to := now, now.AddDate(0, -1, 0)
			_, err := svc.Query(ctx, model.FilterCriteria{DateFrom: &from, DateTo: &to}, "Default")
			So(errors.Is(err, filter.ErrInvalidCriteria), ShouldBeTrue)
			So(src.calls.Load(), ShouldEqual, int32(0))
		})

		Convey("When the upstream fails", func() {
			src.err = errors.New("connection refused")
			_, err := svc.Query(ctx, model.FilterCriteria{}, "Default")
			So(errors.Is(err, service.ErrFetchFailed), ShouldBeTrue)
		})
	})
}

func TestSessions(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		src := &stubSource{points: fixture()}
		svc := newService(src)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a session is created", func() {
			created, err := svc.CreateSession(ctx)
			So(err, ShouldBeNil)
			So(created.SessionID, ShouldNotBeEmpty)
			So(created.Generation, ShouldEqual, uint64(1))
			So(created.Metric, ShouldEqual, colors.MetricDefault)
			So(created.Theme, ShouldEqual, model.ThemeLight)
			So(created.Criteria.DateTo.Equal(now), ShouldBeTrue)

			Convey("Then the first fetch lands with a one-time notification", func() {
				v := waitFor(svc, created.SessionID, settled)
				So(v.Status, ShouldEqual, model.StatusReady)
				So(v.PointCount, ShouldEqual, 3)
				So(v.Notification, ShouldNotBeNil)
				So(v.Notification.Kind, ShouldEqual, model.NotifySuccess)

				again, err := svc.Session(ctx, created.SessionID)
				So(err, ShouldBeNil)
				So(again.Notification, ShouldBeNil)
			})

			Convey("Then changing the metric re-colors without refiltering", func() {
				waitFor(svc, created.SessionID, settled)
				calls := src.calls.Load()

				v, err := svc.SetMetric(ctx, created.SessionID, "Power")
				So(err, ShouldBeNil)
				So(v.Metric, ShouldEqual, colors.MetricPower)
				So(v.Trail.Segments[0].Color, ShouldEqual, "#FF0000")
				So(src.calls.Load(), ShouldEqual, calls)

				_, err = svc.SetMetric(ctx, created.SessionID, "bogus")
				So(errors.Is(err, colors.ErrUnknownMetric), ShouldBeTrue)
			})

			Convey("Then the theme is session state", func() {
				v, err := svc.SetTheme(ctx, created.SessionID, model.ThemeDark)
				So(err, ShouldBeNil)
				So(v.Theme, ShouldEqual, model.ThemeDark)

				_, err = svc.SetTheme(ctx, created.SessionID, model.Theme("sepia"))
				So(errors.Is(err, service.ErrInvalidTheme), ShouldBeTrue)
			})

			Convey("Then new filters bump the generation", func() {
				waitFor(svc, created.SessionID, settled)
				from := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
				gen, err := svc.SubmitFilters(ctx, created.SessionID, model.FilterCriteria{DateFrom: &from})
				So(err, ShouldBeNil)
				So(gen, ShouldEqual, uint64(2))

				v := waitFor(svc, created.SessionID, func(v types.View) bool { return v.PointCount == 2 })
				So(v.Generation, ShouldEqual, uint64(2))
				So(v.Status, ShouldEqual, model.StatusReady)
			})

			Convey("Then invalid filters are rejected up front", func() {
				_, err := svc.SubmitFilters(ctx, created.SessionID, model.FilterCriteria{CompanyIDs: []string{"nope"}})
				So(errors.Is(err, filter.ErrInvalidCriteria), ShouldBeTrue)
			})

			Convey("Then the trail is available as GeoJSON", func() {
				waitFor(svc, created.SessionID, settled)
				fc, err := svc.SessionGeoJSON(ctx, created.SessionID)
				So(err, ShouldBeNil)
				So(len(fc.Features), ShouldEqual, 5)
			})

			Convey("Then deleting it makes it unknown", func() {
				So(svc.DeleteSession(ctx, created.SessionID), ShouldBeNil)
				_, err := svc.Session(ctx, created.SessionID)
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
			})
		})

		Convey("When the session id is unknown", func() {
			_, err := svc.SetMetric(ctx, "missing", "Power")
			So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
		})

		Convey("Then stats describe the running service", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["source"], ShouldEqual, "stub")
			So(stats["workerCount"], ShouldEqual, 2)
		})
	})
}

func TestSessionFetchFailure(t *testing.T) {
	Convey("Given an upstream that always fails", t, func() {
		ctx := context.Background()
		svc := newService(&stubSource{err: errors.New("503")})
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		created, err := svc.CreateSession(ctx)
		So(err, ShouldBeNil)

		Convey("Then the session falls back to an empty result and an error notice", func() {
			v := waitFor(svc, created.SessionID, settled)
			So(v.Status, ShouldEqual, model.StatusError)
			So(v.PointCount, ShouldEqual, 0)
			So(v.InfoCard, ShouldResemble, filter.UnavailableInfoCard())
			So(v.Notification.Kind, ShouldEqual, model.NotifyError)
			So(v.Notification.Message, ShouldEqual, "Failed to load data. Please try again.")
		})
	})
}

func TestStaleGenerations(t *testing.T) {
	Convey("Given a first fetch that is slower than the second", t, func() {
		ctx := context.Background()
		src := &stubSource{points: fixture(), gate: make(chan struct{})}
		svc := newService(src)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		defer src.release()

		created, err := svc.CreateSession(ctx)
		So(err, ShouldBeNil)
		for src.calls.Load() < 1 {
			time.Sleep(time.Millisecond)
		}

		from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		gen, err := svc.SubmitFilters(ctx, created.SessionID, model.FilterCriteria{DateFrom: &from})
		So(err, ShouldBeNil)
		So(gen, ShouldEqual, uint64(2))

		Convey("Then the later submission wins even though the earlier one resolves last", func() {
			v := waitFor(svc, created.SessionID, settled)
			So(v.Status, ShouldEqual, model.StatusEmpty)

			src.release()
			time.Sleep(50 * time.Millisecond)

			v, err := svc.Session(ctx, created.SessionID)
			So(err, ShouldBeNil)
			So(v.Generation, ShouldEqual, uint64(2))
			So(v.Status, ShouldEqual, model.StatusEmpty)
			So(v.PointCount, ShouldEqual, 0)
		})
	})
}

func TestBackpressure(t *testing.T) {
	Convey("Given one busy worker and a queue of one", t, func() {
		ctx := context.Background()
		src := &stubSource{points: fixture(), gate: make(chan struct{})}
		svc := newService(src, service.WithWorkerCount(1), service.WithQueueSize(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		defer src.release()

		created, err := svc.CreateSession(ctx)
		So(err, ShouldBeNil)
		for src.calls.Load() < 1 {
			time.Sleep(time.Millisecond)
		}

		_, err = svc.SubmitFilters(ctx, created.SessionID, model.FilterCriteria{})
		So(err, ShouldBeNil)

		Convey("Then a further submission is refused and the session settles in error", func() {
			_, err := svc.SubmitFilters(ctx, created.SessionID, model.FilterCriteria{})
			So(errors.Is(err, service.ErrBusy), ShouldBeTrue)

			v, err := svc.Session(ctx, created.SessionID)
			So(err, ShouldBeNil)
			So(v.Generation, ShouldEqual, uint64(3))
			So(v.Status, ShouldEqual, model.StatusError)
			So(v.Notification, ShouldNotBeNil)
			So(v.Notification.Message, ShouldEqual, "The server is busy. Please try again.")

			Convey("And the older fetches landing later cannot leave it loading", func() {
				src.release()
				time.Sleep(100 * time.Millisecond)

				v, err := svc.Session(ctx, created.SessionID)
				So(err, ShouldBeNil)
				So(v.Generation, ShouldEqual, uint64(3))
				So(v.Status, ShouldEqual, model.StatusError)
				So(v.Notification, ShouldBeNil)
			})
		})
	})
}

// renderGate blocks the trail renderer on its skipped-segment log while armed.
type renderGate struct {
	logger.Logger
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newRenderGate() *renderGate {
	return &renderGate{Logger: logger.Nop(), entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *renderGate) Named(string) logger.Logger { return g }

func (g *renderGate) Debug(_ context.Context, msg string, _ ...logger.Field) {
	if !g.armed.Load() || msg != "skipping trail segment with invalid position" {
		return
	}
	g.once.Do(func() { close(g.entered) })
	<-g.release
}

func TestRenderOutsideStoreLock(t *testing.T) {
	Convey("Given two ready sessions over a series with a position gap", t, func() {
		ctx := context.Background()
		points := append(fixture(), point(4, nil, 100))
		gate := newRenderGate()
		svc := newService(&stubSource{points: points}, service.WithLogger(gate))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		a, err := svc.CreateSession(ctx)
		So(err, ShouldBeNil)
		b, err := svc.CreateSession(ctx)
		So(err, ShouldBeNil)
		So(waitFor(svc, a.SessionID, settled).Status, ShouldEqual, model.StatusReady)
		So(waitFor(svc, b.SessionID, settled).Status, ShouldEqual, model.StatusReady)

		Convey("When one session re-renders for a new metric", func() {
			gate.armed.Store(true)
			done := make(chan types.View, 1)
			go func() {
				v, _ := svc.SetMetric(ctx, a.SessionID, "Power")
				done <- v
			}()
			<-gate.entered

			Convey("Then other sessions stay readable and writable", func() {
				answered := make(chan error, 1)
				go func() {
					_, err := svc.SetTheme(ctx, b.SessionID, model.ThemeDark)
					if err == nil {
						_, err = svc.Session(ctx, b.SessionID)
					}
					answered <- err
				}()
				var got error
				select {
				case got = <-answered:
				case <-time.After(time.Second):
					got = errors.New("session b blocked behind a render")
				}
				So(got, ShouldBeNil)

				close(gate.release)
				v := <-done
				So(v.Metric, ShouldEqual, colors.MetricPower)
				So(v.Trail.Metric, ShouldEqual, colors.MetricPower)
				So(v.Trail.Skipped, ShouldEqual, 1)
			})
		})
	})
}

func TestLifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := newService(&stubSource{})

		Convey("Then session operations are refused", func() {
			_, err := svc.CreateSession(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Then stopping is a no-op", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
		})

		Convey("Then starting twice is harmless", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a service without a source", t, func() {
		svc := service.New()
		So(svc.Start(context.Background()), ShouldNotBeNil)
	})
}
