package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.filterRuns.Inc()
				n, err := testutil.GatherAndCount(registry, "vesseltrail_dashboard_filter_runs_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithLatencyBuckets([]float64{5, 50, 500}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and const labels follow the options", func() {
				manager.sessionsActive.Set(3)
				n, err := testutil.GatherAndCount(registry, "test_unit_sessions_active")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(testutil.ToFloat64(manager.sessionsActive), ShouldEqual, 3.0)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the duplicate registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording fetches", func() {
			before := testutil.ToFloat64(globalManager.fetchErrors.WithLabelValues("file"))
			RecordFetch("file", 12, 40, nil)
			RecordFetch("file", 30, 0, errors.New("boom"))

			Convey("Then only failures bump the error counter", func() {
				So(testutil.ToFloat64(globalManager.fetchErrors.WithLabelValues("file")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.pointsLoaded), ShouldEqual, 40.0)
			})
		})

		Convey("When recording a render", func() {
			rendered := testutil.ToFloat64(globalManager.segmentsRendered)
			skipped := testutil.ToFloat64(globalManager.segmentsSkipped)
			RecordTrailRender(7, 2, 0.4)

			Convey("Then emitted and skipped segments are both counted", func() {
				So(testutil.ToFloat64(globalManager.segmentsRendered), ShouldEqual, rendered+7)
				So(testutil.ToFloat64(globalManager.segmentsSkipped), ShouldEqual, skipped+2)
			})
		})

		Convey("When recording session and cache activity", func() {
			stale := testutil.ToFloat64(globalManager.staleResponses)
			hits := testutil.ToFloat64(globalManager.cacheRequests.WithLabelValues("hit"))
			RecordStaleResponse()
			RecordCacheHit()
			RecordCacheMiss()
			RecordNotification("info")
			UpdateSessionsActive(2)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.staleResponses), ShouldEqual, stale+1)
				So(testutil.ToFloat64(globalManager.cacheRequests.WithLabelValues("hit")), ShouldEqual, hits+1)
				So(testutil.ToFloat64(globalManager.sessionsActive), ShouldEqual, 2.0)
			})
		})

		Convey("When recording the remaining collectors", func() {
			So(func() {
				RecordKafkaMessage(true)
				RecordKafkaMessage(false)
				UpdateKafkaBuffered(10)
				RecordFilterRun(5)
				RecordSessionsExpired(1)
				UpdateQueueSize(1)
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(1)
				UpdateWorkerIdleCount(3)
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordHTTPRequest("/api/catalog", "GET", "200")
				RecordHTTPRequestDuration("/api/catalog", "GET", "200", 1.5)
				RecordErrorByEndpoint("/api/trail", "POST", "validation_error")
				RecordErrorByType("validation_error", "warning")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("GetRegistry exposes the custom registry", t, func() {
		So(GetRegistry(), ShouldEqual, customRegistry)
		families, err := GetRegistry().Gather()
		So(err, ShouldBeNil)
		So(len(families), ShouldBeGreaterThan, 0)
	})
}
