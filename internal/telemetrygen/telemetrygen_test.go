package telemetrygen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vesseltrail/internal/adapters/datasource"
	"github.com/okian/vesseltrail/internal/domain/catalog"
)

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{Vessels: 2, Points: 20, Start: start, Interval: time.Hour, Seed: 7}
}

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]kafka.Message
	fail    error
	closed  bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.batches = append(f.batches, append([]kafka.Message(nil), msgs...))
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		points := NewGenerator(testConfig(), catalog.Default()).Generate()

		Convey("Then it yields one voyage per vessel, each in time order", func() {
			So(points, ShouldHaveLength, 40)
			for _, voyage := range [][]int{{0, 20}, {20, 40}} {
				So(points[voyage[0]].Timestamp.Equal(start), ShouldBeTrue)
				for i := voyage[0] + 1; i < voyage[1]; i++ {
					So(points[i].Timestamp.After(points[i-1].Timestamp.Time), ShouldBeTrue)
				}
			}
		})

		Convey("And each point carries its vessel and company", func() {
			So(points[0].VesselID, ShouldEqual, "vessel1")
			So(points[0].CompanyID, ShouldEqual, "cmp2")
			So(points[19].VesselID, ShouldEqual, "vessel1")
			So(points[20].VesselID, ShouldEqual, "vessel2")
		})

		Convey("And positions are valid coordinates", func() {
			for _, p := range points {
				So(p.Position.Valid(), ShouldBeTrue)
				So(p.Position.Lon(), ShouldBeBetweenOrEqual, -180.0, 180.0)
				So(p.Position.Lat(), ShouldBeBetweenOrEqual, -70.0, 70.0)
			}
		})

		Convey("And the same seed reproduces the series", func() {
			again := NewGenerator(testConfig(), catalog.Default()).Generate()
			So(again[5].Power, ShouldEqual, points[5].Power)
			So(again[5].Position, ShouldResemble, points[5].Position)
		})
	})

	Convey("Given more vessels than the fleet holds", t, func() {
		cfg := testConfig()
		cfg.Vessels = 99
		points := NewGenerator(cfg, catalog.Default()).Generate()

		Convey("Then it clamps to the catalog", func() {
			So(points, ShouldHaveLength, len(catalog.Default().Vessels)*cfg.Points)
		})
	})

	Convey("Given a gap interval", t, func() {
		cfg := testConfig()
		cfg.Vessels = 1
		cfg.GapEvery = 5
		points := NewGenerator(cfg, nil).Generate()

		Convey("Then every fifth point has no position", func() {
			So(points[4].Position.Valid(), ShouldBeFalse)
			So(points[3].Position.Valid(), ShouldBeTrue)
		})
	})
}

func TestWriteFile(t *testing.T) {
	Convey("Given generated points written to disk", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "data.json")
		points := NewGenerator(testConfig(), nil).Generate()
		So(WriteFile(path, points), ShouldBeNil)

		Convey("Then the file source reads them back", func() {
			got, err := datasource.NewFileSource(path).Load(context.Background())
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, len(points))
			So(got[0].VesselID, ShouldEqual, points[0].VesselID)
			So(got[0].Timestamp.Equal(points[0].Timestamp.Time), ShouldBeTrue)
		})
	})
}

func TestPublisher(t *testing.T) {
	Convey("Given a publisher over a fake writer", t, func() {
		w := &fakeWriter{}
		pub := newPublisher(w, 15)
		points := NewGenerator(testConfig(), nil).Generate()

		Convey("When publishing", func() {
			sent, err := pub.Publish(context.Background(), points)

			Convey("Then points are batched, keyed by vessel and tagged with the run", func() {
				So(err, ShouldBeNil)
				So(sent, ShouldEqual, 40)
				So(w.batches, ShouldHaveLength, 3)
				So(w.batches[2], ShouldHaveLength, 10)
				msg := w.batches[0][0]
				So(string(msg.Key), ShouldEqual, "vessel1")
				So(string(w.batches[2][0].Key), ShouldEqual, "vessel2")
				So(msg.Headers[0].Key, ShouldEqual, "run-id")
				So(string(msg.Headers[0].Value), ShouldEqual, pub.RunID())
			})
		})

		Convey("When the broker rejects writes", func() {
			w.fail = errors.New("broker down")
			sent, err := pub.Publish(context.Background(), points)

			Convey("Then the error surfaces with nothing counted", func() {
				So(err, ShouldNotBeNil)
				So(sent, ShouldEqual, 0)
			})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a run without sinks", t, func() {
		cfg := testConfig()
		_, err := Run(context.Background(), &cfg)

		Convey("Then it refuses to run", func() {
			So(errors.Is(err, ErrNoSink), ShouldBeTrue)
		})
	})

	Convey("Given a run with a file and a publisher", t, func() {
		cfg := testConfig()
		cfg.Output = filepath.Join(t.TempDir(), "out.json")
		w := &fakeWriter{}
		stats, err := run(context.Background(), &cfg, newPublisher(w, 0))

		Convey("Then both sinks receive every point", func() {
			So(err, ShouldBeNil)
			So(stats.PointsGenerated, ShouldEqual, 40)
			So(stats.PointsWritten, ShouldEqual, 40)
			So(stats.PointsPublished, ShouldEqual, 40)
			So(w.closed, ShouldBeTrue)
			_, statErr := os.Stat(cfg.Output)
			So(statErr, ShouldBeNil)
		})
	})
}
