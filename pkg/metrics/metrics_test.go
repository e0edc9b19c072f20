package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("ranking"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"server": "srv1"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the collectors are registered under the custom names", func() {
				So(manager, ShouldNotBeNil)
				manager.finishes.WithLabelValues("new").Inc()

				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_ranking_finishes_total" {
						found = true
						So(f.GetMetric()[0].GetLabel(), ShouldHaveLength, 2)
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording classified finishes", func() {
			before := testutil.ToFloat64(globalManager.finishes.WithLabelValues("gained"))
			RecordFinish("gained")
			RecordFinish("gained")

			Convey("Then the labelled counter advances", func() {
				So(testutil.ToFloat64(globalManager.finishes.WithLabelValues("gained")), ShouldEqual, before+2)
			})
		})

		Convey("When toggling the map active gauge", func() {
			UpdateMapActive(true)
			So(testutil.ToFloat64(globalManager.mapActive), ShouldEqual, 1)
			UpdateMapActive(false)
			So(testutil.ToFloat64(globalManager.mapActive), ShouldEqual, 0)
		})

		Convey("When recording sync activity", func() {
			So(func() {
				RecordSessionOpen("ok")
				UpdateSessionState(2)
				RecordAuthorityCall("dedimania.CheckSession", "ok", 12)
				RecordSnapshotPush("error")
				RecordFlush("ok", 3)
				RecordRollback()
				RecordEnrichmentFailure()
				RecordEnrichmentLatency(40)
				RecordDrainDuration(80)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.sessionState), ShouldEqual, 2)
		})

		Convey("When recording queue and HTTP metrics", func() {
			So(func() {
				UpdateQueueCapacity(10)
				UpdateQueueSize(4)
				UpdateQueueUtilization(0.4)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.2)
				RecordHTTPRequest("leaderboard", "GET", "200")
				RecordHTTPRequestDuration("leaderboard", "GET", "200", 1.5)
				RecordErrorByEndpoint("events", "POST", "client_error")
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 4)
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
