package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithRefreshInterval(3*time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.RefreshInterval(), ShouldEqual, 3*time.Second)
				manager.backfillRows.Add(2)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_backfill_rows_total")
			})
		})

		Convey("When empty options are supplied", func() {
			manager := NewManager(
				WithNamespace(""),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "hoopsrank")
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When ingestion metrics are recorded", func() {
			before := testutil.ToFloat64(globalManager.ingestRows.WithLabelValues("kenpom"))
			RecordIngestRows("kenpom", 5)
			RecordIngestBatch("kenpom", "ok")

			Convey("Then counters advance", func() {
				So(testutil.ToFloat64(globalManager.ingestRows.WithLabelValues("kenpom")), ShouldEqual, before+5)
			})
		})

		Convey("When gauges are updated", func() {
			UpdateQueueSize(7)
			UpdateBackfillSubsets(15)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.backfillSubsets), ShouldEqual, 15)
			})
		})

		Convey("When every helper is called", func() {
			So(func() {
				RecordIngestFailure("invalid_source_data")
				RecordDegenerateNormalization("net", "overall")
				RecordBackfillRun("ok", 12)
				RecordBackfillRows(60)
				RecordBackfillSkippedDate()
				RecordCacheHit()
				RecordCacheMiss()
				RecordQueryLatency("default", 1.5)
				RecordRerankPopulation(16)
				RecordSimilarityScored("overall", 10)
				RecordSimilarityDropped("overall", "missing_field", 1)
				UpdateQueueCapacity(100)
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordRepositoryUpsertLatency("composite_rankings", 2)
				RecordRepositoryQueryLatency("composite_rankings", 1)
				RecordHTTPRequest("composite", "GET", "200")
				RecordHTTPRequestDuration("composite", "GET", "200", 4)
				RecordErrorByEndpoint("composite", "GET", "client_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
