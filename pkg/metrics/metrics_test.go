package metrics

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	. "github.com/smartystreets/goconvey/convey"
)

func family(reg *prometheus.Registry, name string) *dto.MetricFamily {
	mfs, err := reg.Gather()
	So(err, ShouldBeNil)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterValue(reg *prometheus.Registry, name string, labels map[string]string) float64 {
	mf := family(reg, name)
	if mf == nil {
		return -1
	}
	for _, m := range mf.GetMetric() {
		if matches(m, labels) {
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func matches(m *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(labels)
}

func TestManagerOptions(t *testing.T) {
	Convey("Given a manager with custom options", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(
			WithNamespace("test"),
			WithSubsystem("grades"),
			WithHistogramBuckets([]float64{1, 10}),
			WithConstLabels(map[string]string{"env": "test"}),
			WithRegistry(reg),
		)

		Convey("Then collectors land on the given registry with the given names", func() {
			So(m.Registry(), ShouldEqual, reg)
			m.RecordIngested()
			So(counterValue(reg, "test_grades_records_ingested_total", map[string]string{"env": "test"}), ShouldEqual, 1)
		})

		Convey("And histograms use the custom buckets", func() {
			m.RecordWorkerLatency(5)
			mf := family(reg, "test_grades_worker_processing_latency_milliseconds")
			So(mf, ShouldNotBeNil)
			So(len(mf.GetMetric()[0].GetHistogram().GetBucket()), ShouldEqual, 2)
		})
	})

	Convey("Given empty option values", t, func() {
		m := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithRegistry(nil))

		Convey("Then defaults are kept", func() {
			So(m.namespace, ShouldEqual, "gradestats")
			So(m.Registry(), ShouldNotBeNil)
			So(len(m.histogramBuckets), ShouldBeGreaterThan, 0)
		})
	})
}

func TestManagerRecording(t *testing.T) {
	Convey("Given a fresh manager", t, func() {
		m := NewManager()
		reg := m.Registry()

		Convey("When queries are recorded", func() {
			m.RecordQuery(QueryGlobalStats, 1.5)
			m.RecordQuery(QueryGlobalStats, 2.5)
			m.RecordQuery(QueryClassStats, 1)

			Convey("Then they are counted per kind", func() {
				So(counterValue(reg, "gradestats_queries_total", map[string]string{"kind": QueryGlobalStats}), ShouldEqual, 2)
				So(counterValue(reg, "gradestats_queries_total", map[string]string{"kind": QueryClassStats}), ShouldEqual, 1)
			})
		})

		Convey("When composites and skips are recorded", func() {
			m.RecordComposites(3, 1)
			m.RecordEntrySkipped("malformed")
			m.RecordEntrySkipped("malformed")

			Convey("Then the counters reflect them", func() {
				So(counterValue(reg, "gradestats_composites_computed_total", nil), ShouldEqual, 3)
				So(counterValue(reg, "gradestats_composites_undefined_total", nil), ShouldEqual, 1)
				So(counterValue(reg, "gradestats_entries_skipped_total", map[string]string{"reason": "malformed"}), ShouldEqual, 2)
			})
		})

		Convey("When gauges are updated", func() {
			m.UpdateQueueCapacity(100)
			m.UpdateQueueSize(7)
			m.UpdateWorkerCount(4)
			m.UpdateStoreRecords(12)
			m.UpdateSystem()

			Convey("Then the exposition contains the latest values", func() {
				var buf bytes.Buffer
				mfs, err := reg.Gather()
				So(err, ShouldBeNil)
				enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
				for _, mf := range mfs {
					So(enc.Encode(mf), ShouldBeNil)
				}
				out := buf.String()
				So(out, ShouldContainSubstring, "gradestats_queue_capacity 100")
				So(out, ShouldContainSubstring, "gradestats_queue_size 7")
				So(out, ShouldContainSubstring, "gradestats_worker_count 4")
				So(out, ShouldContainSubstring, "gradestats_store_records 12")
				So(out, ShouldContainSubstring, "gradestats_system_goroutines")
			})
		})

		Convey("When HTTP requests are recorded", func() {
			m.RecordHTTPRequest("/grades/stats", "GET", "200", 3)

			Convey("Then the handler exposes them", func() {
				rr := httptest.NewRecorder()
				m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
				So(rr.Code, ShouldEqual, 200)
				So(rr.Body.String(), ShouldContainSubstring, `gradestats_http_requests_total{endpoint="/grades/stats",method="GET",status_code="200"} 1`)
			})
		})
	})
}

func TestDefaultManager(t *testing.T) {
	Convey("Given a replacement default manager", t, func() {
		m := NewManager()
		prev := SetDefault(m)
		defer SetDefault(prev)

		Convey("Then package helpers write to it", func() {
			RecordIngested()
			RecordDuplicate()
			RecordFailed()
			RecordQueueEnqueue()
			RecordQueueDequeue()
			RecordQueueEnqueueError()
			RecordWorkerError()
			RecordError("store", "timeout")
			RecordConfigReload("ok")
			RecordStoreLatency("insert", 1)
			So(counterValue(m.Registry(), "gradestats_records_duplicate_total", nil), ShouldEqual, 1)
			So(counterValue(m.Registry(), "gradestats_errors_total", map[string]string{"component": "store", "type": "timeout"}), ShouldEqual, 1)
			So(counterValue(m.Registry(), "gradestats_config_reloads_total", map[string]string{"result": "ok"}), ShouldEqual, 1)
		})

		Convey("And SetDefault(nil) keeps the current manager", func() {
			So(SetDefault(nil), ShouldEqual, m)
			So(Default(), ShouldEqual, m)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent writers", t, func() {
		m := NewManager()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					m.RecordIngested()
					m.UpdateQueueSize(j)
					m.RecordHTTPRequest("/grades", "POST", "202", float64(j))
				}
			}()
		}
		wg.Wait()

		Convey("Then no update is lost", func() {
			So(counterValue(m.Registry(), "gradestats_records_ingested_total", nil), ShouldEqual, 1000)
			So(strings.HasPrefix(family(m.Registry(), "gradestats_http_requests_total").GetName(), "gradestats"), ShouldBeTrue)
		})
	})
}
