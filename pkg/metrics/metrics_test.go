package metrics_test

import (
	"testing"

	"github.com/okian/pace/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a metrics manager on a private registry", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(
			metrics.WithRegistry(reg),
			metrics.WithNamespace("test"),
			metrics.WithSubsystem("progress"),
		)
		So(m, ShouldNotBeNil)

		Convey("The registered families gather without error", func() {
			families, err := reg.Gather()
			So(err, ShouldBeNil)
			// Gauges register eagerly; counters appear after first use, so
			// the family count is a lower bound.
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Recording helpers do not panic", func() {
			So(func() {
				metrics.RecordSessionOpened()
				metrics.RecordSessionReplaced()
				metrics.RecordSessionClosed()
				metrics.UpdateSessionsActive(3)
				metrics.RecordFullSync()
				metrics.RecordProgressUpdate()
				metrics.RecordStudyItemSync()
				metrics.RecordUsernameChange()
				metrics.RecordMalformedMessage()
				metrics.RecordLeaderboardRequest()
				metrics.RecordBroadcastSent()
				metrics.RecordBroadcastCoalesced()
				metrics.RecordBroadcastError()
				metrics.RecordBroadcastLatency(1.5)
				metrics.UpdateQueueSize(2)
				metrics.UpdateQueueCapacity(100)
				metrics.UpdateQueueUtilization(0.02)
				metrics.RecordQueueEnqueueError()
				metrics.UpdateTrackedUsers(7)
				metrics.UpdateStoreShards(8)
				metrics.UpdateWorkerCount(4)
				metrics.RecordWorkerProcessingLatency(0.3)
				metrics.RecordHTTPRequest("leaderboard", "GET", "200")
				metrics.RecordHTTPRequestDuration("leaderboard", "GET", "200", 2.0)
				metrics.UpdateSystemMemoryUsage(1 << 20)
				metrics.UpdateSystemGoroutineCount(42)
			}, ShouldNotPanic)
		})

		Convey("The shared registry is exposed", func() {
			So(metrics.GetRegistry(), ShouldNotBeNil)
		})
	})
}
