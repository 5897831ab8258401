package config_test

import (
	"testing"

	"github.com/okian/pace/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given a default config", t, func() {
		cfg := config.New()

		Convey("Then the defaults are sane", func() {
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.Addr, ShouldEqual, ":8000")
			So(cfg.BroadcastQueueSize, ShouldBeGreaterThan, 0)
			So(cfg.BroadcastWorkers, ShouldBeGreaterThan, 0)
			So(cfg.ShardCount, ShouldBeGreaterThan, 0)
			So(cfg.AllowedOrigins, ShouldResemble, []string{"*"})
			So(cfg.WriteTimeoutMS, ShouldBeGreaterThan, 0)
			So(cfg.MaxMessageBytes, ShouldBeGreaterThan, int64(0))
		})
	})
}
