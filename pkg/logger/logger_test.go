package logger_test

import (
	"context"
	"testing"

	"github.com/okian/pace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("Get returns a usable logger", func() {
			l := logger.Get()
			So(l, ShouldNotBeNil)
			// Must not panic.
			l.Info(context.Background(), "hello", logger.String("k", "v"))
		})

		Convey("Named returns a child logger", func() {
			l := logger.Named("sync")
			So(l, ShouldNotBeNil)
			l.Debug(context.Background(), "child", logger.Int("n", 1))
		})
	})

	Convey("Given a nop logger", t, func() {
		l := logger.Nop()
		So(l, ShouldNotBeNil)
		l.Error(context.Background(), "discarded", logger.Error(context.Canceled))
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given the global level setter", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("Known levels parse", func() {
			for _, lvl := range []string{"debug", "info", "warn", "warning", "error", "", "ERROR"} {
				So(logger.SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("Unknown levels are rejected", func() {
			So(logger.SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}
