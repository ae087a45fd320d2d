package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialised with defaults", func() {
			So(Init(), ShouldBeNil)
			So(Get(), ShouldNotBeNil)
			So(Sync(), ShouldBeNil)
		})

		Convey("When initialised with an unknown format", func() {
			err := Init(WithFormat("xml"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unknown log format")
		})

		Convey("When initialised with an unknown level", func() {
			So(Init(WithLevel("loud")), ShouldNotBeNil)
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithOutput(&buf), WithFormat(FormatJSON), WithLevel("debug")), ShouldBeNil)
		ctx := context.Background()

		Convey("When a named logger writes a record with fields", func() {
			Named("router").Info(ctx, "command handled",
				String("verb", "user"),
				Int("attempt", 1),
				Error(errors.New("boom")),
			)

			var rec map[string]any
			So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)

			Convey("Then the record carries the fields, component and source", func() {
				So(rec["msg"], ShouldEqual, "command handled")
				So(rec["verb"], ShouldEqual, "user")
				So(rec["attempt"], ShouldEqual, float64(1))
				So(rec["component"], ShouldEqual, "router")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level is raised above debug", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Debug(ctx, "hidden")
			Get().Warn(ctx, "shown")

			Convey("Then only the warning is written", func() {
				out := buf.String()
				So(strings.Contains(out, "hidden"), ShouldBeFalse)
				So(out, ShouldContainSubstring, "shown")
			})
		})

		Convey("When Fatal is called", func() {
			l := Get().(*slogLogger)
			code := -1
			l.exit = func(c int) { code = c }
			l.Fatal(ctx, "fatal")

			Convey("Then the record is written and exit is invoked with 1", func() {
				So(buf.String(), ShouldContainSubstring, "fatal")
				So(code, ShouldEqual, 1)
			})
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Nop discards every level without exiting", t, func() {
		l := Nop()
		So(func() {
			l.Error(context.Background(), "ignored")
			l.Fatal(context.Background(), "ignored")
			l.Named("x").Info(context.Background(), "ignored")
		}, ShouldNotPanic)
	})
}
