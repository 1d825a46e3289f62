package tracing_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/okian/hoopsrank/internal/tracing"
	"github.com/okian/hoopsrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSpans(t *testing.T) {
	logger.Init()

	Convey("Given an enabled provider with a span recorder", t, func() {
		rec := tracetest.NewSpanRecorder()
		p, err := tracing.NewProvider(tracing.Config{ServiceName: "hoopsrank-test", Enabled: true, SamplingRate: 1}, rec)
		So(err, ShouldBeNil)
		So(p.IsEnabled(), ShouldBeTrue)
		defer func() { _ = p.Shutdown(context.Background()) }()

		Convey("When a general span ends without error", func() {
			ctx, end := tracing.StartSpan(context.Background(), "backfill", attribute.Int("dates", 3))
			tracing.AddEvent(ctx, "date_skipped")
			tracing.SetAttributes(ctx, attribute.Int("rows", 90))
			end(nil)

			spans := rec.Ended()
			So(len(spans), ShouldEqual, 1)
			So(spans[0].Name(), ShouldEqual, "backfill")
			So(spans[0].Status().Code, ShouldNotEqual, codes.Error)
			So(len(spans[0].Events()), ShouldEqual, 1)
		})

		Convey("When a store span ends with an error", func() {
			_, end := tracing.StartStoreSpan(context.Background(), "sqlite", "composite_rankings", tracing.StoreOperationUpsert)
			end(errors.New("disk full"))

			spans := rec.Ended()
			So(len(spans), ShouldEqual, 1)
			So(spans[0].Name(), ShouldEqual, "upsert composite_rankings")
			So(spans[0].Status().Code, ShouldEqual, codes.Error)

			found := false
			for _, a := range spans[0].Attributes() {
				if a.Key == "db.system" {
					found = a.Value.AsString() == "sqlite"
				}
			}
			So(found, ShouldBeTrue)
		})
	})

	Convey("Given invalid or disabled configurations", t, func() {
		p, err := tracing.NewProvider(tracing.Config{Enabled: false})
		So(err, ShouldBeNil)
		So(p.IsEnabled(), ShouldBeFalse)
		So(p.Shutdown(context.Background()), ShouldBeNil)

		_, err = tracing.NewProvider(tracing.Config{Enabled: true})
		So(err, ShouldNotBeNil)

		_, err = tracing.NewProvider(tracing.Config{Enabled: true, ServiceName: "x", SamplingRate: 2})
		So(err, ShouldNotBeNil)
	})
}
