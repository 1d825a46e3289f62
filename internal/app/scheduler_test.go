package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/hoopsrank/internal/adapters/acquire"
	"github.com/okian/hoopsrank/internal/app"
	"github.com/okian/hoopsrank/internal/synth"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSchedulerRefresh(t *testing.T) {
	Convey("Given snapshots on disk and a scheduler", t, func() {
		svc := startService()
		ctx := context.Background()
		dir := t.TempDir()
		batches := synth.NewLeague(synth.Teams(8), 11).Batches(svc.Catalog())

		sched, err := app.NewScheduler(svc, acquire.NewFileFetcher(dir), "0 6 * * *")
		So(err, ShouldBeNil)

		Convey("When every source has a snapshot", func() {
			for source, rows := range batches {
				So(acquire.WriteSnapshot(dir, source, day1, rows), ShouldBeNil)
			}
			ingest, bf, err := sched.Refresh(ctx, day1)

			Convey("Then the date is ingested and backfilled", func() {
				So(err, ShouldBeNil)
				So(len(ingest.Sources), ShouldEqual, 4)
				So(bf.Dates, ShouldResemble, []string{day1})
				So(bf.Rows, ShouldEqual, 15*8)
			})
		})

		Convey("When only some sources have snapshots", func() {
			So(acquire.WriteSnapshot(dir, "kenpom", day1, batches["kenpom"]), ShouldBeNil)
			So(acquire.WriteSnapshot(dir, "net", day1, batches["net"]), ShouldBeNil)
			ingest, bf, err := sched.Refresh(ctx, day1)

			Convey("Then what exists is ingested and the backfill is deferred", func() {
				So(err, ShouldBeNil)
				So(len(ingest.Sources), ShouldEqual, 2)
				So(bf.Rows, ShouldEqual, 0)
			})
		})

		Convey("When nothing can be fetched", func() {
			_, _, err := sched.Refresh(ctx, day1)
			So(err, ShouldNotBeNil)
		})

		Convey("When started and stopped", func() {
			sched.Start()
			stopCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			So(sched.Stop(stopCtx), ShouldBeNil)
		})
	})

	Convey("An invalid cron spec is rejected", t, func() {
		svc := app.New()
		_, err := app.NewScheduler(svc, acquire.NewFileFetcher(t.TempDir()), "whenever")
		So(err, ShouldNotBeNil)
	})
}
