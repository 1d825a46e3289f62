package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/hoopsrank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a source and date are recorded", func() {
			key := dedupe.Key("kenpom", "2025-02-01")
			So(key, ShouldEqual, "kenpom@2025-02-01")
			So(d.SeenAndRecord(ctx, key), ShouldBeFalse)

			Convey("Then recording it again reports it in flight", func() {
				So(d.SeenAndRecord(ctx, key), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then another date of the same source is independent", func() {
				So(d.SeenAndRecord(ctx, dedupe.Key("kenpom", "2025-02-02")), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})

			Convey("Then releasing it allows it to be recorded again", func() {
				d.Unrecord(ctx, key)
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, key), ShouldBeFalse)
			})

			Convey("Then releasing an unknown key is a no-op", func() {
				d.Unrecord(ctx, "net@1999-01-01")
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a deduper capped at two keys", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		So(d.SeenAndRecord(ctx, "b"), ShouldBeFalse)

		Convey("Then a third key is refused until one is released", func() {
			So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			d.Unrecord(ctx, "a")
			So(d.SeenAndRecord(ctx, "c"), ShouldBeFalse)
		})
	})
}

func TestInMemoryDeduperConcurrent(t *testing.T) {
	Convey("Given many goroutines racing on the same keys", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()
		var wins atomic.Int64
		var wg sync.WaitGroup
		for g := 0; g < 16; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("src@%d", i)) {
						wins.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each key is won exactly once", func() {
			So(wins.Load(), ShouldEqual, 50)
			So(d.Size(), ShouldEqual, 50)
		})
	})
}
