package stats_test

import (
	"math"
	"testing"

	"github.com/okian/gradestats/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCompute(t *testing.T) {
	Convey("Given composite averages", t, func() {
		Convey("When the set is empty", func() {
			s := stats.Compute(nil)

			Convey("Then everything is zero", func() {
				So(s.Total, ShouldEqual, 0)
				So(s.AboveThreshold, ShouldEqual, 0)
				So(s.Percentage, ShouldEqual, 0)
				So(math.IsNaN(s.Percentage), ShouldBeFalse)
				So(s.Threshold, ShouldEqual, stats.DefaultThreshold)
			})
		})

		Convey("When the set is {84.5, NaN, 72}", func() {
			in := []float64{84.5, math.NaN(), 72}

			Convey("Then the inclusive reading counts NaN in total only", func() {
				s := stats.Compute(in)
				So(s.Total, ShouldEqual, 3)
				So(s.AboveThreshold, ShouldEqual, 2)
				So(s.Percentage, ShouldAlmostEqual, 66.67, 0.01)
			})

			Convey("And the exclusive reading drops NaN from total", func() {
				s := stats.Compute(in, stats.ExcludeUndefined())
				So(s.Total, ShouldEqual, 2)
				So(s.AboveThreshold, ShouldEqual, 2)
				So(s.Percentage, ShouldEqual, 100)
			})
		})

		Convey("When a composite equals the threshold exactly", func() {
			s := stats.Compute([]float64{70, 70.0001})

			Convey("Then only the strictly greater one passes", func() {
				So(s.AboveThreshold, ShouldEqual, 1)
				So(s.Percentage, ShouldEqual, 50)
			})
		})

		Convey("When every composite is NaN", func() {
			s := stats.Compute([]float64{math.NaN(), math.NaN()})

			Convey("Then nothing passes", func() {
				So(s.Total, ShouldEqual, 2)
				So(s.AboveThreshold, ShouldEqual, 0)
				So(s.Percentage, ShouldEqual, 0)
			})

			Convey("And the exclusive reading has an empty population", func() {
				s := stats.Compute([]float64{math.NaN()}, stats.ExcludeUndefined())
				So(s.Total, ShouldEqual, 0)
				So(s.Percentage, ShouldEqual, 0)
			})
		})

		Convey("When the threshold is overridden", func() {
			s := stats.Compute([]float64{50, 60, 90}, stats.WithThreshold(55))

			Convey("Then it is applied and reported", func() {
				So(s.AboveThreshold, ShouldEqual, 2)
				So(s.Threshold, ShouldEqual, 55)
			})
		})

		Convey("When a NaN threshold is given", func() {
			s := stats.Compute([]float64{80}, stats.WithThreshold(math.NaN()))

			Convey("Then the default is kept", func() {
				So(s.Threshold, ShouldEqual, stats.DefaultThreshold)
				So(s.AboveThreshold, ShouldEqual, 1)
			})
		})

		Convey("Then the percentage always lies in [0, 100]", func() {
			sets := [][]float64{
				{0}, {100}, {71, 71, 71}, {-5, 1e9, math.NaN()}, {math.Inf(1), math.Inf(-1)},
			}
			for _, set := range sets {
				s := stats.Compute(set)
				So(s.Percentage, ShouldBeBetweenOrEqual, 0, 100)
			}
		})
	})
}
