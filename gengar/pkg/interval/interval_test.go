package interval

import (
	"testing"
	"time"

	"cgmev/gengar/defs"
	"cgmev/gengar/pkg/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

var origin = time.Date(2023, time.August, 8, 0, 0, 0, 0, time.UTC)

func makeTrace(vals ...float64) *trace.Trace {
	rs := make([]defs.Reading, len(vals))
	for i, v := range vals {
		rs[i] = defs.Reading{Patient: "alice", Time: origin.Add(time.Duration(i) * 5 * time.Minute), MgDL: v}
	}
	tr, err := trace.New("alice", 5*time.Minute, rs)
	if err != nil {
		panic(err)
	}
	return tr
}

func high(tr *trace.Trace) Predicate {
	return func(i int) bool { return tr.Value(i) >= 180 }
}

func notHigh(tr *trace.Trace) Normal {
	return func(_ Interval, i int) bool { return tr.Value(i) <= 180 }
}

type IntervalTestSuite struct {
	suite.Suite
}

func TestIntervalTestSuite(t *testing.T) {
	suite.Run(t, new(IntervalTestSuite))
}

func (suite *IntervalTestSuite) TestExtract() {
	tr := makeTrace(100, 200, 200, 100, 200, 100, 200)
	runs := Extract(tr, high(tr))
	assert.Equal(suite.T(), []Interval{{1, 2}, {4, 4}, {6, 6}}, runs)
	assert.Equal(suite.T(), 5.0, runs[0].Minutes(tr))
	assert.Equal(suite.T(), 0.0, runs[1].Minutes(tr))
}

func (suite *IntervalTestSuite) TestExtractSplitsOnTimeGap() {
	rs := []defs.Reading{
		{Time: origin, MgDL: 200},
		{Time: origin.Add(5 * time.Minute), MgDL: 200},
		{Time: origin.Add(20 * time.Minute), MgDL: 200},
	}
	tr := &trace.Trace{Patient: "alice", Interval: 5 * time.Minute, Readings: rs}
	assert.Equal(suite.T(), []Interval{{0, 1}, {2, 2}}, Extract(tr, high(tr)))
}

func (suite *IntervalTestSuite) TestExtractNone() {
	tr := makeTrace(100, 110, 120)
	assert.Empty(suite.T(), Extract(tr, high(tr)))
}

func (suite *IntervalTestSuite) TestResolveMerges() {
	tr := makeTrace(100, 200, 200, 200, 200, 100, 200, 200, 200, 200, 100, 100, 100, 100)
	runs := Extract(tr, high(tr))

	assert.Equal(suite.T(), []Interval{{1, 9}}, Resolve(tr, runs, 15, 15, notHigh(tr)))
}

func (suite *IntervalTestSuite) TestResolveShortEndLength() {
	tr := makeTrace(100, 200, 200, 200, 200, 100, 200, 200, 200, 200, 100, 100, 100, 100)
	runs := Extract(tr, high(tr))

	assert.Equal(suite.T(), []Interval{{1, 4}, {6, 9}}, Resolve(tr, runs, 15, 5, notHigh(tr)))
}

func (suite *IntervalTestSuite) TestResolveDropsShortRunsBeforeMerging() {
	tr := makeTrace(100, 200, 200, 200, 200, 100, 200, 200, 200, 200, 100, 100, 100, 100)
	runs := Extract(tr, high(tr))

	assert.Empty(suite.T(), Resolve(tr, runs, 20, 15, notHigh(tr)))
}

func (suite *IntervalTestSuite) TestResolveLastRunStaysOpen() {
	tr := makeTrace(100, 200, 200, 200, 200)
	runs := Extract(tr, high(tr))

	assert.Equal(suite.T(), []Interval{{1, 4}}, Resolve(tr, runs, 15, 60, notHigh(tr)))
}
