package gengar

import (
	"context"
	"errors"
	"testing"
	"time"

	"cgmev/gengar/defs"
	"cgmev/gengar/mocks"
	"cgmev/gengar/pkg/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var origin = time.Date(2023, time.August, 8, 0, 0, 0, 0, time.UTC)

type AnalyzerSuite struct {
	suite.Suite
	store    *mocks.Store
	analyzer *Analyzer
}

func TestAnalyzerSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerSuite))
}

func (suite *AnalyzerSuite) SetupTest() {
	suite.store = mocks.NewStore()
	for i := 0; i < 288; i++ {
		v := 100.0
		if i >= 100 && i <= 106 {
			v = 260
		}
		suite.store.Glucose["alice"] = append(suite.store.Glucose["alice"], defs.Reading{
			Patient: "alice",
			Time:    origin.Add(time.Duration(i) * 5 * time.Minute),
			MgDL:    v,
		})
	}
	suite.store.Glucose["bob"] = []defs.Reading{
		{Patient: "bob", Time: origin, MgDL: 100},
		{Patient: "bob", Time: origin.Add(15 * time.Minute), MgDL: 110},
	}

	suite.analyzer = &Analyzer{
		Store:   suite.store,
		Logger:  zap.NewNop(),
		Config:  defs.DefaultAnalysisConfig(),
		Workers: 2,
	}
}

func (suite *AnalyzerSuite) TestAnalyze() {
	ctx := context.Background()
	report, err := suite.analyzer.Analyze(ctx, origin, origin.Add(24*time.Hour))
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), report.Patients, 2)

	alice, bob := report.Patients[0], report.Patients[1]
	assert.Equal(suite.T(), "alice", alice.Patient)
	assert.NoError(suite.T(), alice.Err)
	assert.Len(suite.T(), alice.Events, 4)
	assert.Len(suite.T(), alice.Features, 4)
	assert.Equal(suite.T(), "alice", alice.Summary.Patient)

	assert.Equal(suite.T(), "bob", bob.Patient)
	assert.ErrorIs(suite.T(), bob.Err, trace.ErrIrregularSampling)
	assert.Empty(suite.T(), bob.Events)

	assert.Len(suite.T(), report.Events(), 4)
	assert.Len(suite.T(), report.Summaries(), 1)
	assert.Len(suite.T(), report.Features(), 4)

	stored, err := suite.store.ReadEvents(ctx, "alice", origin, origin.Add(24*time.Hour))
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), stored, 4)
}

func (suite *AnalyzerSuite) TestAnalyzeIsIdempotent() {
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := suite.analyzer.Analyze(ctx, origin, origin.Add(24*time.Hour))
		assert.NoError(suite.T(), err)
	}
	assert.Len(suite.T(), suite.store.Events["alice"], 4)
}

func (suite *AnalyzerSuite) TestAnalyzeEmptyRange() {
	report, err := suite.analyzer.Analyze(context.Background(), origin.Add(48*time.Hour), origin.Add(72*time.Hour))
	assert.NoError(suite.T(), err)
	for _, p := range report.Patients {
		assert.ErrorIs(suite.T(), p.Err, trace.ErrEmptyTrace)
	}
	assert.Empty(suite.T(), report.Summaries())
}

func (suite *AnalyzerSuite) TestAnalyzeStoreFailure() {
	suite.store.Err = errors.New("connection reset")
	_, err := suite.analyzer.Analyze(context.Background(), origin, origin.Add(24*time.Hour))
	assert.Error(suite.T(), err)
}

func (suite *AnalyzerSuite) TestTrace() {
	tr, err := suite.analyzer.Trace(context.Background(), "alice", origin, origin.Add(time.Hour))
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 13, tr.Len())
}

func (suite *AnalyzerSuite) TestTraceFollowsLocalDays() {
	// 10:00 to 21:55 on one EDT day spans two UTC dates.
	first := time.Date(2023, time.August, 9, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 144; i++ {
		suite.store.Glucose["erin"] = append(suite.store.Glucose["erin"], defs.Reading{
			Patient: "erin",
			Time:    first.Add(time.Duration(i) * 5 * time.Minute),
			MgDL:    110,
		})
	}
	ctx := context.Background()
	end := first.Add(12 * time.Hour)

	tr, err := suite.analyzer.Trace(ctx, "erin", first, end)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, tr.Days())

	suite.analyzer.Location = time.FixedZone("EDT", -4*60*60)
	tr, err = suite.analyzer.Trace(ctx, "erin", first, end)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, tr.Days())
	assert.Equal(suite.T(), 10, tr.Time(0).Hour())
}

func (suite *AnalyzerSuite) TestAnalyzeReplacesStaleEvents() {
	suite.store.Events["alice"] = []defs.Event{
		{Patient: "alice", Time: origin.Add(500 * time.Minute), After: 10, Type: "hyper level 1 episode"},
		{Patient: "alice", Time: origin.Add(-time.Hour), After: 20, Type: "hyper level 1 episode"},
	}

	_, err := suite.analyzer.Analyze(context.Background(), origin, origin.Add(24*time.Hour))
	assert.NoError(suite.T(), err)

	stored, err := suite.store.ReadEvents(context.Background(), "alice", origin, origin.Add(24*time.Hour))
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), stored, 4)
	for _, e := range stored {
		assert.Equal(suite.T(), 30.0, e.After, e.Type)
	}
	assert.Len(suite.T(), suite.store.Events["alice"], 5, "events before the range are untouched")
}
