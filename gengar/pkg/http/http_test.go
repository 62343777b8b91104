package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cgmev/gengar/defs"
	"cgmev/gengar/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var origin = time.Date(2023, time.August, 8, 0, 0, 0, 0, time.UTC)

type HttpTestSuite struct {
	suite.Suite
	store  *mocks.Store
	server *HttpServer
}

func TestHttpTestSuite(t *testing.T) {
	suite.Run(t, new(HttpTestSuite))
}

func (suite *HttpTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (suite *HttpTestSuite) SetupTest() {
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
	for i := 0; i < 10; i++ {
		suite.store.Glucose["dave"] = append(suite.store.Glucose["dave"], defs.Reading{
			Patient: "dave",
			Time:    origin.Add(time.Duration(i) * 5 * time.Minute),
			MgDL:    100,
		})
	}
	suite.server = New(suite.store, defs.DefaultAnalysisConfig(), time.UTC, zap.NewNop())
}

func (suite *HttpTestSuite) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	suite.server.Handler().ServeHTTP(w, req)
	return w
}

func (suite *HttpTestSuite) ranged(patient, route string) string {
	return fmt.Sprintf("/patients/%s/%s?start=%d&end=%d",
		patient, route, origin.Unix(), origin.Add(24*time.Hour).Unix())
}

func (suite *HttpTestSuite) TestPatients() {
	w := suite.get("/patients")
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var patients []string
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &patients))
	assert.Equal(suite.T(), []string{"alice", "bob", "dave"}, patients)
}

func (suite *HttpTestSuite) TestGlucose() {
	w := suite.get(suite.ranged("alice", "glucose"))
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var rs []defs.Reading
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &rs))
	assert.Len(suite.T(), rs, 288)
}

func (suite *HttpTestSuite) TestEpisodes() {
	w := suite.get(suite.ranged("alice", "episodes"))
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var evs []map[string]interface{}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &evs))
	assert.Len(suite.T(), evs, 3)
	assert.Equal(suite.T(), "alice", evs[0]["id"])
	assert.Equal(suite.T(), 30.0, evs[0]["minutes_after"])
}

func (suite *HttpTestSuite) TestEvents() {
	w := suite.get(suite.ranged("alice", "events"))
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var body struct {
		Events  []defs.Event          `json:"events"`
		Metrics []map[string]*float64 `json:"metrics"`
		Counts  map[string]int        `json:"counts"`
	}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(suite.T(), body.Events, 4)
	assert.Equal(suite.T(), 1, body.Counts["hyper excursion"])

	// Every event window sits on the 260 mg/dL plateau.
	assert.Len(suite.T(), body.Metrics, 4)
	for _, m := range body.Metrics {
		if assert.NotNil(suite.T(), m["peak"]) {
			assert.Equal(suite.T(), 260.0, *m["peak"])
		}
		if assert.NotNil(suite.T(), m["delta"]) {
			assert.Equal(suite.T(), 0.0, *m["delta"])
		}
	}
}

func (suite *HttpTestSuite) TestStoredEvents() {
	suite.store.Events["alice"] = []defs.Event{
		{Patient: "alice", Time: origin.Add(time.Hour), After: 45, Type: "hyper level 1 episode"},
		{Patient: "alice", Time: origin.Add(48 * time.Hour), After: 15, Type: "hyper level 1 episode"},
	}

	w := suite.get(suite.ranged("alice", "events") + "&stored=true")
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var body struct {
		Events []defs.Event    `json:"events"`
		Counts map[string]int `json:"counts"`
	}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(suite.T(), body.Events, 1)
	assert.Equal(suite.T(), 45.0, body.Events[0].After)
	assert.Equal(suite.T(), 1, body.Counts["hyper level 1 episode"])

	w = suite.get(suite.ranged("carol", "events") + "&stored=true")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `{"events": [], "counts": {}}`, w.Body.String())
}

func (suite *HttpTestSuite) TestReadingsInServerLocation() {
	suite.server.Location = time.FixedZone("EDT", -4*60*60)

	w := suite.get(suite.ranged("alice", "glucose"))
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var rs []defs.Reading
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &rs))
	_, offset := rs[0].Time.Zone()
	assert.Equal(suite.T(), -4*60*60, offset)
	assert.True(suite.T(), origin.Equal(rs[0].Time))
}

func (suite *HttpTestSuite) TestSummaryRendersNaNAsNull() {
	w := suite.get(suite.ranged("alice", "summary"))
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var body struct {
		ID      string              `json:"id"`
		Metrics map[string]*float64 `json:"metrics"`
	}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(suite.T(), "alice", body.ID)
	assert.Contains(suite.T(), body.Metrics, "MAGE")
	if assert.NotNil(suite.T(), body.Metrics["mean"]) {
		assert.Greater(suite.T(), *body.Metrics["mean"], 100.0)
	}

	w = suite.get(suite.ranged("dave", "summary"))
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &body))
	// A flat trace has no qualifying swings.
	assert.Contains(suite.T(), body.Metrics, "MAGE")
	assert.Nil(suite.T(), body.Metrics["MAGE"])
}

func (suite *HttpTestSuite) TestFeaturesAndAGP() {
	w := suite.get(suite.ranged("alice", "features"))
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var fs []map[string]interface{}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &fs))
	assert.Len(suite.T(), fs, 4)

	w = suite.get(suite.ranged("alice", "agp"))
	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *HttpTestSuite) TestUnknownPatient() {
	w := suite.get(suite.ranged("carol", "summary"))
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *HttpTestSuite) TestIrregularTrace() {
	w := suite.get(suite.ranged("bob", "episodes"))
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *HttpTestSuite) TestBadRange() {
	w := suite.get("/patients/alice/episodes?start=yesterday")
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.get(fmt.Sprintf("/patients/alice/episodes?start=%d&end=%d", origin.Unix(), origin.Add(-time.Hour).Unix()))
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *HttpTestSuite) TestStoreFailure() {
	suite.store.Err = errors.New("connection reset")

	assert.Equal(suite.T(), http.StatusInternalServerError, suite.get("/patients").Code)
	assert.Equal(suite.T(), http.StatusInternalServerError, suite.get(suite.ranged("alice", "glucose")).Code)
	assert.Equal(suite.T(), http.StatusInternalServerError, suite.get(suite.ranged("alice", "events")+"&stored=true").Code)
}
