package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"cgmev/gengar/defs"
	"cgmev/gengar/pkg/events"
	"cgmev/gengar/pkg/features"
	"cgmev/gengar/pkg/metrics"
	"cgmev/gengar/pkg/mg"
	"cgmev/gengar/pkg/trace"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const readTimeout = 5 * time.Second

type httpStore interface {
	mg.GlucoseStore
	mg.EventStore
}

type HttpServer struct {
	Store    httpStore
	Config   defs.AnalysisConfig
	Location *time.Location
	Logger   *zap.Logger

	router *gin.Engine
}

func New(s httpStore, cfg defs.AnalysisConfig, loc *time.Location, logger *zap.Logger) *HttpServer {
	hs := &HttpServer{
		Store:    s,
		Config:   cfg,
		Location: loc,
		Logger:   logger,
	}
	hs.routes()
	return hs
}

// Handler exposes the router, mostly for tests.
func (s *HttpServer) Handler() http.Handler {
	return s.router
}

func (s *HttpServer) Run(addr string) error {
	s.Logger.Debug("serving http", zap.String("addr", addr))
	return s.router.Run(addr)
}

func (s *HttpServer) routes() {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/patients", s.patients)

	p := r.Group("/patients/:id")
	p.GET("/glucose", s.withTrace(func(c *gin.Context, tr *trace.Trace) {
		c.JSON(http.StatusOK, tr.Readings)
	}))
	p.GET("/episodes", s.withTrace(func(c *gin.Context, tr *trace.Trace) {
		c.JSON(http.StatusOK, nonNil(events.Episodes(tr, s.Config)))
	}))
	p.GET("/excursions", s.withTrace(func(c *gin.Context, tr *trace.Trace) {
		c.JSON(http.StatusOK, nonNil(events.Excursions(tr, s.Config)))
	}))
	p.GET("/events", s.events)
	p.GET("/summary", s.withTrace(func(c *gin.Context, tr *trace.Trace) {
		sum := metrics.SummarizeAll([]*trace.Trace{tr}, s.Config)[0]
		c.JSON(http.StatusOK, gin.H{
			"id":      sum.Patient,
			"metrics": columns(sum.Columns()),
		})
	}))
	p.GET("/features", s.withTrace(func(c *gin.Context, tr *trace.Trace) {
		fs := features.Create(tr, events.Curated(tr, s.Config))
		out := make([]gin.H, 0, len(fs))
		for _, f := range fs {
			out = append(out, gin.H{
				"id":       f.Patient,
				"type":     f.Type,
				"count":    f.Count,
				"features": columns(f.Columns()),
			})
		}
		c.JSON(http.StatusOK, out)
	}))
	p.GET("/agp", s.withTrace(func(c *gin.Context, tr *trace.Trace) {
		profile, err := metrics.AGP(tr)
		if err != nil {
			c.String(http.StatusBadRequest, "%s", err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}))

	s.router = r
}

// events detects curated events on the fly, each paired with its window
// metrics, or with ?stored=true returns the events saved by the last analysis.
func (s *HttpServer) events(c *gin.Context) {
	if c.Query("stored") != "true" {
		s.detectedEvents(c)
		return
	}

	start, end, err := timeRange(c)
	if err != nil {
		c.String(http.StatusBadRequest, "%s", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	evs, err := s.Store.ReadEvents(ctx, c.Param("id"), start, end)
	if err != nil {
		c.String(http.StatusInternalServerError, "something went wrong reading events: %v", err)
		return
	}
	if s.Location != nil {
		for i := range evs {
			evs[i].Time = evs[i].Time.In(s.Location)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"events": nonNil(evs),
		"counts": events.Summary(evs),
	})
}

func (s *HttpServer) detectedEvents(c *gin.Context) {
	s.withTrace(func(c *gin.Context, tr *trace.Trace) {
		evs := events.Curated(tr, s.Config)
		ms := make([]map[string]*float64, len(evs))
		for i, e := range evs {
			ms[i] = columns(metrics.ForEvent(tr, e).Columns())
		}
		c.JSON(http.StatusOK, gin.H{
			"events":  nonNil(evs),
			"metrics": ms,
			"counts":  events.Summary(evs),
		})
	})(c)
}

func (s *HttpServer) patients(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	patients, err := s.Store.Patients(ctx)
	if err != nil {
		c.String(http.StatusInternalServerError, "something went wrong listing patients: %v", err)
		return
	}
	c.JSON(http.StatusOK, patients)
}

// withTrace loads and validates the requested patient's trace before
// handing it to h.
func (s *HttpServer) withTrace(h func(*gin.Context, *trace.Trace)) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end, err := timeRange(c)
		if err != nil {
			c.String(http.StatusBadRequest, "%s", err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
		defer cancel()

		patient := c.Param("id")
		readings, err := s.Store.ReadGlucose(ctx, patient, start, end)
		if err != nil {
			c.String(http.StatusInternalServerError, "something went wrong reading glucose: %v", err)
			return
		}

		trace.InLocation(readings, s.Location)
		tr, err := trace.New(patient, s.Config.SamplingInterval(), readings)
		switch {
		case errors.Is(err, trace.ErrEmptyTrace):
			c.String(http.StatusNotFound, "no readings for patient %s", patient)
			return
		case err != nil:
			c.String(http.StatusBadRequest, "%s", err)
			return
		}

		h(c, tr)
	}
}

func (s *HttpServer) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		c.Next()
		s.Logger.Debug("handled request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(begin)),
		)
	}
}

// timeRange reads optional unix-second start/end query parameters. The
// default range is the lookback window ending now.
func timeRange(c *gin.Context) (time.Time, time.Time, error) {
	end := time.Now()
	if v := c.Query("end"); v != "" {
		unix, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("expected unix timestamp for end")
		}
		end = time.Unix(unix, 0)
	}

	start := end.Add(defs.DefaultLookback)
	if v := c.Query("start"); v != "" {
		unix, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("expected unix timestamp for start")
		}
		start = time.Unix(unix, 0)
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, errors.New("start is after end")
	}
	return start, end, nil
}

// columns renders NaN as null, which encoding/json cannot do on its own.
func columns(cols []metrics.Column) map[string]*float64 {
	out := make(map[string]*float64, len(cols))
	for _, col := range cols {
		if math.IsNaN(col.Value) || math.IsInf(col.Value, 0) {
			out[col.Name] = nil
			continue
		}
		v := col.Value
		out[col.Name] = &v
	}
	return out
}

func nonNil(evs []defs.Event) []defs.Event {
	if evs == nil {
		return []defs.Event{}
	}
	return evs
}
