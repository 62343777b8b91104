package gengar

import (
	"context"
	"fmt"
	"time"

	"cgmev/gengar/defs"
	"cgmev/gengar/pkg/dexcom"
	"cgmev/gengar/pkg/export"
	"cgmev/gengar/pkg/http"
	"cgmev/gengar/pkg/mg"

	"go.uber.org/zap"
)

type Server struct {
	Dexcom   *dexcom.Client
	Store    *mg.MongoStore
	HTTP     *http.HttpServer
	Analyzer *Analyzer

	Config   defs.Config
	Logger   *zap.Logger
	Location *time.Location
}

func New(config defs.Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defs.TimeoutInterval)
	defer cancel()

	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	var err error

	loc := time.Local
	if config.Timezone != "" {
		loc, err = time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unable to load timezone: %w", err)
		}
	}

	ms, err := mg.New(ctx, config.Mongo, config.Logger)
	if err != nil {
		return nil, err
	}

	var dc *dexcom.Client
	if config.Dexcom.Account != "" {
		dc = dexcom.New(config.Dexcom.Account, config.Dexcom.Password, config.Dexcom.Patient, config.Logger)
	}

	config.Logger.Debug("finished server setup",
		zap.String("database", ms.DBName),
		zap.Bool("dexcom", dc != nil),
		zap.String("timezone", loc.String()),
	)

	return &Server{
		Dexcom: dc,
		Store:  ms,
		HTTP:   http.New(ms, config.Analysis, loc, config.Logger),
		Analyzer: &Analyzer{
			Store:    ms,
			Logger:   config.Logger,
			Location: loc,
			Config:   config.Analysis,
		},
		Config:   config,
		Logger:   config.Logger,
		Location: loc,
	}, nil
}

// Run starts the fetch loop when a Dexcom account is configured and serves
// the HTTP API until it fails.
func (s *Server) Run() error {
	if s.Dexcom != nil {
		go s.ExecuteTask(defs.DownloaderInterval, s.FetchUploadReadings)
	}
	return s.HTTP.Run(s.Config.HTTP.Addr)
}

func (s *Server) ExecuteTask(interval time.Duration, task func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for ; true; <-ticker.C {
		task()
	}
}

func (s *Server) FetchUploadReadings() {
	ctx, cancel := context.WithTimeout(context.Background(), defs.TimeoutInterval)
	defer cancel()

	f := Fetcher{
		Source:   s.Dexcom,
		Store:    s.Store,
		Interval: s.Config.Analysis.SamplingInterval(),
		Logger:   s.Logger,
	}
	if _, err := f.FetchAndLoad(ctx); err != nil {
		s.Logger.Error("unable to fetch readings", zap.Error(err))
	}
}

// Export analyzes every patient over [start, end] and writes the event,
// summary and feature tables to path.
func (s *Server) Export(ctx context.Context, start, end time.Time, path string) error {
	report, err := s.Analyzer.Analyze(ctx, start, end)
	if err != nil {
		return err
	}
	for _, p := range report.Patients {
		if p.Err != nil {
			s.Logger.Warn("patient left out of export", zap.String("patient", p.Patient), zap.Error(p.Err))
		}
	}

	wb, err := export.New()
	if err != nil {
		return err
	}
	defer wb.Close()

	if err := wb.WriteEvents(report.Events()); err != nil {
		return err
	}
	if err := wb.WriteSummaries(report.Summaries()); err != nil {
		return err
	}
	if err := wb.WriteFeatures(report.Features()); err != nil {
		return err
	}
	return wb.SaveAs(path)
}

func (s *Server) Close(ctx context.Context) error {
	return s.Store.Client.Disconnect(ctx)
}
