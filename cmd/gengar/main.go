package main

import (
	"context"
	"flag"
	"time"

	"cgmev/gengar"
	"cgmev/gengar/defs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var (
	configFile string
	exportFile string
	startFlag  string
	endFlag    string
)

func init() {
	flag.StringVar(&configFile, "f", "config.yaml", "config file")
	flag.StringVar(&exportFile, "export", "", "write an xlsx report to this path and exit")
	flag.StringVar(&startFlag, "start", "", "report start, RFC3339 (default 14 days before end)")
	flag.StringVar(&endFlag, "end", "", "report end, RFC3339 (default now)")
	flag.Parse()
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}

	config, err := defs.LoadConfig(configFile)
	if err != nil {
		logger.Fatal("unable to load config", zap.Error(err))
	}
	config.Logger = logger

	logger.Debug("loaded config file", zap.String("file", configFile))

	s, err := gengar.New(config)
	if err != nil {
		logger.Fatal("unable to set up server", zap.Error(err))
	}

	if exportFile == "" {
		if err := s.Run(); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
		return
	}

	start, end, err := reportRange(startFlag, endFlag)
	if err != nil {
		logger.Fatal("invalid report range", zap.Error(err))
	}

	ctx := context.Background()
	defer s.Close(ctx)
	if err := s.Export(ctx, start, end, exportFile); err != nil {
		logger.Fatal("unable to export report", zap.Error(err))
	}
	logger.Info("wrote report", zap.String("file", exportFile))
}

func reportRange(startStr, endStr string) (time.Time, time.Time, error) {
	end := time.Now()
	if endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}

	start := end.Add(defs.DefaultLookback)
	if startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	return start, end, nil
}
