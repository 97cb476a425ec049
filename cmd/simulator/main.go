package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
)

var (
	serverURL = flag.String("server", "http://localhost:3000", "relayd HTTP API base URL")
	channels  = flag.Int("channels", 8, "Number of channels to exercise")
	sessions  = flag.Int("sessions", 4, "Number of timed sessions to run")
	minutes   = flag.Int("minutes", 1, "Timer duration per session in minutes")
	report    = flag.Bool("report", true, "Trigger a monthly aggregation run at the end")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	// Setup logger
	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sim := NewSimulator(&SimulatorConfig{
		ServerURL:      *serverURL,
		ChannelCount:   *channels,
		SessionCount:   *sessions,
		SessionMinutes: *minutes,
		TriggerReport:  *report,
	}, logger)

	if err := sim.Run(); err != nil {
		logger.Fatal("Simulation failed", zap.Error(err))
	}

	logger.Info("Simulation finished")
}
