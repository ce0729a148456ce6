package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"metrics-service/internal/config"
	"metrics-service/internal/repository"
	"metrics-service/internal/router"
	"metrics-service/internal/util"
)

func LoggerInitialize() (util.MetricsLogger, error) {

	var metricsLogger util.MetricsLogger

	ConstructAndCreateLogFolder()

	if err := metricsLogger.Init("webService.log", false); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		return util.MetricsLogger{}, err
	}

	metricsLogger.LogEvent(util.LOG_LEVEL_INFO, "Service started")

	currentTime := time.Now().Format(time.RFC3339)

	fmt.Fprintf(os.Stderr, "\n%s: Metrics service started \n", currentTime)

	return metricsLogger, nil

}

func main() {

	logger, err := LoggerInitialize()
	if err != nil {
		fmt.Println("Error while initializing the logger..", err)
		return
	}
	defer logger.DeInit()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	metricStore := repository.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.HTTPTimeout(), &logger)

	router.Run(cfg.ListenAddr, metricStore, &logger)
}

func ConstructAndCreateLogFolder() {
	logPath := ".." + string(os.PathSeparator) + "log"
	util.SetLoggerPath(logPath)
	util.CheckAndCreateLogFolder(logPath)
	util.SetCommonLoggerAttributes(util.LOG_LEVEL_INFO)
}
