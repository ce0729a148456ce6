package router

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"metrics-service/internal/domain"
	"metrics-service/internal/endpoints"
	"metrics-service/internal/util"
)

func NewRouter(metricStore domain.MetricStore, webSlogger *util.MetricsLogger) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, metricStore, webSlogger)

	r.Use(loggingMiddleware(webSlogger))

	return r
}

func addRoutes(r *mux.Router, metricStore domain.MetricStore, webSlogger *util.MetricsLogger) {

	metricsHandler := &endpoints.Metrics{}
	metricsHandler.Init(metricStore, webSlogger)

	r.HandleFunc("/", metricsHandler.IndexHandler).Methods("GET")

	r.HandleFunc("/metrics", metricsHandler.CreateMetricHandler).Methods("POST")
	r.HandleFunc("/metrics/{limit}/{offset}", metricsHandler.GetAllMetricsHandler).Methods("GET")
	r.HandleFunc("/metrics/repo/{repoID}/{limit}/{offset}", metricsHandler.GetMetricsByRepoHandler).Methods("GET")
	r.HandleFunc("/metrics/import/{importID}/{limit}/{offset}", metricsHandler.GetMetricsByImportHandler).Methods("GET")
	r.HandleFunc("/metrics/key/{repoID}/{importID}", metricsHandler.GetMetricByKeysHandler).Methods("GET")
	r.HandleFunc("/metrics/range/{scoreField}/{min}/{max}", metricsHandler.GetMetricsByScoreRangeHandler).Methods("GET")

	r.HandleFunc("/summary", metricsHandler.GetMetricsSummaryHandler).Methods("GET")
	r.HandleFunc("/summary/repo/{repoID}", metricsHandler.GetRepoMetricsSummaryHandler).Methods("GET")
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Run serves until the process is interrupted or the listener fails,
// then returns so the caller's deferred logger flush still runs.
func Run(addr string, metricStore domain.MetricStore, webSlogger *util.MetricsLogger) {
	appRouter := NewRouter(metricStore, webSlogger)

	server := NewServer(addr, appRouter)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	log.Printf("Listening on %s", server.Addr)

	select {
	case err := <-serveErr:
		log.Printf("Server stopped with error: %s", err.Error())
	case <-quit:
		println()
		log.Println("Shutting down server...")

		err := gracefulShutdown(server, 25*time.Second)

		if err != nil {
			log.Printf("Server stopped with error: %s", err.Error())
		} else {
			log.Println("Server stopped gracefully.")
		}
	}
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}

func loggingMiddleware(logger *util.MetricsLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogEvent(util.LOG_LEVEL_INFO, fmt.Sprintf("Request: %s %s", r.Method, r.RequestURI))
			next.ServeHTTP(w, r)
		})
	}
}
