package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/simdev/internal/analysis"
	"github.com/ZanzyTHEbar/simdev/internal/cache"
	"github.com/ZanzyTHEbar/simdev/internal/config"
	"github.com/ZanzyTHEbar/simdev/internal/encoding"
	apperrors "github.com/ZanzyTHEbar/simdev/internal/errors"
	"github.com/ZanzyTHEbar/simdev/internal/middleware"
	"github.com/ZanzyTHEbar/simdev/internal/monitoring"
	"github.com/ZanzyTHEbar/simdev/internal/ratelimit"
	"github.com/ZanzyTHEbar/simdev/internal/security"
	"github.com/ZanzyTHEbar/simdev/internal/types"
)

func serveCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "addr", Usage: "listen address"},
		&cli.IntFlag{Name: "limit", Usage: "default number of matches per request"},
		&cli.IntFlag{Name: "top_size", Aliases: []string{"top-size"}, Usage: "default explanation entries per list"},
	}

	return &cli.Command{
		Name:         "serve",
		Usage:        "keep a snapshot resident behind an HTTP API",
		Flags:        append(flags, engineFlags()...),
		OnUsageError: usageError,
		Action:       serveAction,
	}
}

// server holds everything the HTTP handlers share
type server struct {
	snapshot *analysis.Snapshot
	cfg      *config.Config
	logger   *monitoring.Logger
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
	limiter  *ratelimit.RateLimiter
	redis    *ratelimit.RedisClient
	// nil disables response caching
	cache       cache.Store
	compression *middleware.CompressionMiddleware
}

func serveAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	src, name, closeSource, err := openSource(c, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	snapshot, err := buildSnapshot(c.Context, src, name, cfg, logger)
	if err != nil {
		return err
	}

	metrics := monitoring.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return apperrors.NewInternalError("failed to register metrics", err)
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	publishSnapshot(metrics, snapshot)

	redisClient, err := ratelimit.NewRedisClient(c.Context, cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory rate limiting and caching", "error", err)
	}
	defer apperrors.SafeClose(redisClient, "redis")

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:   cfg.RateLimitPerMin,
		CleanupInterval: time.Hour,
	}, metrics)
	defer limiter.Close()

	var store cache.Store
	switch {
	case cfg.CacheTTL == 0:
		logger.Info("Response cache disabled")
	case redisClient.IsEnabled():
		store = cache.NewRedisStore(redisClient.GetClient(), cfg.CacheTTL, "")
	default:
		memory := cache.NewCache(cfg.CacheTTL)
		defer memory.Close()
		store = memory
	}

	if level, _ := monitoring.ParseLevel(cfg.LogLevel); level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(&server{
		snapshot: snapshot,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		registry: registry,
		limiter:  limiter,
		redis:    redisClient,
		cache:    store,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", cfg.Addr, "developers", len(snapshot.Developers()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// c.Context is cancelled on SIGINT and SIGTERM
	select {
	case <-c.Context.Done():
	case err := <-serveErr:
		return apperrors.NewInternalError("server failed to start", err)
	}
	logger.SystemLogger("shutdown", "signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return apperrors.NewInternalError("server forced to shutdown", err)
	}

	logger.SystemLogger("stopped", "server exited")
	return nil
}

func publishSnapshot(metrics *monitoring.Metrics, snapshot *analysis.Snapshot) {
	metrics.SetSnapshot(len(snapshot.Developers()), snapshot.Statistics().VocabularySize())
	for reason, n := range snapshot.Report().Skipped {
		metrics.AddSkippedRecords(reason, n)
	}
}

func setupRouter(s *server) *gin.Engine {
	r := gin.New()

	compression := middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())
	s.compression = compression

	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(apperrors.RecoveryHandler())
	// compression wraps error rendering so error bodies are encoded too
	r.Use(compression.Handler())
	r.Use(apperrors.ErrorHandler())
	r.Use(security.SecurityHeadersMiddleware(s.cfg.EnableHSTS))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", monitoring.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{
		monitoring.RequestIDHeader,
		"X-Cache",
		"X-RateLimit-Limit",
		"X-RateLimit-Remaining",
		"X-RateLimit-Reset",
		"Retry-After",
	}
	r.Use(cors.New(corsConfig))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	if s.limiter != nil {
		v1.Use(s.limiter.IPRateLimitMiddleware())
	}
	if s.cache != nil {
		v1.Use(cache.Middleware(s.cache, "/v1/", s.metrics))
	}
	v1.GET("/developers/:id/similar", security.ValidateDeveloperIDParams("id"), s.handleSimilar)
	v1.GET("/developers/:id/score/:other", security.ValidateDeveloperIDParams("id", "other"), s.handleScore)

	return r
}

func (s *server) handleHealth(c *gin.Context) {
	report := s.snapshot.Report()

	status := "ok"
	redisStatus := "disabled"
	if s.redis.IsEnabled() {
		redisStatus = "healthy"
		if err := s.redis.HealthCheck(c.Request.Context()); err != nil {
			status = "degraded"
			redisStatus = "unhealthy"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version,
		"redis":     redisStatus,
		"snapshot": gin.H{
			"developers":       len(s.snapshot.Developers()),
			"vocabulary":       s.snapshot.Statistics().VocabularySize(),
			"records":          report.Records,
			"skipped_records":  report.SkippedTotal(),
			"without_language": report.WithoutLanguage,
			"duplicates":       report.Duplicates,
		},
		"metrics":     s.metrics.GetStats(),
		"compression": s.compression.GetStats(),
		"rate_limit":  s.limiter.GetStats(),
	})
}

func (s *server) handleSimilar(c *gin.Context) {
	var req types.SimilarRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(apperrors.NewValidationError("invalid query parameters", err.Error()))
		return
	}

	query := analysis.Query{
		DeveloperID: c.Param("id"),
		Limit:       s.cfg.Limit,
		TopSize:     s.cfg.TopSize,
	}
	if req.Limit != nil {
		query.Limit = *req.Limit
	}
	if req.TopSize != nil {
		query.TopSize = *req.TopSize
	}

	start := time.Now()
	results, err := s.snapshot.Search(c.Request.Context(), query)
	duration := time.Since(start)

	candidates := 0
	if err == nil {
		candidates = len(s.snapshot.Developers()) - 1
	}
	s.metrics.ObserveSearch(searchOutcome(err), duration, candidates)
	if err != nil {
		_ = c.Error(err)
		return
	}
	s.logger.SearchLogger(query.DeveloperID, query.Limit, len(results), duration, false)

	body, err := encoding.Marshal(encoding.FromResults(results))
	if err != nil {
		_ = c.Error(apperrors.NewInternalError("failed to encode results", err))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *server) handleScore(c *gin.Context) {
	a, b := c.Param("id"), c.Param("other")

	score, components, err := s.snapshot.Score(a, b)
	if err != nil {
		_ = c.Error(err)
		return
	}

	decimals := make(map[string]encoding.Decimal, len(components))
	for name, v := range components {
		decimals[name] = encoding.Decimal(v)
	}

	c.JSON(http.StatusOK, gin.H{
		"developer_id": analysis.NormalizeDeveloperID(a),
		"other_id":     analysis.NormalizeDeveloperID(b),
		"score":        encoding.Decimal(score),
		"components":   decimals,
	})
}

func searchOutcome(err error) string {
	switch {
	case err == nil:
		return monitoring.OutcomeSuccess
	case apperrors.Is(err, apperrors.CategoryNotFound):
		return monitoring.OutcomeNotFound
	case apperrors.Is(err, apperrors.CategoryValidation):
		return monitoring.OutcomeInvalid
	case apperrors.Is(err, apperrors.CategoryCanceled):
		return monitoring.OutcomeCanceled
	default:
		return monitoring.OutcomeError
	}
}
