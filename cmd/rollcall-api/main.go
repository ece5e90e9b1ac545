package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/rollcall-api/api/swagger"
	"github.com/noah-isme/rollcall-api/internal/handler"
	"github.com/noah-isme/rollcall-api/internal/live"
	"github.com/noah-isme/rollcall-api/internal/middleware"
	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/repository"
	"github.com/noah-isme/rollcall-api/internal/service"
	"github.com/noah-isme/rollcall-api/pkg/cache"
	"github.com/noah-isme/rollcall-api/pkg/config"
	"github.com/noah-isme/rollcall-api/pkg/database"
	"github.com/noah-isme/rollcall-api/pkg/jobs"
	"github.com/noah-isme/rollcall-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/rollcall-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/rollcall-api/pkg/middleware/requestid"
	"github.com/noah-isme/rollcall-api/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Rollcall API
// @version 1.0.0
// @description Classes, students, lesson schedule and attendance for a single teacher.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, logr); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Without Redis the cache falls back to process memory and live updates stay local.
		logr.Warn("redis unavailable", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	loc := cfg.Location()
	validate := validator.New()
	metrics := service.NewMetricsService()
	broker := live.NewBroker()
	metrics.TrackLiveSubscribers(broker.Subscribers)
	if redisClient != nil {
		bridge := live.NewRedisBridge(redisClient, broker, cfg.Live.RedisChannel, logr)
		if err := bridge.Start(ctx); err != nil {
			logr.Warn("live bridge disabled", zap.Error(err))
		}
	}

	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.TTL, logr)

	classes := service.NewClassService(classRepo, studentRepo, broker, loc, validate, logr)
	students := service.NewStudentService(studentRepo, classRepo, broker, loc, logr)
	subjects := service.NewSubjectService(subjectRepo, broker)
	lessons := service.NewLessonService(lessonRepo, subjectRepo, classRepo, repository.NewTxRunner(db), broker, metrics, cfg.Schedule.RecurrenceDays, loc, logr)
	schedule := service.NewScheduleService(lessonRepo, broker, loc)
	attendance := service.NewAttendanceService(attendanceRepo, lessonRepo, studentRepo, cacheSvc, cfg.Cache.TTL, broker, metrics, validate, logr)
	attendance.InvalidateOnChange(ctx)
	sheets := service.NewSheetService(lessonRepo, studentRepo, attendance, cacheSvc, cfg.Cache.SheetDraftTTL, loc, logr)

	routes := handler.Routes{
		Classes:    handler.NewClassHandler(classes, students, lessons),
		Students:   handler.NewStudentHandler(students, attendance),
		Subjects:   handler.NewSubjectHandler(subjects),
		Lessons:    handler.NewLessonHandler(lessons, schedule),
		Attendance: handler.NewAttendanceHandler(attendance, sheets),
		Metrics:    handler.NewMetricsHandler(metrics, db),
	}

	if cfg.Auth.Enabled {
		auth := service.NewAuthService(validate, logr, service.AuthConfig{
			TeacherEmail:      cfg.Auth.TeacherEmail,
			PasswordHash:      cfg.Auth.PasswordHash,
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
		})
		routes.Auth = handler.NewAuthHandler(auth)
		routes.Protect = middleware.JWT(auth)
	}

	if cfg.Reports.Enabled {
		reports, queue, err := buildReports(ctx, cfg, db, classRepo, attendanceRepo, metrics, validate, loc, logr)
		if err != nil {
			return err
		}
		defer queue.Stop()
		routes.Reports = handler.NewReportHandler(reports)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	routes.Register(r, cfg.APIPrefix)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with ctx so open event streams close on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildReports(
	ctx context.Context,
	cfg *config.Config,
	db *sqlx.DB,
	classRepo *repository.ClassRepository,
	attendanceRepo *repository.AttendanceRepository,
	metrics *service.MetricsService,
	validate *validator.Validate,
	loc *time.Location,
	logr *zap.Logger,
) (*service.ReportService, *jobs.Queue, error) {
	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("report storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(attendanceRepo, classRepo, files, signer, loc, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)

	reportRepo := repository.NewReportRepository(db)
	queue := jobs.NewQueue("reports", jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		BufferSize: 64,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	worker := service.NewReportWorker(reportRepo, exporter, metrics, cfg.Reports.WorkerRetries, logr)
	queue.Register(string(models.ReportTypeAttendanceRegister), worker.Handle)
	queue.Start(ctx)

	reports := service.NewReportService(reportRepo, classRepo, queue, exporter, metrics, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	reports.RecoverPendingJobs(ctx)
	reports.StartCleanup(ctx)
	return reports, queue, nil
}
