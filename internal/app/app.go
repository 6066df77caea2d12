package app

import (
	"classwork_backend/internal/config"
	"classwork_backend/internal/controller"
	"classwork_backend/internal/middleware"
	"classwork_backend/internal/repository"
	"classwork_backend/internal/service"
	"classwork_backend/internal/util"
	"classwork_backend/pkg/configwatcher"
	"classwork_backend/pkg/database"
	"classwork_backend/pkg/logger"
	"classwork_backend/pkg/monitoring"
	"classwork_backend/pkg/security"
	"classwork_backend/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

const publishInterval = time.Minute

type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	config          atomic.Pointer[config.Config]
	settings        *service.GradingSettings
	repos           *repositories
	services        *services
	limiter         *security.Limiter
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user              *repository.UserRepository
	question          *repository.QuestionRepository
	assignment        *repository.AssignmentRepository
	studentAssignment *repository.StudentAssignmentRepository
	exam              *repository.ExamRepository
	examPaper         *repository.ExamPaperRepository
	statsCache        service.StatsCache
}

type services struct {
	storage      service.StorageProvider
	distribution *service.DistributionService
	question     *service.QuestionService
	assignment   *service.AssignmentService
	answer       *service.AnswerService
	finish       *service.FinishService
	exam         *service.ExamService
	examScoring  *service.ExamScoringService
	analytics    *service.AnalyticsService
	report       *service.ReportService
	upload       *service.UploadService
}

type controllers struct {
	assignment        *controller.AssignmentController
	studentAssignment *controller.StudentAssignmentController
	exam              *controller.ExamController
	studentExam       *controller.StudentExamController
	question          *controller.QuestionController
	health            *controller.HealthController
}

// Config 当前生效的配置，热加载后返回新值
func (a *App) Config() *config.Config {
	return a.config.Load()
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	repos := &repositories{
		user:              repository.NewUserRepository(db),
		question:          repository.NewQuestionRepository(db),
		assignment:        repository.NewAssignmentRepository(db),
		studentAssignment: repository.NewStudentAssignmentRepository(db),
		exam:              repository.NewExamRepository(db),
		examPaper:         repository.NewExamPaperRepository(db),
		statsCache:        repository.NoopStatsCache{},
	}
	if rdb != nil {
		repos.statsCache = repository.NewRedisStatsCache(rdb)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.storage = service.NewStorageProvider(&cfg.Storage)
	s.distribution = service.NewDistributionService(repos.user, repos.studentAssignment, repos.examPaper)
	s.question = service.NewQuestionService(repos.question)
	s.assignment = service.NewAssignmentService(repos.assignment, repos.studentAssignment, repos.question, s.distribution, repos.statsCache, a.settings)
	s.answer = service.NewAnswerService(repos.assignment, repos.studentAssignment, repos.exam, repos.examPaper, repos.question, a.settings)
	s.finish = service.NewFinishService(repos.assignment, repos.studentAssignment, repos.question, repos.statsCache, a.settings)
	s.exam = service.NewExamService(repos.exam, repos.examPaper, repos.question, s.distribution, repos.statsCache, a.settings)
	s.examScoring = service.NewExamScoringService(repos.exam, repos.examPaper, repos.question, repos.statsCache, a.settings)
	s.analytics = service.NewAnalyticsService(repos.assignment, repos.studentAssignment, repos.exam, repos.examPaper, repos.user, repos.statsCache, a.settings)
	s.report = service.NewReportService(s.analytics, s.storage)
	s.upload = service.NewUploadService(s.storage)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		assignment:        controller.NewAssignmentController(s.assignment, s.analytics, s.report),
		studentAssignment: controller.NewStudentAssignmentController(s.assignment, s.answer, s.finish),
		exam:              controller.NewExamController(s.exam, s.analytics, s.report, s.upload),
		studentExam:       controller.NewStudentExamController(s.exam, s.answer, s.examScoring),
		question:          controller.NewQuestionController(s.question, s.upload),
		health:            controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	a.limiter = security.NewLimiter(cfg.RateLimit.MaxRequests, window)
	router.Use(a.limiter.Middleware())

	router.Use(middleware.ConfigMiddleware(a.Config))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 定时发布到点的作业，并清理限流器的过期访客
func (a *App) startBackgroundTasks(ctx context.Context) {
	go a.limiter.Run(ctx)

	go func() {
		ticker := time.NewTicker(publishInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := a.services.assignment.PublishDue(ctx)
				if err != nil {
					logger.Log.Error("scheduled publish error", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Log.Info("scheduled assignments published", zap.Int("count", n))
				}
			}
		}
	}()

	go func() {
		err := configwatcher.WatchConfig(ctx, a.Config().Path, func(newCfg *config.Config) {
			a.config.Store(newCfg)
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("config hot reload disabled", zap.Error(err))
		}
	}()
}

// NewApp 初始化日志、数据库、缓存并装配各层。release 模式下只有显式要求才迁移
func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	if cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Log.Info("Database migration completed")
	}

	app := &App{
		DB:       db,
		settings: service.NewGradingSettings(cfg.Grading),
	}
	app.config.Store(cfg)
	if cfg.MigrateOnly {
		return app, nil
	}

	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := database.InitRedis(ctx, &cfg.Redis)
		cancel()
		if err != nil {
			// 缓存只是加速统计查询，连不上时退回直接查库
			logger.Log.Warn("redis unavailable, stats cache disabled", zap.Error(err))
		} else {
			app.Redis = rdb
		}
	}

	app.repos = app.initRepositories(db, app.Redis)
	app.services = app.initServices(app.repos, cfg)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		app.settings.Update(newCfg.Grading)
		logger.Log.Info("grading settings reloaded",
			zap.String("timezone", newCfg.Grading.Timezone),
			zap.Bool("enforceWindows", newCfg.Grading.EnforceWindows),
		)
	})

	return app, nil
}

// SetupHTTP 装配路由、中间件与追踪，供 serve 命令使用
func (a *App) SetupHTTP() error {
	cfg := a.Config()

	if err := util.RegisterValidators(); err != nil {
		return fmt.Errorf("register validators: %w", err)
	}

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("classwork-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return fmt.Errorf("initialize tracing: %w", err)
		}
		a.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	a.Router = router

	a.setupMiddlewares(router, cfg)
	a.registerRoutes(router, a.initControllers(a.services), cfg)
	return nil
}

// FanOut 对模板补发副本，kind 为 assignment 或 exam。
// 未发布的模板先发布；已发布的考试不重新计时
func (a *App) FanOut(ctx context.Context, kind string, id uint) (service.FanOutResult, error) {
	switch kind {
	case "assignment":
		out, err := a.services.assignment.Publish(ctx, id)
		if err != nil {
			return service.FanOutResult{}, err
		}
		return out.FanOut, nil
	case "exam":
		exam, err := a.repos.exam.FindByID(ctx, id)
		if err != nil {
			return service.FanOutResult{}, err
		}
		if exam.IsPublished {
			return a.services.distribution.FanOutExam(ctx, exam)
		}
		out, err := a.services.exam.Publish(ctx, id)
		if err != nil {
			return service.FanOutResult{}, err
		}
		return out.FanOut, nil
	}
	return service.FanOutResult{}, util.InvalidInputf("unknown template kind %q", kind)
}

func (a *App) Analytics() *service.AnalyticsService {
	return a.services.analytics
}

func (a *App) Run() error {
	cfg := a.Config()
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.startBackgroundTasks(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Log.Info("Shutting down server...")

	// 等待进行中的请求结束（5 秒超时）
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.Close(shutdownCtx)
	logger.Log.Info("Server exiting")
	return nil
}

// Close 释放追踪、缓存与数据库连接
func (a *App) Close(ctx context.Context) {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Log.Sync()
}
