package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/controller"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/service"
	"english_edu_backend/pkg/database"
	"english_edu_backend/pkg/logger"
	"english_edu_backend/pkg/monitoring"
	"english_edu_backend/pkg/security"
	"english_edu_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
}

type repositories struct {
	user     *repository.UserRepository
	roadmap  *repository.RoadmapRepository
	summary  *repository.SummaryRepository
	session  *repository.SessionRepository
	scenario *repository.ScenarioRepository
	deck     *repository.DeckRepository
	vocab    *repository.VocabRepository
	quiz     *repository.QuizRepository
}

type services struct {
	ai           *service.AIService
	auth         *service.AuthService
	user         *service.UserService
	storage      *service.StorageService
	tts          *service.TTSService
	progress     *service.ProgressService
	roadmap      *service.RoadmapService
	assessment   *service.AssessmentService
	quiz         *service.QuizService
	vocabulary   *service.VocabularyService
	vocabQuiz    *service.VocabQuizService
	conversation *service.ConversationService
}

type controllers struct {
	auth         *controller.AuthController
	user         *controller.UserController
	assessment   *controller.AssessmentController
	roadmap      *controller.RoadmapController
	quiz         *controller.QuizController
	conversation *controller.ConversationController
	vocabulary   *controller.VocabularyController
	tts          *controller.TTSController
	scenario     *controller.ScenarioController
	health       *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		roadmap:  repository.NewRoadmapRepository(db),
		summary:  repository.NewSummaryRepository(db),
		session:  repository.NewSessionRepository(db),
		scenario: repository.NewScenarioRepository(db),
		deck:     repository.NewDeckRepository(db),
		vocab:    repository.NewVocabRepository(db),
		quiz:     repository.NewQuizRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.ai = service.NewAIService(cfg.AI)
	s.storage = service.NewStorageService(cfg)
	s.tts = service.NewTTSService(rdb)

	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user)

	// The progress and roadmap services share one per-user lock so that
	// attempt application and week adaptation never interleave.
	s.progress = service.NewProgressService(cfg.Progress, repos.roadmap)
	s.roadmap = service.NewRoadmapService(cfg.Progress, repos.roadmap, repos.summary, s.ai, s.progress)

	s.assessment = service.NewAssessmentService(s.ai, repos.roadmap, repos.user)
	s.quiz = service.NewQuizService(repos.quiz, repos.user, s.ai, s.progress, s.roadmap, rdb)
	s.vocabulary = service.NewVocabularyService(repos.deck, repos.vocab, repos.user, s.ai, s.tts, s.storage)
	s.vocabQuiz = service.NewVocabQuizService(repos.deck, repos.vocab, s.progress, s.roadmap)
	s.conversation = service.NewConversationService(repos.session, repos.scenario, s.ai, s.progress, s.roadmap, s.storage, s.vocabulary)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth, s.user),
		user:         controller.NewUserController(s.user),
		assessment:   controller.NewAssessmentController(s.assessment),
		roadmap:      controller.NewRoadmapController(s.roadmap),
		quiz:         controller.NewQuizController(s.quiz),
		conversation: controller.NewConversationController(s.conversation),
		vocabulary:   controller.NewVocabularyController(s.vocabulary, s.vocabQuiz),
		tts:          controller.NewTTSController(s.tts),
		scenario:     controller.NewScenarioController(repos.scenario),
		health:       controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
			log.Fatalf("Failed to migrate database: %v", err)
		}
		if cfg.MigrateOnly {
			logger.Log.Info("Migration finished, exiting")
			os.Exit(0)
		}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(services, repos, db)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("english-edu-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
