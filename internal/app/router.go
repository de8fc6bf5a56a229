package app

import (
	"english_edu_backend/docs"
	"english_edu_backend/internal/config"
	"english_edu_backend/internal/middleware"
	"english_edu_backend/internal/model"
	"english_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c)
	a.registerBrowseRoutes(router, c, repos, cfg)
	a.registerLearnerRoutes(router, c, repos, cfg)
	a.registerAdminRoutes(router, c, repos, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

// Catalogue reads are open to anonymous visitors; a valid token still
// attaches claims for activity tracking.
func (a *App) registerBrowseRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	browse := router.Group("/api")
	browse.Use(middleware.TryAuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		browse.GET("/scenarios", c.scenario.List)
		browse.GET("/scenarios/:id", c.scenario.Get)
		browse.GET("/vocab/decks/public", c.vocabulary.ListPublicDecks)
	}
}

func (a *App) registerLearnerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		api.GET("/profile", c.auth.GetProfile)
		api.PUT("/user/profile", c.user.UpdateProfile)

		// Diagnostic assessment and roadmap generation
		api.POST("/assessment/generate-test", c.assessment.GenerateTest)
		api.POST("/assessment/submit", c.assessment.SubmitAssessment)

		// Learning roadmap
		api.GET("/roadmap", c.roadmap.GetCurrent)
		api.GET("/roadmap/summaries", c.roadmap.ListSummaries)

		// Graded quizzes
		api.POST("/quiz/start", c.quiz.StartQuiz)
		api.GET("/quiz/:id/status", c.quiz.Status)
		api.GET("/quiz/:id/questions", c.quiz.Questions)
		api.POST("/quiz/:id/submit", c.quiz.Submit)

		// Speaking practice
		api.POST("/conversation/start", c.conversation.Start)
		api.GET("/conversation/sessions", c.conversation.List)
		api.GET("/conversation/sessions/:id", c.conversation.Get)
		api.DELETE("/conversation/sessions/:id", c.conversation.Delete)
		api.POST("/conversation/sessions/:id/reply", c.conversation.Reply)
		api.POST("/conversation/sessions/:id/voice", c.conversation.Voice)
		api.POST("/conversation/sessions/:id/scenario-voice", c.conversation.ScenarioVoice)
		api.POST("/conversation/sessions/:id/summary", c.conversation.Summarize)

		// Vocabulary decks, spaced repetition and the quiz game
		api.POST("/vocab/decks", c.vocabulary.CreateDeck)
		api.GET("/vocab/decks", c.vocabulary.ListDecks)
		api.GET("/vocab/decks/:id/words", c.vocabulary.Words)
		api.DELETE("/vocab/decks/:id", c.vocabulary.DeleteDeck)
		api.GET("/vocab/review/due", c.vocabulary.DueWords)
		api.POST("/vocab/words/:id/review", c.vocabulary.ReviewWord)
		api.POST("/vocab/decks/:id/quiz", c.vocabulary.CreateQuizGame)
		api.POST("/vocab/decks/:id/quiz/submit", c.vocabulary.SubmitQuizGame)
		api.GET("/vocab/suggestions", c.vocabulary.ListSuggestions)
		api.POST("/vocab/suggestions/:id/accept", c.vocabulary.AcceptSuggestion)
		api.DELETE("/vocab/suggestions/:id", c.vocabulary.RejectSuggestion)

		// Pronunciation audio
		api.GET("/tts", c.tts.Speak)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user), middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/users", c.user.GetUsers)
		admin.GET("/users/:id", c.user.GetUser)
		admin.POST("/users/:id/disable", c.user.DisableUser)
		admin.PUT("/users/:id/role", c.user.SetRole)

		admin.POST("/scenarios", c.scenario.Create)
		admin.PUT("/scenarios/:id", c.scenario.Update)
		admin.DELETE("/scenarios/:id", c.scenario.Delete)
	}
}
