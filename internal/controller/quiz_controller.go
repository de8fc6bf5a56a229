package controller

import (
	"errors"
	"net/http"
	"strconv"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/service"
	"english_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

type StartQuizRequest struct {
	Topic    string `json:"topic" binding:"required"`
	LessonID string `json:"lesson_id"`
	Skill    string `json:"skill" binding:"omitempty,oneof=grammar vocabulary"`
}

// StartQuiz godoc
// @Summary Start a graded quiz session
// @Description Creates the session immediately and generates questions in the background. Poll the status endpoint until READY.
// @Tags quiz
// @Accept json
// @Produce json
// @Param body body StartQuizRequest true "quiz parameters"
// @Success 201 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Router /api/quiz/start [post]
func (c *QuizController) StartQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req StartQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	skill := model.SkillGrammar
	if req.Skill != "" {
		skill = model.SkillType(req.Skill)
	}

	session, err := c.QuizService.StartQuiz(ctx.Request.Context(), claims.UserID, req.LessonID, req.Topic, skill)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{
		"session_id": session.ID,
		"status":     session.Status,
	})
}

func quizSessionID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return 0, false
	}
	return uint(id), true
}

// Status godoc
// @Summary Poll quiz generation status
// @Tags quiz
// @Produce json
// @Param id path int true "session id"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id}/status [get]
func (c *QuizController) Status(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	sessionID, ok := quizSessionID(ctx)
	if !ok {
		return
	}

	status, err := c.QuizService.Status(ctx.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		if errors.Is(err, util.ErrQuizNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"status": status})
}

// Questions godoc
// @Summary Fetch generated quiz questions
// @Description Correct answers are stripped from the payload.
// @Tags quiz
// @Produce json
// @Param id path int true "session id"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "questions not ready yet"
// @Router /api/quiz/{id}/questions [get]
func (c *QuizController) Questions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	sessionID, ok := quizSessionID(ctx)
	if !ok {
		return
	}

	session, questions, err := c.QuizService.Questions(claims.UserID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrQuizNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrQuizNotReady):
			util.Error(ctx, http.StatusConflict, "Questions are not ready yet")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{
		"session_id": session.ID,
		"topic":      session.Topic,
		"questions":  questions,
	})
}

type SubmitQuizRequest struct {
	Answers map[uint]string `json:"answers" binding:"required"`
}

// Submit godoc
// @Summary Submit quiz answers for grading
// @Description Grades the answers, records a roadmap attempt when the quiz is tied to a lesson, and may trigger the weekly adaptation cascade.
// @Tags quiz
// @Accept json
// @Produce json
// @Param id path int true "session id"
// @Param body body SubmitQuizRequest true "answers keyed by question id"
// @Success 200 {object} util.Response{data=service.QuizResult}
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "session not in READY state"
// @Router /api/quiz/{id}/submit [post]
func (c *QuizController) Submit(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	sessionID, ok := quizSessionID(ctx)
	if !ok {
		return
	}

	var req SubmitQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.QuizService.Submit(ctx.Request.Context(), claims.UserID, sessionID, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrQuizNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrQuizNotReady):
			util.Error(ctx, http.StatusConflict, "Quiz is not ready for submission")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}
