package controller

import (
	"errors"
	"net/http"
	"strconv"

	"english_edu_backend/internal/service"
	"english_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type VocabularyController struct {
	VocabularyService *service.VocabularyService
	QuizGameService   *service.VocabQuizService
}

func NewVocabularyController(vocabularyService *service.VocabularyService, quizGameService *service.VocabQuizService) *VocabularyController {
	return &VocabularyController{
		VocabularyService: vocabularyService,
		QuizGameService:   quizGameService,
	}
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

type CreateDeckRequest struct {
	Topic    string `json:"topic" binding:"required"`
	LessonID string `json:"lesson_id"`
}

// CreateDeck godoc
// @Summary Get or create a topic deck
// @Description Returns the existing deck for the topic or creates one and generates its words in the background. Poll the deck's ready flag.
// @Tags vocabulary
// @Accept json
// @Produce json
// @Param body body CreateDeckRequest true "deck topic"
// @Success 200 {object} util.Response{data=model.Deck}
// @Failure 400 {object} util.Response
// @Router /api/vocab/decks [post]
func (c *VocabularyController) CreateDeck(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req CreateDeckRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	deck, err := c.VocabularyService.GetOrCreateDeck(ctx.Request.Context(), claims.UserID, req.Topic, req.LessonID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, deck)
}

// ListDecks godoc
// @Summary List the learner's decks
// @Tags vocabulary
// @Produce json
// @Success 200 {object} util.Response{data=[]model.Deck}
// @Router /api/vocab/decks [get]
func (c *VocabularyController) ListDecks(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	decks, err := c.VocabularyService.ListDecks(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, decks)
}

// ListPublicDecks godoc
// @Summary List public curated decks
// @Tags vocabulary
// @Produce json
// @Success 200 {object} util.Response{data=[]model.Deck}
// @Router /api/vocab/decks/public [get]
func (c *VocabularyController) ListPublicDecks(ctx *gin.Context) {
	decks, err := c.VocabularyService.ListPublicDecks()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, decks)
}

// Words godoc
// @Summary List the words in a deck
// @Tags vocabulary
// @Produce json
// @Param id path int true "deck id"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response
// @Router /api/vocab/decks/{id}/words [get]
func (c *VocabularyController) Words(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	deckID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	deck, words, err := c.VocabularyService.Words(deckID, claims.UserID)
	if err != nil {
		if errors.Is(err, util.ErrDeckNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{
		"deck":  deck,
		"words": words,
	})
}

// DeleteDeck godoc
// @Summary Delete a deck and its words
// @Tags vocabulary
// @Produce json
// @Param id path int true "deck id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/vocab/decks/{id} [delete]
func (c *VocabularyController) DeleteDeck(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	deckID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.VocabularyService.DeleteDeck(deckID, claims.UserID); err != nil {
		if errors.Is(err, util.ErrDeckNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"deleted": true})
}

// DueWords godoc
// @Summary List words due for spaced-repetition review
// @Tags vocabulary
// @Produce json
// @Param limit query int false "max words" default(20)
// @Success 200 {object} util.Response{data=[]model.VocabWord}
// @Router /api/vocab/review/due [get]
func (c *VocabularyController) DueWords(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	words, err := c.VocabularyService.DueWords(claims.UserID, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, words)
}

type ReviewWordRequest struct {
	Quality int `json:"quality" binding:"min=0,max=5"`
}

// ReviewWord godoc
// @Summary Grade a flashcard review
// @Description Applies the SM-2 scheduling update; quality 0-5 where 3+ is a pass.
// @Tags vocabulary
// @Accept json
// @Produce json
// @Param id path int true "word id"
// @Param body body ReviewWordRequest true "review quality"
// @Success 200 {object} util.Response{data=model.VocabWord}
// @Failure 404 {object} util.Response
// @Router /api/vocab/words/{id}/review [post]
func (c *VocabularyController) ReviewWord(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	wordID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req ReviewWordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	word, err := c.VocabularyService.ReviewWord(claims.UserID, wordID, req.Quality)
	if err != nil {
		if errors.Is(err, util.ErrDeckNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, word)
}

// CreateQuizGame godoc
// @Summary Build a mixed-mode vocabulary quiz from a deck
// @Description Ten questions mixing cloze, typed-answer and multiple-choice styles. The deck needs at least four words.
// @Tags vocabulary
// @Produce json
// @Param id path int true "deck id"
// @Success 200 {object} util.Response{data=[]service.VocabQuizQuestion}
// @Failure 404 {object} util.Response
// @Failure 422 {object} util.Response "deck too small"
// @Router /api/vocab/decks/{id}/quiz [post]
func (c *VocabularyController) CreateQuizGame(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	deckID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	questions, err := c.QuizGameService.CreateQuiz(deckID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrDeckNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrDeckTooSmall):
			util.Error(ctx, http.StatusUnprocessableEntity, "Deck needs at least 4 words for a quiz")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"questions": questions})
}

type SubmitQuizGameRequest struct {
	CorrectCount   int      `json:"correct_count" binding:"min=0"`
	TotalQuestions int      `json:"total_questions" binding:"required,min=1"`
	MissedWords    []string `json:"missed_words"`
}

// SubmitQuizGame godoc
// @Summary Report vocabulary quiz results
// @Description Missed words become pending suggestions; decks tied to a roadmap lesson record a vocabulary attempt.
// @Tags vocabulary
// @Accept json
// @Produce json
// @Param id path int true "deck id"
// @Param body body SubmitQuizGameRequest true "quiz outcome"
// @Success 200 {object} util.Response{data=service.VocabQuizResult}
// @Failure 404 {object} util.Response
// @Router /api/vocab/decks/{id}/quiz/submit [post]
func (c *VocabularyController) SubmitQuizGame(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	deckID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req SubmitQuizGameRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.QuizGameService.SubmitResults(ctx.Request.Context(), claims.UserID, deckID, req.CorrectCount, req.TotalQuestions, req.MissedWords)
	if err != nil {
		if errors.Is(err, util.ErrDeckNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}

// ListSuggestions godoc
// @Summary List pending word suggestions
// @Tags vocabulary
// @Produce json
// @Success 200 {object} util.Response{data=[]model.WordSuggestion}
// @Router /api/vocab/suggestions [get]
func (c *VocabularyController) ListSuggestions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	suggestions, err := c.VocabularyService.ListSuggestions(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, suggestions)
}

type AcceptSuggestionRequest struct {
	DeckID uint `json:"deck_id" binding:"required"`
}

// AcceptSuggestion godoc
// @Summary Accept a word suggestion into a deck
// @Tags vocabulary
// @Accept json
// @Produce json
// @Param id path int true "suggestion id"
// @Param body body AcceptSuggestionRequest true "target deck"
// @Success 200 {object} util.Response{data=model.VocabWord}
// @Failure 404 {object} util.Response
// @Router /api/vocab/suggestions/{id}/accept [post]
func (c *VocabularyController) AcceptSuggestion(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	suggestionID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req AcceptSuggestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	word, err := c.VocabularyService.AcceptSuggestion(ctx.Request.Context(), claims.UserID, suggestionID, req.DeckID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrSuggestionNotFound), errors.Is(err, util.ErrDeckNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, word)
}

// RejectSuggestion godoc
// @Summary Reject a word suggestion
// @Tags vocabulary
// @Produce json
// @Param id path int true "suggestion id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/vocab/suggestions/{id} [delete]
func (c *VocabularyController) RejectSuggestion(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	suggestionID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.VocabularyService.RejectSuggestion(claims.UserID, suggestionID); err != nil {
		if errors.Is(err, util.ErrSuggestionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"rejected": true})
}
