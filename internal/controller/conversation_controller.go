package controller

import (
	"errors"
	"io"
	"strconv"

	"english_edu_backend/internal/service"
	"english_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ConversationController struct {
	ConversationService *service.ConversationService
}

func NewConversationController(conversationService *service.ConversationService) *ConversationController {
	return &ConversationController{ConversationService: conversationService}
}

type StartConversationRequest struct {
	Mode       string `json:"mode" binding:"required,oneof=free scenario"`
	Level      string `json:"level"`
	Topic      string `json:"topic"`
	ScenarioID uint   `json:"scenario_id"`
	LessonID   string `json:"lesson_id"`
}

// Start godoc
// @Summary Start a speaking practice session
// @Description Free mode opens with an AI greeting on the topic; scenario mode follows a scripted dialogue.
// @Tags conversation
// @Accept json
// @Produce json
// @Param body body StartConversationRequest true "session parameters"
// @Success 201 {object} util.Response{data=service.StartResult}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response "scenario not found"
// @Router /api/conversation/start [post]
func (c *ConversationController) Start(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req StartConversationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ConversationService.Start(ctx.Request.Context(), claims.UserID, req.Mode, req.Level, req.Topic, req.ScenarioID, req.LessonID)
	if err != nil {
		if errors.Is(err, util.ErrScenarioNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, result)
}

// List godoc
// @Summary List the learner's sessions
// @Tags conversation
// @Produce json
// @Success 200 {object} util.Response{data=[]model.ConversationSession}
// @Router /api/conversation/sessions [get]
func (c *ConversationController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	sessions, err := c.ConversationService.List(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, sessions)
}

// Get godoc
// @Summary Get one session with its message history
// @Tags conversation
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} util.Response{data=model.ConversationSession}
// @Failure 404 {object} util.Response
// @Router /api/conversation/sessions/{id} [get]
func (c *ConversationController) Get(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	session, err := c.ConversationService.Get(ctx.Param("id"), claims.UserID)
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, session)
}

// Delete godoc
// @Summary Delete a session
// @Tags conversation
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/conversation/sessions/{id} [delete]
func (c *ConversationController) Delete(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.ConversationService.Delete(ctx.Param("id"), claims.UserID); err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"deleted": true})
}

type ReplyRequest struct {
	Message string `json:"message" binding:"required"`
}

// Reply godoc
// @Summary Send a text message in a free-talk session
// @Tags conversation
// @Accept json
// @Produce json
// @Param id path string true "session id"
// @Param body body ReplyRequest true "learner message"
// @Success 200 {object} util.Response{data=service.FreeTalkReply}
// @Failure 404 {object} util.Response
// @Router /api/conversation/sessions/{id}/reply [post]
func (c *ConversationController) Reply(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req ReplyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	reply, err := c.ConversationService.Reply(ctx.Request.Context(), claims.UserID, ctx.Param("id"), req.Message)
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, reply)
}

func readAudioForm(ctx *gin.Context) ([]byte, string, bool) {
	fileHeader, err := ctx.FormFile("audio")
	if err != nil {
		util.BadRequest(ctx, "audio file is required")
		return nil, "", false
	}
	f, err := fileHeader.Open()
	if err != nil {
		util.BadRequest(ctx, "cannot read audio file")
		return nil, "", false
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		util.BadRequest(ctx, "cannot read audio file")
		return nil, "", false
	}
	return audio, fileHeader.Filename, true
}

// Voice godoc
// @Summary Send a voice message in a free-talk session
// @Description Transcodes the upload to MP3, transcribes it, and returns spoken feedback plus the AI reply.
// @Tags conversation
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "session id"
// @Param audio formData file true "recorded speech"
// @Success 200 {object} util.Response{data=service.VoiceReply}
// @Failure 404 {object} util.Response
// @Router /api/conversation/sessions/{id}/voice [post]
func (c *ConversationController) Voice(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	audio, filename, ok := readAudioForm(ctx)
	if !ok {
		return
	}

	reply, err := c.ConversationService.Voice(ctx.Request.Context(), claims.UserID, ctx.Param("id"), audio, filename)
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, reply)
}

// ScenarioVoice godoc
// @Summary Submit a spoken line in a scenario session
// @Description Grades the learner's delivery of the scripted line at the given turn and advances the dialogue.
// @Tags conversation
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "session id"
// @Param turn formData int true "script turn being attempted"
// @Param audio formData file true "recorded speech"
// @Success 200 {object} util.Response{data=service.VoiceReply}
// @Failure 404 {object} util.Response
// @Router /api/conversation/sessions/{id}/scenario-voice [post]
func (c *ConversationController) ScenarioVoice(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	turn, err := strconv.Atoi(ctx.PostForm("turn"))
	if err != nil {
		util.BadRequest(ctx, "invalid turn")
		return
	}

	audio, filename, ok := readAudioForm(ctx)
	if !ok {
		return
	}

	reply, err := c.ConversationService.ScenarioVoice(ctx.Request.Context(), claims.UserID, ctx.Param("id"), turn, audio, filename)
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, reply)
}

// Summarize godoc
// @Summary End a session and get graded feedback
// @Description Generates the session summary, records a speaking attempt when the session is tied to a roadmap lesson, and queues vocabulary suggestions from the transcript. Idempotent.
// @Tags conversation
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} util.Response{data=service.SessionSummary}
// @Failure 404 {object} util.Response
// @Router /api/conversation/sessions/{id}/summary [post]
func (c *ConversationController) Summarize(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	summary, err := c.ConversationService.Summarize(ctx.Request.Context(), claims.UserID, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, summary)
}
