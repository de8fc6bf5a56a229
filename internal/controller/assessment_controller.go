package controller

import (
	"encoding/json"
	"io"

	"english_edu_backend/internal/service"
	"english_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	AssessmentService *service.AssessmentService
}

func NewAssessmentController(assessmentService *service.AssessmentService) *AssessmentController {
	return &AssessmentController{AssessmentService: assessmentService}
}

// GenerateTest godoc
// @Summary Generate the diagnostic placement test
// @Description Builds a 21-question test (grammar, vocabulary and one speaking prompt) from the learner's stated goals.
// @Tags assessment
// @Accept json
// @Produce json
// @Param body body service.RoadmapPreferences true "learner preferences"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Failure 502 {object} util.Response "AI generation failed"
// @Router /api/assessment/generate-test [post]
func (c *AssessmentController) GenerateTest(ctx *gin.Context) {
	var prefs service.RoadmapPreferences
	if err := ctx.ShouldBindJSON(&prefs); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	questions, err := c.AssessmentService.GenerateDiagnosticTest(ctx.Request.Context(), prefs)
	if err != nil {
		util.Error(ctx, 502, "Test generation failed, please retry")
		return
	}

	util.Success(ctx, gin.H{"questions": questions})
}

// SubmitAssessment godoc
// @Summary Submit the diagnostic test and generate a roadmap
// @Description Multipart form: "payload" is the JSON submission (preferences, quiz questions, MCQ answers, speaking latency), "audio" is the optional recorded answer to the speaking prompt. Replaces any existing roadmap.
// @Tags assessment
// @Accept multipart/form-data
// @Produce json
// @Param payload formData string true "JSON submission"
// @Param audio formData file false "speaking prompt recording"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Failure 502 {object} util.Response "roadmap generation failed"
// @Router /api/assessment/submit [post]
func (c *AssessmentController) SubmitAssessment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	payload := ctx.PostForm("payload")
	if payload == "" {
		util.BadRequest(ctx, "payload is required")
		return
	}

	var sub service.AssessmentSubmission
	if err := json.Unmarshal([]byte(payload), &sub); err != nil {
		util.BadRequest(ctx, "invalid payload: "+err.Error())
		return
	}
	if len(sub.Questions) == 0 {
		util.BadRequest(ctx, "quiz_questions is required")
		return
	}

	var speaking service.SpeakingSample
	if fileHeader, err := ctx.FormFile("audio"); err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			util.BadRequest(ctx, "cannot read audio file")
			return
		}
		audio, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			util.BadRequest(ctx, "cannot read audio file")
			return
		}

		mimeType := fileHeader.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "audio/webm"
		}
		speaking = c.AssessmentService.TranscribeSpeakingSample(ctx.Request.Context(), audio, mimeType, sub.LatencyMs)
	}

	roadmap, analysis, err := c.AssessmentService.GenerateRoadmap(ctx.Request.Context(), claims.UserID, sub, speaking)
	if err != nil {
		util.Error(ctx, 502, "Roadmap generation failed, please retry")
		return
	}

	doc, err := roadmap.Document()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"roadmap":      doc,
		"mcq_analysis": analysis,
		"speaking":     speaking,
	})
}
