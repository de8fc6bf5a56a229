package controller

import (
	"net/http"

	"english_edu_backend/internal/service"
	"english_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TTSController struct {
	TTSService *service.TTSService
}

func NewTTSController(ttsService *service.TTSService) *TTSController {
	return &TTSController{TTSService: ttsService}
}

// Speak godoc
// @Summary Synthesize English speech for a short text
// @Description Returns MP3 audio. Responses are cached, so repeated requests for the same text are served without an upstream call.
// @Tags tts
// @Produce octet-stream
// @Param text query string true "text to speak"
// @Success 200 {file} binary "MP3 audio"
// @Failure 400 {object} util.Response
// @Failure 502 {object} util.Response "synthesis failed"
// @Router /api/tts [get]
func (c *TTSController) Speak(ctx *gin.Context) {
	text := ctx.Query("text")
	if text == "" {
		util.BadRequest(ctx, "text is required")
		return
	}
	if len(text) > 200 {
		util.BadRequest(ctx, "text is too long")
		return
	}

	audio, err := c.TTSService.Speak(ctx.Request.Context(), text)
	if err != nil {
		util.Error(ctx, 502, "Speech synthesis failed")
		return
	}

	ctx.Data(http.StatusOK, "audio/mpeg", audio)
}
