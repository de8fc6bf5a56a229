package controller

import (
	"errors"

	"english_edu_backend/internal/service"
	"english_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RoadmapController struct {
	RoadmapService *service.RoadmapService
}

func NewRoadmapController(roadmapService *service.RoadmapService) *RoadmapController {
	return &RoadmapController{RoadmapService: roadmapService}
}

// GetCurrent godoc
// @Summary Get the learner's current roadmap
// @Tags roadmap
// @Produce json
// @Success 200 {object} util.Response{data=model.RoadmapDocument}
// @Failure 404 {object} util.Response "no roadmap yet"
// @Router /api/roadmap [get]
func (c *RoadmapController) GetCurrent(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	_, doc, err := c.RoadmapService.Current(claims.UserID)
	if err != nil {
		if errors.Is(err, util.ErrRoadmapNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, doc)
}

// ListSummaries godoc
// @Summary List the learner's weekly performance summaries
// @Tags roadmap
// @Produce json
// @Success 200 {object} util.Response{data=[]model.WeeklySummary}
// @Router /api/roadmap/summaries [get]
func (c *RoadmapController) ListSummaries(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	summaries, err := c.RoadmapService.ListSummaries(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, summaries)
}
