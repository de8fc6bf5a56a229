package controller

import (
	"errors"
	"strconv"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ScenarioController struct {
	ScenarioRepo *repository.ScenarioRepository
}

func NewScenarioController(scenarioRepo *repository.ScenarioRepository) *ScenarioController {
	return &ScenarioController{ScenarioRepo: scenarioRepo}
}

// List godoc
// @Summary List role-play scenarios
// @Description With topic and level filters set, returns enabled scenarios matching both; otherwise a paginated list.
// @Tags scenario
// @Produce json
// @Param topic query string false "topic filter"
// @Param level query string false "CEFR level filter"
// @Param page query int false "page" default(1)
// @Param limit query int false "limit" default(20)
// @Success 200 {object} util.Response
// @Router /api/scenarios [get]
func (c *ScenarioController) List(ctx *gin.Context) {
	topic := ctx.Query("topic")
	level := ctx.Query("level")

	if topic != "" && level != "" {
		scenarios, err := c.ScenarioRepo.FindByTopicAndLevel(topic, level)
		if err != nil {
			util.LogInternalError(ctx, err)
			return
		}
		util.Success(ctx, scenarios)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	scenarios, total, err := c.ScenarioRepo.List(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  scenarios,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// Get godoc
// @Summary Get a scenario with its dialogue script
// @Tags scenario
// @Produce json
// @Param id path int true "scenario id"
// @Success 200 {object} util.Response{data=model.Scenario}
// @Failure 404 {object} util.Response
// @Router /api/scenarios/{id} [get]
func (c *ScenarioController) Get(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid scenario id")
		return
	}

	scenario, err := c.ScenarioRepo.FindByID(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrScenarioNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, scenario)
}

type ScenarioLineInput struct {
	Turn    int    `json:"turn" binding:"min=0"`
	Speaker string `json:"speaker" binding:"required,oneof=ai user"`
	Line    string `json:"line" binding:"required"`
}

type ScenarioRequest struct {
	Title   string              `json:"title" binding:"required"`
	Topic   string              `json:"topic" binding:"required"`
	Level   string              `json:"level" binding:"required"`
	Enabled *bool               `json:"enabled"`
	Lines   []ScenarioLineInput `json:"lines" binding:"required,min=1,dive"`
}

func (r *ScenarioRequest) lines() []model.ScenarioLine {
	lines := make([]model.ScenarioLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, model.ScenarioLine{
			Turn:    l.Turn,
			Speaker: l.Speaker,
			Line:    l.Line,
		})
	}
	return lines
}

// Create godoc
// @Summary Create a scenario (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param body body ScenarioRequest true "scenario with script"
// @Success 201 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Router /api/admin/scenarios [post]
func (c *ScenarioController) Create(ctx *gin.Context) {
	var req ScenarioRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	scenario := &model.Scenario{
		Title:   req.Title,
		Topic:   req.Topic,
		Level:   req.Level,
		Enabled: enabled,
		Lines:   req.lines(),
	}

	if err := c.ScenarioRepo.Create(scenario); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{"id": scenario.ID})
}

// Update godoc
// @Summary Update a scenario and replace its script (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "scenario id"
// @Param body body ScenarioRequest true "scenario with script"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/scenarios/{id} [put]
func (c *ScenarioController) Update(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid scenario id")
		return
	}

	var req ScenarioRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	scenario, err := c.ScenarioRepo.FindByID(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrScenarioNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	scenario.Title = req.Title
	scenario.Topic = req.Topic
	scenario.Level = req.Level
	if req.Enabled != nil {
		scenario.Enabled = *req.Enabled
	}
	scenario.Lines = nil

	if err := c.ScenarioRepo.Update(scenario); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if err := c.ScenarioRepo.ReplaceLines(scenario.ID, req.lines()); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"id": scenario.ID})
}

// Delete godoc
// @Summary Delete a scenario (admin)
// @Tags admin
// @Produce json
// @Param id path int true "scenario id"
// @Success 200 {object} util.Response
// @Router /api/admin/scenarios/{id} [delete]
func (c *ScenarioController) Delete(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid scenario id")
		return
	}

	if err := c.ScenarioRepo.Delete(uint(id)); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"deleted": true})
}
