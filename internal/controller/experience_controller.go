package controller

import (
	"learner_insight/internal/service"
	"learner_insight/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ExperienceController struct {
	Service *service.ExperienceService
}

func NewExperienceController(svc *service.ExperienceService) *ExperienceController {
	return &ExperienceController{Service: svc}
}

// @Summary 开始体验会话
// @Tags 体验
// @Produce json
// @Security BearerAuth
// @Param experienceId path string true "体验ID"
// @Success 201 {object} util.Response{data=model.ExperienceSession}
// @Router /api/experiences/{experienceId}/sessions [post]
func (c *ExperienceController) StartSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	session, err := c.Service.StartSession(ctx.Request.Context(), user.LearnerID, ctx.Param("experienceId"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, session)
}

type endSessionRequest struct {
	Score *float64 `json:"score"`
}

// @Summary 结束体验会话
// @Tags 体验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path int true "会话ID"
// @Success 200 {object} util.Response{data=model.ExperienceSession}
// @Router /api/experiences/sessions/{sessionId}/end [put]
func (c *ExperienceController) EndSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	sessionID, err := strconv.ParseUint(ctx.Param("sessionId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid session id")
		return
	}

	var req endSessionRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	session, err := c.Service.EndSession(ctx.Request.Context(), user.LearnerID, uint(sessionID), req.Score)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}
