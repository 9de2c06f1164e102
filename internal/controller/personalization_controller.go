package controller

import (
	"learner_insight/internal/model"
	"learner_insight/internal/service"
	"learner_insight/internal/util"

	"github.com/gin-gonic/gin"
)

type PersonalizationController struct {
	Service *service.PersonalizationService
}

func NewPersonalizationController(svc *service.PersonalizationService) *PersonalizationController {
	return &PersonalizationController{Service: svc}
}

// @Summary 获取个性化学习建议
// @Description 返回当前学习者的画像、诊断报告与推荐内容
// @Tags 个性化
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.PersonalizationBundle}
// @Router /api/personalization [get]
func (c *PersonalizationController) GetMine(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	bundle, err := c.Service.Personalize(ctx.Request.Context(), user.LearnerID, user.Hints())
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, bundle)
}

// @Summary 查看指定学习者的个性化结果
// @Description 教师或管理员查看某位学习者的画像、诊断与推荐
// @Tags 个性化
// @Produce json
// @Security BearerAuth
// @Param learnerId path string true "学习者ID"
// @Success 200 {object} util.Response{data=model.PersonalizationBundle}
// @Router /api/personalization/learners/{learnerId} [get]
func (c *PersonalizationController) GetForLearner(ctx *gin.Context) {
	bundle, err := c.Service.Personalize(ctx.Request.Context(), ctx.Param("learnerId"), model.ProfileHints{})
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, bundle)
}
