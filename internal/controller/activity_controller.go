package controller

import (
	"learner_insight/internal/service"
	"learner_insight/internal/util"

	"github.com/gin-gonic/gin"
)

type ActivityController struct {
	Service *service.ActivityService
}

func NewActivityController(svc *service.ActivityService) *ActivityController {
	return &ActivityController{Service: svc}
}

// @Summary 上报学习活动
// @Description 追加一条学习活动记录并更新技能掌握度
// @Tags 活动
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param activity body service.ActivityInput true "活动"
// @Success 201 {object} util.Response{data=model.ActivityEvent}
// @Router /api/activities [post]
func (c *ActivityController) Record(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var in service.ActivityInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	ev, err := c.Service.Record(ctx.Request.Context(), user.LearnerID, user.Hints(), in)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, ev)
}
