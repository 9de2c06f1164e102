package controller

import (
	"fmt"
	"learner_insight/internal/model"
	"learner_insight/internal/service"
	"learner_insight/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultSnapshotWindow = 30 * 24 * time.Hour

type AnalyticsController struct {
	Aggregator *service.AnalyticsAggregator
	now        func() time.Time
}

func NewAnalyticsController(aggregator *service.AnalyticsAggregator) *AnalyticsController {
	return &AnalyticsController{Aggregator: aggregator, now: time.Now}
}

// parseTimeParam accepts RFC3339 timestamps or plain dates (UTC midnight).
func parseTimeParam(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(util.DateFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse %q", util.ErrInvalidTimeRange, value)
	}
	return t, nil
}

func (c *AnalyticsController) buildQuery(ctx *gin.Context, user *util.Claims) (model.AnalyticsQuery, error) {
	var q model.AnalyticsQuery

	g, err := model.ParseGranularity(ctx.Query("granularity"))
	if err != nil {
		return q, fmt.Errorf("%w: %v", util.ErrInvalidGranularity, err)
	}
	q.Granularity = g

	q.To = c.now().UTC()
	if v := ctx.Query("to"); v != "" {
		if q.To, err = parseTimeParam(v); err != nil {
			return q, err
		}
	}
	q.From = q.To.Add(-defaultSnapshotWindow)
	if v := ctx.Query("from"); v != "" {
		if q.From, err = parseTimeParam(v); err != nil {
			return q, err
		}
	}

	q.ClassID = ctx.Query("classId")
	q.LearnerID = ctx.Query("learnerId")
	if !user.UserRole().CanViewOthers() {
		q.LearnerID = user.LearnerID
	}
	return q, nil
}

// @Summary 获取分析快照
// @Description 汇总概览、时间线、班级表现、体验使用与活动日志。学生只能查看自己的数据
// @Tags 分析
// @Produce json
// @Security BearerAuth
// @Param from query string false "开始时间 (RFC3339 或 YYYY-MM-DD)"
// @Param to query string false "结束时间 (RFC3339 或 YYYY-MM-DD)"
// @Param granularity query string false "hour/day/week/month" default(day)
// @Param classId query string false "班级ID"
// @Param learnerId query string false "学习者ID"
// @Success 200 {object} util.Response{data=model.AnalyticsSnapshot}
// @Router /api/analytics/snapshot [get]
func (c *AnalyticsController) GetSnapshot(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	q, err := c.buildQuery(ctx, user)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	snap, err := c.Aggregator.Aggregate(ctx.Request.Context(), q)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, snap)
}
