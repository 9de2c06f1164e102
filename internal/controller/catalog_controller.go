package controller

import (
	"learner_insight/internal/model"
	"learner_insight/internal/service"
	"learner_insight/internal/util"

	"github.com/gin-gonic/gin"
)

type CatalogController struct {
	Service *service.CatalogService
}

func NewCatalogController(svc *service.CatalogService) *CatalogController {
	return &CatalogController{Service: svc}
}

// @Summary 获取候选内容目录
// @Tags 目录
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.CandidateContentItem}
// @Router /api/catalog/content [get]
func (c *CatalogController) ListContent(ctx *gin.Context) {
	items, err := c.Service.ListContent(ctx.Request.Context())
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, items)
}

// @Summary 批量更新候选内容
// @Tags 目录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param items body []model.CandidateContentItem true "内容列表"
// @Success 200 {object} util.Response
// @Router /api/admin/catalog/content [put]
func (c *CatalogController) UpsertContent(ctx *gin.Context) {
	var items []model.CandidateContentItem
	if err := ctx.ShouldBindJSON(&items); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.Service.UpsertContent(ctx.Request.Context(), items); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"count": len(items)})
}

// @Summary 保存体验
// @Tags 目录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param experienceId path string true "体验ID"
// @Success 200 {object} util.Response{data=model.Experience}
// @Router /api/admin/experiences/{experienceId} [put]
func (c *CatalogController) SaveExperience(ctx *gin.Context) {
	var exp model.Experience
	if err := ctx.ShouldBindJSON(&exp); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	exp.ID = ctx.Param("experienceId")
	if err := c.Service.SaveExperience(ctx.Request.Context(), &exp); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, exp)
}

// @Summary 保存班级
// @Tags 班级
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "班级ID"
// @Success 200 {object} util.Response{data=model.Class}
// @Router /api/teacher/classes/{classId} [put]
func (c *CatalogController) SaveClass(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var class model.Class
	if err := ctx.ShouldBindJSON(&class); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	class.ID = ctx.Param("classId")
	if class.TeacherID == "" {
		class.TeacherID = user.LearnerID
	}
	if err := c.Service.SaveClass(ctx.Request.Context(), &class); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, class)
}

type enrollRequest struct {
	LearnerIDs []string `json:"learnerIds" binding:"required"`
}

// @Summary 班级添加学生
// @Tags 班级
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "班级ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/classes/{classId}/enrollments [post]
func (c *CatalogController) Enroll(ctx *gin.Context) {
	var req enrollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.Service.Enroll(ctx.Request.Context(), ctx.Param("classId"), req.LearnerIDs); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"classId": ctx.Param("classId"), "enrolled": len(req.LearnerIDs)})
}
