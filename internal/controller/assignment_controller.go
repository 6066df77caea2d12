package controller

import (
	"classwork_backend/internal/service"
	"classwork_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AssignmentController 教师端作业管理
type AssignmentController struct {
	Assignments *service.AssignmentService
	Analytics   *service.AnalyticsService
	Reports     *service.ReportService
}

func NewAssignmentController(assignments *service.AssignmentService, analytics *service.AnalyticsService, reports *service.ReportService) *AssignmentController {
	return &AssignmentController{Assignments: assignments, Analytics: analytics, Reports: reports}
}

// Create 新建作业并分发给班级学生
func (c *AssignmentController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var req service.CreateAssignmentReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	out, err := c.Assignments.Create(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, out)
}

// List 作业列表，可按日期过滤
func (c *AssignmentController) List(ctx *gin.Context) {
	list, err := c.Assignments.List(ctx.Request.Context(), ctx.Query("date"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

func (c *AssignmentController) Detail(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	detail, err := c.Assignments.Detail(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

func (c *AssignmentController) Update(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	var req service.UpdateAssignmentReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	a, err := c.Assignments.Update(ctx.Request.Context(), id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// Publish 发布作业，并给新加入班级的学生补发
func (c *AssignmentController) Publish(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	out, err := c.Assignments.Publish(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, out)
}

func (c *AssignmentController) Unpublish(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	a, err := c.Assignments.Unpublish(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

func (c *AssignmentController) Delete(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if err := c.Assignments.Delete(ctx.Request.Context(), id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// KeyCheck 检查作业中哪些题目缺少标准答案
func (c *AssignmentController) KeyCheck(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	res, err := c.Assignments.KeyCheck(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Stats 作业统计：总体、班级平均、逐题、学生表现
func (c *AssignmentController) Stats(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	stats, err := c.Analytics.ComputeStats(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// ExportStats 导出作业统计到文件存储
func (c *AssignmentController) ExportStats(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	ref, err := c.Reports.ExportAssignmentStats(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, ref)
}
