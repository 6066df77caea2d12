package controller

import (
	"classwork_backend/internal/service"
	"classwork_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ExamController 教师端考试管理
type ExamController struct {
	Exams     *service.ExamService
	Analytics *service.AnalyticsService
	Reports   *service.ReportService
	Uploads   *service.UploadService
}

func NewExamController(exams *service.ExamService, analytics *service.AnalyticsService, reports *service.ReportService, uploads *service.UploadService) *ExamController {
	return &ExamController{Exams: exams, Analytics: analytics, Reports: reports, Uploads: uploads}
}

// Create 新建考试（草稿），按配置从题库抽题
func (c *ExamController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var req service.CreateExamReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	exam, err := c.Exams.Create(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, exam)
}

func (c *ExamController) List(ctx *gin.Context) {
	list, err := c.Exams.List(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

func (c *ExamController) Detail(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	detail, err := c.Exams.Detail(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// Publish 发布考试：从现在开始计时并分发答卷
func (c *ExamController) Publish(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	out, err := c.Exams.Publish(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, out)
}

func (c *ExamController) Unpublish(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	exam, err := c.Exams.Unpublish(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

func (c *ExamController) Delete(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if err := c.Exams.Delete(ctx.Request.Context(), id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// Results 考试成绩汇总
func (c *ExamController) Results(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	res, err := c.Analytics.ExamResults(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

func (c *ExamController) ExportResults(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	ref, err := c.Reports.ExportExamResults(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, ref)
}

// UploadSolutions 上传考试答案 PDF
func (c *ExamController) UploadSolutions(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	ref, err := c.Uploads.Save(ctx.Request.Context(), service.UploadPDF, fh)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	exam, err := c.Exams.SetSolutions(ctx.Request.Context(), id, ref.URL)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}
