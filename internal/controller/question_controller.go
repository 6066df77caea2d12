package controller

import (
	"classwork_backend/internal/service"
	"classwork_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// QuestionController 题库维护：新建、查看、更正标准答案、上传题图
type QuestionController struct {
	Questions *service.QuestionService
	Uploads   *service.UploadService
}

func NewQuestionController(questions *service.QuestionService, uploads *service.UploadService) *QuestionController {
	return &QuestionController{Questions: questions, Uploads: uploads}
}

func (c *QuestionController) Create(ctx *gin.Context) {
	var req service.CreateQuestionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.Questions.Create(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

func (c *QuestionController) Get(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	q, err := c.Questions.Get(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// UpdateKey 更正标准答案，之后的“完成”按新答案重判
func (c *QuestionController) UpdateKey(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	var req service.KeyReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.Questions.UpdateKey(ctx.Request.Context(), id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// UploadImage 上传题图，返回可写入 imageUrl 的地址
func (c *QuestionController) UploadImage(ctx *gin.Context) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	ref, err := c.Uploads.Save(ctx.Request.Context(), service.UploadImage, fh)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, ref)
}
