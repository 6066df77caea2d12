package controller

import (
	"classwork_backend/internal/service"
	"classwork_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// StudentAssignmentController 学生端：作业箱、作答、完成
type StudentAssignmentController struct {
	Assignments *service.AssignmentService
	Answers     *service.AnswerService
	Finish      *service.FinishService
}

func NewStudentAssignmentController(assignments *service.AssignmentService, answers *service.AnswerService, finish *service.FinishService) *StudentAssignmentController {
	return &StudentAssignmentController{Assignments: assignments, Answers: answers, Finish: finish}
}

// Box 我的作业
func (c *StudentAssignmentController) Box(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	box, err := c.Assignments.StudentBox(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, box)
}

func (c *StudentAssignmentController) View(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	view, err := c.Assignments.CopyView(ctx.Request.Context(), id, user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// Answer 提交一道题的答案，立即判分
func (c *StudentAssignmentController) Answer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	var payload service.AnswerPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	res, err := c.Answers.SubmitAnswer(ctx.Request.Context(), id, user.UserID, payload)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// FinishCopy 完成作业（可重复，每次追加一条成绩记录）
func (c *StudentAssignmentController) FinishCopy(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	res, err := c.Finish.Finish(ctx.Request.Context(), id, user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}
