package controller

import (
	"classwork_backend/internal/service"
	"classwork_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// StudentExamController 学生端考试
type StudentExamController struct {
	Exams   *service.ExamService
	Answers *service.AnswerService
	Scoring *service.ExamScoringService
}

func NewStudentExamController(exams *service.ExamService, answers *service.AnswerService, scoring *service.ExamScoringService) *StudentExamController {
	return &StudentExamController{Exams: exams, Answers: answers, Scoring: scoring}
}

// Active 当前正在进行的考试，没有时 data 为 null
func (c *StudentExamController) Active(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	active, err := c.Exams.Active(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, active)
}

func (c *StudentExamController) View(ctx *gin.Context) {
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
	view, err := c.Exams.PaperView(ctx.Request.Context(), id, user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

func (c *StudentExamController) Start(ctx *gin.Context) {
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
	paper, err := c.Exams.Start(ctx.Request.Context(), id, user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"paperId": paper.ID, "status": paper.Status, "startedAt": paper.StartedAt})
}

func (c *StudentExamController) Answer(ctx *gin.Context) {
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
	res, err := c.Answers.SubmitExamAnswer(ctx.Request.Context(), id, user.UserID, payload)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Finish 交卷，返回三部分得分与总分
func (c *StudentExamController) Finish(ctx *gin.Context) {
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
	score, err := c.Scoring.FinishExam(ctx.Request.Context(), id, user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, score)
}

func (c *StudentExamController) History(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	history, err := c.Exams.History(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, history)
}
