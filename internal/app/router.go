package app

import (
	"classwork_backend/internal/config"
	"classwork_backend/internal/middleware"
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"classwork_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware())
	{
		// 学生接口
		a.registerStudentRoutes(api, c)

		// 教师接口，管理员同样可用
		a.registerTeacherRoutes(api, c)
	}
}

func (a *App) registerStudentRoutes(api *gin.RouterGroup, c *controllers) {
	student := api.Group("/student")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.GET("/assignments", c.studentAssignment.Box)
		student.GET("/assignments/:id", c.studentAssignment.View)
		student.POST("/assignments/:id/answer", c.studentAssignment.Answer)
		student.POST("/assignments/:id/finish", c.studentAssignment.FinishCopy)

		student.GET("/exams/active", c.studentExam.Active)
		student.GET("/exams/history", c.studentExam.History)
		student.GET("/exams/papers/:id", c.studentExam.View)
		student.POST("/exams/papers/:id/start", c.studentExam.Start)
		student.POST("/exams/papers/:id/answer", c.studentExam.Answer)
		student.POST("/exams/papers/:id/finish", c.studentExam.Finish)
	}
}

func (a *App) registerTeacherRoutes(api *gin.RouterGroup, c *controllers) {
	teacher := api.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		assignments := teacher.Group("/assignments")
		{
			assignments.POST("", c.assignment.Create)
			assignments.GET("", c.assignment.List)
			assignments.GET("/:id", c.assignment.Detail)
			assignments.PUT("/:id", c.assignment.Update)
			assignments.DELETE("/:id", c.assignment.Delete)
			assignments.POST("/:id/publish", c.assignment.Publish)
			assignments.POST("/:id/unpublish", c.assignment.Unpublish)
			assignments.GET("/:id/key-check", c.assignment.KeyCheck)
			assignments.GET("/:id/stats", c.assignment.Stats)
			assignments.POST("/:id/stats/export", c.assignment.ExportStats)
		}

		exams := teacher.Group("/exams")
		{
			exams.POST("", c.exam.Create)
			exams.GET("", c.exam.List)
			exams.GET("/:id", c.exam.Detail)
			exams.DELETE("/:id", c.exam.Delete)
			exams.POST("/:id/publish", c.exam.Publish)
			exams.POST("/:id/unpublish", c.exam.Unpublish)
			exams.POST("/:id/solutions", c.exam.UploadSolutions)
			exams.GET("/:id/results", c.exam.Results)
			exams.POST("/:id/results/export", c.exam.ExportResults)
		}

		questions := teacher.Group("/questions")
		{
			questions.POST("", c.question.Create)
			questions.POST("/images", c.question.UploadImage)
			questions.GET("/:id", c.question.Get)
			questions.PUT("/:id/key", c.question.UpdateKey)
		}
	}
}
