package controller

import (
	"bytes"
	"classwork_backend/internal/config"
	"classwork_backend/internal/middleware"
	"classwork_backend/internal/model"
	"classwork_backend/internal/repository"
	"classwork_backend/internal/service"
	"classwork_backend/internal/util"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "controller-test-secret-0123456789abcdef"

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	teacher *model.User
	student *model.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, util.RegisterValidators())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Question{},
		&model.Assignment{},
		&model.StudentAssignment{},
		&model.Exam{},
		&model.ExamPaper{},
	))

	users := repository.NewUserRepository(db)
	questions := repository.NewQuestionRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	copies := repository.NewStudentAssignmentRepository(db)
	exams := repository.NewExamRepository(db)
	papers := repository.NewExamPaperRepository(db)
	cache := repository.NoopStatsCache{}

	settings := service.NewGradingSettings(config.GradingConfig{
		Timezone:      "Asia/Baku",
		VisibleHour:   6,
		StatsCacheTTL: time.Minute,
		UpdateRetries: 3,
	})
	distribution := service.NewDistributionService(users, copies, papers)
	assignmentSvc := service.NewAssignmentService(assignments, copies, questions, distribution, cache, settings)
	answerSvc := service.NewAnswerService(assignments, copies, exams, papers, questions, settings)
	finishSvc := service.NewFinishService(assignments, copies, questions, cache, settings)
	analyticsSvc := service.NewAnalyticsService(assignments, copies, exams, papers, users, cache, settings)

	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	router := gin.New()
	router.Use(middleware.ConfigMiddleware(func() *config.Config { return cfg }))

	ac := NewAssignmentController(assignmentSvc, analyticsSvc, nil)
	sc := NewStudentAssignmentController(assignmentSvc, answerSvc, finishSvc)
	qc := NewQuestionController(service.NewQuestionService(questions), nil)

	api := router.Group("/api", middleware.AuthMiddleware())
	teacher := api.Group("/teacher", middleware.RoleMiddleware(model.Teacher))
	teacher.POST("/questions", qc.Create)
	teacher.POST("/assignments", ac.Create)
	teacher.GET("/assignments/:id/stats", ac.Stats)
	student := api.Group("/student", middleware.RoleMiddleware(model.Student))
	student.GET("/assignments", sc.Box)
	student.POST("/assignments/:id/answer", sc.Answer)
	student.POST("/assignments/:id/finish", sc.FinishCopy)

	ts := &testServer{
		router:  router,
		db:      db,
		teacher: &model.User{Username: "t1", Role: model.Teacher},
		student: &model.User{Username: "s1", FirstName: "Aysel", Role: model.Student, Group: "9A"},
	}
	require.NoError(t, db.Create(ts.teacher).Error)
	require.NoError(t, db.Create(ts.student).Error)
	return ts
}

func (ts *testServer) do(t *testing.T, user *model.User, method, path string, body interface{}) (int, util.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := util.GenerateJWT(user, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var resp util.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

// dataAs 把响应 data 重新解码成目标结构
func dataAs(t *testing.T, resp util.Response, dst interface{}) {
	t.Helper()
	b, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, dst))
}

func TestAssignmentFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	code, resp := ts.do(t, ts.teacher, http.MethodPost, "/api/teacher/questions", gin.H{
		"questionFormat": "test",
		"correctAnswer":  "b",
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var q model.Question
	dataAs(t, resp, &q)
	require.NotNil(t, q.CorrectAnswer)
	assert.Equal(t, "B", *q.CorrectAnswer)

	code, resp = ts.do(t, ts.teacher, http.MethodPost, "/api/teacher/assignments", gin.H{
		"title":       "Day 1",
		"groupNames":  []string{"9A"},
		"questionIds": []uint{q.ID},
		"publishNow":  true,
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var created service.AssignmentWithFanOut
	dataAs(t, resp, &created)
	assert.Equal(t, 1, created.FanOut.InsertedCount)

	code, resp = ts.do(t, ts.student, http.MethodGet, "/api/student/assignments", nil)
	require.Equal(t, http.StatusOK, code)
	var box []service.StudentBoxEntry
	dataAs(t, resp, &box)
	require.Len(t, box, 1)
	copyPath := fmt.Sprintf("/api/student/assignments/%d", box[0].CopyID)

	code, resp = ts.do(t, ts.student, http.MethodPost, copyPath+"/answer", gin.H{
		"questionId":   q.ID,
		"answerOption": "B",
	})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = ts.do(t, ts.student, http.MethodPost, copyPath+"/finish", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var finished service.FinishResult
	dataAs(t, resp, &finished)
	assert.Equal(t, 100.0, finished.ScorePercent)
	assert.Equal(t, 0, finished.RedoCount)

	code, resp = ts.do(t, ts.teacher, http.MethodGet, fmt.Sprintf("/api/teacher/assignments/%d/stats", created.Assignment.ID), nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var stats model.AssignmentStats
	dataAs(t, resp, &stats)
	assert.Equal(t, 1, stats.Totals.Students)
	assert.Equal(t, 100.0, stats.Totals.AvgScorePercent)
}

func TestAnswerRejectsBadLetter(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, ts.student, http.MethodPost, "/api/student/assignments/1/answer", gin.H{
		"questionId":   1,
		"answerOption": "Z",
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOtherStudentsCopyIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, ts.student, http.MethodPost, "/api/student/assignments/999/finish", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuthAndRoles(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, nil, http.MethodGet, "/api/student/assignments", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(t, ts.student, http.MethodPost, "/api/teacher/assignments", gin.H{"title": "x"})
	assert.Equal(t, http.StatusForbidden, code)

	admin := &model.User{Username: "root", Role: model.Admin}
	require.NoError(t, ts.db.Create(admin).Error)
	code, _ = ts.do(t, admin, http.MethodPost, "/api/teacher/assignments", gin.H{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
}
