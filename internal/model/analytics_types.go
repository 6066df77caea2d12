package model

// StatsTotals 作业整体汇总
type StatsTotals struct {
	Students        int     `json:"students"`
	Copies          int     `json:"copies"`
	PointsEarned    float64 `json:"pointsEarned"`
	PointsPossible  float64 `json:"pointsPossible"`
	AvgPoints       float64 `json:"avgPoints"`
	AvgScorePercent float64 `json:"avgScorePercent"`
}

// GroupAverage 班级平均成绩
type GroupAverage struct {
	Group      string  `json:"group"`
	Students   int     `json:"students"`
	AvgPercent float64 `json:"avgPercent"`
}

// QuestionStats 单题统计。Ungraded 计入 Done 但不计入 Correct 或 Wrong
type QuestionStats struct {
	QuestionID    uint          `json:"questionId"`
	Done          int           `json:"done"`
	Correct       int           `json:"correct"`
	Wrong         int           `json:"wrong"`
	Blank         int           `json:"blank"`
	Ungraded      int           `json:"ungraded"`
	WrongStudents []RosterEntry `json:"wrongStudents"`
	BlankStudents []RosterEntry `json:"blankStudents"`
}

// StudentPerf 学生表现。没有副本时首末成绩为 nil，有副本但未完成过时按当前得分比例
type StudentPerf struct {
	StudentID    uint     `json:"studentId"`
	FullName     string   `json:"fullName"`
	Group        string   `json:"group"`
	HasCopy      bool     `json:"hasCopy"`
	RedoCount    int      `json:"redoCount"`
	FirstPercent *float64 `json:"firstPercent"`
	LastPercent  *float64 `json:"lastPercent"`
}

// AssignmentStats 作业统计结果
type AssignmentStats struct {
	AssignmentID  uint            `json:"assignmentId"`
	Title         string          `json:"title"`
	Totals        StatsTotals     `json:"totals"`
	GroupAverages []GroupAverage  `json:"groupAverages"`
	PerQuestion   []QuestionStats `json:"perQuestion"`
	StudentsPerf  []StudentPerf   `json:"studentsPerf"`
}

// GroupScore 班级考试平均总分
type GroupScore struct {
	Group    string  `json:"group"`
	Students int     `json:"students"`
	AvgScore float64 `json:"avgScore"`
}

// ExamStudentResult 学生的考试成绩
type ExamStudentResult struct {
	StudentID  uint       `json:"studentId"`
	FullName   string     `json:"fullName"`
	Group      string     `json:"group"`
	Status     CopyStatus `json:"status"`
	ScorePart1 float64    `json:"scorePart1"`
	ScorePart2 float64    `json:"scorePart2"`
	ScorePart3 float64    `json:"scorePart3"`
	TotalScore float64    `json:"totalScore"`
}

// ExamResults 考试成绩汇总
type ExamResults struct {
	ExamID        uint                `json:"examId"`
	Title         string              `json:"title"`
	Finished      int                 `json:"finished"`
	GroupAverages []GroupScore        `json:"groupAverages"`
	Students      []ExamStudentResult `json:"students"`
}
