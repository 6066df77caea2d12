package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinishLog_AppendOnly(t *testing.T) {
	var log FinishLog
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	log.Append(FinishSnapshot{At: t0, SnapshotPercent: 40})
	log.Append(FinishSnapshot{At: t0.Add(time.Hour), SnapshotPercent: 90})

	all := log.All()
	all[0].SnapshotPercent = 0
	first, ok := log.First()
	require.True(t, ok)
	assert.Equal(t, 40.0, first.SnapshotPercent, "All must return a copy")

	// 值拷贝后分别追加，互不影响
	other := log
	other.Append(FinishSnapshot{At: t0.Add(2 * time.Hour), SnapshotPercent: 10})
	log.Append(FinishSnapshot{At: t0.Add(3 * time.Hour), SnapshotPercent: 100})
	last, _ := other.Last()
	assert.Equal(t, 10.0, last.SnapshotPercent)
	last, _ = log.Last()
	assert.Equal(t, 100.0, last.SnapshotPercent)
	assert.Equal(t, 3, log.Len())
}

func TestFinishLog_RoundTrip(t *testing.T) {
	var log FinishLog
	v, err := log.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	log.Append(FinishSnapshot{At: time.Unix(0, 0).UTC(), SnapshotPercent: 67})
	v, err = log.Value()
	require.NoError(t, err)

	var scanned FinishLog
	require.NoError(t, scanned.Scan([]byte(v.(string))))
	assert.Equal(t, log.All(), scanned.All())

	b, err := json.Marshal(struct {
		Finishes FinishLog `json:"finishes"`
	}{log})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"snapshotPercent":67`)
}

func TestQuestionValidate(t *testing.T) {
	lower := "b"
	q := Question{Format: FormatTest, CorrectAnswer: &lower}
	require.NoError(t, q.Validate())
	assert.Equal(t, "B", *q.CorrectAnswer)
	assert.Equal(t, 1.0, q.Points)

	bad := "G"
	q = Question{Format: FormatTest, CorrectAnswer: &bad}
	assert.Error(t, q.Validate())

	text := "3"
	q = Question{Format: FormatTest, CorrectAnswer: &lower, OpenAnswer: &text}
	assert.Error(t, q.Validate())

	q = Question{Format: FormatMulti, CorrectMulti: &Multi3{S1: []string{"A", "B"}, S2: []string{"b"}}}
	assert.Error(t, q.Validate(), "letter repeated across segments")

	q = Question{Format: FormatMulti, CorrectMulti: &Multi3{S1: []string{"b", "a", "a"}, S3: []string{"e"}}}
	require.NoError(t, q.Validate())
	assert.Equal(t, []string{"A", "B"}, q.CorrectMulti.S1)
	assert.True(t, q.HasKey())

	q = Question{Format: "essay"}
	assert.Error(t, q.Validate())
}

func TestAnswerShapes(t *testing.T) {
	assert.True(t, (*Answer)(nil).IsEmpty())
	assert.True(t, NewOptionAnswer(" ").IsEmpty())
	assert.False(t, NewOptionAnswer("a").IsEmpty())

	assert.True(t, NewOpenAnswer("  ", nil).IsEmpty())
	nan := math.NaN()
	assert.True(t, NewOpenAnswer("", &nan).IsEmpty())
	zero := 0.0
	assert.False(t, NewOpenAnswer("", &zero).IsEmpty())

	open := NewOpenAnswer("12,5", nil)
	require.NotNil(t, open.Numeric)
	assert.Equal(t, 12.5, *open.Numeric)
	assert.Equal(t, "12,5", open.OpenText())

	assert.True(t, NewMultiAnswer(Multi3{S1: []string{"x"}}).IsEmpty())
	assert.False(t, NewMultiAnswer(Multi3{S3: []string{"e"}}).IsEmpty())

	mixed := &Answer{Kind: AnswerMulti, Option: "A", Text: "1", Multi: &Multi3{S1: []string{"A"}}}
	mixed.Normalize()
	assert.Empty(t, mixed.Option)
	assert.Empty(t, mixed.Text)
	assert.NotNil(t, mixed.Multi)
}

func TestAssignmentWindow(t *testing.T) {
	opens := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	a := Assignment{VisibleFrom: opens, DueAt: opens.Add(18 * time.Hour)}

	assert.Equal(t, PhaseDraft, a.Window(opens).Phase)

	a.IsPublished = true
	assert.Equal(t, PhaseScheduled, a.Window(opens.Add(-time.Minute)).Phase)
	assert.True(t, a.Window(opens).AcceptsAnswers())
	assert.Equal(t, PhaseClosed, a.Window(opens.Add(19*time.Hour)).Phase)
}

func TestExamWindow(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e := Exam{StartsAt: start, DurationSec: 3600, IsPublished: true}

	assert.Equal(t, start.Add(time.Hour), e.EndsAt())
	assert.Equal(t, 1800, e.RemainingSeconds(start.Add(30*time.Minute)))
	assert.Equal(t, 0, e.RemainingSeconds(start.Add(-time.Minute)))
	assert.Equal(t, 0, e.RemainingSeconds(start.Add(2*time.Hour)))
	assert.Equal(t, PhaseOpen, e.Window(start.Add(time.Minute)).Phase)

	assert.Equal(t, 1.0, e.Part(2).EffectiveScale())
	e.Parts = append(e.Parts, ExamPart{Index: 1, Scale: 1.2})
	assert.Equal(t, 1.2, e.Part(1).EffectiveScale())
}

func TestStudentAssignmentLatestPercent(t *testing.T) {
	sa := StudentAssignment{}
	assert.Equal(t, 0.0, sa.LatestPercent())

	sa.TotalPoints, sa.PointsEarned = 4, 3
	assert.Equal(t, 75.0, sa.LatestPercent())

	p := 50.0
	sa.ScorePercent = &p
	assert.Equal(t, 50.0, sa.LatestPercent())

	sa.Finishes.Append(FinishSnapshot{SnapshotPercent: 20})
	sa.Finishes.Append(FinishSnapshot{SnapshotPercent: 80})
	assert.Equal(t, 80.0, sa.LatestPercent())
	assert.Equal(t, 1, sa.RedoCount())
}

func TestUserFullName(t *testing.T) {
	u := User{Username: "aliyev", FirstName: "Ali", LastName: "Aliyev"}
	assert.Equal(t, "Aliyev Ali", u.FullName())
	u.FirstName, u.LastName = "", ""
	assert.Equal(t, "aliyev", u.FullName())
}
