package grading

import (
	"math"
	"strings"

	"classwork_backend/internal/model"
)

// Verdict 判分结果。Ungraded 表示题目没有标准答案，不能当作答错
type Verdict int8

const (
	Ungraded Verdict = iota
	Correct
	Incorrect
)

const numericEpsilon = 1e-9

func (v Verdict) String() string {
	switch v {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	}
	return "ungraded"
}

// Bool 转成 true/false/nil，写入 WorkItem.IsCorrect
func (v Verdict) Bool() *bool {
	switch v {
	case Correct:
		b := true
		return &b
	case Incorrect:
		b := false
		return &b
	}
	return nil
}

// Earned 答对得满分，否则 0
func (v Verdict) Earned(points float64) float64 {
	if v == Correct {
		return points
	}
	return 0
}

type strategy func(q *model.Question, a *model.Answer) Verdict

var strategies = map[model.QuestionFormat]strategy{
	model.FormatTest:  gradeSingle,
	model.FormatOpen:  gradeOpen,
	model.FormatMulti: gradeMulti,
}

// Grade 按题目格式判分。a 可以为 nil（未作答）
func Grade(q *model.Question, a *model.Answer) Verdict {
	if q == nil {
		return Ungraded
	}
	s, ok := strategies[q.Format]
	if !ok {
		return Ungraded
	}
	return s(q, a)
}

func gradeSingle(q *model.Question, a *model.Answer) Verdict {
	if q.CorrectAnswer == nil {
		return Ungraded
	}
	key, ok := model.NormalizeLetter(*q.CorrectAnswer)
	if !ok {
		return Ungraded
	}
	if a == nil || a.Kind != model.AnswerOption {
		return Incorrect
	}
	given, ok := model.NormalizeLetter(a.Option)
	if !ok || given != key {
		return Incorrect
	}
	return Correct
}

// gradeOpen 先比较文本，再按数值比较，两者任一相等即为正确
func gradeOpen(q *model.Question, a *model.Answer) Verdict {
	if q.OpenAnswer == nil {
		return Ungraded
	}
	key := strings.TrimSpace(*q.OpenAnswer)
	if key == "" {
		return Ungraded
	}
	if a == nil || a.Kind != model.AnswerOpen {
		return Incorrect
	}
	given := a.OpenText()
	if given == "" {
		return Incorrect
	}
	if given == key || strings.ReplaceAll(given, ",", ".") == key {
		return Correct
	}

	gv, gok := model.ParseDecimal(given)
	kv, kok := model.ParseDecimal(key)
	if gok && kok && math.Abs(gv-kv) < numericEpsilon {
		return Correct
	}
	return Incorrect
}

// gradeMulti 三段分别按集合比较，顺序和大小写无关
func gradeMulti(q *model.Question, a *model.Answer) Verdict {
	if q.CorrectMulti == nil {
		return Ungraded
	}
	key := q.CorrectMulti.Normalized()
	if key.IsEmpty() {
		return Ungraded
	}
	if a == nil || a.Kind != model.AnswerMulti || a.Multi == nil {
		return Incorrect
	}
	given := a.Multi.Normalized()
	ks, gs := key.Segments(), given.Segments()
	for i := range ks {
		if !sameLetters(ks[i], gs[i]) {
			return Incorrect
		}
	}
	return Correct
}

// sameLetters 两个已规范化（去重、排序）的字母集合是否相等
func sameLetters(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
