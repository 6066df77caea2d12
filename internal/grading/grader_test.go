package grading

import (
	"strings"
	"testing"

	"classwork_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func singleQ(key string) *model.Question {
	return &model.Question{Format: model.FormatTest, CorrectAnswer: strPtr(key)}
}

func TestGradeSingleChoice_CaseInsensitive(t *testing.T) {
	q := singleQ("C")
	for _, l := range model.Letters {
		for _, given := range []string{l, strings.ToLower(l), " " + l + " "} {
			v := Grade(q, model.NewOptionAnswer(given))
			if l == "C" {
				assert.Equal(t, Correct, v, "given %q", given)
			} else {
				assert.Equal(t, Incorrect, v, "given %q", given)
			}
		}
	}
}

func TestGradeSingleChoice_MissingOrInvalid(t *testing.T) {
	q := singleQ("B")
	assert.Equal(t, Incorrect, Grade(q, nil))
	assert.Equal(t, Incorrect, Grade(q, model.NewOptionAnswer("")))
	assert.Equal(t, Incorrect, Grade(q, model.NewOptionAnswer("F")))
	assert.Equal(t, Incorrect, Grade(q, model.NewOpenAnswer("B", nil)))
}

func TestGradeOpen_NumericForms(t *testing.T) {
	q := &model.Question{Format: model.FormatOpen, OpenAnswer: strPtr("12.5")}

	assert.Equal(t, Correct, Grade(q, model.NewOpenAnswer("12.5", nil)))
	assert.Equal(t, Correct, Grade(q, model.NewOpenAnswer("12,5", nil)))
	assert.Equal(t, Correct, Grade(q, model.NewOpenAnswer("", floatPtr(12.5))))
	assert.Equal(t, Correct, Grade(q, model.NewOpenAnswer(" 12.50 ", nil)))
	assert.Equal(t, Incorrect, Grade(q, model.NewOpenAnswer("13", nil)))
	assert.Equal(t, Incorrect, Grade(q, model.NewOpenAnswer("", nil)))
	assert.Equal(t, Incorrect, Grade(q, nil))
}

func TestGradeOpen_TextKey(t *testing.T) {
	q := &model.Question{Format: model.FormatOpen, OpenAnswer: strPtr("x+1")}
	assert.Equal(t, Correct, Grade(q, model.NewOpenAnswer("x+1", nil)))
	assert.Equal(t, Incorrect, Grade(q, model.NewOpenAnswer("x+2", nil)))

	// 文本键里带逗号时原样比较也算对
	q = &model.Question{Format: model.FormatOpen, OpenAnswer: strPtr("1,2,3")}
	assert.Equal(t, Correct, Grade(q, model.NewOpenAnswer("1,2,3", nil)))
}

func TestGradeOpen_RejectsNonFinite(t *testing.T) {
	q := &model.Question{Format: model.FormatOpen, OpenAnswer: strPtr("Inf")}
	// 文本完全一致时仍然正确，但不会走数值比较
	assert.Equal(t, Correct, Grade(q, model.NewOpenAnswer("Inf", nil)))
	assert.Equal(t, Incorrect, Grade(q, model.NewOpenAnswer("+Inf", nil)))
}

func TestGradeMulti_OrderIndependent(t *testing.T) {
	q := &model.Question{
		Format:       model.FormatMulti,
		CorrectMulti: &model.Multi3{S1: []string{"A", "B"}, S2: []string{"C"}, S3: []string{"D", "E"}},
	}

	ok := model.NewMultiAnswer(model.Multi3{S1: []string{"B", "A"}, S2: []string{"c"}, S3: []string{"E", "D", "E"}})
	assert.Equal(t, Correct, Grade(q, ok))

	missing := model.NewMultiAnswer(model.Multi3{S1: []string{"A"}, S2: []string{"C"}, S3: []string{"D", "E"}})
	assert.Equal(t, Incorrect, Grade(q, missing))

	shifted := model.NewMultiAnswer(model.Multi3{S1: []string{"C"}, S2: []string{"A", "B"}, S3: []string{"D", "E"}})
	assert.Equal(t, Incorrect, Grade(q, shifted))

	assert.Equal(t, Incorrect, Grade(q, nil))
}

func TestGrade_NoKeyIsUngraded(t *testing.T) {
	questions := []*model.Question{
		{Format: model.FormatTest},
		{Format: model.FormatOpen},
		{Format: model.FormatOpen, OpenAnswer: strPtr("  ")},
		{Format: model.FormatMulti},
		{Format: model.FormatMulti, CorrectMulti: &model.Multi3{}},
	}
	answers := []*model.Answer{
		nil,
		model.NewOptionAnswer("A"),
		model.NewOpenAnswer("1", nil),
		model.NewMultiAnswer(model.Multi3{S1: []string{"A"}}),
	}
	for _, q := range questions {
		for _, a := range answers {
			v := Grade(q, a)
			assert.Equal(t, Ungraded, v)
			assert.Nil(t, v.Bool())
		}
	}
}

func TestVerdictBool(t *testing.T) {
	require.NotNil(t, Correct.Bool())
	assert.True(t, *Correct.Bool())
	require.NotNil(t, Incorrect.Bool())
	assert.False(t, *Incorrect.Bool())
	assert.Nil(t, Ungraded.Bool())

	assert.Equal(t, 2.0, Correct.Earned(2))
	assert.Equal(t, 0.0, Incorrect.Earned(2))
	assert.Equal(t, 0.0, Ungraded.Earned(2))
}
