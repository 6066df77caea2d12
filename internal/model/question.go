package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type QuestionFormat string

const (
	FormatTest  QuestionFormat = "test"   // 单选，A..E
	FormatOpen  QuestionFormat = "open"   // 数值/文本填空
	FormatMulti QuestionFormat = "multi3" // 三段多选
)

func (f QuestionFormat) Valid() bool {
	switch f {
	case FormatTest, FormatOpen, FormatMulti:
		return true
	}
	return false
}

type QuestionCategory string

const (
	CategoryMath     QuestionCategory = "math"
	CategoryGeometry QuestionCategory = "geometry"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var Letters = []string{"A", "B", "C", "D", "E"}

// NormalizeLetter 大写并校验是否为 A..E
func NormalizeLetter(s string) (string, bool) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for _, l := range Letters {
		if u == l {
			return u, true
		}
	}
	return "", false
}

// Multi3 三段多选的答案（或标准答案），每段是一个字母集合
type Multi3 struct {
	S1 []string `json:"s1"`
	S2 []string `json:"s2"`
	S3 []string `json:"s3"`
}

func normalizeSegment(seg []string) []string {
	seen := make(map[string]bool, len(seg))
	out := make([]string, 0, len(seg))
	for _, raw := range seg {
		l, ok := NormalizeLetter(raw)
		if !ok || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Normalized 返回每段去重、排序、过滤非法字母后的副本
func (m Multi3) Normalized() Multi3 {
	return Multi3{
		S1: normalizeSegment(m.S1),
		S2: normalizeSegment(m.S2),
		S3: normalizeSegment(m.S3),
	}
}

func (m Multi3) Segments() [3][]string {
	return [3][]string{m.S1, m.S2, m.S3}
}

// IsEmpty 规范化后三段都为空
func (m Multi3) IsEmpty() bool {
	n := m.Normalized()
	return len(n.S1)+len(n.S2)+len(n.S3) == 0
}

func (m Multi3) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Multi3) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*m = Multi3{}
		return nil
	default:
		return fmt.Errorf("unsupported Multi3 source %T", value)
	}
	return json.Unmarshal(data, m)
}

func (Multi3) GormDataType() string {
	return "json"
}

// Question 题库中的一道题。判分时只读
type Question struct {
	BaseModel
	Format        QuestionFormat   `gorm:"size:16;not null;index" json:"questionFormat"`
	Category      QuestionCategory `gorm:"size:16;default:'math';index" json:"category"`
	Difficulty    Difficulty       `gorm:"size:16;default:'easy';index" json:"difficulty"`
	ImageURL      string           `gorm:"size:512" json:"imageUrl"`
	Points        float64          `gorm:"default:1" json:"points"`
	CorrectAnswer *string          `gorm:"size:1" json:"correctAnswer,omitempty"`
	OpenAnswer    *string          `gorm:"size:64" json:"numericAnswer,omitempty"`
	CorrectMulti  *Multi3          `json:"correctMulti,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// HasKey 题目是否带有与其格式对应的标准答案
func (q *Question) HasKey() bool {
	switch q.Format {
	case FormatTest:
		if q.CorrectAnswer == nil {
			return false
		}
		_, ok := NormalizeLetter(*q.CorrectAnswer)
		return ok
	case FormatOpen:
		return q.OpenAnswer != nil && strings.TrimSpace(*q.OpenAnswer) != ""
	case FormatMulti:
		return q.CorrectMulti != nil && !q.CorrectMulti.IsEmpty()
	}
	return false
}

// Validate 校验并规范化标准答案：只能填写与格式对应的一种答案形式
func (q *Question) Validate() error {
	if !q.Format.Valid() {
		return fmt.Errorf("unknown question format %q", q.Format)
	}
	if q.Points <= 0 {
		q.Points = 1
	}

	shapes := 0
	if q.CorrectAnswer != nil && strings.TrimSpace(*q.CorrectAnswer) != "" {
		shapes++
	}
	if q.OpenAnswer != nil && strings.TrimSpace(*q.OpenAnswer) != "" {
		shapes++
	}
	if q.CorrectMulti != nil && !q.CorrectMulti.IsEmpty() {
		shapes++
	}
	if shapes > 1 {
		return errors.New("only one answer key shape may be set")
	}

	switch q.Format {
	case FormatTest:
		if q.OpenAnswer != nil || (q.CorrectMulti != nil && !q.CorrectMulti.IsEmpty()) {
			return errors.New("test question accepts only a letter key")
		}
		if q.CorrectAnswer != nil {
			l, ok := NormalizeLetter(*q.CorrectAnswer)
			if !ok {
				return fmt.Errorf("invalid key letter %q", *q.CorrectAnswer)
			}
			q.CorrectAnswer = &l
		}
	case FormatOpen:
		if q.CorrectAnswer != nil || (q.CorrectMulti != nil && !q.CorrectMulti.IsEmpty()) {
			return errors.New("open question accepts only a numeric/text key")
		}
		if q.OpenAnswer != nil {
			t := strings.TrimSpace(*q.OpenAnswer)
			q.OpenAnswer = &t
		}
	case FormatMulti:
		if q.CorrectAnswer != nil || q.OpenAnswer != nil {
			return errors.New("multi3 question accepts only a segmented key")
		}
		if q.CorrectMulti != nil {
			n := q.CorrectMulti.Normalized()
			seen := map[string]int{}
			for i, seg := range n.Segments() {
				for _, l := range seg {
					if prev, dup := seen[l]; dup {
						return fmt.Errorf("letter %s used in segments %d and %d", l, prev+1, i+1)
					}
					seen[l] = i
				}
			}
			q.CorrectMulti = &n
		}
	}
	return nil
}
