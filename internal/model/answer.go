package model

import (
	"math"
	"strconv"
	"strings"
)

// AnswerKind 标记 Answer 中哪一种形态有效
type AnswerKind string

const (
	AnswerOption AnswerKind = "option"
	AnswerOpen   AnswerKind = "open"
	AnswerMulti  AnswerKind = "multi3"
)

// Answer 学生提交的答案。三种形态互斥，只有 Kind 对应的字段有值
type Answer struct {
	Kind    AnswerKind `json:"kind"`
	Option  string     `json:"option,omitempty"`
	Text    string     `json:"text,omitempty"`
	Numeric *float64   `json:"numeric,omitempty"`
	Multi   *Multi3    `json:"multi,omitempty"`
}

func NewOptionAnswer(letter string) *Answer {
	return &Answer{Kind: AnswerOption, Option: strings.ToUpper(strings.TrimSpace(letter))}
}

// NewOpenAnswer 文本与数值可同时给出；只给文本时尝试解析出数值
func NewOpenAnswer(text string, numeric *float64) *Answer {
	a := &Answer{Kind: AnswerOpen, Text: strings.TrimSpace(text)}
	if numeric != nil && isFinite(*numeric) {
		v := *numeric
		a.Numeric = &v
	} else if v, ok := ParseDecimal(a.Text); ok {
		a.Numeric = &v
	}
	return a
}

func NewMultiAnswer(m Multi3) *Answer {
	n := m.Normalized()
	return &Answer{Kind: AnswerMulti, Multi: &n}
}

// Normalize 清掉与 Kind 不符的字段
func (a *Answer) Normalize() {
	switch a.Kind {
	case AnswerOption:
		a.Text, a.Numeric, a.Multi = "", nil, nil
	case AnswerOpen:
		a.Option, a.Multi = "", nil
	case AnswerMulti:
		a.Option, a.Text, a.Numeric = "", "", nil
	}
}

// IsEmpty 按答案形态判断是否为空：未选字母、空白文本且无有限数值、三段全空
func (a *Answer) IsEmpty() bool {
	if a == nil {
		return true
	}
	switch a.Kind {
	case AnswerOption:
		return strings.TrimSpace(a.Option) == ""
	case AnswerOpen:
		if strings.TrimSpace(a.Text) != "" {
			return false
		}
		return a.Numeric == nil || !isFinite(*a.Numeric)
	case AnswerMulti:
		return a.Multi == nil || a.Multi.IsEmpty()
	}
	return true
}

// OpenText 开放题答案的文本形式，文本优先，其次数值
func (a *Answer) OpenText() string {
	if a == nil {
		return ""
	}
	if t := strings.TrimSpace(a.Text); t != "" {
		return t
	}
	if a.Numeric != nil && isFinite(*a.Numeric) {
		return strconv.FormatFloat(*a.Numeric, 'f', -1, 64)
	}
	return ""
}

// ParseDecimal 解析有限小数，接受逗号作小数点
func ParseDecimal(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(v) {
		return 0, false
	}
	return v, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
