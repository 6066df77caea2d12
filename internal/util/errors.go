package util

import (
	"errors"
	"fmt"
)

// 错误类别，控制器用 errors.Is 判断并映射到 HTTP 状态码
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

var (
	ErrCopyNotFound     = NewKindError(ErrNotFound, "working copy not found")
	ErrItemNotFound     = NewKindError(ErrNotFound, "question not found in working copy")
	ErrTemplateNotFound = NewKindError(ErrNotFound, "template not found")
	ErrQuestionNotFound = NewKindError(ErrNotFound, "question not found")
	ErrNotPublished     = NewKindError(ErrForbidden, "template not published")
	ErrWindowClosed     = NewKindError(ErrForbidden, "outside of the answer window")
	ErrStaleDocument    = NewKindError(ErrConflict, "document was modified concurrently")
	ErrItemsLocked      = NewKindError(ErrConflict, "items cannot change after distribution")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NewKindError 构造一个可被 errors.Is(err, kind) 识别的错误
func NewKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func InvalidInputf(format string, args ...interface{}) error {
	return &kindError{kind: ErrInvalidInput, msg: fmt.Sprintf(format, args...)}
}
