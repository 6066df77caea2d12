package util

import (
	"classwork_backend/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 注册自定义校验规则：letter 要求 A-E 中的一个字母（不区分大小写）
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("letter", func(fl validator.FieldLevel) bool {
		_, ok := model.NormalizeLetter(fl.Field().String())
		return ok
	})
}
