package util

import (
	"math"
	"strconv"
)

// ParseID 解析路径中的数字 ID，非法或为 0 时返回 ErrInvalidInput
func ParseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, InvalidInputf("malformed id %q", s)
	}
	return uint(id), nil
}

// Round2 保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
