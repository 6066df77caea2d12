package service

import (
	"classwork_backend/internal/grading"
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"classwork_backend/pkg/logger"
	"classwork_backend/pkg/monitoring"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// retryOnStale 副本被并发修改时重新读取并重做，最多 retries 次
func retryOnStale(ctx context.Context, retries int, op string, fn func() error) error {
	if retries < 0 {
		retries = 0
	}
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = fn()
		if !errors.Is(err, util.ErrStaleDocument) {
			return err
		}
		monitoring.StaleRetries.WithLabelValues(op).Inc()
		logger.Log.Warn("Working copy changed concurrently, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

// checkGate 未发布时拒绝；开启窗口校验时还要求处于时间窗口内
func checkGate(w model.WindowState, enforceWindow bool) error {
	if !w.Published {
		return util.ErrNotPublished
	}
	if enforceWindow && w.Phase != model.PhaseOpen {
		return util.ErrWindowClosed
	}
	return nil
}

// questionMap 按 ID 取题，缺失的题目不报错（按未判分处理）
func questionMap(ctx context.Context, bank QuestionBank, ids []uint) (map[uint]*model.Question, error) {
	qs, err := bank.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	out := make(map[uint]*model.Question, len(qs))
	for i := range qs {
		out[qs[i].ID] = &qs[i]
	}
	return out, nil
}

// applyAnswer 写入答案并立即判分
func applyAnswer(item *model.WorkItem, q *model.Question, ans *model.Answer, now time.Time) grading.Verdict {
	a := *ans
	a.Normalize()
	item.Answer = &a
	item.Status = model.ItemDone
	item.Attempts++
	t := now
	item.AnsweredAt = &t
	return gradeItem(item, q)
}

func gradeItem(item *model.WorkItem, q *model.Question) grading.Verdict {
	v := grading.Grade(q, item.Answer)
	item.IsCorrect = v.Bool()
	item.PointsEarned = v.Earned(item.Points)
	return v
}

// regradeAll 按当前标准答案重判全部题目，返回答对数
func regradeAll(items []model.WorkItem, questions map[uint]*model.Question) int {
	correct := 0
	for i := range items {
		it := &items[i]
		if !it.Answer.IsEmpty() {
			it.Status = model.ItemDone
		}
		if gradeItem(it, questions[it.QuestionID]) == grading.Correct {
			correct++
		}
	}
	return correct
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func statsKey(kind string, id uint) string {
	return fmt.Sprintf("%s:%d", kind, id)
}
