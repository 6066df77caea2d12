package grading

import (
	"math"

	"classwork_backend/internal/model"
)

// 第 1 部分每道错题扣的分
const negativePenalty = 0.25

// SnapshotPercent round(100 * correct / total)，没有题目时为 0
func SnapshotPercent(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(100 * float64(correct) / float64(total))
}

// ExamScore 考试三个部分的得分与总分
type ExamScore struct {
	Part1 float64 `json:"part1"`
	Part2 float64 `json:"part2"`
	Part3 float64 `json:"part3"`
	Total float64 `json:"total"`
}

// PartTally 一个部分的对错数。未判分的题既不算对也不算错
type PartTally struct {
	Correct int
	Wrong   int
}

// TallyParts 按 partIndex 统计已作答题目的对错
func TallyParts(items []model.WorkItem) map[int]PartTally {
	out := make(map[int]PartTally, 3)
	for _, it := range items {
		t := out[it.PartIndex]
		switch {
		case it.IsCorrect != nil && *it.IsCorrect:
			t.Correct++
		case it.IsCorrect != nil && it.Status == model.ItemDone:
			t.Wrong++
		}
		out[it.PartIndex] = t
	}
	return out
}

// ScoreExam 第 1 部分可选负分且先截到 0 再乘系数；第 2、3 部分只按答对数乘系数
func ScoreExam(exam *model.Exam, items []model.WorkItem) ExamScore {
	tally := TallyParts(items)

	p1 := exam.Part(1)
	raw1 := float64(tally[1].Correct)
	if p1.NegativeMarking {
		raw1 -= negativePenalty * float64(tally[1].Wrong)
	}
	if raw1 < 0 {
		raw1 = 0
	}

	score := ExamScore{
		Part1: raw1 * p1.EffectiveScale(),
		Part2: float64(tally[2].Correct) * exam.Part(2).EffectiveScale(),
		Part3: float64(tally[3].Correct) * exam.Part(3).EffectiveScale(),
	}
	// 保存原始乘积，不做舍入
	score.Total = score.Part1 + score.Part2 + score.Part3
	return score
}
