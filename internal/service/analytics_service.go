package service

import (
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"classwork_backend/pkg/logger"
	"classwork_backend/pkg/tracing"
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// AnalyticsService 汇总统计。学生名单按当前班级实时读取，
// 因此与分发时的名单可能不同：分发后才转入的学生会以“无副本”出现
type AnalyticsService struct {
	Assignments AssignmentStore
	Copies      StudentAssignmentStore
	Exams       ExamStore
	Papers      ExamPaperStore
	Roster      RosterLookup
	Cache       StatsCache
	Settings    *GradingSettings
}

func NewAnalyticsService(assignments AssignmentStore, copies StudentAssignmentStore, exams ExamStore, papers ExamPaperStore, roster RosterLookup, cache StatsCache, settings *GradingSettings) *AnalyticsService {
	return &AnalyticsService{
		Assignments: assignments,
		Copies:      copies,
		Exams:       exams,
		Papers:      papers,
		Roster:      roster,
		Cache:       cache,
		Settings:    settings,
	}
}

func (s *AnalyticsService) ComputeStats(ctx context.Context, assignmentID uint) (stats *model.AssignmentStats, err error) {
	key := statsKey("assignment", assignmentID)
	var cached model.AssignmentStats
	if hit, cerr := s.Cache.Get(ctx, key, &cached); cerr != nil {
		logger.Log.Warn("Stats cache read failed", zap.String("key", key), zap.Error(cerr))
	} else if hit {
		return &cached, nil
	}

	ctx, span := tracing.StartSpan(ctx, "AnalyticsService.ComputeStats", map[string]uint{"assignment.id": assignmentID})
	defer func() { tracing.End(span, err) }()

	a, err := s.Assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	roster, err := s.Roster.StudentsInGroups(ctx, a.GroupNames)
	if err != nil {
		return nil, fmt.Errorf("stats roster: %w", err)
	}
	copies, err := s.Copies.FindByTemplate(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("stats copies: %w", err)
	}

	stats = AggregateAssignment(a, roster, copies)

	if ttl := s.Settings.Get().StatsCacheTTL; ttl > 0 {
		if err := s.Cache.Set(ctx, key, stats, ttl); err != nil {
			logger.Log.Warn("Stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return stats, nil
}

// AggregateAssignment 纯计算部分：名单 + 副本 -> 统计
func AggregateAssignment(a *model.Assignment, roster []model.RosterEntry, copies []model.StudentAssignment) *model.AssignmentStats {
	members := make(map[uint]model.RosterEntry, len(roster))
	for _, r := range roster {
		members[r.ID] = r
	}

	perQ := make(map[uint]*model.QuestionStats, len(a.Items))
	order := make([]uint, 0, len(a.Items))
	question := func(id uint) *model.QuestionStats {
		qs, ok := perQ[id]
		if !ok {
			qs = &model.QuestionStats{QuestionID: id, WrongStudents: []model.RosterEntry{}, BlankStudents: []model.RosterEntry{}}
			perQ[id] = qs
			order = append(order, id)
		}
		return qs
	}
	for _, it := range a.Items {
		question(it.QuestionID)
	}

	type groupAgg struct {
		sum float64
		cnt int
	}
	groups := map[string]*groupAgg{}
	byStudent := make(map[uint]*model.StudentAssignment, len(copies))

	var totals model.StatsTotals
	var percentSum float64
	for i := range copies {
		sa := &copies[i]
		byStudent[sa.StudentID] = sa
		latest := sa.LatestPercent()
		percentSum += latest
		totals.PointsEarned += sa.PointsEarned
		totals.PointsPossible += sa.TotalPoints

		member, isMember := members[sa.StudentID]
		if isMember {
			g := groups[member.Group]
			if g == nil {
				g = &groupAgg{}
				groups[member.Group] = g
			}
			g.sum += latest
			g.cnt++
		}

		for j := range sa.Items {
			it := &sa.Items[j]
			qs := question(it.QuestionID)
			if it.Status == model.ItemDone {
				qs.Done++
			}
			switch {
			case it.IsBlank():
				qs.Blank++
				if isMember {
					qs.BlankStudents = append(qs.BlankStudents, member)
				}
			case it.IsCorrect == nil:
				qs.Ungraded++
			case *it.IsCorrect:
				qs.Correct++
			default:
				qs.Wrong++
				if isMember {
					qs.WrongStudents = append(qs.WrongStudents, member)
				}
			}
		}
	}

	totals.Students = len(roster)
	totals.Copies = len(copies)
	if len(copies) > 0 {
		totals.AvgPoints = util.Round2(totals.PointsEarned / float64(len(copies)))
		totals.AvgScorePercent = util.Round2(percentSum / float64(len(copies)))
	}

	stats := &model.AssignmentStats{
		AssignmentID:  a.ID,
		Title:         a.Title,
		Totals:        totals,
		GroupAverages: make([]model.GroupAverage, 0, len(groups)),
		PerQuestion:   make([]model.QuestionStats, 0, len(order)),
		StudentsPerf:  make([]model.StudentPerf, 0, len(roster)),
	}
	for name, g := range groups {
		stats.GroupAverages = append(stats.GroupAverages, model.GroupAverage{
			Group:      name,
			Students:   g.cnt,
			AvgPercent: util.Round2(g.sum / float64(g.cnt)),
		})
	}
	sort.Slice(stats.GroupAverages, func(i, j int) bool {
		return stats.GroupAverages[i].Group < stats.GroupAverages[j].Group
	})
	for _, id := range order {
		stats.PerQuestion = append(stats.PerQuestion, *perQ[id])
	}

	for _, r := range roster {
		perf := model.StudentPerf{StudentID: r.ID, FullName: r.FullName, Group: r.Group}
		if sa, ok := byStudent[r.ID]; ok {
			perf.HasCopy = true
			perf.RedoCount = sa.RedoCount()
			// 与完成快照一致，取整数百分比
			last := math.Round(sa.LatestPercent())
			first := last
			if f, ok := sa.Finishes.First(); ok {
				first = f.SnapshotPercent
			}
			perf.FirstPercent = &first
			perf.LastPercent = &last
		}
		stats.StudentsPerf = append(stats.StudentsPerf, perf)
	}
	sort.SliceStable(stats.StudentsPerf, func(i, j int) bool {
		a, b := stats.StudentsPerf[i], stats.StudentsPerf[j]
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.StudentID < b.StudentID
	})
	return stats
}

// ExamResults 考试成绩汇总，名单同样实时读取
func (s *AnalyticsService) ExamResults(ctx context.Context, examID uint) (res *model.ExamResults, err error) {
	key := statsKey("exam", examID)
	var cached model.ExamResults
	if hit, cerr := s.Cache.Get(ctx, key, &cached); cerr != nil {
		logger.Log.Warn("Stats cache read failed", zap.String("key", key), zap.Error(cerr))
	} else if hit {
		return &cached, nil
	}

	ctx, span := tracing.StartSpan(ctx, "AnalyticsService.ExamResults", map[string]uint{"exam.id": examID})
	defer func() { tracing.End(span, err) }()

	exam, err := s.Exams.FindByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	roster, err := s.Roster.StudentsInGroups(ctx, exam.GroupNames)
	if err != nil {
		return nil, fmt.Errorf("exam results roster: %w", err)
	}
	papers, err := s.Papers.FindByTemplate(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("exam results papers: %w", err)
	}
	byStudent := make(map[uint]*model.ExamPaper, len(papers))
	for i := range papers {
		byStudent[papers[i].StudentID] = &papers[i]
	}

	res = &model.ExamResults{
		ExamID:        exam.ID,
		Title:         exam.Title,
		GroupAverages: []model.GroupScore{},
		Students:      make([]model.ExamStudentResult, 0, len(roster)),
	}
	type groupAgg struct {
		sum float64
		cnt int
	}
	groups := map[string]*groupAgg{}
	for _, r := range roster {
		row := model.ExamStudentResult{StudentID: r.ID, FullName: r.FullName, Group: r.Group}
		if p, ok := byStudent[r.ID]; ok {
			row.Status = p.Status
			row.ScorePart1, row.ScorePart2, row.ScorePart3 = p.ScorePart1, p.ScorePart2, p.ScorePart3
			row.TotalScore = p.TotalScore
			if p.Status == model.CopyCompleted {
				res.Finished++
				g := groups[r.Group]
				if g == nil {
					g = &groupAgg{}
					groups[r.Group] = g
				}
				g.sum += p.TotalScore
				g.cnt++
			}
		}
		res.Students = append(res.Students, row)
	}
	for name, g := range groups {
		res.GroupAverages = append(res.GroupAverages, model.GroupScore{
			Group:    name,
			Students: g.cnt,
			AvgScore: util.Round2(g.sum / float64(g.cnt)),
		})
	}
	sort.Slice(res.GroupAverages, func(i, j int) bool { return res.GroupAverages[i].Group < res.GroupAverages[j].Group })

	if ttl := s.Settings.Get().StatsCacheTTL; ttl > 0 {
		if err := s.Cache.Set(ctx, key, res, ttl); err != nil {
			logger.Log.Warn("Stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return res, nil
}
