package scoring

import (
	"math"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// LetterGrade maps a 0..100 score onto A/B/C/D/F.
func LetterGrade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// Overall is the equal-weight rounded mean used everywhere an aggregate
// score is derived. It returns 0 for no inputs.
func Overall(scores ...int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(scores))))
}

// Recompute replaces the content score and rederives overall and grade.
// It is the only path for updating a score after LLM enrichment.
func Recompute(score crawler.PageScore, content int) crawler.PageScore {
	score.Content = clamp(content)
	score.Overall = Overall(score.Technical, score.Content, score.AIReadiness, score.Performance)
	score.LetterGrade = LetterGrade(score.Overall)
	if score.Detail != nil {
		detail := make(map[string]any, len(score.Detail)+1)
		for k, v := range score.Detail {
			detail[k] = v
		}
		detail["letter_grade"] = score.LetterGrade
		score.Detail = detail
	}
	return score
}

// Summarize aggregates page scores into a job summary. Each field is the
// rounded mean of the corresponding page field.
func Summarize(scores []crawler.PageScore) crawler.JobSummary {
	if len(scores) == 0 {
		return crawler.JobSummary{LetterGrade: LetterGrade(0)}
	}
	var overall, technical, content, ai, perf []int
	for _, s := range scores {
		overall = append(overall, s.Overall)
		technical = append(technical, s.Technical)
		content = append(content, s.Content)
		ai = append(ai, s.AIReadiness)
		perf = append(perf, s.Performance)
	}
	sum := crawler.JobSummary{
		Overall:     Overall(overall...),
		Technical:   Overall(technical...),
		Content:     Overall(content...),
		AIReadiness: Overall(ai...),
		Performance: Overall(perf...),
		Pages:       len(scores),
	}
	sum.LetterGrade = LetterGrade(sum.Overall)
	return sum
}
