package readiness

import (
	"math"

	"github.com/JakeFAU/ai-readiness-scorer/internal/scoring"
)

// Check is one evaluated requirement.
type Check struct {
	Requirement
	Pass bool `json:"pass"`
}

// PlatformResult is the checklist outcome for one platform.
type PlatformResult struct {
	Platform    string  `json:"platform"`
	Name        string  `json:"name"`
	Checks      []Check `json:"checks"`
	Passed      int     `json:"passed"`
	Total       int     `json:"total"`
	Score       int     `json:"score"`
	LetterGrade string  `json:"letter_grade"`
}

// Evaluator joins issue codes against the requirement table. It never
// invokes scoring rules.
type Evaluator struct {
	reqs *Requirements
}

// NewEvaluator returns an evaluator; nil selects DefaultRequirements.
func NewEvaluator(reqs *Requirements) *Evaluator {
	if reqs == nil {
		reqs = DefaultRequirements()
	}
	return &Evaluator{reqs: reqs}
}

// Evaluate returns one result per platform in table order. A requirement
// passes when its issue code is absent from codes.
func (e *Evaluator) Evaluate(codes []string) []PlatformResult {
	raised := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		raised[c] = struct{}{}
	}

	results := make([]PlatformResult, 0, len(e.reqs.platforms))
	for _, p := range e.reqs.platforms {
		res := PlatformResult{
			Platform: p.ID,
			Name:     p.Name,
			Checks:   make([]Check, 0, len(p.Requirements)),
			Total:    len(p.Requirements),
		}
		for _, r := range p.Requirements {
			_, failed := raised[r.IssueCode]
			res.Checks = append(res.Checks, Check{Requirement: r, Pass: !failed})
			if !failed {
				res.Passed++
			}
		}
		res.Score = passRate(res.Passed, res.Total)
		res.LetterGrade = scoring.LetterGrade(res.Score)
		results = append(results, res)
	}
	return results
}

func passRate(passed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(passed) / float64(total)))
}
