// Package specialty scores a center by the best certification among its staff.
package specialty

import (
	"github.com/sells-group/centerrank/internal/label"
	"github.com/sells-group/centerrank/internal/model"
)

// DefaultLabelScore is the score of a label that matches no table entry.
const DefaultLabelScore = 20

// Certification tiers.
const (
	tierSpecialist     = 100
	tierMHPLevel1      = 80
	tierMHPLevel2      = 65
	tierClinicalPsych  = 60
	tierCounselPsychL1 = 50
	tierCounselPsychL2 = 40
	tierMHSocialWorker = 40
	tierSocialWorker   = 35
	tierCounselor      = 35
)

// exactScores maps normalized labels to tier scores.
var exactScores = map[string]int{
	"psychiatrist":                       tierSpecialist,
	"psychiatric specialist":             tierSpecialist,
	"mental health professional level 1": tierMHPLevel1,
	"mental health professional level 2": tierMHPLevel2,
	"clinical psychologist":              tierClinicalPsych,
	"counseling psychologist level 1":    tierCounselPsychL1,
	"counseling psychologist level 2":    tierCounselPsychL2,
	"mental health social worker":        tierMHSocialWorker,
	"social worker":                      tierSocialWorker,
	"counselor":                          tierCounselor,

	"정신건강의학과 전문의": tierSpecialist,
	"정신건강전문요원 1급": tierMHPLevel1,
	"정신건강전문요원 2급": tierMHPLevel2,
	"임상심리전문가":     tierClinicalPsych,
	"상담심리사 1급":    tierCounselPsychL1,
	"상담심리사 2급":    tierCounselPsychL2,
	"정신건강사회복지사":   tierMHSocialWorker,
	"사회복지사":       tierSocialWorker,
	"상담사":         tierCounselor,
}

type keywordRule struct {
	keywords []string
	score    int
}

// keywordRules is evaluated in order; the first rule whose keywords all occur
// in the label wins. Rules are sorted by descending score.
var keywordRules = []keywordRule{
	{[]string{"psychiatr"}, tierSpecialist},
	{[]string{"정신건강의학"}, tierSpecialist},
	{[]string{"mental health professional", "level 1"}, tierMHPLevel1},
	{[]string{"전문요원", "1급"}, tierMHPLevel1},
	{[]string{"mental health professional"}, tierMHPLevel2},
	{[]string{"전문요원"}, tierMHPLevel2},
	{[]string{"clinical psycholog"}, tierClinicalPsych},
	{[]string{"임상심리"}, tierClinicalPsych},
	{[]string{"counsel", "psycholog", "level 1"}, tierCounselPsychL1},
	{[]string{"상담심리", "1급"}, tierCounselPsychL1},
	{[]string{"psycholog"}, tierCounselPsychL2},
	{[]string{"상담심리"}, tierCounselPsychL2},
	{[]string{"mental health", "social work"}, tierMHSocialWorker},
	{[]string{"정신건강", "사회복지"}, tierMHSocialWorker},
	{[]string{"social work"}, tierSocialWorker},
	{[]string{"사회복지"}, tierSocialWorker},
	{[]string{"counsel"}, tierCounselor},
	{[]string{"상담"}, tierCounselor},
}

// LabelScore returns the tier score for a certification label: exact match,
// then keyword containment, then DefaultLabelScore.
func LabelScore(raw string) int {
	key := label.Normalize(raw)
	if key == "" {
		return DefaultLabelScore
	}
	if s, ok := exactScores[key]; ok {
		return s
	}
	for _, r := range keywordRules {
		if label.ContainsAll(key, r.keywords...) {
			return r.score
		}
	}
	return DefaultLabelScore
}

// Result is the specialty score of one center.
type Result struct {
	Score  int
	Detail model.SpecialtyDetail
}

// Score rates a center's staff. The best label wins; headcount does not
// dilute it. Entries with a non-positive count are ignored, and a center
// without staff scores 0.
func Score(staff []model.StaffCertification) Result {
	var (
		best     = -1
		top      string
		total    int
		verified int
	)
	for _, s := range staff {
		if s.Count <= 0 {
			continue
		}
		score := LabelScore(s.Label)
		total += s.Count
		if score > DefaultLabelScore {
			verified += s.Count
		}
		if score > best {
			best = score
			top = s.Label
		}
	}

	if best < 0 {
		return Result{Score: 0, Detail: model.SpecialtyDetail{}}
	}
	return Result{
		Score: best,
		Detail: model.SpecialtyDetail{
			TopCertification: top,
			TotalStaff:       total,
			CertifiedStaff:   verified,
		},
	}
}
