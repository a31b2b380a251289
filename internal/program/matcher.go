// Package program matches a center's program catalog against a user profile.
package program

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sells-group/centerrank/internal/label"
	"github.com/sells-group/centerrank/internal/model"
)

// Criterion weights. Only criteria backed by a profile field take part.
const (
	weightCategory = 100
	weightAge      = 50
	weightSymptom  = 30
	weightOnline   = 20
	weightFree     = 15
)

// Category match scores.
const (
	categoryExact     = 100
	categoryContains  = 80
	categorySynonymic = 60
)

// Age-group match scores.
const (
	ageExact    = 100
	ageAdult    = 80
	ageContains = 60
	ageMismatch = 0
)

// Diversity fallback scores used when no profile is supplied.
const (
	diversityMany = 80 // 5 or more active programs
	diversitySome = 60 // 3-4
	diversityFew  = 40 // 1-2
)

// MaxMatches is the number of programs surfaced for explanation.
const MaxMatches = 3

// Result is the program score of one center.
type Result struct {
	Score  int
	Detail model.ProgramDetail
}

// Match scores the center's active programs. A nil profile uses the
// diversity fallback.
func Match(programs []model.Program, profile *model.UserProfile) Result {
	var active []model.Program
	for _, p := range programs {
		if p.Active {
			active = append(active, p)
		}
	}

	detail := model.ProgramDetail{ActivePrograms: len(active), ProfileUsed: profile != nil}
	if len(active) == 0 {
		return Result{Score: 0, Detail: detail}
	}
	if profile == nil {
		return Result{Score: diversityScore(len(active)), Detail: detail}
	}

	q := newQuery(profile)
	matches := make([]model.ProgramMatch, len(active))
	var sum int
	for i, p := range active {
		matches[i] = q.score(p)
		sum += matches[i].Score
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > MaxMatches {
		matches = matches[:MaxMatches]
	}
	detail.TopMatches = matches

	return Result{
		Score:  int(math.Round(float64(sum) / float64(len(active)))),
		Detail: detail,
	}
}

func diversityScore(n int) int {
	switch {
	case n >= 5:
		return diversityMany
	case n >= 3:
		return diversitySome
	default:
		return diversityFew
	}
}

// query is a profile with its labels normalized once per center.
type query struct {
	category string
	ageGroup string
	symptoms []string
	online   *bool
	free     *bool
}

func newQuery(p *model.UserProfile) query {
	q := query{
		category: label.Normalize(p.PreferredCategory),
		ageGroup: label.Normalize(p.AgeGroup),
		online:   p.PreferOnline,
		free:     p.PreferFree,
	}
	for _, s := range p.Symptoms {
		if n := label.Normalize(s); n != "" {
			q.symptoms = append(q.symptoms, n)
		}
	}
	return q
}

// score computes the weighted average over the criteria that produced a
// value. A program with no contributing criteria scores 0.
func (q query) score(p model.Program) model.ProgramMatch {
	var (
		num     float64
		den     int
		reasons []string
	)
	add := func(weight int, score float64, reason string) {
		num += float64(weight) * score
		den += weight
		if reason != "" {
			reasons = append(reasons, reason)
		}
	}

	category := label.Normalize(p.Category)
	if q.category != "" {
		if s, ok := categoryScore(q.category, category); ok {
			add(weightCategory, float64(s), categoryReason(s, p.Category))
		}
	}

	target := label.Normalize(p.TargetGroup)
	if q.ageGroup != "" && target != "" {
		s := ageScore(q.ageGroup, target)
		reason := ""
		if s > ageMismatch {
			reason = "for " + p.TargetGroup
		}
		add(weightAge, float64(s), reason)
	}

	if len(q.symptoms) > 0 {
		text := strings.Join([]string{category, target, label.Normalize(p.Description)}, " ")
		var hit []string
		for _, s := range q.symptoms {
			if label.ContainsAny(text, symptomKeywords(s)...) {
				hit = append(hit, s)
			}
		}
		reason := ""
		if len(hit) > 0 {
			reason = "addresses " + strings.Join(hit, ", ")
		}
		add(weightSymptom, float64(len(hit))*100/float64(len(q.symptoms)), reason)
	}

	if q.online != nil {
		switch {
		case *q.online == p.Online && p.Online:
			add(weightOnline, 100, "available online")
		case *q.online == p.Online:
			add(weightOnline, 100, "in person")
		default:
			add(weightOnline, 50, "")
		}
	}

	if q.free != nil {
		switch {
		case !*q.free:
			add(weightFree, 100, "")
		case p.Free:
			add(weightFree, 100, "free of charge")
		default:
			add(weightFree, 0, "")
		}
	}

	m := model.ProgramMatch{Category: p.Category, TargetGroup: p.TargetGroup, Reasons: reasons}
	if den > 0 {
		m.Score = int(math.Round(num / float64(den)))
	}
	return m
}

// categoryScore compares a preferred category with a program category. The
// second return is false when the criterion is excluded.
func categoryScore(want, have string) (int, bool) {
	switch {
	case have == "":
		return 0, false
	case want == have:
		return categoryExact, true
	case strings.Contains(have, want) || strings.Contains(want, have):
		return categoryContains, true
	case sameSynonymGroup(want, have):
		return categorySynonymic, true
	default:
		return 0, false
	}
}

func categoryReason(score int, category string) string {
	switch score {
	case categoryExact:
		return fmt.Sprintf("offers %s", category)
	case categoryContains:
		return fmt.Sprintf("related to %s", category)
	default:
		return fmt.Sprintf("similar to %s", category)
	}
}

func ageScore(want, target string) int {
	switch {
	case want == target:
		return ageExact
	case isAdultTarget(target) && adultSubgroups[want]:
		return ageAdult
	case strings.Contains(target, want) || strings.Contains(want, target):
		return ageContains
	default:
		return ageMismatch
	}
}

func isAdultTarget(target string) bool {
	return strings.Contains(target, "adult") || strings.Contains(target, "성인")
}
