package program

import "github.com/sells-group/centerrank/internal/label"

// categoryGroups lists related program categories. Terms are normalized and
// matched by containment, so "adolescent depression" joins the mood group.
var categoryGroups = [][]string{
	{"depression", "mood", "우울"},
	{"anxiety", "panic", "phobia", "불안", "공황"},
	{"stress", "burnout", "스트레스", "소진"},
	{"addiction", "alcohol", "gambling", "substance", "중독", "알코올", "도박"},
	{"sleep", "insomnia", "수면", "불면"},
	{"trauma", "ptsd", "트라우마", "외상"},
	{"suicide", "crisis", "자살", "위기"},
	{"family", "parenting", "couple", "가족", "부부", "양육"},
	{"child", "adolescent", "youth", "teen", "아동", "청소년"},
	{"dementia", "elderly", "senior", "치매", "노인"},
}

// adultSubgroups are age groups served by a program targeted at adults.
var adultSubgroups = map[string]bool{
	"adult":       true,
	"young adult": true,
	"middle-aged": true,
	"middle aged": true,
	"20s":         true,
	"30s":         true,
	"40s":         true,
	"50s":         true,
	"60s":         true,
	"청년":          true,
	"중년":          true,
	"장년":          true,
	"성인":          true,
}

// symptomSynonyms maps a symptom to the keywords that indicate a program
// addresses it. Unknown symptoms match on themselves.
var symptomSynonyms = map[string][]string{
	"depression":    {"depress", "mood", "우울"},
	"우울":            {"depress", "mood", "우울"},
	"anxiety":       {"anxi", "panic", "worry", "불안", "공황"},
	"불안":            {"anxi", "panic", "worry", "불안", "공황"},
	"insomnia":      {"sleep", "insomnia", "수면", "불면"},
	"불면":            {"sleep", "insomnia", "수면", "불면"},
	"stress":        {"stress", "burnout", "relax", "스트레스"},
	"스트레스":          {"stress", "burnout", "relax", "스트레스"},
	"anger":         {"anger", "emotion", "분노", "감정"},
	"분노":            {"anger", "emotion", "분노", "감정"},
	"loneliness":    {"lonel", "isolation", "social", "고립", "외로"},
	"외로움":           {"lonel", "isolation", "social", "고립", "외로"},
	"addiction":     {"addict", "alcohol", "gambling", "중독"},
	"중독":            {"addict", "alcohol", "gambling", "중독"},
	"trauma":        {"trauma", "ptsd", "트라우마", "외상"},
	"트라우마":          {"trauma", "ptsd", "트라우마", "외상"},
	"suicidal":      {"suicid", "crisis", "자살", "위기"},
	"자살":            {"suicid", "crisis", "자살", "위기"},
	"concentration": {"attention", "adhd", "focus", "집중"},
	"집중력":           {"attention", "adhd", "focus", "집중"},
}

func symptomKeywords(symptom string) []string {
	if kw, ok := symptomSynonyms[symptom]; ok {
		return kw
	}
	return []string{symptom}
}

func synonymGroups(s string) []int {
	var out []int
	for i, g := range categoryGroups {
		if label.ContainsAny(s, g...) {
			out = append(out, i)
		}
	}
	return out
}

func sameSynonymGroup(a, b string) bool {
	ga := synonymGroups(a)
	if len(ga) == 0 {
		return false
	}
	for _, j := range synonymGroups(b) {
		for _, i := range ga {
			if i == j {
				return true
			}
		}
	}
	return false
}
