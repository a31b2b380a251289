package model

// OperatingStatus is the resolved operating state of a center at an instant.
type OperatingStatus string

const (
	StatusNoInfo      OperatingStatus = "NO_INFO"
	StatusTempClosed  OperatingStatus = "TEMP_CLOSED"
	StatusHoliday     OperatingStatus = "HOLIDAY"
	StatusClosingSoon OperatingStatus = "CLOSING_SOON"
	StatusOpen        OperatingStatus = "OPEN"
	StatusClosed      OperatingStatus = "CLOSED"
)

// DistanceDetail explains the distance score.
type DistanceDetail struct {
	StraightMeters int    `json:"straight_meters"`
	RoadMeters     int    `json:"road_meters"`
	DistanceText   string `json:"distance_text"`
	WalkMinutes    int    `json:"walk_minutes"`
	WalkText       string `json:"walk_text"`
}

// NextOpen is the next date and time a center opens.
type NextOpen struct {
	Date     string `json:"date"`
	Weekday  string `json:"weekday"`
	OpenTime string `json:"open_time"`
}

// OperatingDetail explains the operating score.
type OperatingDetail struct {
	Status   OperatingStatus `json:"status"`
	Message  string          `json:"message"`
	NextOpen *NextOpen       `json:"next_open,omitempty"`
}

// SpecialtyDetail explains the specialty score.
type SpecialtyDetail struct {
	TopCertification string `json:"top_certification,omitempty"`
	TotalStaff       int    `json:"total_staff"`
	CertifiedStaff   int    `json:"certified_staff"`
}

// ProgramMatch is one program's match against the user profile.
type ProgramMatch struct {
	Category    string   `json:"category"`
	TargetGroup string   `json:"target_group,omitempty"`
	Score       int      `json:"score"`
	Reasons     []string `json:"reasons,omitempty"`
}

// ProgramDetail explains the program score.
type ProgramDetail struct {
	ActivePrograms int            `json:"active_programs"`
	ProfileUsed    bool           `json:"profile_used"`
	TopMatches     []ProgramMatch `json:"top_matches,omitempty"`
}

// ScoreBreakdown is the per-center result of the aggregator. Module scores
// are 0-100; Total is 0-100 with two-decimal precision.
type ScoreBreakdown struct {
	DistanceScore  int `json:"distance_score"`
	OperatingScore int `json:"operating_score"`
	SpecialtyScore int `json:"specialty_score"`
	ProgramScore   int `json:"program_score"`

	Distance  *DistanceDetail  `json:"distance,omitempty"`
	Operating *OperatingDetail `json:"operating,omitempty"`
	Specialty *SpecialtyDetail `json:"specialty,omitempty"`
	Program   *ProgramDetail   `json:"program,omitempty"`

	Total         float64  `json:"total"`
	Success       bool     `json:"success"`
	FailedModules []string `json:"failed_modules,omitempty"`
}

// Degraded reports whether at least one module fell back to the default score.
func (b *ScoreBreakdown) Degraded() bool {
	return len(b.FailedModules) > 0
}

// CenterSummary is the compact display summary of a recommended center.
type CenterSummary struct {
	Address        string `json:"address"`
	Phone          string `json:"phone"`
	DistanceMeters int    `json:"distance_meters"`
	DistanceText   string `json:"distance_text"`
	WalkTime       string `json:"walk_time"`
}

// RecommendationResult is one ranked entry in a recommendation list.
type RecommendationResult struct {
	CenterID   string         `json:"center_id"`
	CenterName string         `json:"center_name"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	Reasons    []string       `json:"reasons"`
	Summary    CenterSummary  `json:"summary"`
}
