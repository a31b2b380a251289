// Package model holds the read-only snapshots the scoring engine consumes and
// the recommendation results it produces.
package model

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Center is a service center as supplied by the directory. The engine never
// mutates it.
type Center struct {
	ID       string               `json:"id" yaml:"id"`
	Name     string               `json:"name" yaml:"name"`
	Location Coordinate           `json:"location" yaml:"location"`
	Address  string               `json:"address" yaml:"address"`
	Phone    string               `json:"phone" yaml:"phone"`
	Active   bool                 `json:"active" yaml:"active"`
	Hours    []OperatingHourRule  `json:"hours,omitempty" yaml:"hours"`
	Holidays []HolidayException   `json:"holidays,omitempty" yaml:"holidays"`
	Staff    []StaffCertification `json:"staff,omitempty" yaml:"staff"`
	Programs []Program            `json:"programs,omitempty" yaml:"programs"`
}

// OperatingHourRule describes one weekday's hours. DayOfWeek is 1-7, Monday
// first. OpenTime and CloseTime are "HH:MM" and empty when not recorded.
type OperatingHourRule struct {
	DayOfWeek int    `json:"day_of_week" yaml:"day_of_week"`
	OpenTime  string `json:"open_time,omitempty" yaml:"open_time"`
	CloseTime string `json:"close_time,omitempty" yaml:"close_time"`
	IsOpen    bool   `json:"is_open" yaml:"is_open"`
}

// HasTimes reports whether both open and close times are recorded.
func (r OperatingHourRule) HasTimes() bool {
	return r.OpenTime != "" && r.CloseTime != ""
}

// DateLayout is the calendar date format used by HolidayException.Date.
const DateLayout = "2006-01-02"

// HolidayException closes a center on a specific date. Regular marks a
// scheduled holiday; ad-hoc closures have Regular=false.
type HolidayException struct {
	Date    string `json:"date" yaml:"date"`
	Name    string `json:"name" yaml:"name"`
	Regular bool   `json:"regular" yaml:"regular"`
}

// StaffCertification is a free-text certification label with a headcount.
type StaffCertification struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// Program is a service program offered by a center.
type Program struct {
	Category    string `json:"category" yaml:"category"`
	TargetGroup string `json:"target_group" yaml:"target_group"`
	Description string `json:"description" yaml:"description"`
	Online      bool   `json:"online" yaml:"online"`
	Free        bool   `json:"free" yaml:"free"`
	Fee         int    `json:"fee" yaml:"fee"`
	Active      bool   `json:"active" yaml:"active"`
}

// ActivePrograms returns the center's programs with Active set, in order.
func (c *Center) ActivePrograms() []Program {
	var out []Program
	for _, p := range c.Programs {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}
