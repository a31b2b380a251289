package store

import "github.com/sells-group/centerrank/internal/model"

var cityHall = model.Coordinate{Latitude: 37.5665, Longitude: 126.9780}

func sampleCenters() []model.Center {
	return []model.Center{
		{
			ID:       "c-near",
			Name:     "Jung-gu Mental Health Center",
			Location: model.Coordinate{Latitude: 37.5700, Longitude: 126.9820},
			Address:  "110 Sejong-daero",
			Phone:    "02-000-0000",
			Active:   true,
			Hours: []model.OperatingHourRule{
				{DayOfWeek: 1, OpenTime: "09:00", CloseTime: "18:00", IsOpen: true},
				{DayOfWeek: 7, IsOpen: false},
			},
			Holidays: []model.HolidayException{{Date: "2026-10-09", Name: "Hangul Day", Regular: true}},
			Staff:    []model.StaffCertification{{Label: "psychiatrist", Count: 2}},
			Programs: []model.Program{{Category: "depression", TargetGroup: "adult", Free: true, Active: true}},
		},
		{
			ID:       "c-far",
			Name:     "Seongbuk Center",
			Location: model.Coordinate{Latitude: 37.6000, Longitude: 127.0500},
			Active:   true,
		},
		{
			ID:       "c-closed",
			Name:     "Retired Center",
			Location: model.Coordinate{Latitude: 37.5670, Longitude: 126.9790},
			Active:   false,
		},
	}
}
