package itinerary

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

const (
	Weekday = "weekday"
	Weekend = "weekend"
	Holiday = "holiday"
)

// DayTypeCalendar classifies trip days as weekday, weekend or holiday
type DayTypeCalendar struct {
	calendar *cal.BusinessCalendar
}

// NewDayTypeCalendar builds DayTypeCalendar observing US federal holidays
func NewDayTypeCalendar() *DayTypeCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.PresidentsDay,
		us.MemorialDay,
		us.Juneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ColumbusDay,
		us.VeteransDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)
	return &DayTypeCalendar{calendar: calendar}
}

// DayType returns the type of day at falls on, empty string if at is unknown
func (d *DayTypeCalendar) DayType(at *time.Time) string {
	if at == nil || d == nil {
		return ""
	}
	if _, observed, _ := d.calendar.IsHoliday(*at); observed {
		return Holiday
	}
	switch at.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	}
	return Weekday
}
