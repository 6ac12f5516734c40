package util

import "time"

// LoadLocationDefault returns the named location, or UTC when it cannot be loaded.
func LoadLocationDefault(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReportStamp splits t into the date and clock strings shown in a report header.
func ReportStamp(t time.Time, loc *time.Location) (date, clock string) {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return t.Format("2006-01-02 (Monday)"), t.Format("15:04 MST")
}
