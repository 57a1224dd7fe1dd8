package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusTodo  Status = "TODO"
	StatusDoing Status = "DOING"
	StatusDone  Status = "DONE"
)

// Statuses lists board columns in display order.
var Statuses = []Status{StatusTodo, StatusDoing, StatusDone}

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusTodo:
		return StatusTodo, nil
	case StatusDoing:
		return StatusDoing, nil
	case StatusDone:
		return StatusDone, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone:
		return true
	}
	return false
}

// Next applies the status cycle TODO -> DOING -> DONE -> TODO.
// Anything outside the enum restarts at TODO.
func (s Status) Next() Status {
	switch s {
	case StatusTodo:
		return StatusDoing
	case StatusDoing:
		return StatusDone
	default:
		return StatusTodo
	}
}

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day. It travels as "YYYY-MM-DD" in JSON.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts "YYYY-MM-DD" and, for clients that send full timestamps, RFC 3339.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, errors.New("empty date")
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysUntil returns the number of calendar days from the date of now to d.
// now's location defines what "today" is.
func (d Date) DaysUntil(now time.Time) int {
	today := DateOf(now)
	// both are UTC midnights; Sub would saturate past ~292 years
	return int((d.Unix() - today.Unix()) / 86400)
}

const (
	LabelCompleted = "COMPLETED"
	LabelDueToday  = "DUE TODAY"
)

// UrgencyLabel renders the deadline hint shown on a board card.
func UrgencyLabel(target Date, status Status, now time.Time) string {
	if status == StatusDone {
		return LabelCompleted
	}
	diff := target.DaysUntil(now)
	switch {
	case diff < 0:
		return fmt.Sprintf("OVERDUE (%dd)", -diff)
	case diff == 0:
		return LabelDueToday
	default:
		return fmt.Sprintf("%d DAYS LEFT", diff)
	}
}

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ParseSortOrder maps "asc"/"desc" (any case); blank yields fallback.
func ParseSortOrder(s string, fallback SortOrder) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case OrderAsc:
		return OrderAsc, nil
	case OrderDesc:
		return OrderDesc, nil
	}
	return "", fmt.Errorf("unknown order %q, expected asc or desc", s)
}
