package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// WireLayout is the datetime format the route data service accepts and
// returns for window bounds ("YYYY/MM/DD HH:mm:ss").
const WireLayout = "2006/01/02 15:04:05"

const (
	dateLayout      = "2006-01-02"
	defaultFromTime = "00:00:00"
	defaultToTime   = "23:59:59"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DateRangeQuery is the user's selection of a time window. Dates are
// "YYYY-MM-DD"; times are "HH:mm" or "HH:mm:ss" and may be left empty.
type DateRangeQuery struct {
	FromDate string `validate:"required,datetime=2006-01-02"`
	ToDate   string `validate:"required,datetime=2006-01-02"`
	FromTime string
	ToTime   string
}

// Window composes the from/to bounds in WireLayout. A missing FromTime
// defaults to the start of the day and a missing ToTime to 23:59:59.
// Returns ErrValidation when a field is missing or malformed, or when the
// end of the window precedes its start.
func (q DateRangeQuery) Window() (from, to string, err error) {
	start, end, err := q.Bounds(time.UTC)
	if err != nil {
		return "", "", err
	}
	return start.Format(WireLayout), end.Format(WireLayout), nil
}

// Bounds is Window returning the parsed instants in loc.
func (q DateRangeQuery) Bounds(loc *time.Location) (time.Time, time.Time, error) {
	if err := validate.Struct(q); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}

	fromClock, err := normalizeClock(q.FromTime, defaultFromTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: fromTime: %v", ErrValidation, err)
	}
	toClock, err := normalizeClock(q.ToTime, defaultToTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: toTime: %v", ErrValidation, err)
	}

	start, err := time.ParseInLocation(dateLayout+" 15:04:05", q.FromDate+" "+fromClock, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from: %v", ErrValidation, err)
	}
	end, err := time.ParseInLocation(dateLayout+" 15:04:05", q.ToDate+" "+toClock, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to: %v", ErrValidation, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end of range is before start", ErrValidation)
	}
	return start, end, nil
}

// ParseWindow parses a pair of WireLayout strings in loc.
func ParseWindow(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(WireLayout, from, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must look like YYYY/MM/DD HH:mm:ss", ErrValidation)
	}
	end, err := time.ParseInLocation(WireLayout, to, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to must look like YYYY/MM/DD HH:mm:ss", ErrValidation)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end of range is before start", ErrValidation)
	}
	return start, end, nil
}

// normalizeClock turns "HH:mm" or "HH:mm:ss" into "HH:mm:ss".
func normalizeClock(s, fallback string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("%q is not HH:mm or HH:mm:ss", s)
}

// describe flattens validator errors into "fromDate is required" style text.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "datetime":
			msgs = append(msgs, field+" must look like YYYY-MM-DD")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
