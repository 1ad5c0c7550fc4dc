package datetime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout is the only accepted input pattern: dd/MM/yyyy HHmm.
const Layout = "02/01/2006 1504"

var ErrDateTimeFormat = errors.New("date time format")

// FormatError reports raw input that does not match Layout.
type FormatError struct {
	Raw string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s is not in dd/MM/yyyy HHmm format", e.Raw)
}

func (e *FormatError) Unwrap() error { return ErrDateTimeFormat }

// Format parses raw with Layout and renders it as
// "<day><suffix> of <MONTH> <year>, <hour>[:<minute>]<am|pm>",
// e.g. "12/12/1212 1212" -> "12th of DECEMBER 1212, 12:12pm".
func Format(raw string) (string, error) {
	t, err := time.Parse(Layout, raw)
	if err != nil {
		return "", &FormatError{Raw: raw}
	}
	return Render(t), nil
}

// Render writes t in the canonical phrase used by Format.
func Render(t time.Time) string {
	var b strings.Builder
	b.WriteString(Ordinal(t.Day()))
	b.WriteString(" of ")
	b.WriteString(strings.ToUpper(t.Month().String()))
	b.WriteString(" ")
	b.WriteString(strconv.Itoa(t.Year()))
	b.WriteString(", ")

	hour, minute := t.Hour(), t.Minute()
	b.WriteString(strconv.Itoa(twelveHour(hour)))
	if minute != 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(minute))
	}
	if hour < 12 {
		b.WriteString("am")
	} else {
		b.WriteString("pm")
	}
	return b.String()
}

// Ordinal returns n followed by its English ordinal suffix.
func Ordinal(n int) string {
	suffix := "th"
	if r := n % 100; r < 11 || r > 20 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

func twelveHour(hour int) int {
	switch {
	case hour == 0:
		return 12
	case hour > 12:
		return hour - 12
	default:
		return hour
	}
}
