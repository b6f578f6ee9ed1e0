// Package dates converts between the booking form's display format and
// timestamps, and renders compact localized ranges.
package dates

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DisplayLayout is the MM/DD/YYYY layout used by the date inputs.
const DisplayLayout = "01/02/2006"

const day = 24 * time.Hour

// ToDisplayFormat renders t as MM/DD/YYYY, or "" for the zero time.
func ToDisplayFormat(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayLayout)
}

// ParseDisplayFormat parses MM/DD/YYYY as midnight UTC.
func ParseDisplayFormat(s string) (time.Time, bool) {
	return ParseDisplayFormatIn(s, time.UTC)
}

// ParseDisplayFormatIn parses MM/DD/YYYY as midnight in loc. It reports false
// for anything that is not three slash-separated numeric fields naming a real
// calendar day.
func ParseDisplayFormatIn(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	month, ok := numericField(parts[0], 1, 2)
	if !ok {
		return time.Time{}, false
	}
	dayOfMonth, ok := numericField(parts[1], 1, 2)
	if !ok {
		return time.Time{}, false
	}
	year, ok := numericField(parts[2], 4, 4)
	if !ok {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), dayOfMonth, 0, 0, 0, 0, loc)
	// time.Date normalizes 02/30 into March; reject instead.
	if t.Year() != year || int(t.Month()) != month || t.Day() != dayOfMonth {
		return time.Time{}, false
	}
	return t, true
}

func numericField(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DaysBetween returns the absolute number of days between a and b, counting
// any partial day as a full one. Zero if either is absent.
func DaysBetween(a, b time.Time) int {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	diff := b.Sub(a)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(float64(diff) / float64(day)))
}

// Locale holds month names and the year era used when rendering dates.
type Locale struct {
	Months      [12]string
	ShortMonths [12]string
	YearOffset  int
}

var (
	// LocaleThai renders Thai month names with Buddhist-era years.
	LocaleThai = Locale{
		Months: [12]string{
			"มกราคม", "กุมภาพันธ์", "มีนาคม", "เมษายน", "พฤษภาคม", "มิถุนายน",
			"กรกฎาคม", "สิงหาคม", "กันยายน", "ตุลาคม", "พฤศจิกายน", "ธันวาคม",
		},
		ShortMonths: [12]string{
			"ม.ค.", "ก.พ.", "มี.ค.", "เม.ย.", "พ.ค.", "มิ.ย.",
			"ก.ค.", "ส.ค.", "ก.ย.", "ต.ค.", "พ.ย.", "ธ.ค.",
		},
		YearOffset: 543,
	}

	LocaleEnglish = Locale{
		Months: [12]string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
		ShortMonths: [12]string{
			"Jan", "Feb", "Mar", "Apr", "May", "Jun",
			"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
		},
	}
)

func (l Locale) year(t time.Time) int {
	return t.Year() + l.YearOffset
}

// FormatLong renders "15 กุมภาพันธ์ 2569" style dates.
func (l Locale) FormatLong(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s %d", t.Day(), l.Months[t.Month()-1], l.year(t))
}

// FormatRange renders a compact range. Same month and year collapses to
// "15 - 20 Feb 2025"; same year to "28 Feb - 3 Mar 2025"; otherwise both
// years are shown.
func (l Locale) FormatRange(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return ""
	}
	startMonth := l.ShortMonths[start.Month()-1]
	endMonth := l.ShortMonths[end.Month()-1]

	if start.Year() == end.Year() && start.Month() == end.Month() {
		return fmt.Sprintf("%d - %d %s %d", start.Day(), end.Day(), endMonth, l.year(end))
	}
	if start.Year() == end.Year() {
		return fmt.Sprintf("%d %s - %d %s %d", start.Day(), startMonth, end.Day(), endMonth, l.year(end))
	}
	return fmt.Sprintf("%d %s %d - %d %s %d",
		start.Day(), startMonth, l.year(start), end.Day(), endMonth, l.year(end))
}

// FormatLocalizedRange renders the range in the default Thai locale.
func FormatLocalizedRange(start, end time.Time) string {
	return LocaleThai.FormatRange(start, end)
}

// FormatLongDate renders a single date in the default Thai locale.
func FormatLongDate(t time.Time) string {
	return LocaleThai.FormatLong(t)
}
