package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var englishMonths = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// Levantine and standard Arabic month names both appear in titles.
var arabicMonths = map[string]time.Month{
	"كانون الثاني": time.January, "يناير": time.January,
	"شباط": time.February, "فبراير": time.February,
	"آذار": time.March, "اذار": time.March, "مارس": time.March,
	"نيسان": time.April, "أبريل": time.April, "ابريل": time.April,
	"أيار": time.May, "ايار": time.May, "مايو": time.May,
	"حزيران": time.June, "يونيو": time.June,
	"تموز": time.July, "يوليو": time.July,
	"آب": time.August, "اب": time.August, "أغسطس": time.August, "اغسطس": time.August,
	"أيلول": time.September, "ايلول": time.September, "سبتمبر": time.September,
	"تشرين الأول": time.October, "تشرين الاول": time.October, "أكتوبر": time.October, "اكتوبر": time.October,
	"تشرين الثاني": time.November, "نوفمبر": time.November,
	"كانون الأول": time.December, "كانون الاول": time.December, "ديسمبر": time.December,
}

const monthAlt = `(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?`

var (
	reISO      = regexp.MustCompile(`(20\d{2})[-/](\d{1,2})[-/](\d{1,2})`)
	reDMY      = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})[-/](20\d{2})`)
	reDayMonth = regexp.MustCompile(`(?i)(\d{1,2})\s+` + monthAlt + `\s+(20\d{2})`)
	reMonthDay = regexp.MustCompile(`(?i)` + monthAlt + `\s+(\d{1,2}),?\s+(20\d{2})`)
	reArabic   = regexp.MustCompile(`(\d{1,2})\s+(` + arabicMonthAlt() + `)\s+(20\d{2})`)
)

func arabicMonthAlt() string {
	names := make([]string, 0, len(arabicMonths))
	for n := range arabicMonths {
		names = append(names, regexp.QuoteMeta(n))
	}
	// longest first so "كانون الثاني" wins over any shorter prefix
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && len([]rune(names[j])) > len([]rune(names[j-1])); j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return strings.Join(names, "|")
}

var arabicDigits = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// ParseDateText finds the first valid calendar date embedded in free text. Patterns are tried
// in a fixed order; a match that is not a real date falls through to the next pattern.
func ParseDateText(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	text = arabicDigits.Replace(text)

	if m := reISO.FindStringSubmatch(text); m != nil {
		if t, ok := civil(m[1], m[2], m[3]); ok {
			return t, true
		}
	}
	if m := reDMY.FindStringSubmatch(text); m != nil {
		if t, ok := civil(m[3], m[2], m[1]); ok {
			return t, true
		}
	}
	if m := reDayMonth.FindStringSubmatch(text); m != nil {
		if t, ok := civilMonth(m[3], englishMonths[strings.ToLower(m[2])], m[1]); ok {
			return t, true
		}
	}
	if m := reMonthDay.FindStringSubmatch(text); m != nil {
		if t, ok := civilMonth(m[3], englishMonths[strings.ToLower(m[1])], m[2]); ok {
			return t, true
		}
	}
	if m := reArabic.FindStringSubmatch(text); m != nil {
		if t, ok := civilMonth(m[3], arabicMonths[m[2]], m[1]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func civil(y, m, d string) (time.Time, bool) {
	mi, err := strconv.Atoi(m)
	if err != nil {
		return time.Time{}, false
	}
	return civilMonth(y, time.Month(mi), d)
}

// civilMonth rejects dates that time.Date would normalize, like 31 February.
func civilMonth(y string, m time.Month, d string) (time.Time, bool) {
	yi, err := strconv.Atoi(y)
	if err != nil {
		return time.Time{}, false
	}
	di, err := strconv.Atoi(d)
	if err != nil {
		return time.Time{}, false
	}
	if m < time.January || m > time.December || di < 1 {
		return time.Time{}, false
	}
	t := time.Date(yi, m, di, 0, 0, 0, 0, time.UTC)
	if t.Month() != m || t.Day() != di {
		return time.Time{}, false
	}
	return t, true
}

// OutOfEra reports whether an item dated actual cannot plausibly belong to a crawl for target.
func OutOfEra(target, actual time.Time, toleranceYears int) bool {
	ty, ay := target.Year(), actual.Year()
	if ty <= 2015 && ay >= 2020 {
		return true
	}
	diff := ay - ty
	if diff < 0 {
		diff = -diff
	}
	return diff > toleranceYears
}
