package parser

import (
	"strings"
	"time"
)

// Category classifies an event for reminder rule lookup.
type Category string

const (
	CategoryTest     Category = "test"
	CategoryClass    Category = "class"
	CategoryPersonal Category = "personal"
	CategoryOther    Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryTest, CategoryClass, CategoryPersonal, CategoryOther}

// ParseCategory validates a stored or user supplied category name.
func ParseCategory(value string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == value {
			return c, true
		}
	}
	return "", false
}

type categoryKeyword struct {
	keyword  string
	category Category
}

// categoryKeywords is scanned in order; the first keyword found in the text
// decides the category.
var categoryKeywords = []categoryKeyword{
	{"test", CategoryTest},
	{"exam", CategoryTest},
	{"quiz", CategoryTest},
	{"midterm", CategoryTest},
	{"final", CategoryTest},
	{"class", CategoryClass},
	{"lesson", CategoryClass},
	{"course", CategoryClass},
	{"practice", CategoryClass},
	{"training", CategoryClass},
	{"soccer", CategoryClass},
	{"basketball", CategoryClass},
	{"swimming", CategoryClass},
	{"piano", CategoryClass},
	{"gym", CategoryPersonal},
	{"doctor", CategoryPersonal},
	{"dentist", CategoryPersonal},
	{"meeting", CategoryPersonal},
	{"appointment", CategoryPersonal},
}

type weekdayName struct {
	name string
	day  time.Weekday
}

// weekdayNames is scanned in order when looking for a bare weekday.
var weekdayNames = []weekdayName{
	{"sun", time.Sunday},
	{"sunday", time.Sunday},
	{"mon", time.Monday},
	{"monday", time.Monday},
	{"tue", time.Tuesday},
	{"tuesday", time.Tuesday},
	{"wed", time.Wednesday},
	{"wednesday", time.Wednesday},
	{"thu", time.Thursday},
	{"thursday", time.Thursday},
	{"fri", time.Friday},
	{"friday", time.Friday},
	{"sat", time.Saturday},
	{"saturday", time.Saturday},
}

// weekdayByPrefix resolves the three letter prefix of any weekday spelling.
var weekdayByPrefix = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// monthByPrefix resolves the three letter prefix of any month spelling.
var monthByPrefix = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

func detectCategory(lower string) Category {
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.category
		}
	}
	return CategoryOther
}
