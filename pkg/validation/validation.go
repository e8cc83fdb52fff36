// Package validation holds the field and cross-field rules shared by the task and
// student domains. Every rule returns a Result with a human readable reason so
// callers can collect all failures instead of stopping at the first.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the fixed text layout used for stored calendar dates.
const DateLayout = "02/01/2006"

// DefaultMinAge is the minimum age in years at enrollment.
const DefaultMinAge = 16

// Result is the outcome of a single rule.
type Result struct {
	Valid  bool
	Reason string
}

// Rule validates one text value.
type Rule func(value string) Result

func pass() Result { return Result{Valid: true} }

func fail(format string, args ...interface{}) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

var (
	datePattern   = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	idPattern     = regexp.MustCompile(`^[a-zA-Z0-9]{3,20}$`)
	namePattern   = regexp.MustCompile(`^[a-zA-Z\s\-']{2,50}$`)
	coursePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-&()]{2,100}$`)
)

// ParseDate parses DD/MM/YYYY text into a UTC calendar date. Month and day are range
// checked before the date is composed, and the composed date must round-trip to the
// same components, so overflow such as 31/02 is rejected.
func ParseDate(text string) (time.Time, error) {
	match := datePattern.FindStringSubmatch(text)
	if match == nil {
		return time.Time{}, fmt.Errorf("date %q is not in DD/MM/YYYY format", text)
	}
	day, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	year, _ := strconv.Atoi(match[3])

	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("date %q has month out of range", text)
	}
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date %q has day out of range", text)
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || int(date.Month()) != month || date.Year() != year {
		return time.Time{}, fmt.Errorf("date %q does not exist", text)
	}
	return date, nil
}

// FormatDate renders a date in DD/MM/YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Date validates DD/MM/YYYY text.
func Date(text string) Result {
	if _, err := ParseDate(text); err != nil {
		return fail("%s", err.Error())
	}
	return pass()
}

// ID validates a record identifier: alphanumeric, 3 to 20 characters.
func ID(text string) Result {
	if !idPattern.MatchString(text) {
		return fail("id must be 3-20 alphanumeric characters")
	}
	return pass()
}

// Name validates a person name: letters, spaces, hyphens and apostrophes, 2 to 50
// characters after trimming. Text already passed through Sanitize is accepted.
func Name(text string) Result {
	if !namePattern.MatchString(strings.TrimSpace(Unsanitize(text))) {
		return fail("name must be 2-50 characters, letters only")
	}
	return pass()
}

// Course validates a course title.
func Course(text string) Result {
	if !coursePattern.MatchString(strings.TrimSpace(Unsanitize(text))) {
		return fail("course name must be 2-100 characters")
	}
	return pass()
}

// Freeform returns a rule for generic bounded text measured in characters after
// trimming. Escaped text is measured in its unescaped form.
func Freeform(minLen, maxLen int) Rule {
	return func(text string) Result {
		n := utf8.RuneCountInString(strings.TrimSpace(Unsanitize(text)))
		if n < minLen || n > maxLen {
			return fail("must be %d-%d characters", minLen, maxLen)
		}
		return pass()
	}
}

// Enumerated returns a membership rule.
func Enumerated(allowed ...string) Rule {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(value string) Result {
		if _, ok := set[value]; ok {
			return pass()
		}
		return fail("must be one of %s", strings.Join(allowed, ", "))
	}
}

// TaskDescription returns the rule for task descriptions: non-blank and at most
// maxLen characters.
func TaskDescription(maxLen int) Rule {
	return func(text string) Result {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return fail("please enter a task description")
		}
		if utf8.RuneCountInString(Unsanitize(trimmed)) > maxLen {
			return fail("task too long (max %d characters)", maxLen)
		}
		return pass()
	}
}

// EnrollmentDates applies the cross-field rules between a birth date and an
// enrollment date. It returns every violated rule in a fixed order.
//
// The minimum age is computed with calendar-year arithmetic: a 29 February birth
// date plus N years normalises to 1 March in non-leap years.
func EnrollmentDates(birth, enroll, today time.Time, minAge int) []string {
	var errs []string
	if enroll.Before(birth) {
		errs = append(errs, "enrollment date cannot be before birth date")
	}
	if birth.After(truncateDay(today)) {
		errs = append(errs, "birth date cannot be in the future")
	}
	if enroll.Before(birth.AddDate(minAge, 0, 0)) {
		errs = append(errs, fmt.Sprintf("student must be at least %d years old at enrollment", minAge))
	}
	return errs
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var sanitizer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize neutralises the characters < > " ' / for rendering contexts. Ampersands
// are left alone, so applying it twice yields the same text.
func Sanitize(text string) string {
	return sanitizer.Replace(text)
}

var unsanitizer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#x27;", "'",
	"&#x2F;", "/",
)

// Unsanitize reverses Sanitize. Other entities are left as they are.
func Unsanitize(text string) string {
	return unsanitizer.Replace(text)
}
