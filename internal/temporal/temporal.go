// Package temporal resolves natural-language date/range phrases in a
// query into concrete since/until bounds, a recency half-life override,
// and the set of explicit date terms to fold into term extraction
// (§4.10).
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result is resolve_temporal_query's return shape (§4.10).
type Result struct {
	Since         *time.Time
	Until         *time.Time
	RecencyBoost  float64 // days; 0 means "not set"
	DateTerms     []string
	StrippedQuery string
	ForwardLooking bool
	ForwardTerms  []string
}

var weekdayNames = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// isoDate formats t as the YYYY-MM-DD date term §4.6 (spec.md:168) expects
// for day-specific temporal categories (e.g. "2026-02-27"), as opposed to
// the literal "today"/"yesterday" words §4.10 calls for on those two
// categories specifically.
func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Sunday that begins t's calendar week.
func startOfWeek(t time.Time) time.Time {
	d := startOfDay(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// Resolve implements resolve_temporal_query. Phrase categories are
// checked in the fixed order of §4.10; the first category to match wins,
// and within a category the first regex match wins.
func Resolve(query string, now time.Time) Result {
	lower := strings.ToLower(query)
	result := Result{StrippedQuery: query}

	matched := false

	// tryMatch checks re against the query once; if it matches and apply
	// reports ok, the category's output is folded into result and no
	// further category is tried (first match per category wins, §4.10).
	tryMatch := func(re *regexp.Regexp, apply func(now time.Time, m []string) (Result, bool)) {
		if matched {
			return
		}
		subs := re.FindStringSubmatch(lower)
		if subs == nil {
			return
		}
		r, ok := apply(now, subs)
		if !ok {
			return
		}
		result.Since, result.Until, result.RecencyBoost = r.Since, r.Until, r.RecencyBoost
		result.DateTerms = append(result.DateTerms, r.DateTerms...)
		result.ForwardLooking = result.ForwardLooking || r.ForwardLooking
		result.ForwardTerms = append(result.ForwardTerms, r.ForwardTerms...)
		matched = true
	}

	// Today-family
	tryMatch(regexp.MustCompile(`\b(today|this morning|tonight|this evening)\b`), func(now time.Time, m []string) (Result, bool) {
		since := startOfDay(now)
		return Result{Since: &since, DateTerms: []string{"today"}}, true
	})

	// Yesterday
	tryMatch(regexp.MustCompile(`\byesterday\b`), func(now time.Time, m []string) (Result, bool) {
		// "day before yesterday" is resolved by its own category below.
		if strings.Contains(lower, "day before yesterday") {
			return Result{}, false
		}
		since := startOfDay(now).AddDate(0, 0, -1)
		until := startOfDay(now)
		return Result{Since: &since, Until: &until, DateTerms: []string{"yesterday"}}, true
	})

	// "day before yesterday" / "2 days ago"
	tryMatch(regexp.MustCompile(`\bday before yesterday\b`), func(now time.Time, m []string) (Result, bool) {
		since := startOfDay(now).AddDate(0, 0, -2)
		until := since.AddDate(0, 0, 1)
		return Result{Since: &since, Until: &until, DateTerms: []string{isoDate(since)}}, true
	})

	// "N days ago" (0 < N < 365)
	tryMatch(regexp.MustCompile(`\b(\d{1,3}) days? ago\b`), func(now time.Time, m []string) (Result, bool) {
		n, _ := strconv.Atoi(m[1])
		if n <= 0 || n >= 365 {
			return Result{}, false
		}
		since := startOfDay(now).AddDate(0, 0, -n)
		until := since.AddDate(0, 0, 1)
		return Result{Since: &since, Until: &until, DateTerms: []string{isoDate(since)}}, true
	})

	// Compound "dayname [of] last week" / "last week's dayname"; a "this"
	// before "last week" is not accepted.
	tryMatch(regexp.MustCompile(`\b(`+strings.Join(weekdayNames, "|")+`) (?:of )?last week\b|\blast week'?s (`+strings.Join(weekdayNames, "|")+`)\b`), func(now time.Time, m []string) (Result, bool) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		wd := indexOf(weekdayNames, name)
		lastWeekStart := startOfWeek(now).AddDate(0, 0, -7)
		since := lastWeekStart.AddDate(0, 0, wd)
		until := since.AddDate(0, 0, 1)
		return Result{Since: &since, Until: &until, DateTerms: []string{isoDate(since)}}, true
	})

	// "last dayname"
	tryMatch(regexp.MustCompile(`\blast (`+strings.Join(weekdayNames, "|")+`)\b`), func(now time.Time, m []string) (Result, bool) {
		wd := indexOf(weekdayNames, m[1])
		since := mostRecentOccurrence(now, wd)
		if int(startOfDay(now).Weekday()) == wd {
			since = since.AddDate(0, 0, -7)
		}
		until := since.AddDate(0, 0, 1)
		return Result{Since: &since, Until: &until, DateTerms: []string{isoDate(since)}}, true
	})

	// Bare "[on] dayname"
	tryMatch(regexp.MustCompile(`\b(?:on )?(`+strings.Join(weekdayNames, "|")+`)\b`), func(now time.Time, m []string) (Result, bool) {
		wd := indexOf(weekdayNames, m[1])
		since := mostRecentOccurrence(now, wd)
		until := since.AddDate(0, 0, 1)
		return Result{Since: &since, Until: &until, DateTerms: []string{isoDate(since)}}, true
	})

	// "this week"
	tryMatch(regexp.MustCompile(`\bthis week\b`), func(now time.Time, m []string) (Result, bool) {
		since := startOfWeek(now)
		return Result{Since: &since, RecencyBoost: 7}, true
	})

	// "last week"
	tryMatch(regexp.MustCompile(`\blast week\b`), func(now time.Time, m []string) (Result, bool) {
		since := startOfWeek(now).AddDate(0, 0, -7)
		until := startOfWeek(now)
		return Result{Since: &since, Until: &until, RecencyBoost: 14}, true
	})

	// "next week"
	tryMatch(regexp.MustCompile(`\bnext week\b`), func(now time.Time, m []string) (Result, bool) {
		since := startOfWeek(now).AddDate(0, 0, 7)
		until := since.AddDate(0, 0, 7)
		return Result{Since: &since, Until: &until, RecencyBoost: 14, ForwardLooking: true}, true
	})

	// "this/last/next month"
	tryMatch(regexp.MustCompile(`\b(this|last|next) month\b`), func(now time.Time, m []string) (Result, bool) {
		switch m[1] {
		case "this":
			since := startOfMonth(now)
			return Result{Since: &since, RecencyBoost: 14}, true
		case "last":
			since := startOfMonth(now).AddDate(0, -1, 0)
			until := startOfMonth(now)
			return Result{Since: &since, Until: &until, RecencyBoost: 30}, true
		default: // next
			since := startOfMonth(now).AddDate(0, 1, 0)
			until := since.AddDate(0, 1, 0)
			return Result{Since: &since, Until: &until, RecencyBoost: 30, ForwardLooking: true}, true
		}
	})

	// "in <monthname>"
	tryMatch(regexp.MustCompile(`\bin (`+strings.Join(monthNames, "|")+`)\b`), func(now time.Time, m []string) (Result, bool) {
		mi := indexOf(monthNames, m[1]) + 1
		since := time.Date(now.Year(), time.Month(mi), 1, 0, 0, 0, 0, now.Location())
		until := since.AddDate(0, 1, 0)
		r := Result{Since: &since, Until: &until}
		if since.After(now) {
			r.ForwardLooking = true
			r.ForwardTerms = []string{m[1]}
		}
		return r, true
	})

	// "recently" / "lately"
	tryMatch(regexp.MustCompile(`\b(recently|lately)\b`), func(now time.Time, m []string) (Result, bool) {
		since := now.AddDate(0, 0, -7)
		return Result{Since: &since, RecencyBoost: 7}, true
	})

	// "last/past few/couple days"
	tryMatch(regexp.MustCompile(`\b(?:last|past) (?:few|couple) days\b`), func(now time.Time, m []string) (Result, bool) {
		since := now.AddDate(0, 0, -3)
		return Result{Since: &since, RecencyBoost: 7}, true
	})

	// "when did I/we start|begin|stop|quit"
	tryMatch(regexp.MustCompile(`\bwhen did (?:i|we) (?:start|begin|stop|quit)\b`), func(now time.Time, m []string) (Result, bool) {
		return Result{RecencyBoost: 90}, true
	})

	// Forward-looking keywords (independent of the since/until categories
	// above — can co-occur with any of them).
	if fwRe.MatchString(lower) {
		result.ForwardLooking = true
	}

	result.StrippedQuery = stripTemporalPhrases(query)
	return result
}

var fwRe = regexp.MustCompile(`\b(plans?|planned|planning|goals?|schedules?|scheduled|upcoming|deadlines?|due|milestones?|to-?do|coming up)\b`)

// temporalPhraseRe strips every recognized phrase category from the query
// text, re-normalizing whitespace/punctuation afterward. The compound and
// "last dayname" categories are listed ahead of the bare "(?:on )?dayname"
// category, each with its own optional leading "on " — since regexp
// alternation picks the first starting position with any match and, at a
// tied start position, the first alternative in the list that succeeds,
// listing the longer compound forms first (with the same optional "on "
// prefix) ensures e.g. "on Wednesday of last week" strips as one phrase
// instead of leaving "of last week" behind for the bare-dayname
// alternative to partially match.
var temporalPhraseRe = regexp.MustCompile(
	`(?i)\b(today|this morning|tonight|this evening|yesterday|day before yesterday|` +
		`\d{1,3} days? ago|` +
		`(?:on )?(?:` + strings.Join(weekdayNames, "|") + `) (?:of )?last week|(?:on )?last week'?s (?:` + strings.Join(weekdayNames, "|") + `)|` +
		`(?:on )?last (?:` + strings.Join(weekdayNames, "|") + `)|(?:on )?(?:` + strings.Join(weekdayNames, "|") + `)|` +
		`this week|last week|next week|this month|last month|next month|` +
		`in (?:` + strings.Join(monthNames, "|") + `)|recently|lately|` +
		`(?:last|past) (?:few|couple) days|when did (?:i|we) (?:start|begin|stop|quit))\b`,
)

var spaceBeforePunctRe = regexp.MustCompile(`\s+([?.,!;:])`)

func stripTemporalPhrases(query string) string {
	stripped := temporalPhraseRe.ReplaceAllString(query, "")
	stripped = regexp.MustCompile(`\s+`).ReplaceAllString(stripped, " ")
	stripped = spaceBeforePunctRe.ReplaceAllString(stripped, "$1")
	return strings.TrimSpace(stripped)
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}

// mostRecentOccurrence returns the most recent date (today inclusive)
// whose weekday is wd.
func mostRecentOccurrence(now time.Time, wd int) time.Time {
	today := startOfDay(now)
	diff := (int(today.Weekday()) - wd + 7) % 7
	return today.AddDate(0, 0, -diff)
}

// speechVerbRe matches the closed list of speech verbs used for attribution
// detection (§4.6, §4.10).
var speechVerbRe = regexp.MustCompile(`(?i)\b(said|says?|mentioned|talked|told|asked|suggested|argued|discussed|brought up|pointed out|noted|explained|described|proposed|recommended|warned|claimed|stated|announced|reported)\b`)

// IsAttributionQuery reports whether msg both names a known entity
// (substring match) and uses a speech verb from the closed list (§4.6).
func IsAttributionQuery(msg string, knownEntities []string) (bool, string) {
	if !speechVerbRe.MatchString(msg) {
		return false, ""
	}
	lower := strings.ToLower(msg)
	for _, e := range knownEntities {
		if e != "" && strings.Contains(lower, e) {
			return true, e
		}
	}
	return false, ""
}
