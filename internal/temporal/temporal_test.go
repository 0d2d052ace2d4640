package temporal

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2026, time.July, 31, 10, 0, 0, 0, time.UTC) // Friday

func TestResolveToday(t *testing.T) {
	r := Resolve("what did I do today", fixedNow)
	if r.Since == nil {
		t.Fatal("expected Since to be set")
	}
	wantSince := startOfDay(fixedNow)
	if !r.Since.Equal(wantSince) {
		t.Errorf("Since = %v, want %v", r.Since, wantSince)
	}
}

func TestResolveYesterday(t *testing.T) {
	r := Resolve("what happened yesterday", fixedNow)
	if r.Since == nil || r.Until == nil {
		t.Fatal("expected since/until to be set")
	}
	wantSince := startOfDay(fixedNow).AddDate(0, 0, -1)
	wantUntil := startOfDay(fixedNow)
	if !r.Since.Equal(wantSince) || !r.Until.Equal(wantUntil) {
		t.Errorf("got since=%v until=%v, want since=%v until=%v", r.Since, r.Until, wantSince, wantUntil)
	}
}

func TestResolveNDaysAgoValid(t *testing.T) {
	r := Resolve("what did we decide 5 days ago", fixedNow)
	if r.Since == nil || r.Until == nil {
		t.Fatal("expected since/until to be set")
	}
	wantSince := startOfDay(fixedNow).AddDate(0, 0, -5)
	if !r.Since.Equal(wantSince) {
		t.Errorf("Since = %v, want %v", r.Since, wantSince)
	}
	if len(r.DateTerms) != 1 || r.DateTerms[0] != wantSince.Format("2006-01-02") {
		t.Errorf("unexpected date terms: %v", r.DateTerms)
	}
}

// TestResolveNDaysAgoOutOfRangeFallsThrough exercises the bug fix: "400
// days ago" must be rejected by the N-days-ago category (N >= 365) and
// fall through to later categories instead of locking in an empty match.
func TestResolveNDaysAgoOutOfRangeFallsThrough(t *testing.T) {
	r := Resolve("400 days ago we talked about this recently", fixedNow)
	if r.Since == nil {
		t.Fatal("expected a later category (recently) to still match")
	}
	wantSince := fixedNow.AddDate(0, 0, -7)
	if !r.Since.Equal(wantSince) {
		t.Errorf("expected fallthrough to 'recently' category, got Since=%v want=%v", r.Since, wantSince)
	}
}

func TestResolveZeroDaysAgoRejected(t *testing.T) {
	r := Resolve("0 days ago", fixedNow)
	if r.Since != nil {
		t.Errorf("expected 0 days ago to be rejected (out of 0<N<365 range), got Since=%v", r.Since)
	}
}

func TestResolveLastWeekday(t *testing.T) {
	r := Resolve("what did I say last tuesday", fixedNow)
	if r.Since == nil {
		t.Fatal("expected Since to be set")
	}
	if r.Since.Weekday() != time.Tuesday {
		t.Errorf("expected resolved date to be a Tuesday, got %v", r.Since.Weekday())
	}
	if !r.Since.Before(fixedNow) {
		t.Errorf("expected last tuesday to be in the past, got %v", r.Since)
	}
}

// TestResolveS6CompoundDaynameOfLastWeek exercises spec.md's S6 scenario:
// now=2026-02-28 (Saturday), "Wednesday of last week" resolves to
// since=2026-02-18, until=2026-02-19, date_terms=[2026-02-18].
func TestResolveS6CompoundDaynameOfLastWeek(t *testing.T) {
	now := time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC)
	r := Resolve("What did I accomplish on Wednesday of last week?", now)
	wantSince := time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC)
	wantUntil := time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)
	if r.Since == nil || !r.Since.Equal(wantSince) {
		t.Errorf("Since = %v, want %v", r.Since, wantSince)
	}
	if r.Until == nil || !r.Until.Equal(wantUntil) {
		t.Errorf("Until = %v, want %v", r.Until, wantUntil)
	}
	if len(r.DateTerms) != 1 || r.DateTerms[0] != "2026-02-18" {
		t.Errorf("unexpected date terms: %v", r.DateTerms)
	}
	if r.StrippedQuery != "What did I accomplish?" {
		t.Errorf("StrippedQuery = %q, want %q", r.StrippedQuery, "What did I accomplish?")
	}
}

func TestResolveLastWeekdayDateTermIsISODate(t *testing.T) {
	r := Resolve("what did I say last tuesday", fixedNow)
	if len(r.DateTerms) != 1 {
		t.Fatalf("expected exactly one date term, got %v", r.DateTerms)
	}
	if _, err := time.Parse("2006-01-02", r.DateTerms[0]); err != nil {
		t.Errorf("expected ISO date term, got %q: %v", r.DateTerms[0], err)
	}
}

func TestResolveBareDaynameDateTermIsISODate(t *testing.T) {
	r := Resolve("on tuesday we discussed the budget", fixedNow)
	if len(r.DateTerms) != 1 {
		t.Fatalf("expected exactly one date term, got %v", r.DateTerms)
	}
	if _, err := time.Parse("2006-01-02", r.DateTerms[0]); err != nil {
		t.Errorf("expected ISO date term, got %q: %v", r.DateTerms[0], err)
	}
}

func TestResolveDayBeforeYesterdayDateTermIsISODate(t *testing.T) {
	r := Resolve("what happened the day before yesterday", fixedNow)
	wantSince := startOfDay(fixedNow).AddDate(0, 0, -2)
	if len(r.DateTerms) != 1 || r.DateTerms[0] != wantSince.Format("2006-01-02") {
		t.Errorf("unexpected date terms: %v, want [%s]", r.DateTerms, wantSince.Format("2006-01-02"))
	}
}

func TestResolveThisWeek(t *testing.T) {
	r := Resolve("this week's progress", fixedNow)
	if r.Since == nil {
		t.Fatal("expected Since to be set")
	}
	if r.RecencyBoost != 7 {
		t.Errorf("expected recency boost 7, got %v", r.RecencyBoost)
	}
}

func TestResolveLastMonth(t *testing.T) {
	r := Resolve("summarize last month", fixedNow)
	if r.Since == nil || r.Until == nil {
		t.Fatal("expected since/until to be set")
	}
	wantUntil := startOfMonth(fixedNow)
	if !r.Until.Equal(wantUntil) {
		t.Errorf("Until = %v, want %v", r.Until, wantUntil)
	}
}

func TestResolveNextMonthIsForwardLooking(t *testing.T) {
	r := Resolve("plans for next month", fixedNow)
	if !r.ForwardLooking {
		t.Error("expected next month to be forward-looking")
	}
	if r.Since == nil || !r.Since.After(fixedNow) {
		t.Errorf("expected Since to be in the future, got %v", r.Since)
	}
}

func TestResolveInMonthPast(t *testing.T) {
	r := Resolve("what happened in January", fixedNow)
	if r.ForwardLooking {
		t.Error("January is before July; should not be forward-looking")
	}
}

func TestResolveInMonthFuture(t *testing.T) {
	r := Resolve("what's planned in December", fixedNow)
	if !r.ForwardLooking {
		t.Error("December is after July; should be forward-looking")
	}
	if len(r.ForwardTerms) != 1 || r.ForwardTerms[0] != "december" {
		t.Errorf("unexpected forward terms: %v", r.ForwardTerms)
	}
}

func TestResolveRecently(t *testing.T) {
	r := Resolve("what have we discussed recently", fixedNow)
	if r.Since == nil {
		t.Fatal("expected Since to be set")
	}
	wantSince := fixedNow.AddDate(0, 0, -7)
	if !r.Since.Equal(wantSince) {
		t.Errorf("Since = %v, want %v", r.Since, wantSince)
	}
}

func TestResolveLastFewDays(t *testing.T) {
	r := Resolve("catch me up on the last few days", fixedNow)
	if r.Since == nil {
		t.Fatal("expected Since to be set")
	}
	wantSince := fixedNow.AddDate(0, 0, -3)
	if !r.Since.Equal(wantSince) {
		t.Errorf("Since = %v, want %v", r.Since, wantSince)
	}
}

func TestResolveWhenDidIStart(t *testing.T) {
	r := Resolve("when did I start this project", fixedNow)
	if r.RecencyBoost != 90 {
		t.Errorf("expected recency boost 90, got %v", r.RecencyBoost)
	}
}

func TestResolveForwardLookingKeywordIndependentOfDateCategory(t *testing.T) {
	r := Resolve("what are the plans and what did we do yesterday", fixedNow)
	if !r.ForwardLooking {
		t.Error("expected 'plans' to trigger forward-looking regardless of the yesterday match")
	}
	if r.Since == nil {
		t.Error("expected yesterday's since/until to still be resolved")
	}
}

func TestResolveStrippedQueryRemovesMatchedPhrase(t *testing.T) {
	r := Resolve("What did we decide yesterday about the database?", fixedNow)
	if r.StrippedQuery == "" {
		t.Fatal("expected a non-empty stripped query")
	}
	if containsWord(r.StrippedQuery, "yesterday") {
		t.Errorf("expected 'yesterday' to be stripped, got %q", r.StrippedQuery)
	}
}

func TestResolveNoMatchLeavesQueryUnchanged(t *testing.T) {
	r := Resolve("tell me about the database schema", fixedNow)
	if r.Since != nil || r.Until != nil {
		t.Error("expected no since/until for a query with no temporal phrase")
	}
	if r.StrippedQuery != "tell me about the database schema" {
		t.Errorf("expected stripped query unchanged, got %q", r.StrippedQuery)
	}
}

func TestIsAttributionQuery(t *testing.T) {
	known := []string{"alice", "bob"}

	ok, who := IsAttributionQuery("what did alice say about the migration", known)
	if !ok || who != "alice" {
		t.Errorf("expected attribution match on alice, got ok=%v who=%q", ok, who)
	}

	ok, _ = IsAttributionQuery("what is the migration status", known)
	if ok {
		t.Error("expected no attribution match without a speech verb")
	}

	ok, _ = IsAttributionQuery("carol mentioned the new plan", known)
	if ok {
		t.Error("expected no attribution match for an unknown entity")
	}
}

func containsWord(s, word string) bool {
	for i := 0; i+len(word) <= len(s); i++ {
		if s[i:i+len(word)] == word {
			return true
		}
	}
	return false
}
