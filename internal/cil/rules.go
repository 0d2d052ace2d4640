package cil

import "regexp"

var strongRulePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)non-negotiable`),
	regexp.MustCompile(`(?i)hard rules?`),
	regexp.MustCompile(`(?i)never.*without`),
	regexp.MustCompile(`(?i)always.*require`),
	regexp.MustCompile(`(?i)must.*approval`),
	regexp.MustCompile(`(?i)do not.*ever`),
	regexp.MustCompile(`(?i)blocked entirely`),
	regexp.MustCompile(`(?i)mandatory`),
	regexp.MustCompile(`(?i)critical.*rule`),
}

var moderateRulePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rules?:`),
	regexp.MustCompile(`(?i)policy`),
	regexp.MustCompile(`(?i)guidelines?`),
	regexp.MustCompile(`(?i)protocol.*non`),
	regexp.MustCompile(`(?i)guardrails?`),
	regexp.MustCompile(`(?i)before any`),
	regexp.MustCompile(`(?i)no exceptions`),
}

var ruleQueryRe = regexp.MustCompile(`(?i)\b(rule|policy|guidelines?)\b`)

// ruleConfidence reports how strongly text (content + heading, lowercased
// by the caller) reads as a hard rule, per §4.6's strong/moderate pattern
// tables.
func ruleConfidence(text string) float64 {
	for _, re := range strongRulePatterns {
		if re.MatchString(text) {
			return 0.9
		}
	}
	moderateHits := 0
	for _, re := range moderateRulePatterns {
		if re.MatchString(text) {
			moderateHits++
		}
	}
	switch {
	case moderateHits >= 2:
		return 0.7
	case moderateHits == 1:
		return 0.4
	default:
		return 0
	}
}

// skipRulePenalty reports whether the rule penalty should not apply: the
// caller is explicitly asking about rules, or the query's intent is
// reasoning (§4.6).
func skipRulePenalty(message string, intent Intent) bool {
	return ruleQueryRe.MatchString(message) || intent == IntentReasoning
}
