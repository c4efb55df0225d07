package analyzer

import "strings"

// fallbackRule is one keyword rule in the policy fallback classifier.
type fallbackRule struct {
	name     string
	keywords []string
}

// policyFallbackRules is the synchronous keyword classifier spec.md §4.4
// runs against text when the policy breaker is open: a coarse, local
// stand-in for the (unreachable) upstream policy analyzer, never used for
// any other analyzer.
var policyFallbackRules = []fallbackRule{
	{name: "weapons", keywords: []string{"bomb", "explosive", "detonat"}},
	{name: "self_harm", keywords: []string{"suicide", "self-harm", "self harm"}},
	{name: "violence", keywords: []string{"kill everyone", "mass shooting"}},
}

// PolicyFallback runs the keyword classifier against text. It returns the
// matched rule name and true if any rule fires, so the caller can build the
// "policy_fallback:<rule>" reason spec.md §4.4 specifies.
func PolicyFallback(text string) (rule string, fired bool) {
	lower := strings.ToLower(text)
	for _, r := range policyFallbackRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.name, true
			}
		}
	}
	return "", false
}
