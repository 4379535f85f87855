package oauth

import (
	"regexp"
	"strings"
)

// scopeDelimiter matches runs of commas and whitespace separating scope tokens.
var scopeDelimiter = regexp.MustCompile(`[,\s]+`)

// NormalizeScope joins scope values into the single space-delimited string the
// accounts service expects.
//
// Each value may itself contain several tokens separated by whitespace or
// commas. Token order is preserved and duplicates are kept; normalization is
// idempotent.
func NormalizeScope(values ...string) string {
	var tokens []string
	for _, v := range values {
		for _, tok := range scopeDelimiter.Split(v, -1) {
			if tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return strings.Join(tokens, " ")
}

// ScopeIsSubset reports whether either scope string's token set contains the
// other's.
//
// The comparison is deliberately symmetric to tolerate order and format
// differences in the scope echoed back by the authorization server. Two empty
// scopes are subsets of each other; exactly one empty scope is not.
func ScopeIsSubset(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	return tokenSet(a).contains(tokenSet(b)) || tokenSet(b).contains(tokenSet(a))
}

// scopeCovers reports whether every token in required is present in granted.
// An empty required scope is covered by anything, including another empty
// scope. This is the directional gate [Validate] applies; [ScopeIsSubset]
// keeps the looser symmetric semantics.
func scopeCovers(granted, required string) bool {
	return tokenSet(granted).contains(tokenSet(required))
}

type scopeSet map[string]struct{}

func tokenSet(scope string) scopeSet {
	set := scopeSet{}
	for _, tok := range scopeDelimiter.Split(scope, -1) {
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

// contains reports whether every token in other is present in s.
func (s scopeSet) contains(other scopeSet) bool {
	for tok := range other {
		if _, ok := s[tok]; !ok {
			return false
		}
	}
	return true
}
