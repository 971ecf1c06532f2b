// Package failure maps raw backend failure text to the fixed set of
// user-facing categories and their localized messages.
package failure

import "strings"

// Category is a user-facing failure class.
type Category int

const (
	Unknown Category = iota
	ModelUnavailable
	RateLimited
	InvalidRequest
)

// String returns the category name used in logs.
func (c Category) String() string {
	switch c {
	case ModelUnavailable:
		return "model_unavailable"
	case RateLimited:
		return "rate_limited"
	case InvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// Categories lists every category, Unknown last.
var Categories = []Category{ModelUnavailable, RateLimited, InvalidRequest, Unknown}

// DefaultText stands in for an absent failure text.
const DefaultText = "unknown error"

// Rule pairs a predicate over the raw failure text with the category it selects.
type Rule struct {
	Token    string
	Match    func(raw string) bool
	Category Category
}

func contains(token string, c Category) Rule {
	return Rule{
		Token:    token,
		Match:    func(raw string) bool { return strings.Contains(raw, token) },
		Category: c,
	}
}

// Rules is evaluated top to bottom; the first match wins. Order matters:
// an OpenAI "model_not_found" error is also an "invalid_request_error".
var Rules = []Rule{
	contains("model_not_found", ModelUnavailable),
	contains("rate_limit", RateLimited),
	contains("invalid_request_error", InvalidRequest),
}

// Classify returns the category for raw. Matching is case-sensitive.
func Classify(raw string) Category {
	if raw == "" {
		raw = DefaultText
	}
	for _, r := range Rules {
		if r.Match(raw) {
			return r.Category
		}
	}
	return Unknown
}

// ClassifyError classifies err's text; a nil error is Unknown.
func ClassifyError(err error) Category {
	if err == nil {
		return Classify("")
	}
	return Classify(err.Error())
}

// Text returns err's message, or DefaultText when there is none.
func Text(err error) string {
	if err == nil || err.Error() == "" {
		return DefaultText
	}
	return err.Error()
}
