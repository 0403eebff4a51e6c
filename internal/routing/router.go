// Package routing maps order numbers to supplier contacts through an ordered rule table.
package routing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rpattn/orderdesk/internal/canon"
)

// ErrNoSupplier is returned when no rule matches; the operator enters the contact manually.
var ErrNoSupplier = errors.New("no supplier matches order number")

// RuleKind selects how a rule's pattern is applied.
type RuleKind string

const (
	// RulePrefix matches order numbers starting with Pattern, case-insensitively.
	RulePrefix RuleKind = "prefix"
	// RuleRegex matches order numbers against the Pattern regular expression.
	RuleRegex RuleKind = "regex"
	// RuleDigits matches all-digit order numbers of exactly Length digits that start with Pattern.
	RuleDigits RuleKind = "digits"
)

// Supplier is the contact notified about an order line.
type Supplier struct {
	Name  string `json:"name" mapstructure:"name"`
	Email string `json:"email" mapstructure:"email"`
	Phone string `json:"phone,omitempty" mapstructure:"phone"`
}

// Rule pairs a predicate with the supplier it routes to.
type Rule struct {
	Kind     RuleKind `mapstructure:"kind"`
	Pattern  string   `mapstructure:"pattern"`
	Length   int      `mapstructure:"length"`
	Supplier Supplier `mapstructure:"supplier"`
}

type compiledRule struct {
	rule  Rule
	match func(string) bool
}

// Router evaluates rules in order; the first match wins.
type Router struct {
	rules []compiledRule
}

// NewRouter validates and compiles rules.
func NewRouter(rules []Rule) (*Router, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for idx, rule := range rules {
		if strings.TrimSpace(rule.Supplier.Name) == "" {
			return nil, fmt.Errorf("rule %d: supplier name is required", idx+1)
		}
		match, err := compile(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", idx+1, rule.Supplier.Name, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, match: match})
	}
	return &Router{rules: compiled}, nil
}

func compile(rule Rule) (func(string) bool, error) {
	switch rule.Kind {
	case RulePrefix:
		prefix := strings.ToLower(strings.TrimSpace(rule.Pattern))
		if prefix == "" {
			return nil, errors.New("prefix pattern is empty")
		}
		return func(order string) bool {
			return strings.HasPrefix(strings.ToLower(order), prefix)
		}, nil
	case RuleRegex:
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		return re.MatchString, nil
	case RuleDigits:
		if rule.Length <= 0 {
			return nil, errors.New("digits rule needs a positive length")
		}
		prefix := strings.TrimSpace(rule.Pattern)
		return func(order string) bool {
			return len(order) == rule.Length && allDigits(order) && strings.HasPrefix(order, prefix)
		}, nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", rule.Kind)
	}
}

// Route returns the supplier for an order number.
func (r *Router) Route(orderNumber string) (Supplier, error) {
	order := canon.Canonicalize(orderNumber)
	if order == "" || r == nil {
		return Supplier{}, ErrNoSupplier
	}
	for _, rule := range r.rules {
		if rule.match(order) {
			return rule.rule.Supplier, nil
		}
	}
	return Supplier{}, fmt.Errorf("%w: %s", ErrNoSupplier, order)
}

// Len returns the number of rules.
func (r *Router) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
