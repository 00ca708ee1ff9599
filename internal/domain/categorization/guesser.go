// Package categorization assigns spending categories to transaction
// descriptions using keyword rules.
package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Uncategorized is returned when no rule matches a description.
const Uncategorized = "Uncategorized"

// Rule maps a category to the keywords that imply it. Rules earlier in the
// list win over later ones, so "uber eats" under Food must precede "uber"
// under Transport.
type Rule struct {
	Category string
	Keywords []string
}

// DefaultRules covers the broad statement categories.
func DefaultRules() []Rule {
	return []Rule{
		{Category: "Housing", Keywords: []string{"mortgage", "rent", "property"}},
		{Category: "Food", Keywords: []string{"grocery", "restaurant", "cafe", "doordash", "uber eats"}},
		{Category: "Transport", Keywords: []string{"uber", "lyft", "gas", "shell", "chevron", "fuel"}},
		{Category: "Utilities", Keywords: []string{"electric", "water", "internet", "phone", "utility"}},
		{Category: "Insurance", Keywords: []string{"insurance", "geico", "progressive"}},
		{Category: "Debt", Keywords: []string{"loan", "payday", "interest", "credit card", "minimum payment"}},
		{Category: "Income", Keywords: []string{"salary", "payroll", "paycheck", "deposit"}},
	}
}

// Guesser matches descriptions against keyword rules in a single pass.
type Guesser struct {
	mu       sync.RWMutex
	matcher  *ahocorasick.Matcher
	category []string // per pattern index
	rank     []int    // rule position per pattern index, lower wins
}

// NewGuesser builds a guesser over the default rule set.
func NewGuesser() *Guesser {
	g := &Guesser{}
	g.Load(DefaultRules())
	return g
}

// Load replaces the active rule set.
func (g *Guesser) Load(rules []Rule) {
	var patterns [][]byte
	var category []string
	var rank []int
	for i, rule := range rules {
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			patterns = append(patterns, []byte(kw))
			category = append(category, rule.Category)
			rank = append(rank, i)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(patterns) > 0 {
		g.matcher = ahocorasick.NewMatcher(patterns)
	} else {
		g.matcher = nil
	}
	g.category = category
	g.rank = rank
}

// Guess returns the category for a transaction description, or Uncategorized
// when no keyword appears in it.
func (g *Guesser) Guess(description string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.matcher == nil {
		return Uncategorized
	}

	hits := g.matcher.Match([]byte(strings.ToLower(description)))
	if len(hits) == 0 {
		return Uncategorized
	}

	best := -1
	for _, idx := range hits {
		if idx < 0 || idx >= len(g.rank) {
			continue
		}
		if best == -1 || g.rank[idx] < g.rank[best] {
			best = idx
		}
	}
	if best == -1 {
		return Uncategorized
	}
	return g.category[best]
}
