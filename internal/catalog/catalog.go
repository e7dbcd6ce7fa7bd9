// Package catalog holds named, tagged properties that can be selected with
// predicate expressions and run from the command line.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vulcand/predicate"

	"github.com/nomagicln/propbridge/pkg/check"
	"github.com/nomagicln/propbridge/pkg/runner"
)

// Entry is one catalogued property.
type Entry struct {
	Name        string
	Tags        []string
	Description string

	// Build creates the property. Properties that report progress call the
	// hooks of events.
	Build func(events *runner.TraceCalls) check.Property

	// Options are applied on top of the caller's check configuration.
	Options []check.Option
}

// HasTag reports whether e carries tag, ignoring case.
func (e Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// entryPredicate is a function that takes an Entry and returns a boolean.
type entryPredicate func(Entry) bool

// Catalog is a set of entries keyed by name. It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

// Register adds e, failing when the name is empty, taken or e has no Build.
func (c *Catalog) Register(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("entry name cannot be empty")
	}
	if e.Build == nil {
		return fmt.Errorf("entry '%s' has no property", e.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[e.Name]; ok {
		return fmt.Errorf("entry '%s' is already registered", e.Name)
	}
	c.entries[e.Name] = e
	return nil
}

// Get returns the entry called name.
func (c *Catalog) Get(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// Entries returns every entry sorted by name.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Filter returns the entries matching a predicate expression, sorted by
// name. An empty expression matches every entry.
//
// Expression syntax:
// - NameIs("lateness"): exact match on the entry name
// - NameContains("notation"): substring match on the name
// - NameStartsWith("notation/"): prefix match on the name
// - HasTag("slow"): check if the entry has a specific tag
// - DescriptionContains("order"): substring match on the description
// - Logical operators: && (and), || (or), ! (not)
//
// Examples:
// - HasTag("notation") && !HasTag("slow")
// - NameIs("lateness") || NameContains("sum")
func (c *Catalog) Filter(expr string) ([]Entry, error) {
	entries := c.Entries()
	if strings.TrimSpace(expr) == "" {
		return entries, nil
	}

	matcher, err := createMatcher(expr)
	if err != nil {
		return nil, err
	}

	var results []Entry
	for _, e := range entries {
		if matcher(e) {
			results = append(results, e)
		}
	}
	return results, nil
}

// createMatcher parses expr into an entry predicate.
func createMatcher(expr string) (entryPredicate, error) {
	parser, err := predicate.NewParser(predicate.Def{
		Functions: map[string]any{
			"NameIs":              nameIs,
			"NameContains":        nameContains,
			"NameStartsWith":      nameStartsWith,
			"HasTag":              hasTag,
			"DescriptionContains": descriptionContains,
		},
		Operators: predicate.Operators{
			AND: and,
			OR:  or,
			NOT: not,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create parser: %w", err)
	}

	pred, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	fn, ok := pred.(entryPredicate)
	if !ok {
		return nil, fmt.Errorf("filter must evaluate to boolean, got %T", pred)
	}
	return fn, nil
}

// Name predicates
func nameIs(name string) entryPredicate {
	return func(e Entry) bool {
		return strings.EqualFold(e.Name, name)
	}
}

func nameContains(substr string) entryPredicate {
	return func(e Entry) bool {
		return strings.Contains(strings.ToLower(e.Name), strings.ToLower(substr))
	}
}

func nameStartsWith(prefix string) entryPredicate {
	return func(e Entry) bool {
		return strings.HasPrefix(strings.ToLower(e.Name), strings.ToLower(prefix))
	}
}

// Tag predicates
func hasTag(tag string) entryPredicate {
	return func(e Entry) bool {
		return e.HasTag(tag)
	}
}

func descriptionContains(substr string) entryPredicate {
	return func(e Entry) bool {
		return strings.Contains(strings.ToLower(e.Description), strings.ToLower(substr))
	}
}

// Logical operators
func and(a, b entryPredicate) entryPredicate {
	return func(e Entry) bool {
		return a(e) && b(e)
	}
}

func or(a, b entryPredicate) entryPredicate {
	return func(e Entry) bool {
		return a(e) || b(e)
	}
}

func not(a entryPredicate) entryPredicate {
	return func(e Entry) bool {
		return !a(e)
	}
}
