// Package mock generates pseudo-random values for @ directives.
//
// A directive is first offered to the pattern engine, which knows a fixed
// vocabulary of placeholder names such as @integer(1,100), @name or
// @date("yyyy-MM-dd"). Directives it does not recognise fall back to the
// generator library, addressed by a dotted category path such as
// @person.fullName or @internet.email.
package mock

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/LingHeChen/stencil/logger"
)

// Marker prefixes every directive
const Marker = "@"

// ErrUnrecognized is returned by a Pattern that does not know a directive
var ErrUnrecognized = errors.New("unrecognized mock directive")

// Pattern is the primary, declarative generator
type Pattern interface {
	Generate(directive string) (interface{}, error)
}

// Generator resolves directives through the pattern engine and the
// fallback library. It is safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	faker    *gofakeit.Faker
	now      func() time.Time
	patterns Pattern
	library  Library
}

// Option is a functional option for Generator
type Option func(*Generator)

// WithSeed makes generation deterministic. Zero picks a random seed.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.faker = gofakeit.New(seed)
	}
}

// WithClock sets the time source used by date directives
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithPattern replaces the primary pattern engine
func WithPattern(p Pattern) Option {
	return func(g *Generator) {
		g.patterns = p
	}
}

// WithLibrary replaces the fallback generator library
func WithLibrary(lib Library) Option {
	return func(g *Generator) {
		g.library = lib
	}
}

// New creates a new Generator
func New(opts ...Option) *Generator {
	g := &Generator{
		faker: gofakeit.New(0),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.patterns == nil {
		g.patterns = newPatternEngine(g)
	}
	if g.library == nil {
		g.library = DefaultLibrary(g)
	}
	return g
}

// Lookup generates a value for directive and reports whether either
// generator produced one.
func (g *Generator) Lookup(directive string) (val interface{}, ok bool) {
	directive = strings.TrimSpace(directive)
	if !strings.HasPrefix(directive, Marker) {
		return nil, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Mock generator panicked", "directive", directive, "panic", r)
			val, ok = nil, false
		}
	}()

	val, err := g.patterns.Generate(directive)
	if err == nil {
		return val, true
	}
	if !errors.Is(err, ErrUnrecognized) {
		logger.Debug("Mock pattern failed, trying library", "directive", directive, "error", err)
	}

	return g.library.Walk(strings.TrimPrefix(directive, Marker))
}

// Generate is Lookup without the flag: an unknown directive comes back
// unchanged. It never fails.
func (g *Generator) Generate(directive string) interface{} {
	if val, ok := g.Lookup(directive); ok {
		return val
	}
	return directive
}
