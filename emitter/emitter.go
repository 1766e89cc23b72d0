// Package emitter provides the publish/subscribe dispatcher that delivers
// puppet and domain events to application callbacks.
//
// Event names are case-insensitive. A listener registered under a name that
// contains '*' or '?' is a pattern listener: it receives every event whose
// name matches the glob, with the matched event name appended as an extra
// trailing argument.
//
// Example:
//
//	bus := emitter.New()
//	bus.On("contact-*", func(args ...any) {
//		event := args[len(args)-1].(string)
//		fmt.Println("contact event:", event)
//	})
//	bus.Emit("contact-dirty", "contact-id")
package emitter

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// ============================================================================
// Types
// ============================================================================

// Listener is the callback signature for every event.
type Listener func(args ...any)

// ID identifies a registered listener. Go functions are not comparable, so
// removal goes through the ID returned at registration time.
type ID uint64

type entry struct {
	id        ID
	fn        Listener
	limited   bool
	remaining int
}

// Emitter is a goroutine-safe event dispatcher. Dispatch runs synchronously
// on the goroutine that calls Emit.
type Emitter struct {
	mu       sync.Mutex
	order    []string // bucket names in first-registration order
	buckets  map[string][]*entry
	patterns map[string]*regexp.Regexp
	nextID   ID
	logger   *slog.Logger
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithLogger sets the logger used to report recovered listener panics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an empty Emitter.
func New(opts ...Option) *Emitter {
	e := &Emitter{
		buckets:  make(map[string][]*entry),
		patterns: make(map[string]*regexp.Regexp),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ============================================================================
// Registration
// ============================================================================

// On registers a persistent listener under name.
func (e *Emitter) On(name string, listener Listener) ID {
	return e.add([]string{name}, listener, false, 0)
}

// OnNames registers one persistent listener under several names. The
// returned ID covers every registration.
func (e *Emitter) OnNames(names []string, listener Listener) ID {
	return e.add(names, listener, false, 0)
}

// Once registers a listener that fires at most once.
func (e *Emitter) Once(name string, listener Listener) ID {
	return e.add([]string{name}, listener, true, 1)
}

// Many registers a listener capped at times invocations. A listener with no
// remaining invocations is never called again.
func (e *Emitter) Many(name string, times int, listener Listener) ID {
	return e.add([]string{name}, listener, true, times)
}

func (e *Emitter) add(names []string, listener Listener, limited bool, times int) ID {
	if listener == nil {
		panic("emitter: nil listener")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	for _, name := range names {
		name = strings.ToLower(name)
		if _, ok := e.buckets[name]; !ok {
			e.order = append(e.order, name)
		}
		e.buckets[name] = append(e.buckets[name], &entry{
			id:        id,
			fn:        listener,
			limited:   limited,
			remaining: times,
		})
	}
	return id
}

// Off removes the first entry registered under name with the given ID.
// It reports whether an entry was removed.
func (e *Emitter) Off(name string, id ID) bool {
	name = strings.ToLower(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	bucket := e.buckets[name]
	for i, en := range bucket {
		if en.id == id {
			e.buckets[name] = append(bucket[:i:i], bucket[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveListener removes every entry carrying id, across all names.
func (e *Emitter) RemoveListener(id ID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, bucket := range e.buckets {
		kept := bucket[:0:0]
		for _, en := range bucket {
			if en.id != id {
				kept = append(kept, en)
			}
		}
		e.buckets[name] = kept
	}
}

// RemoveAllListeners clears the buckets for the given names, or the whole
// table when called without names.
func (e *Emitter) RemoveAllListeners(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(names) == 0 {
		e.order = nil
		e.buckets = make(map[string][]*entry)
		return
	}
	for _, name := range names {
		e.buckets[strings.ToLower(name)] = nil
	}
}

// ListenerCount returns the number of live listeners registered exactly
// under name. Exhausted counted listeners are not included.
func (e *Emitter) ListenerCount(name string) int {
	name = strings.ToLower(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, en := range e.buckets[name] {
		if !en.limited || en.remaining > 0 {
			n++
		}
	}
	return n
}

// EventNames returns the registered names that still hold listeners, in
// registration order.
func (e *Emitter) EventNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var names []string
	for _, name := range e.order {
		if len(e.buckets[name]) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// ============================================================================
// Dispatch
// ============================================================================

type batch struct {
	pattern bool
	entries []*entry
}

// Emit delivers args to every listener matching name: pattern buckets first
// in table order, then the exact bucket, each in registration order. The
// listener set is captured before any listener runs, so registrations made
// by a listener only affect later emits. Emit reports whether at least one
// listener was invoked.
func (e *Emitter) Emit(name string, args ...any) bool {
	name = strings.ToLower(name)

	e.mu.Lock()
	var batches []batch
	for _, key := range e.order {
		bucket := e.buckets[key]
		if len(bucket) == 0 || !isPattern(key) || !e.matchLocked(key, name) {
			continue
		}
		batches = append(batches, batch{pattern: true, entries: append([]*entry(nil), bucket...)})
	}
	// A pattern name emitted literally already matched itself above.
	if !isPattern(name) {
		if bucket := e.buckets[name]; len(bucket) > 0 {
			batches = append(batches, batch{entries: append([]*entry(nil), bucket...)})
		}
	}
	e.mu.Unlock()

	emitted := false
	exhausted := false
	for _, b := range batches {
		callArgs := args
		if b.pattern {
			callArgs = make([]any, 0, len(args)+1)
			callArgs = append(callArgs, args...)
			callArgs = append(callArgs, name)
		}
		for _, en := range b.entries {
			ok, last := e.take(en)
			if !ok {
				continue
			}
			exhausted = exhausted || last
			e.invoke(name, en, callArgs)
			emitted = true
		}
	}

	if exhausted {
		e.prune()
	}
	return emitted
}

// take claims one invocation for en. last reports whether the claim used up
// a counted listener.
func (e *Emitter) take(en *entry) (ok, last bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !en.limited {
		return true, false
	}
	if en.remaining <= 0 {
		return false, false
	}
	en.remaining--
	return true, en.remaining == 0
}

func (e *Emitter) invoke(name string, en *entry, args []any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("emitter: listener panicked",
				"event", name,
				"listener", en.id,
				"panic", r,
			)
		}
	}()
	en.fn(args...)
}

func (e *Emitter) prune() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, bucket := range e.buckets {
		kept := bucket[:0:0]
		for _, en := range bucket {
			if !en.limited || en.remaining > 0 {
				kept = append(kept, en)
			}
		}
		e.buckets[name] = kept
	}
}

// ============================================================================
// Glob matching
// ============================================================================

func isPattern(name string) bool {
	return strings.ContainsAny(name, "*?")
}

// matchLocked reports whether pattern matches name. Caller holds e.mu.
func (e *Emitter) matchLocked(pattern, name string) bool {
	re, ok := e.patterns[pattern]
	if !ok {
		re = compileGlob(pattern)
		e.patterns[pattern] = re
	}
	return re.MatchString(name)
}

func compileGlob(pattern string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.NewReplacer(`\*`, `.*`, `\?`, `.`).Replace(quoted)
	return regexp.MustCompile(`(?is)^` + quoted + `$`)
}
