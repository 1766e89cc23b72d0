package emitter

import (
	"reflect"
	"testing"
)

func recorder(log *[]string, label string) Listener {
	return func(args ...any) { *log = append(*log, label) }
}

func TestEmit(t *testing.T) {
	t.Run("no listeners", func(t *testing.T) {
		e := New()
		if e.Emit("message") {
			t.Fatal("expected false with no listeners")
		}
	})

	t.Run("arguments passed through", func(t *testing.T) {
		e := New()
		var got []any
		e.On("message", func(args ...any) { got = args })
		if !e.Emit("message", "a", 2) {
			t.Fatal("expected true")
		}
		if !reflect.DeepEqual(got, []any{"a", 2}) {
			t.Fatalf("unexpected args: %v", got)
		}
	})

	t.Run("names are case-insensitive", func(t *testing.T) {
		e := New()
		calls := 0
		e.On("Login", func(args ...any) { calls++ })
		e.Emit("LOGIN")
		e.Emit("login")
		if calls != 2 {
			t.Fatalf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("registration order within a bucket", func(t *testing.T) {
		e := New()
		var log []string
		e.On("scan", recorder(&log, "first"))
		e.On("scan", recorder(&log, "second"))
		e.On("scan", recorder(&log, "third"))
		e.Emit("scan")
		if !reflect.DeepEqual(log, []string{"first", "second", "third"}) {
			t.Fatalf("unexpected order: %v", log)
		}
	})

	t.Run("pattern listeners run before exact listeners", func(t *testing.T) {
		e := New()
		var log []string
		e.On("msg1", recorder(&log, "exact"))
		e.On("msg*", recorder(&log, "pattern"))
		e.Emit("msg1", "x")
		if !reflect.DeepEqual(log, []string{"pattern", "exact"}) {
			t.Fatalf("unexpected order: %v", log)
		}
	})

	t.Run("pattern listener receives event name last", func(t *testing.T) {
		e := New()
		var got []any
		e.On("contact-*", func(args ...any) { got = args })
		e.Emit("Contact-Dirty", "c1")
		if !reflect.DeepEqual(got, []any{"c1", "contact-dirty"}) {
			t.Fatalf("unexpected args: %v", got)
		}
	})

	t.Run("exact listener does not receive event name", func(t *testing.T) {
		e := New()
		var got []any
		e.On("contact-dirty", func(args ...any) { got = args })
		e.Emit("contact-dirty", "c1")
		if !reflect.DeepEqual(got, []any{"c1"}) {
			t.Fatalf("unexpected args: %v", got)
		}
	})
}

func TestGlobMatching(t *testing.T) {
	e := New()
	var seen []string
	e.On("contact-*", func(args ...any) { seen = append(seen, args[len(args)-1].(string)) })

	e.Emit("contact-dirty", 1)
	e.Emit("contact-created", 2)
	e.Emit("room-dirty", 3)

	if !reflect.DeepEqual(seen, []string{"contact-dirty", "contact-created"}) {
		t.Fatalf("unexpected matches: %v", seen)
	}

	t.Run("question mark matches one character", func(t *testing.T) {
		e := New()
		calls := 0
		e.On("room-?", func(args ...any) { calls++ })
		e.Emit("room-a")
		e.Emit("room-ab")
		e.Emit("room-")
		if calls != 1 {
			t.Fatalf("expected 1 call, got %d", calls)
		}
	})

	t.Run("regexp metacharacters are literal", func(t *testing.T) {
		e := New()
		calls := 0
		e.On("a.b*", func(args ...any) { calls++ })
		e.Emit("a.bc")
		e.Emit("axbc")
		if calls != 1 {
			t.Fatalf("expected 1 call, got %d", calls)
		}
	})

	t.Run("emitting a pattern name literally delivers once", func(t *testing.T) {
		e := New()
		calls := 0
		e.On("contact-*", func(args ...any) { calls++ })
		e.Emit("contact-*")
		if calls != 1 {
			t.Fatalf("expected 1 call, got %d", calls)
		}
	})
}

func TestOnceAndMany(t *testing.T) {
	t.Run("once fires a single time", func(t *testing.T) {
		e := New()
		calls := 0
		e.Once("login", func(args ...any) { calls++ })
		e.Emit("login")
		if e.Emit("login") {
			t.Fatal("expected no listener on second emit")
		}
		if calls != 1 {
			t.Fatalf("expected 1 call, got %d", calls)
		}
		if n := e.ListenerCount("login"); n != 0 {
			t.Fatalf("expected once listener to be removed, count=%d", n)
		}
	})

	t.Run("many stops after the limit", func(t *testing.T) {
		e := New()
		calls := 0
		e.Many("tick", 2, func(args ...any) { calls++ })
		for i := 0; i < 3; i++ {
			e.Emit("tick")
		}
		if calls != 2 {
			t.Fatalf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("many with zero is inert", func(t *testing.T) {
		e := New()
		e.Many("tick", 0, func(args ...any) { t.Fatal("inert listener called") })
		if e.Emit("tick") {
			t.Fatal("expected false")
		}
	})

	t.Run("counted pattern listener", func(t *testing.T) {
		e := New()
		calls := 0
		e.Many("room-*", 1, func(args ...any) { calls++ })
		e.Emit("room-join")
		e.Emit("room-leave")
		if calls != 1 {
			t.Fatalf("expected 1 call, got %d", calls)
		}
	})
}

func TestOff(t *testing.T) {
	t.Run("removes by id", func(t *testing.T) {
		e := New()
		var log []string
		id := e.On("message", recorder(&log, "a"))
		e.On("message", recorder(&log, "b"))
		if !e.Off("MESSAGE", id) {
			t.Fatal("expected Off to report removal")
		}
		e.Emit("message")
		if !reflect.DeepEqual(log, []string{"b"}) {
			t.Fatalf("unexpected calls: %v", log)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		e := New()
		e.On("message", func(args ...any) {})
		if e.Off("message", 999) {
			t.Fatal("expected false for unknown id")
		}
	})

	t.Run("only the named bucket", func(t *testing.T) {
		e := New()
		var log []string
		id := e.OnNames([]string{"login", "logout"}, recorder(&log, "x"))
		e.Off("login", id)
		e.Emit("login")
		e.Emit("logout")
		if !reflect.DeepEqual(log, []string{"x"}) {
			t.Fatalf("unexpected calls: %v", log)
		}
	})

	t.Run("remove listener everywhere", func(t *testing.T) {
		e := New()
		calls := 0
		id := e.OnNames([]string{"login", "logout"}, func(args ...any) { calls++ })
		e.RemoveListener(id)
		e.Emit("login")
		e.Emit("logout")
		if calls != 0 {
			t.Fatalf("expected no calls, got %d", calls)
		}
	})
}

func TestRemoveAllListeners(t *testing.T) {
	e := New()
	calls := 0
	e.On("scan", func(args ...any) { calls++ })
	e.On("login", func(args ...any) { calls++ })

	e.RemoveAllListeners("SCAN")
	e.Emit("scan")
	e.Emit("login")
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}

	e.RemoveAllListeners()
	e.Emit("login")
	if calls != 1 {
		t.Fatalf("expected no further calls, got %d", calls)
	}
	if names := e.EventNames(); len(names) != 0 {
		t.Fatalf("expected empty table, got %v", names)
	}
}

func TestDispatchSnapshot(t *testing.T) {
	t.Run("listener added during emit waits for the next emit", func(t *testing.T) {
		e := New()
		var log []string
		e.On("message", func(args ...any) {
			log = append(log, "outer")
			e.On("message", recorder(&log, "inner"))
		})
		e.Emit("message")
		if !reflect.DeepEqual(log, []string{"outer"}) {
			t.Fatalf("unexpected first dispatch: %v", log)
		}
		e.Emit("message")
		if !reflect.DeepEqual(log, []string{"outer", "outer", "inner"}) {
			t.Fatalf("unexpected second dispatch: %v", log)
		}
	})

	t.Run("listener removed during emit still runs this time", func(t *testing.T) {
		e := New()
		var log []string
		var second ID
		e.On("message", func(args ...any) {
			log = append(log, "first")
			e.Off("message", second)
		})
		second = e.On("message", recorder(&log, "second"))
		e.Emit("message")
		e.Emit("message")
		if !reflect.DeepEqual(log, []string{"first", "second", "first"}) {
			t.Fatalf("unexpected calls: %v", log)
		}
	})

	t.Run("reentrant emit", func(t *testing.T) {
		e := New()
		var log []string
		e.On("outer", func(args ...any) {
			log = append(log, "outer")
			e.Emit("inner")
		})
		e.On("inner", recorder(&log, "inner"))
		e.Emit("outer")
		if !reflect.DeepEqual(log, []string{"outer", "inner"}) {
			t.Fatalf("unexpected calls: %v", log)
		}
	})
}

func TestListenerPanicIsolated(t *testing.T) {
	e := New()
	var log []string
	e.On("message", func(args ...any) { panic("boom") })
	e.On("message", recorder(&log, "after"))
	if !e.Emit("message") {
		t.Fatal("expected true")
	}
	if !reflect.DeepEqual(log, []string{"after"}) {
		t.Fatalf("expected delivery to continue, got %v", log)
	}
}

func TestNilListenerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil listener")
		}
	}()
	New().On("message", nil)
}
