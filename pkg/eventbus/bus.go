// Package eventbus provides a process-wide publish/subscribe bus with
// hierarchical dotted topic names, suffix-wildcard subscriptions, delayed
// emission, and inferred sender identity.
//
// A small Bus guards its subscription table with a mutex, exposed through
// a package-level singleton plus constructors for tests that want an
// isolated instance.
package eventbus

import (
	"errors"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/tabmod/tabmod/pkg/log"
)

// ErrBadPattern is returned by On when topic contains "*" anywhere other
// than as a trailing ".*" suffix.
var ErrBadPattern = errors.New("eventbus: bad pattern, '*' only allowed as a trailing '.*' suffix")

// Payload carries the keyword arguments of an emission.
type Payload map[string]any

// Handler receives the inferred or explicit sender, the exact topic that
// matched, and the emitted payload.
type Handler func(sender, topic string, payload Payload)

type subscription struct {
	id      uint64
	pattern string
	handler Handler
}

// Unsubscribe removes a single subscription. Calling it more than once, or
// on a subscription that was already removed, is a no-op.
type Unsubscribe func()

// Bus is a hierarchical, wildcard-capable, thread-safe event bus.
type Bus struct {
	mu       sync.Mutex
	exact    map[string][]subscription
	wildcard map[string][]subscription
	nextID   uint64
}

// New returns an empty, independent bus. Use New in tests that must not
// leak handlers into the package-wide Default bus.
func New() *Bus {
	return &Bus{
		exact:    make(map[string][]subscription),
		wildcard: make(map[string][]subscription),
	}
}

var defaultOnce sync.Once
var defaultBus *Bus

// Default returns the process-wide singleton bus.
func Default() *Bus {
	defaultOnce.Do(func() { defaultBus = New() })
	return defaultBus
}

func isWildcard(topic string) bool {
	return strings.HasSuffix(topic, ".*")
}

// On subscribes handler to topic, which is either an exact dotted name
// ("a.b.c") or a suffix wildcard ("a.b.*"). Any other use of '*' is
// rejected with ErrBadPattern.
func (b *Bus) On(topic string, handler Handler) (Unsubscribe, error) {
	if strings.Contains(topic, "*") && !isWildcard(topic) {
		return nil, ErrBadPattern
	}
	if strings.Count(topic, "*") > 1 {
		return nil, ErrBadPattern
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	sub := subscription{id: id, pattern: topic, handler: handler}
	if isWildcard(topic) {
		b.wildcard[topic] = append(b.wildcard[topic], sub)
	} else {
		b.exact[topic] = append(b.exact[topic], sub)
	}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if isWildcard(topic) {
			b.wildcard[topic] = removeSub(b.wildcard[topic], id)
		} else {
			b.exact[topic] = removeSub(b.exact[topic], id)
		}
	}, nil
}

func removeSub(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Off removes one subscription previously registered with On. Since On
// already returns an Unsubscribe closure, Off is provided for callers that
// track handlers by topic+function identity instead. Identity is
// established by pointer equality of the function value, which requires
// handler to be the exact value passed to On (not a re-wrapped closure).
func (b *Bus) Off(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	table := b.exact
	if isWildcard(topic) {
		table = b.wildcard
	}
	subs := table[topic]
	out := subs[:0:0]
	for _, s := range subs {
		if !sameFunc(s.handler, handler) {
			out = append(out, s)
		}
	}
	table[topic] = out
}

func sameFunc(a, b Handler) bool {
	return funcPointer(a) == funcPointer(b)
}

// Emit dispatches topic to every exact subscriber plus every wildcard
// subscriber whose pattern is a strict prefix of topic+".". When delay is
// greater than zero, dispatch happens asynchronously on a timer; the sender
// is still captured at emit time, not at dispatch time.
func (b *Bus) Emit(topic string, delay time.Duration, payload Payload) {
	sender := InferSender()
	if delay > 0 {
		time.AfterFunc(delay, func() { b.dispatch(sender, topic, payload) })
		return
	}
	b.dispatch(sender, topic, payload)
}

// EmitAs is Emit with an explicit sender, bypassing stack-based inference.
// Useful for tests and for call sites that already know their logical
// sender identity (e.g. a background worker goroutine).
func (b *Bus) EmitAs(sender, topic string, delay time.Duration, payload Payload) {
	if delay > 0 {
		time.AfterFunc(delay, func() { b.dispatch(sender, topic, payload) })
		return
	}
	b.dispatch(sender, topic, payload)
}

func (b *Bus) dispatch(sender, topic string, payload Payload) {
	b.mu.Lock()
	handlers := append([]subscription{}, b.exact[topic]...)
	prefix := topic + "."
	for pattern, subs := range b.wildcard {
		if strings.HasPrefix(prefix, pattern[:len(pattern)-1]) {
			handlers = append(handlers, subs...)
		}
	}
	b.mu.Unlock()

	for _, sub := range handlers {
		invoke(sub.handler, sender, topic, payload)
	}
}

func invoke(h Handler, sender, topic string, payload Payload) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("eventbus: handler for %q panicked: %v", topic, r)
		}
	}()
	h(sender, topic, payload)
}

// InferSender walks the call stack past eventbus's own frames to the first
// foreign frame and reports "package:Type.Method" when the frame has a
// receiver, else "package:function".
func InferSender() string {
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "tabmod/pkg/eventbus") {
			return formatFrame(frame.Function)
		}
		if !more {
			break
		}
	}
	return "unknown"
}

func formatFrame(fn string) string {
	// fn looks like "github.com/tabmod/tabmod/internal/engine.(*Engine).run"
	// or "github.com/tabmod/tabmod/cmd/tabmod.main".
	slash := strings.LastIndex(fn, "/")
	rest := fn
	if slash >= 0 {
		rest = fn[slash+1:]
	}
	dot := strings.Index(rest, ".")
	if dot < 0 {
		return "unknown:" + rest
	}
	pkg := rest[:dot]
	member := rest[dot+1:]
	member = strings.ReplaceAll(member, "(*", "")
	member = strings.ReplaceAll(member, ")", "")
	return pkg + ":" + member
}
