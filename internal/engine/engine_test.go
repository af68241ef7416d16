package engine

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabmod/tabmod/internal/mapping"
	"github.com/tabmod/tabmod/internal/metrics"
	"github.com/tabmod/tabmod/internal/state"
	"github.com/tabmod/tabmod/pkg/eventbus"
	"github.com/tabmod/tabmod/pkg/tabular"
)

func newTestEngine(t *testing.T) (*Engine, *eventbus.Bus, *state.State) {
	t.Helper()
	bus := eventbus.New()
	st := state.New(bus)
	factory := tabular.NewFactory()
	factory.Register(&tabular.CSVHandler{}, func(path string) tabular.Handler { return tabular.NewCSVHandler(path) })
	factory.Register(&tabular.XLSXHandler{}, func(path string) tabular.Handler { return tabular.NewXLSXHandler(path) })
	e := New(bus, st, factory, metrics.New(), tabular.DefaultSchemaCache())
	return e, bus, st
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func countEvents(bus *eventbus.Bus, topic string) *int32 {
	var n int32
	bus.On(topic, func(sender, t string, p eventbus.Payload) { atomic.AddInt32(&n, 1) })
	return &n
}

func runAndWait(t *testing.T, e *Engine, ctx *mapping.Context, complete, canceledCount, errored *int32) {
	t.Helper()
	err := e.RunSync(ctx)
	require.NoError(t, err)
	_ = complete
	_ = canceledCount
	_ = errored
}

func TestRunIdentityMappingNoDedupe(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.csv", "a,b\n1,2\n4,5\n")

	e, bus, st := newTestEngine(t)
	complete := countEvents(bus, TopicComplete)
	progress100 := int32(0)
	bus.On(TopicProgress, func(sender, topic string, p eventbus.Payload) {
		if v, _ := p["value"].(int); v == 100 {
			atomic.AddInt32(&progress100, 1)
		}
	})

	ctx := &mapping.Context{
		Source: in,
		Mapping: mapping.Mapping{
			{Sources: []string{"a"}, Separator: " "},
			{Sources: []string{"b"}, Separator: " "},
		},
	}
	require.NoError(t, e.RunSync(ctx))

	assert.Equal(t, int32(1), atomic.LoadInt32(complete))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&progress100), int32(1))

	outPath := filepath.Join(dir, "a_processed.csv")
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n4,5\n", string(out))
	_ = st
}

func TestRunCombineWithSeparator(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.csv", "A,B,C\nx,1,u\ny,2,v\n,3,w\n")

	e, _, _ := newTestEngine(t)
	ctx := &mapping.Context{
		Source: in,
		Mapping: mapping.Mapping{
			{Sources: []string{"A"}, Separator: "|"},
			{Sources: []string{"B", "C"}, Separator: "-"},
		},
	}
	require.NoError(t, e.RunSync(ctx))

	outPath := filepath.Join(dir, "in_processed.csv")
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "A,Combined_2\nx,1-u\ny,2-v\n,3-w\n", string(out))
}

func TestRunStrictMissingSourceFailsWithoutWritingFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.csv", "A\nx\ny\n")

	e, bus, st := newTestEngine(t)
	st.Controls.Set("processing.strict", true)
	errored := countEvents(bus, TopicError)

	ctx := &mapping.Context{
		Source: in,
		Mapping: mapping.Mapping{
			{Sources: []string{"A", "B"}, Separator: "-"},
		},
	}
	err := e.RunSync(ctx)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(errored))

	_, statErr := os.Stat(filepath.Join(dir, "in_processed.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunDedupeDrop(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.csv", "A,B\nk1,b1\nk2,b2\nk1,b1_dup\nk3,b3\n")

	e, _, _ := newTestEngine(t)
	ctx := &mapping.Context{
		Source: in,
		Mapping: mapping.Mapping{
			{Sources: []string{"A"}, Separator: " "},
			{Sources: []string{"B"}, Separator: " "},
		},
		Dedupe: &mapping.Dedupe{Enabled: true, Key: "A", Strategy: mapping.DedupeDrop},
	}
	require.NoError(t, e.RunSync(ctx))

	outPath := filepath.Join(dir, "in_processed.csv")
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "A,B\nk1,b1\nk2,b2\nk3,b3\n", string(out))
}

func TestRunDedupeConcatWithEmptyValueTolerance(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.csv", "A,B,C\nk1,x,p\nk1,y,p\nk2,y,q\nk1,x,\n")

	e, _, _ := newTestEngine(t)
	ctx := &mapping.Context{
		Source: in,
		Mapping: mapping.Mapping{
			{Sources: []string{"A"}, Separator: " "},
			{Sources: []string{"B"}, Separator: " "},
			{Sources: []string{"C"}, Separator: " "},
		},
		Dedupe: &mapping.Dedupe{Enabled: true, Key: "A", Strategy: mapping.DedupeConcat, ConcatSep: ","},
	}
	require.NoError(t, e.RunSync(ctx))

	outPath := filepath.Join(dir, "in_processed.csv")
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "A,B,C\nk1,\"x,y\",p\nk2,y,q\n", string(out))
}

func TestRunCancellationMidStreamSavesPartialResult(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.csv", "a,b\n1,2\n3,4\n")

	e, bus, st := newTestEngine(t)
	st.Controls.Set("processing.chunk_size", 1)

	canceled := countEvents(bus, TopicCanceled)
	progress100 := int32(0)
	bus.On(TopicProgress, func(sender, topic string, p eventbus.Payload) {
		if v, _ := p["value"].(int); v == 100 {
			atomic.AddInt32(&progress100, 1)
		}
	})
	bus.On(TopicProgress, func(sender, topic string, p eventbus.Payload) {
		e.RequestCancel()
	})

	ctx := &mapping.Context{
		Source: in,
		Mapping: mapping.Mapping{
			{Sources: []string{"a"}, Separator: " "},
			{Sources: []string{"b"}, Separator: " "},
		},
	}
	require.NoError(t, e.RunSync(ctx))

	assert.Equal(t, int32(1), atomic.LoadInt32(canceled))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&progress100), int32(1))

	outPath := filepath.Join(dir, "in_processed.csv")
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(out))
}

func TestRunEmptyInputWithMappingWritesHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.csv", "a,b\n")

	e, bus, _ := newTestEngine(t)
	complete := countEvents(bus, TopicComplete)

	ctx := &mapping.Context{
		Source: in,
		Mapping: mapping.Mapping{
			{Sources: []string{"a"}, Separator: " "},
			{Sources: []string{"b"}, Separator: " "},
		},
	}
	require.NoError(t, e.RunSync(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(complete))

	outPath := filepath.Join(dir, "in_processed.csv")
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(out))
}

func TestRunEmptyMappingReportsNothingToProcessAndWritesNoFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.csv", "a,b\n1,2\n")

	e, bus, _ := newTestEngine(t)
	var msg string
	bus.On(TopicStatus, func(sender, topic string, p eventbus.Payload) {
		if m, ok := p["msg"].(string); ok {
			msg = m
		}
	})

	ctx := &mapping.Context{Source: in, Mapping: nil}
	require.NoError(t, e.RunSync(ctx))
	assert.Contains(t, msg, "Nothing to process")

	_, statErr := os.Stat(filepath.Join(dir, "in_processed.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunMissingSourceNonStrictWarnsAndSubstitutesEmptyString(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.csv", "A\nx\ny\n")

	e, bus, _ := newTestEngine(t)
	warnings := int32(0)
	bus.On(TopicStatus, func(sender, topic string, p eventbus.Payload) {
		if m, ok := p["msg"].(string); ok && len(m) > 0 {
			atomic.AddInt32(&warnings, 1)
		}
	})
	complete := countEvents(bus, TopicComplete)

	ctx := &mapping.Context{
		Source: in,
		Mapping: mapping.Mapping{
			{Sources: []string{"A", "B"}, Separator: "-"},
		},
	}
	require.NoError(t, e.RunSync(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(complete))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&warnings), int32(1))

	outPath := filepath.Join(dir, "in_processed.csv")
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "Combined_1\nx-\ny-\n", string(out))
}

func TestStartSpawnsAsynchronouslyAndCompletes(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.csv", "a,b\n1,2\n")

	e, bus, st := newTestEngine(t)
	done := make(chan struct{}, 1)
	bus.On(TopicComplete, func(sender, topic string, p eventbus.Payload) {
		select {
		case done <- struct{}{}:
		default:
		}
	})

	st.Controls.Set(ControlsCurrent, &mapping.Context{
		Source:  in,
		Mapping: mapping.Mapping{{Sources: []string{"a"}, Separator: " "}, {Sources: []string{"b"}, Separator: " "}},
	})
	e.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for processing.complete")
	}
}
