// Package engine implements the processing engine (C5): it reads a
// processing context from state, opens a tabular handler for the source,
// validates the mapping against the probed headers, streams or aggregates
// chunks through the transform and dedup packages, and saves the result —
// emitting lifecycle events throughout. Exactly one run executes per
// process at a time, enforced with golang.org/x/sync/singleflight: a
// concurrent call while a run is in flight attaches to that run's result
// instead of racing it.
package engine

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tabmod/tabmod/internal/dedup"
	"github.com/tabmod/tabmod/internal/mapping"
	"github.com/tabmod/tabmod/internal/metrics"
	"github.com/tabmod/tabmod/internal/state"
	"github.com/tabmod/tabmod/internal/transform"
	"github.com/tabmod/tabmod/pkg/eventbus"
	"github.com/tabmod/tabmod/pkg/log"
	"github.com/tabmod/tabmod/pkg/tabular"
)

const (
	TopicStart          = "processing.start"
	TopicCancel         = "processing.cancel"
	TopicCurrentUpdated = "processing.current.updated"
	TopicProgress       = "progress.update"
	TopicStatus         = "status.update"
	TopicComplete       = "processing.complete"
	TopicCanceled       = "processing.canceled"
	TopicError          = "processing.error"
)

// ControlsCurrent is the dotted control key the engine reads for the
// active processing context; see state.State's doc comment for the full
// list of keys the engine consults.
const ControlsCurrent = "processing.current"

// Engine orchestrates a single processing run at a time.
type Engine struct {
	bus         *eventbus.Bus
	state       *state.State
	factory     *tabular.Factory
	metrics     *metrics.Metrics
	schemaCache *tabular.SchemaCache

	group    singleflight.Group
	canceled int32
}

// New wires an engine to its dependencies. Pass eventbus.Default(),
// tabular.DefaultFactory(), and tabular.DefaultSchemaCache() for
// production use; tests typically construct fresh instances of each for
// isolation.
func New(bus *eventbus.Bus, st *state.State, factory *tabular.Factory, m *metrics.Metrics, cache *tabular.SchemaCache) *Engine {
	return &Engine{bus: bus, state: st, factory: factory, metrics: m, schemaCache: cache}
}

// Subscribe wires processing.start to spawn a run and processing.cancel to
// raise the cancellation flag. The processing.start handler spawns the run
// and returns immediately, leaving progress reporting to subsequent events.
func (e *Engine) Subscribe() (eventbus.Unsubscribe, error) {
	offStart, err := e.bus.On(TopicStart, func(sender, topic string, payload eventbus.Payload) {
		e.Start()
	})
	if err != nil {
		return nil, err
	}
	offCancel, err := e.bus.On(TopicCancel, func(sender, topic string, payload eventbus.Payload) {
		e.RequestCancel()
	})
	if err != nil {
		offStart()
		return nil, err
	}
	return func() {
		offStart()
		offCancel()
	}, nil
}

// RequestCancel raises the shared cancellation flag; it is checked at each
// chunk loop's top.
func (e *Engine) RequestCancel() { atomic.StoreInt32(&e.canceled, 1) }

func (e *Engine) clearCancel()     { atomic.StoreInt32(&e.canceled, 0) }
func (e *Engine) isCanceled() bool { return atomic.LoadInt32(&e.canceled) == 1 }

// Start spawns a run on a background goroutine and returns immediately.
// Concurrent calls while a run is already in flight attach to it instead
// of starting a second, giving "exactly one run per process at a time".
func (e *Engine) Start() {
	go func() {
		_, _, _ = e.group.Do("run", func() (interface{}, error) {
			e.clearCancel()
			return nil, e.run()
		})
	}()
}

// RunSync executes one run on the calling goroutine and returns its
// terminal error, if any — used by the CLI, which needs an exit code
// rather than an asynchronous event. It shares Start's singleflight group.
func (e *Engine) RunSync(ctx *mapping.Context) error {
	e.state.Controls.Set(ControlsCurrent, ctx)
	e.bus.Emit(TopicCurrentUpdated, 0, eventbus.Payload{"source": ctx.Source})
	_, err, _ := e.group.Do("run", func() (interface{}, error) {
		e.clearCancel()
		return nil, e.run()
	})
	return err
}

func (e *Engine) emitStatus(runID, msg string) {
	e.bus.Emit(TopicStatus, 0, eventbus.Payload{"msg": msg, "run_id": runID})
}

func (e *Engine) fail(runID, msg string) error {
	e.bus.Emit(TopicError, 0, eventbus.Payload{"msg": msg, "run_id": runID})
	e.metrics.RunsTotal.WithLabelValues("error").Inc()
	return fmt.Errorf("engine: %s", msg)
}

func (e *Engine) ioError(runID string, err error) error {
	e.emitStatus(runID, err.Error())
	e.bus.Emit(TopicError, 0, eventbus.Payload{"msg": err.Error(), "run_id": runID})
	e.metrics.RunsTotal.WithLabelValues("error").Inc()
	return err
}

func (e *Engine) run() error {
	runID := uuid.NewString()
	start := time.Now()

	ctxVal, ok := e.state.Controls.Get(ControlsCurrent)
	ctx, _ := ctxVal.(*mapping.Context)

	// 1. Guardrails.
	if !ok || ctx == nil || ctx.Source == "" || len(ctx.Mapping) == 0 {
		e.emitStatus(runID, "Nothing to process: source or mapping is empty")
		return nil
	}
	if err := ctx.Mapping.Validate(); err != nil {
		return e.fail(runID, fmt.Sprintf("invalid mapping: %v", err))
	}

	strict := e.state.Controls.GetBool("processing.strict", false)
	strictPerSlot := e.state.Controls.GetBool("processing.strict_per_slot", false)
	outputOverride := e.state.Controls.GetString("processing.output_path", "")
	chunkSize := e.state.Controls.GetInt("processing.chunk_size", 1000)
	csvDelimiter := e.state.Controls.GetString("processing.csv_delimiter", "")

	// 2. Open input.
	path, sheet := tabular.ParseSourceID(ctx.Source)
	in, err := e.factory.Create(path)
	if err != nil {
		return e.ioError(runID, err)
	}
	if sheet != "" {
		in.SetSheetName(sheet)
	}
	if csvDelimiter != "" {
		if csv, ok := in.(*tabular.CSVHandler); ok {
			csv.Delimiter = []rune(csvDelimiter)[0]
		}
	}
	applySkipRows(in, ctx.SkipRows)

	// 3. Probe and validate. The schema cache spares repeated runs against
	// the same source a re-sniff of its dialect or a re-walk of its sheet.
	var headers []string
	schema, err := e.schemaCache.GetOrProbe(ctx.Source, in.GetSchema)
	if err != nil {
		e.emitStatus(runID, fmt.Sprintf("could not read headers, proceeding without validation: %v", err))
		headers = nil
	} else {
		headers = make([]string, 0, len(schema))
		for name := range schema {
			headers = append(headers, name)
		}
		if msg, fatal := e.checkStrictness(ctx.Mapping, headers, strict, strictPerSlot); msg != "" {
			if fatal {
				return e.fail(runID, msg)
			}
			e.emitStatus(runID, msg)
		}
	}

	var dd *mapping.Dedupe
	if ctx.Dedupe != nil {
		if eff, ok := ctx.Dedupe.Effective(headers); ok {
			dd = &eff
		} else if ctx.Dedupe.Enabled {
			e.emitStatus(runID, "dedupe key missing from probed headers, proceeding without dedup")
		}
	}

	// 4. Prepare output.
	outPath := outputOverride
	if outPath == "" {
		outPath = defaultOutputPath(path)
	}
	out, err := e.factory.Create(outPath)
	if err != nil {
		return e.ioError(runID, err)
	}
	if sheet != "" {
		out.SetSheetName(sheet)
	}

	totalRows, knownTotal := e.estimateTotalRows(path, sheet, ctx, chunkSize)

	rowsProcessed := 0
	wroteAny := false
	reportProgress := func() {
		e.bus.Emit(TopicProgress, 0, eventbus.Payload{
			"value":  progressValue(rowsProcessed, totalRows, knownTotal, chunkSize),
			"run_id": runID,
		})
	}

	chunks, err := in.IterLoad(chunkSize)
	if err != nil {
		return e.ioError(runID, err)
	}

	// 5. Stream or aggregate.
	switch {
	case dd == nil:
		for c := range chunks {
			if e.isCanceled() {
				break
			}
			if c.Err != nil {
				return e.ioError(runID, c.Err)
			}
			e.countChunk(&rowsProcessed, c.Table.NumRows())

			mapped := transform.ApplyMapping(c.Table, ctx.Mapping)
			if mapped.NumCols() > 0 {
				if err := appendWithFallback(out, mapped); err != nil {
					return e.ioError(runID, err)
				}
				wroteAny = true
			}
			reportProgress()
		}

	case dd.Strategy == mapping.DedupeConcat:
		agg := dedup.NewConcatAggregator(dd.Key, dd.ConcatSep, ctx.Mapping)
		for c := range chunks {
			if e.isCanceled() {
				break
			}
			if c.Err != nil {
				return e.ioError(runID, c.Err)
			}
			e.countChunk(&rowsProcessed, c.Table.NumRows())
			if !agg.AddChunk(c.Table) {
				if ok, err := e.fallbackNoDedupe(out, c.Table, ctx.Mapping, runID); err != nil {
					return err
				} else if ok {
					wroteAny = true
				}
			}
			reportProgress()
		}
		if !e.isCanceled() {
			mapped := transform.ApplyMapping(agg.Table(), ctx.Mapping)
			if mapped.NumCols() > 0 {
				if err := appendWithFallback(out, mapped); err != nil {
					return e.ioError(runID, err)
				}
				wroteAny = wroteAny || mapped.NumRows() > 0
			}
		}

	default: // mapping.DedupeDrop
		agg := dedup.NewDropAggregator(dd.Key, ctx.Mapping)
		for c := range chunks {
			if e.isCanceled() {
				break
			}
			if c.Err != nil {
				return e.ioError(runID, c.Err)
			}
			e.countChunk(&rowsProcessed, c.Table.NumRows())
			if !agg.AddChunk(c.Table) {
				if ok, err := e.fallbackNoDedupe(out, c.Table, ctx.Mapping, runID); err != nil {
					return err
				} else if ok {
					wroteAny = true
				}
			}
			reportProgress()
		}
		if !e.isCanceled() {
			mapped := transform.ApplyMapping(agg.Table(), ctx.Mapping)
			if mapped.NumCols() > 0 {
				if err := appendWithFallback(out, mapped); err != nil {
					return e.ioError(runID, err)
				}
				wroteAny = wroteAny || mapped.NumRows() > 0
			}
		}
	}

	// 8. Empty result: still write the header row.
	if !wroteAny {
		if err := out.AppendTable(tabular.NewTable(ctx.Mapping.OutputColumns())); err != nil {
			return e.ioError(runID, err)
		}
	}

	// 7. Cancellation: save what was appended so far and stop.
	if e.isCanceled() {
		if err := out.SaveAs(outPath); err != nil {
			return e.ioError(runID, err)
		}
		e.bus.Emit(TopicProgress, 0, eventbus.Payload{"value": 100, "run_id": runID})
		e.bus.Emit(TopicCanceled, 0, eventbus.Payload{"path": outPath, "run_id": runID})
		e.metrics.RunsTotal.WithLabelValues("canceled").Inc()
		return nil
	}

	// 9. Save.
	if err := out.SaveAs(outPath); err != nil {
		return e.ioError(runID, err)
	}
	e.bus.Emit(TopicProgress, 0, eventbus.Payload{"value": 100, "run_id": runID})

	// 10. Finish.
	elapsed := time.Since(start)
	throughput := 0.0
	if elapsed.Seconds() > 0 {
		throughput = float64(rowsProcessed) / elapsed.Seconds()
	}
	e.metrics.ProcessingDuration.Observe(elapsed.Seconds())
	e.metrics.RunsTotal.WithLabelValues("complete").Inc()
	e.state.Controls.Set("processing.last_elapsed_seconds", elapsed.Seconds())
	e.state.Controls.Set("processing.last_throughput_rows_per_s", throughput)

	e.emitStatus(runID, fmt.Sprintf("Done: %d rows in %.2fs", rowsProcessed, elapsed.Seconds()))
	e.bus.Emit(TopicComplete, 0, eventbus.Payload{
		"path":                  outPath,
		"elapsed_seconds":       elapsed.Seconds(),
		"throughput_rows_per_s": throughput,
		"run_id":                runID,
	})
	log.Infof("engine: run %s complete: %d rows, %.2fs", runID, rowsProcessed, elapsed.Seconds())
	return nil
}

func (e *Engine) countChunk(rowsProcessed *int, n int) {
	e.metrics.ChunksProcessedTotal.Inc()
	e.metrics.RowsProcessedTotal.Add(float64(n))
	*rowsProcessed += n
}

// fallbackNoDedupe runs the plain mapping-apply path for a chunk the
// active aggregator rejected because its key column was absent, so that
// one malformed chunk downgrades only itself rather than the whole run.
func (e *Engine) fallbackNoDedupe(out tabular.Handler, t *tabular.Table, m mapping.Mapping, runID string) (bool, error) {
	mapped := transform.ApplyMapping(t, m)
	if mapped.NumCols() == 0 {
		return false, nil
	}
	if err := appendWithFallback(out, mapped); err != nil {
		return false, e.ioError(runID, err)
	}
	return true, nil
}

// checkStrictness returns a non-empty message when the probed headers
// don't satisfy the mapping's sources, and whether that message is fatal.
func (e *Engine) checkStrictness(m mapping.Mapping, headers []string, strict, strictPerSlot bool) (msg string, fatal bool) {
	missingPerSlot := mapping.MissingPerSlot(m, headers)
	missingAll := mapping.MissingSources(m, headers)
	switch {
	case strictPerSlot && len(missingPerSlot) > 0:
		return "Missing required columns (per-slot strict)", true
	case strict && len(missingAll) > 0:
		return "Missing required columns", true
	case len(missingAll) > 0:
		names := make([]string, 0, len(missingAll))
		for n := range missingAll {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Sprintf("missing columns, substituting empty strings: %s", strings.Join(names, ", ")), false
	default:
		return "", false
	}
}

// estimateTotalRows runs a cheap prepass over a fresh handler instance
// (so it doesn't consume the real, non-restartable iterator) using large
// chunks; any failure degrades to "unknown" rather than aborting the run.
func (e *Engine) estimateTotalRows(path, sheet string, ctx *mapping.Context, chunkSize int) (total int, known bool) {
	probe, err := e.factory.Create(path)
	if err != nil {
		return 0, false
	}
	if sheet != "" {
		probe.SetSheetName(sheet)
	}
	applySkipRows(probe, ctx.SkipRows)

	large := chunkSize * 50
	if large <= 0 {
		large = 50000
	}
	chunks, err := probe.IterLoad(large)
	if err != nil {
		return 0, false
	}
	for c := range chunks {
		if c.Err != nil {
			return 0, false
		}
		total += c.Table.NumRows()
	}
	return total, true
}

// applySkipRows passes the explicit row list to SetRowsToSkip. That method
// has no way to report a rejection, so no header-count fallback is ever
// made.
func applySkipRows(h tabular.Handler, rows []int) {
	if len(rows) == 0 {
		return
	}
	h.SetRowsToSkip(rows)
	if !mapping.IsContiguousZeroBasedPrefix(rows) {
		return
	}
	// Already expressible as a header count; SetRowsToSkip above already
	// takes precedence, so no further action is needed unless a handler
	// implementation chooses to reject explicit lists outright (none of
	// ours do).
}

// appendWithFallback calls AppendTable, falling back to row-by-row
// AppendRow on failure so a single bad chunk degrades gracefully instead
// of aborting the run.
func appendWithFallback(out tabular.Handler, t *tabular.Table) error {
	if err := out.AppendTable(t); err == nil {
		return nil
	}
	log.Warnf("engine: append_df failed, falling back to row-by-row append")
	for _, row := range t.Rows {
		if err := out.AppendRow(row); err != nil {
			return err
		}
	}
	return nil
}

func defaultOutputPath(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return stem + "_processed" + ext
}

// progressValue computes a lifecycle progress percentage: when the total
// row count is known, min(99, max(1, rows·95/total) + 5); otherwise a
// monotonically increasing coarse estimate min(99, 5 + rows/chunk_size).
func progressValue(rows, total int, known bool, chunkSize int) int {
	if known && total > 0 {
		base := rows * 95 / total
		if base < 1 {
			base = 1
		}
		v := base + 5
		if v > 99 {
			v = 99
		}
		return v
	}
	if chunkSize <= 0 {
		chunkSize = 1
	}
	v := 5 + rows/chunkSize
	if v > 99 {
		v = 99
	}
	return v
}
