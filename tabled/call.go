// Package tabled implements recursive tabled-function execution:
// memoized answer tables keyed by call arguments, non-blocking
// acquisition of a function's pattern executor so mutually-recursive
// calls can suspend rather than deadlock, and suspend-point bookkeeping
// for semi-naive resumption, grounded on
// original_source/executor/read/tabled_functions.rs.
package tabled

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/typedb/typedb-sub004/batch"
	"github.com/typedb/typedb-sub004/tuple"
)

// CallKey identifies one memoized invocation of a tabled function: the
// function being called plus its fully-bound argument tuple.
type CallKey struct {
	FunctionID string
	Arguments  tuple.Tuple
}

func (k CallKey) String() string {
	return fmt.Sprintf("%s(%v)", k.FunctionID, []tuple.VariableValue(k.Arguments))
}

func (k CallKey) cacheKey() string {
	s := k.FunctionID + "|"
	for _, v := range k.Arguments {
		s += fmt.Sprintf("%d:%v;", v.Kind, v.Value)
	}
	return s
}

// PatternRunner is the subset of the pattern executor's behavior the
// tabled-function registry needs: advancing a compiled function body one
// batch at a time. Package exec's PatternExecutor implements this.
type PatternRunner interface {
	BatchContinue(ctx context.Context, interrupt batch.ExecutionInterrupt, functions *TabledFunctions, suspends *[]SuspendPoint) (*batch.FixedBatch, error)
}

// SuspendPoint records that a tabled call could not make progress because
// a dependency's answer table was locked by another in-flight evaluation,
// so the whole query's semi-naive loop must retry after a full round.
type SuspendPoint struct {
	Caller CallKey
	Callee CallKey
}

// LockAcquireResult tags the outcome of trying to acquire a function
// state's pattern executor for exclusive evaluation.
type LockAcquireResult uint8

const (
	LockAcquired LockAcquireResult = iota
	LockWouldBlock
	LockPoisoned
)

// ErrTabledFunctionLock is wrapped with the offending CallKey when a
// function state's mutex is poisoned (a prior evaluation panicked/failed
// while holding it).
var ErrTabledFunctionLock = errors.New("tabled function lock poisoned")

// TabledFunctionState is the per-call memoization record: the answer
// table accumulated so far, the suspended pattern executor that produces
// more answers on demand, and any outstanding suspend points blocking its
// own progress.
type TabledFunctionState struct {
	Key           CallKey
	AnswerTable   []*tuple.Row
	Runner        PatternRunner
	SuspendPoints []SuspendPoint
	Exhausted     bool

	mu       sync.Mutex
	poisoned bool
}

// TryAcquire attempts non-blocking exclusive access to the function
// state's runner, returning LockWouldBlock instead of blocking if another
// goroutine already holds it (mirrors Rust's std::sync::Mutex::try_lock).
func (s *TabledFunctionState) TryAcquire() LockAcquireResult {
	if !s.mu.TryLock() {
		return LockWouldBlock
	}
	if s.poisoned {
		s.mu.Unlock()
		return LockPoisoned
	}
	return LockAcquired
}

// Release gives up the lock acquired via TryAcquire. If the evaluation
// that held it failed, pass failed=true to poison the state so future
// acquisitions consistently report LockPoisoned rather than silently
// resuming from partial state.
func (s *TabledFunctionState) Release(failed bool) {
	if failed {
		s.poisoned = true
	}
	s.mu.Unlock()
}

// AddToTable appends a newly-produced batch's rows to the answer table,
// deduplicating against rows already present (semi-naive evaluation only
// ever wants to add genuinely new answers).
func (s *TabledFunctionState) AddToTable(b *batch.FixedBatch) {
	it := b.Iterator()
	for {
		row, ok := it.Next()
		if !ok {
			break
		}
		if !s.containsRow(row) {
			s.AnswerTable = append(s.AnswerTable, row)
		}
	}
}

func (s *TabledFunctionState) containsRow(row *tuple.Row) bool {
	for _, existing := range s.AnswerTable {
		if tuple.Tuple(existing.Values).Equal(tuple.Tuple(row.Values)) {
			return true
		}
	}
	return false
}

// TabledFunctions is the query-scoped registry of in-flight and
// completed tabled function calls.
type TabledFunctions struct {
	mu     sync.Mutex
	states map[string]*TabledFunctionState
	build  func(CallKey) (PatternRunner, error)
}

// NewTabledFunctions constructs an empty registry. build constructs a
// fresh PatternRunner (a compiled, unexecuted function body) for a call
// key the registry has not seen before.
func NewTabledFunctions(build func(CallKey) (PatternRunner, error)) *TabledFunctions {
	return &TabledFunctions{states: make(map[string]*TabledFunctionState), build: build}
}

// GetOrCreate returns the memoization state for key, constructing and
// registering a fresh one (via build) the first time key is seen.
func (t *TabledFunctions) GetOrCreate(key CallKey) (*TabledFunctionState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ck := key.cacheKey()
	if s, ok := t.states[ck]; ok {
		return s, nil
	}
	runner, err := t.build(key)
	if err != nil {
		return nil, err
	}
	s := &TabledFunctionState{Key: key, Runner: runner}
	t.states[ck] = s
	return s, nil
}
