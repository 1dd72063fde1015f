package reduce

import (
	"context"
	"math"
	"sort"

	"github.com/typedb/typedb-sub004/ir"
	"github.com/typedb/typedb-sub004/schema"
	"github.com/typedb/typedb-sub004/tuple"
)

// ValueExtractor materializes the Value underlying a row's column,
// reading through an attribute Thing via the ThingManager when needed.
// Mirrors the Rust original's `extract_value`.
type ValueExtractor struct {
	Snapshot schema.Snapshot
	Things   schema.ThingManager
}

func (e *ValueExtractor) extract(ctx context.Context, row *tuple.Row, pos tuple.VariablePosition) (*ir.Value, error) {
	v := row.Get(pos)
	switch v.Kind {
	case tuple.ValueEmpty:
		return nil, nil
	case tuple.ValueValue:
		val := v.Value
		return &val, nil
	case tuple.ValueThing:
		val, err := e.Things.AttributeValue(ctx, e.Snapshot, v.Thing)
		if err != nil {
			return nil, err
		}
		return &val, nil
	default:
		return nil, nil
	}
}

// executor is the per-group, per-reducer accumulator interface (Rust:
// ReducerAPI).
type executor interface {
	accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error
	finalise() tuple.VariableValue
	clone() executor
}

func build(instr Instruction) executor {
	switch instr.Kind {
	case Count:
		return &countExec{}
	case CountVar:
		return &countVarExec{target: instr.Target}
	case SumLong:
		return &sumLongExec{target: instr.Target}
	case SumDouble:
		return &sumDoubleExec{target: instr.Target}
	case MaxLong:
		return &maxLongExec{target: instr.Target}
	case MaxDouble:
		return &maxDoubleExec{target: instr.Target}
	case MinLong:
		return &minLongExec{target: instr.Target}
	case MinDouble:
		return &minDoubleExec{target: instr.Target}
	case MeanLong:
		return &meanLongExec{target: instr.Target}
	case MeanDouble:
		return &meanDoubleExec{target: instr.Target}
	case MedianLong:
		return &medianLongExec{target: instr.Target}
	case MedianDouble:
		return &medianDoubleExec{target: instr.Target}
	case StdLong:
		return &stdLongExec{target: instr.Target}
	case StdDouble:
		return &stdDoubleExec{target: instr.Target}
	default:
		return &countExec{}
	}
}

// --- Count ---

type countExec struct{ count uint64 }

func (e *countExec) accept(_ context.Context, _ *ValueExtractor, row *tuple.Row) error {
	e.count += row.Multiplicity
	return nil
}
func (e *countExec) finalise() tuple.VariableValue {
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeLong, Long: int64(e.count)}}
}
func (e *countExec) clone() executor { c := *e; return &c }

// --- CountVar ---

type countVarExec struct {
	count  uint64
	target tuple.VariablePosition
}

func (e *countVarExec) accept(_ context.Context, _ *ValueExtractor, row *tuple.Row) error {
	if row.Get(e.target).Kind != tuple.ValueEmpty {
		e.count += row.Multiplicity
	}
	return nil
}
func (e *countVarExec) finalise() tuple.VariableValue {
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeLong, Long: int64(e.count)}}
}
func (e *countVarExec) clone() executor { c := *e; return &c }

// --- Sum ---

type sumLongExec struct {
	sum    int64
	target tuple.VariablePosition
}

func (e *sumLongExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v != nil {
		e.sum += v.Long * int64(row.Multiplicity)
	}
	return nil
}
func (e *sumLongExec) finalise() tuple.VariableValue {
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeLong, Long: e.sum}}
}
func (e *sumLongExec) clone() executor { c := *e; return &c }

type sumDoubleExec struct {
	sum    float64
	target tuple.VariablePosition
}

func (e *sumDoubleExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v != nil {
		e.sum += v.Double * float64(row.Multiplicity)
	}
	return nil
}
func (e *sumDoubleExec) finalise() tuple.VariableValue {
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeDouble, Double: e.sum}}
}
func (e *sumDoubleExec) clone() executor { c := *e; return &c }

// --- Max ---

type maxLongExec struct {
	max    *int64
	target tuple.VariablePosition
}

func (e *maxLongExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if e.max == nil || v.Long > *e.max {
		val := v.Long
		e.max = &val
	}
	return nil
}
func (e *maxLongExec) finalise() tuple.VariableValue {
	if e.max == nil {
		return tuple.Empty
	}
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeLong, Long: *e.max}}
}
func (e *maxLongExec) clone() executor {
	c := *e
	if e.max != nil {
		v := *e.max
		c.max = &v
	}
	return &c
}

type maxDoubleExec struct {
	max    *float64
	target tuple.VariablePosition
}

func (e *maxDoubleExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if e.max == nil || v.Double > *e.max {
		val := v.Double
		e.max = &val
	}
	return nil
}
func (e *maxDoubleExec) finalise() tuple.VariableValue {
	if e.max == nil {
		return tuple.Empty
	}
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeDouble, Double: *e.max}}
}
func (e *maxDoubleExec) clone() executor {
	c := *e
	if e.max != nil {
		v := *e.max
		c.max = &v
	}
	return &c
}

// --- Min ---

type minLongExec struct {
	min    *int64
	target tuple.VariablePosition
}

func (e *minLongExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if e.min == nil || v.Long < *e.min {
		val := v.Long
		e.min = &val
	}
	return nil
}
func (e *minLongExec) finalise() tuple.VariableValue {
	if e.min == nil {
		return tuple.Empty
	}
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeLong, Long: *e.min}}
}
func (e *minLongExec) clone() executor {
	c := *e
	if e.min != nil {
		v := *e.min
		c.min = &v
	}
	return &c
}

type minDoubleExec struct {
	min    *float64
	target tuple.VariablePosition
}

func (e *minDoubleExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if e.min == nil || v.Double < *e.min {
		val := v.Double
		e.min = &val
	}
	return nil
}
func (e *minDoubleExec) finalise() tuple.VariableValue {
	if e.min == nil {
		return tuple.Empty
	}
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeDouble, Double: *e.min}}
}
func (e *minDoubleExec) clone() executor {
	c := *e
	if e.min != nil {
		v := *e.min
		c.min = &v
	}
	return &c
}

// --- Mean ---

type meanLongExec struct {
	sum    int64
	count  uint64
	target tuple.VariablePosition
}

func (e *meanLongExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v != nil {
		e.sum += v.Long * int64(row.Multiplicity)
		e.count += row.Multiplicity
	}
	return nil
}
func (e *meanLongExec) finalise() tuple.VariableValue {
	if e.count == 0 {
		return tuple.Empty
	}
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeDouble, Double: float64(e.sum) / float64(e.count)}}
}
func (e *meanLongExec) clone() executor { c := *e; return &c }

type meanDoubleExec struct {
	sum    float64
	count  uint64
	target tuple.VariablePosition
}

func (e *meanDoubleExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v != nil {
		e.sum += v.Double * float64(row.Multiplicity)
		e.count += row.Multiplicity
	}
	return nil
}
func (e *meanDoubleExec) finalise() tuple.VariableValue {
	if e.count == 0 {
		return tuple.Empty
	}
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeDouble, Double: e.sum / float64(e.count)}}
}
func (e *meanDoubleExec) clone() executor { c := *e; return &c }

// --- Median ---
// Multiplicity is intentionally NOT applied here: the accept path pushes
// the value once regardless of row multiplicity, diverging from
// Sum/Mean. This matches the reference implementation's known quirk
//; it is left as-is rather than
// silently "fixed".

type medianLongExec struct {
	values []int64
	target tuple.VariablePosition
}

func (e *medianLongExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v != nil {
		e.values = append(e.values, v.Long)
	}
	return nil
}
func (e *medianLongExec) finalise() tuple.VariableValue {
	if len(e.values) == 0 {
		return tuple.Empty
	}
	sorted := append([]int64(nil), e.values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var result float64
	n := len(sorted)
	if n%2 == 0 {
		result = float64(sorted[n/2-1]+sorted[n/2]) / 2.0
	} else {
		result = float64(sorted[n/2])
	}
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeDouble, Double: result}}
}
func (e *medianLongExec) clone() executor {
	c := *e
	c.values = append([]int64(nil), e.values...)
	return &c
}

type medianDoubleExec struct {
	values []float64
	target tuple.VariablePosition
}

func (e *medianDoubleExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v != nil {
		e.values = append(e.values, v.Double)
	}
	return nil
}
func (e *medianDoubleExec) finalise() tuple.VariableValue {
	if len(e.values) == 0 {
		return tuple.Empty
	}
	sorted := append([]float64(nil), e.values...)
	sort.Float64s(sorted)
	var result float64
	n := len(sorted)
	if n%2 == 0 {
		result = (sorted[n/2-1] + sorted[n/2]) / 2.0
	} else {
		result = sorted[n/2]
	}
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeDouble, Double: result}}
}
func (e *medianDoubleExec) clone() executor {
	c := *e
	c.values = append([]float64(nil), e.values...)
	return &c
}

// --- Std ---

type stdLongExec struct {
	sum       int64
	sumSquare float64 // accumulated as float64 to avoid overflow; matches the i128 widening of the original in spirit
	count     uint64
	target    tuple.VariablePosition
}

func (e *stdLongExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v != nil {
		x := v.Long
		e.sumSquare += float64(x) * float64(x) * float64(row.Multiplicity)
		e.sum += x * int64(row.Multiplicity)
		e.count += row.Multiplicity
	}
	return nil
}
func (e *stdLongExec) finalise() tuple.VariableValue {
	if e.count <= 1 {
		return tuple.Empty
	}
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeDouble, Double: sampleStdDev(float64(e.sum), e.sumSquare, float64(e.count))}}
}
func (e *stdLongExec) clone() executor { c := *e; return &c }

type stdDoubleExec struct {
	sum       float64
	sumSquare float64
	count     uint64
	target    tuple.VariablePosition
}

func (e *stdDoubleExec) accept(ctx context.Context, ex *ValueExtractor, row *tuple.Row) error {
	v, err := ex.extract(ctx, row, e.target)
	if err != nil {
		return err
	}
	if v != nil {
		x := v.Double
		e.sumSquare += x * x * float64(row.Multiplicity)
		e.sum += x * float64(row.Multiplicity)
		e.count += row.Multiplicity
	}
	return nil
}
func (e *stdDoubleExec) finalise() tuple.VariableValue {
	if e.count <= 1 {
		return tuple.Empty
	}
	return tuple.VariableValue{Kind: tuple.ValueValue, Value: ir.Value{Type: ir.ValueTypeDouble, Double: sampleStdDev(e.sum, e.sumSquare, float64(e.count))}}
}
func (e *stdDoubleExec) clone() executor { c := *e; return &c }

// sampleStdDev computes sqrt((sum_squares + n*mean^2 - 2*mean*sum)/(n-1)),
// the exact closed form used by the reference implementation.
func sampleStdDev(sum, sumSquares, n float64) float64 {
	mean := sum / n
	sampleVariance := (sumSquares + n*mean*mean - 2.0*mean*sum) / (n - 1.0)
	return math.Sqrt(sampleVariance)
}
