package trace

import "time"

// Context gives the annotate/plan/exec/reduce layers a fixed set of
// instrumentation points. BaseContext is a zero-overhead no-op; an
// AnnotatedContext records timed Events through a Collector. Callers
// obtain the right one from NewContext and never type-switch on it.
type Context interface {
	QueryBegin(text string)
	QueryPlanned(plan string)
	QueryComplete(rowCount int, err error)

	// ExecuteStage wraps one pipeline stage's full run; fn returns the
	// number of rows the stage produced.
	ExecuteStage(name string, fn func() (int, error)) (int, error)

	// OpenInstruction wraps opening one planned instruction against a
	// single input row; fn returns the number of candidate rows found.
	OpenInstruction(instr string, fn func() (int, error)) (int, error)

	MergeJoinExecuted(leftAttrs, rightAttrs []string, leftCount, rightCount, resultCount int)
	TabledCallEvent(name string, key string, data map[string]interface{})
	ReduceGroupedEvent(groupCount, inputRows int)

	Collector() *Collector

	SetMetadata(key string, value interface{})
	GetMetadata(key string) (interface{}, bool)
}

// BaseContext is the no-op Context; every method is a direct pass-through.
type BaseContext struct {
	metadata map[string]interface{}
}

// NewContext returns an AnnotatedContext wired to handler, or a
// BaseContext if handler is nil.
func NewContext(handler Handler) Context {
	if handler == nil {
		return &BaseContext{}
	}
	return &AnnotatedContext{collector: NewCollector(handler)}
}

func (c *BaseContext) QueryBegin(text string)                           {}
func (c *BaseContext) QueryPlanned(plan string)                         {}
func (c *BaseContext) QueryComplete(rowCount int, err error)            {}
func (c *BaseContext) MergeJoinExecuted(_, _ []string, _, _, _ int)     {}
func (c *BaseContext) TabledCallEvent(string, string, map[string]interface{}) {}
func (c *BaseContext) ReduceGroupedEvent(int, int)                      {}
func (c *BaseContext) Collector() *Collector                            { return nil }

func (c *BaseContext) ExecuteStage(_ string, fn func() (int, error)) (int, error) {
	return fn()
}

func (c *BaseContext) OpenInstruction(_ string, fn func() (int, error)) (int, error) {
	return fn()
}

func (c *BaseContext) SetMetadata(key string, value interface{}) {
	if c.metadata == nil {
		c.metadata = make(map[string]interface{})
	}
	c.metadata[key] = value
}

func (c *BaseContext) GetMetadata(key string) (interface{}, bool) {
	if c.metadata == nil {
		return nil, false
	}
	v, ok := c.metadata[key]
	return v, ok
}

// AnnotatedContext is the full recording Context.
type AnnotatedContext struct {
	BaseContext
	collector  *Collector
	queryStart time.Time
}

func (c *AnnotatedContext) QueryBegin(text string) {
	c.queryStart = time.Now()
	c.collector.Add(Event{Name: QueryInvoked, Start: c.queryStart, Data: map[string]interface{}{"query": text}})
}

func (c *AnnotatedContext) QueryPlanned(plan string) {
	c.collector.Add(Event{Name: QueryPlanned, Start: time.Now(), Data: map[string]interface{}{"plan": plan}})
}

func (c *AnnotatedContext) QueryComplete(rowCount int, err error) {
	data := map[string]interface{}{"rows.count": rowCount, "success": err == nil}
	if err != nil {
		data["error"] = err.Error()
	}
	c.collector.AddTiming(QueryComplete, c.queryStart, data)
}

func (c *AnnotatedContext) ExecuteStage(name string, fn func() (int, error)) (int, error) {
	start := time.Now()
	c.collector.Add(Event{Name: StageBegin, Start: start, Data: map[string]interface{}{"stage": name}})

	rows, err := fn()

	data := map[string]interface{}{"stage": name, "rows.count": rows, "success": err == nil}
	if err != nil {
		data["error"] = err.Error()
	}
	c.collector.AddTiming(StageComplete, start, data)
	return rows, err
}

func (c *AnnotatedContext) OpenInstruction(instr string, fn func() (int, error)) (int, error) {
	start := time.Now()
	rows, err := fn()
	data := map[string]interface{}{"instruction": instr, "rows.count": rows, "success": err == nil}
	if err != nil {
		data["error"] = err.Error()
	}
	c.collector.AddTiming(InstructionOpened, start, data)
	return rows, err
}

func (c *AnnotatedContext) MergeJoinExecuted(leftAttrs, rightAttrs []string, leftCount, rightCount, resultCount int) {
	data := map[string]interface{}{
		"left.attrs":  leftAttrs,
		"right.attrs": rightAttrs,
		"left.size":   leftCount,
		"right.size":  rightCount,
		"result.size": resultCount,
	}
	if leftCount+rightCount > 0 {
		data["amplification"] = float64(resultCount) / float64(leftCount+rightCount)
	}
	c.collector.Add(Event{Name: MergeJoinExecuted, Start: time.Now(), Data: data})
}

func (c *AnnotatedContext) TabledCallEvent(name string, key string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["call.key"] = key
	c.collector.Add(Event{Name: name, Start: time.Now(), Data: data})
}

func (c *AnnotatedContext) ReduceGroupedEvent(groupCount, inputRows int) {
	c.collector.Add(Event{Name: ReduceGrouped, Start: time.Now(), Data: map[string]interface{}{
		"groups.count": groupCount,
		"rows.count":   inputRows,
	}})
}

func (c *AnnotatedContext) Collector() *Collector { return c.collector }
