package exec

import "github.com/typedb/typedb-sub004/batch"

// CollectingStageExecutor buffers every row of its input before
// producing any output, for stages (Sort, Reduce, Require) whose result
// genuinely depends on having seen the whole input first; grounded on
// original_source's `CollectingStage`.
type CollectingStageExecutor struct {
	apply func(all []*batch.FixedBatch) []*batch.FixedBatch

	// inner is the (possibly multi-step) pattern that produces the rows
	// this stage collects, e.g. the body preceding a Sort/Reduce/Require
	// stage.
	inner *PatternExecutor

	buffered []*batch.FixedBatch
	output   []*batch.FixedBatch
	prepared bool
	pos      int
}

// NewCollectingStageExecutor builds a collecting stage whose apply
// function turns the complete buffered input into the complete output,
// in one shot (the output is then streamed out one FixedBatch at a
// time). inner is the pattern executor producing the rows to collect.
func NewCollectingStageExecutor(inner *PatternExecutor, apply func(all []*batch.FixedBatch) []*batch.FixedBatch) *CollectingStageExecutor {
	return &CollectingStageExecutor{inner: inner, apply: apply}
}

// Prepare resets the executor for a fresh input stream.
func (c *CollectingStageExecutor) Prepare() {
	c.buffered = nil
	c.output = nil
	c.prepared = false
	c.pos = 0
}

// Accept buffers one batch of input.
func (c *CollectingStageExecutor) Accept(b *batch.FixedBatch) {
	c.buffered = append(c.buffered, b)
}

// Finalise runs apply over the buffered input, switching the executor
// into streaming mode.
func (c *CollectingStageExecutor) Finalise() {
	c.output = c.apply(c.buffered)
	c.prepared = true
}

// BatchContinue streams the next finalised batch, or nil once exhausted.
func (c *CollectingStageExecutor) BatchContinue() *batch.FixedBatch {
	if !c.prepared || c.pos >= len(c.output) {
		return nil
	}
	b := c.output[c.pos]
	c.pos++
	return b
}
