package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/gatesched/internal/graphspec"
	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/pipeline"
	"github.com/roach88/gatesched/internal/store"
)

// AssertionError is returned when an expectation fails.
// It includes the schedule dump to help debug the failure.
type AssertionError struct {
	Type     string // Expectation kind, e.g. "block_of"
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Dump     string // Scheduled CFG, empty when the unit did not schedule
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Dump != "" {
		fmt.Fprintf(&buf, "\nSchedule:\n%s", e.Dump)
	}
	return buf.String()
}

// checker evaluates expectations against one compiled unit.
type checker struct {
	subject *graphspec.Compiled
	res     pipeline.Result
	place   map[ir.GateRef]int
	errs    []string
}

func (c *checker) fail(typ, expected, actual string) {
	err := &AssertionError{Type: typ, Expected: expected, Actual: actual, Dump: c.res.Dump}
	c.errs = append(c.errs, err.Error())
}

// ref resolves a gate name, recording a failure for unknown names.
func (c *checker) ref(typ, name string) (ir.GateRef, bool) {
	ref, ok := c.subject.Refs[name]
	if !ok {
		c.fail(typ, fmt.Sprintf("a gate named %q", name), "no such gate")
	}
	return ref, ok
}

// block returns the block a gate was placed in. Anchors map to their own
// block.
func (c *checker) block(typ, name string) (int, bool) {
	ref, ok := c.ref(typ, name)
	if !ok {
		return 0, false
	}
	if b, ok := c.res.Schedule.Tree.BlockOf(ref); ok {
		return b, true
	}
	b, ok := c.place[ref]
	if !ok {
		c.fail(typ, fmt.Sprintf("gate %s placed in a block", name), "not placed (unreachable or dead)")
	}
	return b, ok
}

// anchor names block b by its anchor gate.
func (c *checker) anchor(b int) string {
	ref := c.res.Schedule.Tree.Blocks[b]
	if ref == c.subject.Circuit.StateEntry() {
		return graphspec.EntryName
	}
	return c.subject.Name(ref)
}

// EvaluateExpectations checks exp against a compiled unit and returns one
// message per failed expectation, in a stable order.
func EvaluateExpectations(subject *graphspec.Compiled, res pipeline.Result, exp Expect) []string {
	c := &checker{subject: subject, res: res}

	want := exp.Outcome
	if want == "" {
		want = string(store.OutcomeScheduled)
	}
	if string(res.Outcome) != want {
		actual := string(res.Outcome)
		if res.Err != nil {
			actual += ": " + res.Err.Error()
		}
		c.fail("outcome", want, actual)
		return c.errs
	}
	if exp.ErrorCode != "" {
		var got string
		if ce, ok := res.Err.(*pipeline.CompileError); ok {
			got = ce.CauseCode()
		}
		if got != exp.ErrorCode {
			c.fail("error_code", exp.ErrorCode, got)
		}
	}

	if res.Schedule != nil {
		c.place = res.Schedule.Placement()
		c.checkIDom(exp.IDom)
		c.checkBlockOf(exp.BlockOf)
		c.checkSameBlock(exp.SameBlock)
		c.checkDominates(exp.Dominates)
	}
	if res.Typing != nil {
		c.checkTypes(exp.Types)
		c.checkConversions(exp.Conversions)
	}
	return c.errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *checker) checkIDom(idom map[string]string) {
	for _, name := range sortedKeys(idom) {
		ref, ok := c.ref("idom", name)
		if !ok {
			continue
		}
		b, ok := c.res.Schedule.Tree.BlockOf(ref)
		if !ok {
			c.fail("idom", fmt.Sprintf("%s anchors a block", name), "not a reachable state gate")
			continue
		}
		if got := c.anchor(c.res.Schedule.Tree.IDom[b]); got != idom[name] {
			c.fail("idom", fmt.Sprintf("idom(%s) = %s", name, idom[name]), got)
		}
	}
}

func (c *checker) checkBlockOf(blockOf map[string]string) {
	for _, name := range sortedKeys(blockOf) {
		b, ok := c.block("block_of", name)
		if !ok {
			continue
		}
		if got := c.anchor(b); got != blockOf[name] {
			c.fail("block_of", fmt.Sprintf("%s in block %s", name, blockOf[name]), "block "+got)
		}
	}
}

func (c *checker) checkSameBlock(groups [][]string) {
	for _, group := range groups {
		first, ok := c.block("same_block", group[0])
		if !ok {
			continue
		}
		for _, name := range group[1:] {
			b, ok := c.block("same_block", name)
			if ok && b != first {
				c.fail("same_block", fmt.Sprintf("%v in one block", group),
					fmt.Sprintf("%s in %s, %s in %s", group[0], c.anchor(first), name, c.anchor(b)))
			}
		}
	}
}

func (c *checker) checkDominates(pairs [][]string) {
	for _, pair := range pairs {
		a, okA := c.block("dominates", pair[0])
		b, okB := c.block("dominates", pair[1])
		if okA && okB && !c.res.Schedule.LCA.IsAncestor(a, b) {
			c.fail("dominates", fmt.Sprintf("block of %s dominates block of %s", pair[0], pair[1]),
				fmt.Sprintf("%s does not dominate %s", c.anchor(a), c.anchor(b)))
		}
	}
}

func (c *checker) checkTypes(types map[string]string) {
	for _, name := range sortedKeys(types) {
		ref, ok := c.ref("types", name)
		if !ok {
			continue
		}
		if got := c.res.Typing.TypeOf(ref).String(); got != types[name] {
			c.fail("types", fmt.Sprintf("%s is %s", name, types[name]), got)
		}
	}
}

func (c *checker) checkConversions(want map[string]int) {
	if want == nil {
		return
	}
	got := make(map[string]int, len(c.res.Conversions.ByKind))
	for k, n := range c.res.Conversions.ByKind {
		got[k.String()] = n
	}
	kinds := sortedKeys(got)
	for _, k := range sortedKeys(want) {
		if _, ok := got[k]; !ok {
			kinds = append(kinds, k)
		}
	}
	for _, k := range kinds {
		if got[k] != want[k] {
			c.fail("conversions", fmt.Sprintf("%d %s", want[k], k), fmt.Sprintf("%d", got[k]))
		}
	}
}
