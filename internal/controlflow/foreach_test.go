// ABOUTME: Tests for the forEach evaluator's frame expansion and depth enforcement
// ABOUTME: Exercises flat iteration, nested parent linkage, and the runtime depth check

package controlflow

import (
	"testing"

	execctx "github.com/corewave/orchestrator/internal/context"
	"github.com/corewave/orchestrator/pkg/types"
)

func TestExpandForEach_FlatSequence(t *testing.T) {
	ctx := execctx.New(map[string]interface{}{
		"items": []interface{}{"a", "b", "c"},
	})
	spec := &types.ForEachSpec{In: "{{ input.items }}"}

	frames, err := ExpandForEach(spec, ctx, 3)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, want := range []string{"a", "b", "c"} {
		if frames[i].Item != want || frames[i].Index != i {
			t.Errorf("frame %d: expected item %q index %d, got %v/%d", i, want, i, frames[i].Item, frames[i].Index)
		}
		if frames[i].Parent != nil {
			t.Errorf("frame %d: expected no parent at top level", i)
		}
	}
}

func TestExpandForEach_NestedLinksParent(t *testing.T) {
	outer := &types.ForEachFrame{Item: "outer-item", Index: 0}
	ctx := execctx.New(map[string]interface{}{"items": []interface{}{"x", "y"}}).WithFrame(outer)

	spec := &types.ForEachSpec{In: "{{ input.items }}"}
	frames, err := ExpandForEach(spec, ctx, 3)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	for _, f := range frames {
		if f.Parent != outer {
			t.Errorf("expected frame's parent to be the outer frame, got %v", f.Parent)
		}
		if f.Depth() != 2 {
			t.Errorf("expected depth 2, got %d", f.Depth())
		}
	}
}

func TestExpandForEach_DepthExceeded(t *testing.T) {
	frame := &types.ForEachFrame{Item: "a", Index: 0}
	frame = &types.ForEachFrame{Item: "b", Index: 0, Parent: frame}
	ctx := execctx.New(nil).WithFrame(frame)

	spec := &types.ForEachSpec{In: "{{ input.items }}"}
	_, err := ExpandForEach(spec, ctx, 2)
	if err == nil {
		t.Fatal("expected an error when expanding would exceed maxDepth")
	}
	buildErr, ok := err.(*types.BuildError)
	if !ok || buildErr.Kind != types.NestingTooDeep {
		t.Fatalf("expected NestingTooDeep BuildError, got %T: %v", err, err)
	}
}

func TestExpandForEach_NonSequenceErrors(t *testing.T) {
	ctx := execctx.New(map[string]interface{}{"items": "not-a-list"})
	spec := &types.ForEachSpec{In: "{{ input.items }}"}

	_, err := ExpandForEach(spec, ctx, 3)
	if err == nil {
		t.Fatal("expected an error for a non-sequence forEach.in")
	}
}

func TestExpandForEach_NilResolvesToZeroIterations(t *testing.T) {
	ctx := execctx.New(map[string]interface{}{})
	spec := &types.ForEachSpec{In: "{{ input.missing }}"}

	frames, err := ExpandForEach(spec, ctx, 3)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("expected zero frames for an undefined forEach.in, got %d", len(frames))
	}
}
