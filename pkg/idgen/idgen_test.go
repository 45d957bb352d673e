// ABOUTME: Tests for the UUID-backed IdGenerator
// ABOUTME: Verifies uniqueness and the expected textual UUID shape

package idgen

import "testing"

func TestUUID_NextID_ProducesDistinctValues(t *testing.T) {
	gen := New()
	a := gen.NextID()
	b := gen.NextID()

	if a == b {
		t.Fatal("expected two consecutive calls to produce distinct ids")
	}
	if len(a) != 36 {
		t.Errorf("expected a 36-character UUID string, got %q (len %d)", a, len(a))
	}
}
