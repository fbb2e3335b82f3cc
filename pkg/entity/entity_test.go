package entity

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestZeroIDIsInvalid(t *testing.T) {
	var id ID
	assert.Assert(t, !id.IsValid())
}

func TestAllocatorIssuesDistinctIncreasingIDs(t *testing.T) {
	a := NewAllocator()
	first := a.Alloc()
	second := a.Alloc()
	assert.Assert(t, first.IsValid())
	assert.Assert(t, second.IsValid())
	assert.Assert(t, second > first)
}

func TestAllocatorIsSafeForConcurrentUse(t *testing.T) {
	a := NewAllocator()
	seen := make(chan ID, 100)
	for i := 0; i < 100; i++ {
		go func() { seen <- a.Alloc() }()
	}
	ids := make(map[ID]bool)
	for i := 0; i < 100; i++ {
		id := <-seen
		assert.Assert(t, !ids[id], "allocator issued a duplicate id")
		ids[id] = true
	}
}
