package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/brain/pkg/store"
)

func TestContext_Knowledge_NilStoreReturnsNilWithoutError(t *testing.T) {
	mc := &Context{TenantID: "t1", RoomID: "r1"}
	chunks, err := mc.Knowledge(context.Background(), []float32{0.1, 0.2}, 5)
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestDedupPersons_RemovesDuplicatesAndCapsAtFive(t *testing.T) {
	in := []store.Person{
		{ID: "p1", Name: "A"},
		{ID: "p1", Name: "A"},
		{ID: "p2", Name: "B"},
		{ID: "p3", Name: "C"},
		{ID: "p4", Name: "D"},
		{ID: "p5", Name: "E"},
		{ID: "p6", Name: "F"},
	}
	out := dedupPersons(in)
	assert.Len(t, out, 5)
	assert.Equal(t, "p1", out[0].ID)
	assert.Equal(t, "p2", out[1].ID)
}

func TestDedupPersons_Empty(t *testing.T) {
	assert.Empty(t, dedupPersons(nil))
}
