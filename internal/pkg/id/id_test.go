package id

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

func TestNew_ProducesValidUniqueIDs(t *testing.T) {
	a, b := New(), New()
	assert.Len(t, a, 26)
	_, err := ulid.ParseStrict(a)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNew_SortsByCreationTime(t *testing.T) {
	a := New()
	b := New()
	pa, err := ulid.ParseStrict(a)
	assert.NoError(t, err)
	pb, err := ulid.ParseStrict(b)
	assert.NoError(t, err)
	assert.LessOrEqual(t, pa.Time(), pb.Time())
}
