package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Monotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 1000; i++ {
		next := New()
		_, err := ulid.ParseStrict(next)
		require.NoError(t, err)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestClientOrderID(t *testing.T) {
	id := ClientOrderID()
	assert.Len(t, id, 36)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, ClientOrderID())
}
