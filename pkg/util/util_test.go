package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tbtypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"
)

func TestUint128StringRoundTrip(t *testing.T) {
	id := tbtypes.ToUint128(1234567890123)
	s := Uint128ToString(id)
	assert.Equal(t, "1234567890123", s)

	back, err := StringToUint128(s)
	require.NoError(t, err)
	assert.Equal(t, id, back)
}

func TestStringToUint128Rejects(t *testing.T) {
	for _, s := range []string{"", "abc", "-1", "340282366920938463463374607431768211456"} {
		_, err := StringToUint128(s)
		assert.Error(t, err, s)
	}
}
