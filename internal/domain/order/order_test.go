package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, name := range []string{"Pending", "Paid", "Shipped", "Delivered", "Cancelled"} {
		s, err := ParseStatus(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.String())
	}

	_, err := ParseStatus("Refunded")
	require.Error(t, err)
	_, err = ParseStatus("pending")
	require.Error(t, err)
}

func TestStatus_Modifiable(t *testing.T) {
	assert.True(t, StatusPending.Modifiable())
	for _, s := range []Status{StatusPaid, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.False(t, s.Modifiable(), s.String())
	}
}

func TestStatus_UnknownString(t *testing.T) {
	assert.Equal(t, "Unknown", Status(0).String())
	assert.Equal(t, "Unknown", Status(99).String())
}
