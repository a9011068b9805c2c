package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueNamesFor(t *testing.T) {
	t.Run("derives role names from the type name", func(t *testing.T) {
		names := QueueNamesFor("Order")

		assert.Equal(t, "Order", names.In)
		assert.Equal(t, "Order_priority", names.Priority)
		assert.Equal(t, "Order_out", names.Out)
		assert.Equal(t, "Order_dlq", names.Dlq)
	})

	t.Run("derivation is stable", func(t *testing.T) {
		assert.Equal(t, QueueNamesFor("Ping"), QueueNamesFor("Ping"))
	})
}
