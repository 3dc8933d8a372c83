package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartupCleanup(t *testing.T) {
	t.Run("runs steps newest first", func(t *testing.T) {
		var order []string
		var cleanup startupCleanup
		cleanup.add(func() { order = append(order, "metrics") })
		cleanup.add(func() { order = append(order, "nats") })
		cleanup.add(func() { order = append(order, "store") })

		startErr := errors.New("discord login failed")
		err := cleanup.fail(startErr)

		assert.ErrorIs(t, err, startErr)
		assert.Equal(t, []string{"store", "nats", "metrics"}, order)
	})

	t.Run("nothing registered", func(t *testing.T) {
		var cleanup startupCleanup
		startErr := errors.New("metrics failed")
		assert.ErrorIs(t, cleanup.fail(startErr), startErr)
	})
}
