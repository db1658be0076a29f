package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sinkNames(n *notifiers) []string {
	var names []string
	for _, s := range n.sinks {
		names = append(names, s.Name)
	}
	return names
}

func TestNewNotifiers(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		n, err := newNotifiers(ctx, NotifyConfig{}, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, n.sinks)
		assert.Equal(t, 0, n.Fanout().Len())
		assert.NoError(t, n.Close())
	})

	t.Run("store and kafka", func(t *testing.T) {
		n, err := newNotifiers(ctx, NotifyConfig{
			Store: true,
			Kafka: KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "orders"},
		}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"postgres", "kafka"}, sinkNames(n))
		assert.Equal(t, 2, n.Fanout().Len())
		assert.Len(t, n.closers, 1)
		assert.NoError(t, n.Close())
	})

	t.Run("redis without client", func(t *testing.T) {
		_, err := newNotifiers(ctx, NotifyConfig{Redis: true}, nil, nil)
		require.Error(t, err)
	})
}
