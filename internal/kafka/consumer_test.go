package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConsumer_ClampsWorkers(t *testing.T) {
	t.Parallel()

	c := NewConsumer([]string{"localhost:9092"}, "g1", "t1", 0)
	assert.Equal(t, 1, c.workers)
	assert.Equal(t, 200*time.Millisecond, c.backoff)
	_ = c.r.Close()

	c = NewConsumer([]string{"localhost:9092"}, "g1", "t1", 8)
	assert.Equal(t, 8, c.workers)
	_ = c.r.Close()
}
