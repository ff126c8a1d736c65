package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	t.Run("returns stored values", func(t *testing.T) {
		ctx := context.Background()
		ctx = SetRequestID(ctx, "req-1")
		ctx = SetUserID(ctx, "reviewer@example.com")
		ctx = SetBatchID(ctx, "batch-1")

		assert.Equal(t, "req-1", GetRequestID(ctx))
		assert.Equal(t, "reviewer@example.com", GetUserID(ctx))
		assert.Equal(t, "batch-1", GetBatchID(ctx))
	})

	t.Run("returns empty string when unset", func(t *testing.T) {
		ctx := context.Background()
		assert.Empty(t, GetRequestID(ctx))
		assert.Empty(t, GetBatchID(ctx))
		assert.Empty(t, GetRoute(ctx))
	})
}
