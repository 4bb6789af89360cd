package tracer

import (
	"context"
	"testing"

	"github.com/pashumandi/mandi-gateway/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_WithoutEndpoint(t *testing.T) {
	tp := InitTracer("mandi-gateway", "", logger.NewNop())
	require.NotNil(t, tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	assert.Empty(t, TraceID(context.Background()))

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.Len(t, TraceID(ctx), 32)
}
