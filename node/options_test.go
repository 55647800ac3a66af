package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/client"
	"github.com/ulala-x/playhouse/constants"
)

func TestBuildRejectsAMissingBindEndpoint(t *testing.T) {
	b := NewPlayNodeBuilder(1, 1, "")
	_, err := b.Build()
	assert.Error(t, err, "bindEndpoint is required (spec sec 6.4)")
}

func TestBuildSucceedsWithJustTheRequiredFields(t *testing.T) {
	opts, err := NewPlayNodeBuilder(1, 1, "tcp://127.0.0.1:9000").Build()
	require.NoError(t, err)
	assert.EqualValues(t, 1, opts.ServiceId)
	assert.EqualValues(t, 1, opts.ServerId)
	assert.Equal(t, "tcp://127.0.0.1:9000", opts.BindEndpoint)
	assert.Nil(t, opts.RateLimiter, "no rate limiter is configured by default")
}

func TestWithRateLimiterIsCarriedThroughToTheBuiltOptions(t *testing.T) {
	limiter := client.RateLimiter(func(sid int64, msgId string) bool { return true })

	opts, err := NewPlayNodeBuilder(1, 1, "tcp://127.0.0.1:9000").
		WithRateLimiter(limiter).
		Build()
	require.NoError(t, err)
	require.NotNil(t, opts.RateLimiter)
	assert.True(t, opts.RateLimiter(1, "Ping"))
}

func TestDefaultAuthenticateMsgIdIsSetWithoutAnOverride(t *testing.T) {
	opts, err := NewPlayNodeBuilder(1, 1, "tcp://127.0.0.1:9000").Build()
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultAuthenticateMsgId, opts.AuthenticateMsgId)
}

func TestWithAuthenticateMsgIdOverridesTheDefault(t *testing.T) {
	opts, err := NewPlayNodeBuilder(1, 1, "tcp://127.0.0.1:9000").
		WithAuthenticateMsgId("Login").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "Login", opts.AuthenticateMsgId)
}

func TestWithClientTCPAndWSSetTheirRespectiveEndpoints(t *testing.T) {
	opts, err := NewPlayNodeBuilder(1, 1, "tcp://127.0.0.1:9000").
		WithClientTCP("0.0.0.0:7000").
		WithClientWS("0.0.0.0:7001").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", opts.ClientTcpEndpoint)
	assert.Equal(t, "0.0.0.0:7001", opts.ClientWsEndpoint)
}
