package net

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPClient(t *testing.T) {
	client, err := GetHTTPClient()
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.NotNil(t, client.Jar)
}

func TestGetOAuthClient(t *testing.T) {
	ctx := context.Background()
	client := GetOAuthClient(ctx, "test-token")
	assert.NotNil(t, client)
}

func TestNewRestyClient(t *testing.T) {
	c := NewRestyClient(nil, 30*time.Second, 3, 2*time.Second)
	require.NotNil(t, c)
	assert.Equal(t, 3, c.RetryCount)
	assert.Equal(t, 2*time.Second, c.RetryWaitTime)

	hc, err := GetHTTPClient()
	require.NoError(t, err)
	ac := NewRestyClient(hc, 10*time.Second, 1, time.Second)
	require.NotNil(t, ac)
	assert.Equal(t, 1, ac.RetryCount)
}
