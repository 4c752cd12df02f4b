package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryAttempts(t *testing.T) {
	assert.Equal(t, 1, retryAttempts(0))
	assert.Equal(t, 1, retryAttempts(-3))
	assert.Equal(t, 1, retryAttempts(1))
	assert.Equal(t, 5, retryAttempts(5))
}

func TestRenderResultToleratesNil(t *testing.T) {
	assert.NotPanics(t, func() {
		renderResult(nil)
	})
}
