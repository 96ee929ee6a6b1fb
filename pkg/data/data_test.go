package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.InDelta(t, 0.12, round2(0.123456), 0.0001)
	assert.InDelta(t, -0.12, round2(-0.123456), 0.0001)
	assert.InDelta(t, 0.13, round2(0.125), 0.0001)
	assert.InDelta(t, 0.0, round2(0.0), 0.0001)
}
