package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCadenceFor(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, CadenceFor(85))
	assert.Equal(t, 30*24*time.Hour, CadenceFor(70))
	assert.Equal(t, 14*24*time.Hour, CadenceFor(69))
	assert.Equal(t, 14*24*time.Hour, CadenceFor(40))
	assert.Equal(t, 7*24*time.Hour, CadenceFor(39))
	assert.Equal(t, 7*24*time.Hour, CadenceFor(0))
}

func TestPriorityFor(t *testing.T) {
	// Priority is inverse to confidence: the weaker the record, the sooner a
	// human wants it refreshed.
	assert.Equal(t, PriorityLow, PriorityFor(90))
	assert.Equal(t, PriorityNormal, PriorityFor(55))
	assert.Equal(t, PriorityHigh, PriorityFor(20))
}

func TestVersionID(t *testing.T) {
	assert.Equal(t, "jane-doe_v3", VersionID("jane-doe", 3))
}
