package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResetThrottle(t *testing.T) {
	th := NewResetThrottle(2, time.Minute)

	assert.True(t, th.Allow("ana@school.pt"))
	assert.True(t, th.Allow("ana@school.pt"))
	assert.False(t, th.Allow("ana@school.pt"))
	assert.False(t, th.Allow("ANA@school.pt"), "throttle key ignores case")
	assert.True(t, th.Allow("rui@school.pt"))
}

func TestResetThrottleDisabled(t *testing.T) {
	th := NewResetThrottle(0, time.Minute)
	for range 10 {
		assert.True(t, th.Allow("ana@school.pt"))
	}

	var nilThrottle *ResetThrottle
	assert.True(t, nilThrottle.Allow("ana@school.pt"))
}
