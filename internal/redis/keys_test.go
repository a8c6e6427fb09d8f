package redisx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	id := uuid.MustParse("7b0c6f1e-2a51-4f4c-9a55-0e0f3c7d2a10")

	assert.Equal(t, "gamecafe:v1:cafe:7b0c6f1e-2a51-4f4c-9a55-0e0f3c7d2a10:devices", KeyCafeDevices(id))
	assert.Equal(t, "gamecafe:v1:otp:+919999999999", KeyOTP("+919999999999"))
	assert.Equal(t, "gamecafe:v1:rl:otp:+91", KeyRateLimit("otp", "+91"))
	assert.Equal(t, "gamecafe:v1:devices:status", ChannelDeviceStatus())
	assert.NotEqual(t, KeyIdemSessionStart(id, "a"), KeyIdemSessionStart(id, "b"))
}
