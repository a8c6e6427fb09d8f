package redisx

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "gamecafe:v1"

func KeyCafeDevices(cafeID uuid.UUID) string {
	return fmt.Sprintf("%s:cafe:%s:devices", ns, cafeID)
}

func KeyOTP(phone string) string {
	return fmt.Sprintf("%s:otp:%s", ns, phone)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemSessionStart(customerID uuid.UUID, idemKey string) string {
	return fmt.Sprintf("%s:idem:sessions:%s:%s", ns, customerID, idemKey)
}

func ChannelDeviceStatus() string {
	return ns + ":devices:status"
}
