package logger

// Standard field names for consistent logging.
const (
	FieldService   = "service"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldCafeID    = "cafe_id"
	FieldDeviceID  = "device_id"
	FieldSessionID = "session_id"
	FieldCount     = "count"
)
