package middlewares

type ctxKey string

const (
	CtxRequestID ctxKey = "request_id"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = string(CtxRequestID)
