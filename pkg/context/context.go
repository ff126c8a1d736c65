package context

import "context"

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	MethodKey    = ContextKey("X-Method")
	RouteKey     = ContextKey("X-Route")
	RemoteIPKey  = ContextKey("X-Remote-Ip")
	UserIDKey    = ContextKey("X-User-Id")
	BatchIDKey   = ContextKey("X-Batch-Id")
)

func setValue(ctx context.Context, key ContextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func getValue(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return setValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return getValue(ctx, RequestIDKey)
}

// SetUserID stores the reviewer identity. Review actions record it as resolved_by.
func SetUserID(ctx context.Context, userID string) context.Context {
	return setValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	return getValue(ctx, UserIDKey)
}

func SetMethod(ctx context.Context, method string) context.Context {
	return setValue(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	return getValue(ctx, MethodKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return setValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return getValue(ctx, RouteKey)
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return setValue(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	return getValue(ctx, RemoteIPKey)
}

// SetBatchID tags every log line and span of a matching run with its batch id.
func SetBatchID(ctx context.Context, batchID string) context.Context {
	return setValue(ctx, BatchIDKey, batchID)
}

func GetBatchID(ctx context.Context) string {
	return getValue(ctx, BatchIDKey)
}
