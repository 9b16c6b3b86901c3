package ctxutil

import "context"

type originKey struct{}

// Origin identifies the HTTP request a unit of work started from. Background jobs carry
// it so their log lines can be joined with the request that scheduled them.
type Origin struct {
	RequestID string
	TraceID   string
}

func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(Default(ctx), originKey{}, o)
}

func OriginFrom(ctx context.Context) (Origin, bool) {
	if ctx == nil {
		return Origin{}, false
	}
	o, ok := ctx.Value(originKey{}).(Origin)
	return o, ok
}

// LogFields returns the non-empty identifiers as logger key/value pairs.
func (o Origin) LogFields() []interface{} {
	kv := make([]interface{}, 0, 4)
	if o.RequestID != "" {
		kv = append(kv, "request_id", o.RequestID)
	}
	if o.TraceID != "" {
		kv = append(kv, "trace_id", o.TraceID)
	}
	return kv
}
