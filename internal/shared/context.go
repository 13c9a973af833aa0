package shared

import "context"

type contextKey string

const operatorKey contextKey = "operator"

// ContextWithOperator stores the acting operator identity in the context.
func ContextWithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}

// OperatorFromContext returns the operator identity, or "system" when the
// request carried none.
func OperatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(operatorKey).(string); ok && v != "" {
		return v
	}
	return "system"
}
