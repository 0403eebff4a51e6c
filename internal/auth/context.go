package auth

import (
	"context"
	"strings"
)

type contextKey string

const operatorKey contextKey = "operator"

// OperatorHeader carries the operator name set by the fronting login gate.
const OperatorHeader = "X-Operator"

// ContextWithOperator returns a new context that carries the acting operator.
func ContextWithOperator(ctx context.Context, operator string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operatorKey, strings.TrimSpace(operator))
}

// OperatorFromContext retrieves the acting operator from the context, if any.
func OperatorFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	operator, ok := ctx.Value(operatorKey).(string)
	if !ok || operator == "" {
		return "", false
	}
	return operator, true
}
