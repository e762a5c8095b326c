package requestctx

import "context"

// customerIDContextKey is the context key for authenticated customer identity.
type customerIDContextKey struct{}

// WithCustomerID stores a customer identifier in context.
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, customerIDContextKey{}, customerID)
}

// CustomerIDFromContext returns the customer identifier stored in context.
func CustomerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(customerIDContextKey{}).(string)
	return value
}
