package requestctx

import "context"

// localeContextKey is the context key for the negotiated request locale.
type localeContextKey struct{}

// WithLocale stores a locale identifier (for example "pt-BR") in context.
func WithLocale(ctx context.Context, locale string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, localeContextKey{}, locale)
}

// LocaleFromContext returns the locale stored in context, or "" when none
// was negotiated.
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(localeContextKey{}).(string)
	return value
}
