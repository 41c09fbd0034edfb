package http

import "context"

type ctxKey string

const (
	ctxKeyRoute   ctxKey = "route"
	ctxKeyVersion ctxKey = "version"
)

func routeFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(ctxKeyRoute).(string); ok {
		return route
	}

	return "unknown"
}

func routeInContext(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, ctxKeyRoute, route)
}

func versionFromContext(ctx context.Context) string {
	if version, ok := ctx.Value(ctxKeyVersion).(string); ok {
		return version
	}

	return "unknown"
}

func versionInContext(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, ctxKeyVersion, version)
}
