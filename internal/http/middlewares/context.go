package middlewares

import "context"

type ctxKeySessionDID struct{}

func setSessionDID(ctx context.Context, did string) context.Context {
	return context.WithValue(ctx, ctxKeySessionDID{}, did)
}

// GetSessionDID retorna el DID de la sesión verificada, o "" si no hay.
func GetSessionDID(ctx context.Context) string {
	did, _ := ctx.Value(ctxKeySessionDID{}).(string)
	return did
}
