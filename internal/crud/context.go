package crud

import (
	"context"

	"github.com/gmbtravels/gmbservice/internal/auth"
)

func subject(ctx context.Context) string {
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		return claims.Subject
	}
	return "unknown"
}
