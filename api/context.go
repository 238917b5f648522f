package api

import (
	"context"
	"errors"

	"github.com/adswadi/agency-site-backend/services"
)

type keyType string

const claimsKey keyType = "claims"

// ctxWithClaims attaches verified token claims for the rest of the request.
func ctxWithClaims(ctx context.Context, claims *services.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ctxGetClaims retrieves the claims set by the auth middleware
func ctxGetClaims(ctx context.Context) (*services.Claims, error) {
	if ctxValue := ctx.Value(claimsKey); ctxValue == nil {
		return nil, errors.New("claims not found in context")
	} else if claims, ok := ctxValue.(*services.Claims); !ok {
		return nil, errors.New("value is not of type `*services.Claims`")
	} else {
		return claims, nil
	}
}
