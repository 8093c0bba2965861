package identity

import (
	"context"
	"strings"

	"projector_reservation/errs"

	"google.golang.org/api/idtoken"
)

// Identity is what an external identity provider vouches for.
type Identity struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// Google verifies Google ID tokens issued for one OAuth client.
type Google struct {
	audience string
	validate validateFunc
}

func NewGoogle(clientID string) *Google {
	return &Google{audience: clientID, validate: idtoken.Validate}
}

func (g *Google) Verify(ctx context.Context, credential string) (*Identity, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, errs.Validation("credential is required")
	}
	payload, err := g.validate(ctx, credential, g.audience)
	if err != nil {
		return nil, errs.Unauthorized("invalid google credential")
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, errs.Unauthorized("google credential carries no email")
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, errs.Unauthorized("google email is not verified")
	}
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)
	if name == "" {
		name = email
	}
	return &Identity{
		Email:   strings.ToLower(email),
		Name:    name,
		Picture: picture,
	}, nil
}
