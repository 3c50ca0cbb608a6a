package microsoft

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
)

// Ensure ClaimsInspector implements the interface.
var _ driven.TokenInspector = (*ClaimsInspector)(nil)

// entraClaims are the Microsoft identity platform claims used for routing.
type entraClaims struct {
	TenantID        string `json:"tid"`
	AppID           string `json:"appid"`
	AuthorizedParty string `json:"azp"`
	ObjectID        string `json:"oid"`
	jwt.RegisteredClaims
}

// ClaimsInspector decodes inbound tokens without verifying them.
type ClaimsInspector struct {
	parser *jwt.Parser
}

// NewClaimsInspector creates a ClaimsInspector.
func NewClaimsInspector() *ClaimsInspector {
	return &ClaimsInspector{parser: jwt.NewParser()}
}

// Inspect returns the token's routing claims, or nil if it is not a JWT.
func (i *ClaimsInspector) Inspect(token string) *domain.TokenClaims {
	var claims entraClaims
	if _, _, err := i.parser.ParseUnverified(token, &claims); err != nil {
		return nil
	}

	appID := claims.AppID
	if appID == "" {
		appID = claims.AuthorizedParty
	}

	return &domain.TokenClaims{
		TenantID: claims.TenantID,
		Audience: []string(claims.Audience),
		AppID:    appID,
		ObjectID: claims.ObjectID,
	}
}
