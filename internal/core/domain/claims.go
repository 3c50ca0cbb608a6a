package domain

// TokenClaims holds routing hints read from an inbound token without verifying
// its signature. They are untrusted: the downstream token exchange is the trust
// boundary, so nothing here may be used to grant access.
type TokenClaims struct {
	// TenantID is the issuing tenant ("tid").
	TenantID string
	// Audience lists the "aud" values; a single-string claim yields one entry.
	Audience []string
	// AppID is the calling client application ("appid" or "azp").
	AppID string
	// ObjectID is the user's object id ("oid").
	ObjectID string
}

// HasAudience reports whether any of the candidates appears in the audience.
func (c *TokenClaims) HasAudience(candidates ...string) bool {
	if c == nil {
		return false
	}
	for _, aud := range c.Audience {
		for _, candidate := range candidates {
			if aud == candidate {
				return true
			}
		}
	}
	return false
}
