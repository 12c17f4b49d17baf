package handlers

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// authorizedID is the Cognito user named by the gateway's JWT authorizer, which
// has verified the token. Routes that gate access on ownership use only this.
func authorizedID(req events.APIGatewayV2HTTPRequest) string {
	if req.RequestContext.Authorizer == nil || req.RequestContext.Authorizer.JWT == nil {
		return ""
	}
	claims := req.RequestContext.Authorizer.JWT.Claims
	if sub := strings.TrimSpace(claims["sub"]); sub != "" {
		return sub
	}
	return strings.TrimSpace(claims["cognito:username"])
}

// callerID attributes a reading to a user. Without authorizer claims it reads
// the bearer token payload unverified, so the result is only fit for labelling
// records, never for access decisions. Returns "" for anonymous callers.
func callerID(req events.APIGatewayV2HTTPRequest) string {
	if id := authorizedID(req); id != "" {
		return id
	}
	return bearerSubject(header(req, "authorization"))
}

func header(req events.APIGatewayV2HTTPRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func bearerSubject(auth string) string {
	token, ok := strings.CutPrefix(strings.TrimSpace(auth), "Bearer ")
	if !ok {
		return ""
	}
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return ""
	}
	var claims struct {
		Sub      string `json:"sub"`
		Username string `json:"cognito:username"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}
	if claims.Sub != "" {
		return claims.Sub
	}
	return claims.Username
}
