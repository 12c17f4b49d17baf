package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

func corsHeaders(methods string) map[string]string {
	return map[string]string{
		"content-type":                 "application/json",
		"access-control-allow-origin":  "*",
		"access-control-allow-headers": "Content-Type,Authorization",
		"access-control-allow-methods": methods,
	}
}

func jsonResp(status int, methods string, v any) (events.APIGatewayV2HTTPResponse, error) {
	b, _ := json.Marshal(v)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    corsHeaders(methods),
		Body:       string(b),
	}, nil
}

func errResp(status int, methods, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return jsonResp(status, methods, map[string]any{
		"success": false,
		"error":   msg,
	})
}

func preflight(methods string) (events.APIGatewayV2HTTPResponse, error) {
	return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Headers: corsHeaders(methods)}, nil
}

func method(req events.APIGatewayV2HTTPRequest) string {
	return req.RequestContext.HTTP.Method
}

// decodeBody unmarshals the request body, undoing API Gateway's base64
// wrapping when present.
func decodeBody(req events.APIGatewayV2HTTPRequest, v any) error {
	raw := []byte(req.Body)
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return err
		}
		raw = b
	}
	return json.Unmarshal(raw, v)
}
