package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cognitotypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"go.uber.org/zap"

	"fortune/internal/fate"
)

const (
	passwordMethods   = "POST, OPTIONS"
	minPasswordLength = 8
)

type PasswordChanger interface {
	ChangePassword(ctx context.Context, params *cognitoidentityprovider.ChangePasswordInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ChangePasswordOutput, error)
}

// PasswordHandler serves POST /change-password with the caller's Cognito
// access token.
type PasswordHandler struct {
	client PasswordChanger
	log    *zap.Logger
}

func NewPasswordHandler(client PasswordChanger, log *zap.Logger) *PasswordHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordHandler{client: client, log: log}
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *PasswordHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch method(req) {
	case http.MethodOptions:
		return preflight(passwordMethods)
	case http.MethodPost:
	default:
		return errResp(http.StatusMethodNotAllowed, passwordMethods, "method not allowed")
	}
	lang := requestLanguage(req.QueryStringParameters, header(req, "accept-language"))

	token, ok := strings.CutPrefix(header(req, "authorization"), "Bearer ")
	if token = strings.TrimSpace(token); !ok || token == "" {
		return errResp(http.StatusUnauthorized, passwordMethods, message(lang, msgTokenRequired))
	}

	var body changePasswordRequest
	if err := decodeBody(req, &body); err != nil {
		return errResp(http.StatusBadRequest, passwordMethods, message(lang, msgInvalidBody))
	}
	if body.OldPassword == "" || body.NewPassword == "" {
		return errResp(http.StatusBadRequest, passwordMethods, message(lang, msgPasswordsRequired))
	}
	if key, ok := checkPasswordPolicy(body.NewPassword); !ok {
		return errResp(http.StatusBadRequest, passwordMethods, message(lang, key))
	}

	_, err := h.client.ChangePassword(ctx, &cognitoidentityprovider.ChangePasswordInput{
		AccessToken:      aws.String(token),
		PreviousPassword: aws.String(body.OldPassword),
		ProposedPassword: aws.String(body.NewPassword),
	})
	if err != nil {
		return h.fail(lang, err)
	}
	return jsonResp(http.StatusOK, passwordMethods, map[string]any{
		"success": true,
		"message": message(lang, msgPasswordChanged),
	})
}

// checkPasswordPolicy mirrors the user pool policy so most rejections never
// reach Cognito: at least 8 characters with an upper, a lower and a digit.
func checkPasswordPolicy(pw string) (messageKey, bool) {
	if utf8.RuneCountInString(pw) < minPasswordLength {
		return msgPasswordTooShort, false
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	switch {
	case !upper:
		return msgPasswordNeedsUpper, false
	case !lower:
		return msgPasswordNeedsLower, false
	case !digit:
		return msgPasswordNeedsDigit, false
	}
	return 0, true
}

func (h *PasswordHandler) fail(lang fate.Language, err error) (events.APIGatewayV2HTTPResponse, error) {
	var (
		notAuthorized *cognitotypes.NotAuthorizedException
		badPassword   *cognitotypes.InvalidPasswordException
		badParameter  *cognitotypes.InvalidParameterException
	)
	switch {
	case errors.As(err, &notAuthorized):
		return errResp(http.StatusUnauthorized, passwordMethods, message(lang, msgWrongPassword))
	case errors.As(err, &badPassword):
		return errResp(http.StatusBadRequest, passwordMethods, message(lang, msgPasswordRejected))
	case errors.As(err, &badParameter):
		return errResp(http.StatusBadRequest, passwordMethods, message(lang, msgPasswordInvalid))
	}
	h.log.Error("cognito ChangePassword failed", zap.Error(err))
	return errResp(http.StatusInternalServerError, passwordMethods, message(lang, msgPasswordChangeFailed))
}
