package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"fortune/internal/profile"
)

const (
	uploadMethods = "GET, POST, OPTIONS"
	updateMethods = "POST, OPTIONS"
)

type UploadSigner interface {
	UploadURL(ctx context.Context, userID, ext string) (*profile.Upload, error)
}

type ImageURLSaver interface {
	SaveImageURL(ctx context.Context, sub, imageURL string) error
}

type ProfileHandler struct {
	images UploadSigner
	users  ImageURLSaver
	log    *zap.Logger
}

func NewProfileHandler(images UploadSigner, users ImageURLSaver, log *zap.Logger) *ProfileHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileHandler{images: images, users: users, log: log}
}

// UploadURL serves GET /upload-profile-image/{extension}.
func (h *ProfileHandler) UploadURL(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if method(req) == http.MethodOptions {
		return preflight(uploadMethods)
	}
	lang := requestLanguage(req.QueryStringParameters, header(req, "accept-language"))
	userID := authorizedID(req)
	if userID == "" {
		return errResp(http.StatusUnauthorized, uploadMethods, message(lang, msgAuthRequired))
	}

	up, err := h.images.UploadURL(ctx, userID, req.PathParameters["extension"])
	if err != nil {
		var bad *profile.ErrUnsupportedExtension
		if errors.As(err, &bad) {
			return errResp(http.StatusBadRequest, uploadMethods, err.Error())
		}
		h.log.Error("presign upload failed", zap.String("user", userID), zap.Error(err))
		return errResp(http.StatusInternalServerError, uploadMethods, message(lang, msgServerError))
	}
	return jsonResp(http.StatusOK, uploadMethods, map[string]any{
		"success":   true,
		"uploadUrl": up.UploadURL,
		"imageUrl":  up.ImageURL,
		"key":       up.Key,
	})
}

type updateImageRequest struct {
	ImageURL string `json:"imageUrl"`
}

// UpdateImage serves POST /update-profile-image.
func (h *ProfileHandler) UpdateImage(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch method(req) {
	case http.MethodOptions:
		return preflight(updateMethods)
	case http.MethodPost:
	default:
		return errResp(http.StatusMethodNotAllowed, updateMethods, "method not allowed")
	}
	lang := requestLanguage(req.QueryStringParameters, header(req, "accept-language"))
	userID := authorizedID(req)
	if userID == "" {
		return errResp(http.StatusUnauthorized, updateMethods, message(lang, msgAuthRequired))
	}

	var body updateImageRequest
	if err := decodeBody(req, &body); err != nil {
		return errResp(http.StatusBadRequest, updateMethods, message(lang, msgInvalidBody))
	}
	body.ImageURL = strings.TrimSpace(body.ImageURL)
	if body.ImageURL == "" {
		return errResp(http.StatusBadRequest, updateMethods, message(lang, msgImageURLRequired))
	}

	if err := h.users.SaveImageURL(ctx, userID, body.ImageURL); err != nil {
		h.log.Error("save profile image failed", zap.String("user", userID), zap.Error(err))
		return errResp(http.StatusInternalServerError, updateMethods, message(lang, msgServerError))
	}
	return jsonResp(http.StatusOK, updateMethods, map[string]any{
		"success":  true,
		"imageUrl": body.ImageURL,
	})
}
