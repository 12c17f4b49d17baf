package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// AutoConfirm is a Cognito trigger. Pre sign-up events come back with the
// user confirmed and the email marked verified; every other trigger source is
// returned byte for byte.
type AutoConfirm struct {
	log *zap.Logger
}

func NewAutoConfirm(log *zap.Logger) *AutoConfirm {
	if log == nil {
		log = zap.NewNop()
	}
	return &AutoConfirm{log: log}
}

func (a *AutoConfirm) Handle(ctx context.Context, event json.RawMessage) (json.RawMessage, error) {
	var head struct {
		TriggerSource string `json:"triggerSource"`
		UserName      string `json:"userName"`
	}
	if err := json.Unmarshal(event, &head); err != nil {
		return nil, fmt.Errorf("decode cognito event: %w", err)
	}

	switch head.TriggerSource {
	case "PreSignUp_SignUp", "PreSignUp_AdminCreateUser":
	default:
		a.log.Info("trigger passed through", zap.String("trigger", head.TriggerSource), zap.String("user", head.UserName))
		return event, nil
	}

	var full map[string]any
	if err := json.Unmarshal(event, &full); err != nil {
		return nil, fmt.Errorf("decode cognito event: %w", err)
	}
	resp, _ := full["response"].(map[string]any)
	if resp == nil {
		resp = map[string]any{}
	}
	resp["autoConfirmUser"] = true
	resp["autoVerifyEmail"] = true
	resp["autoVerifyPhone"] = false
	full["response"] = resp

	a.log.Info("auto confirming user", zap.String("trigger", head.TriggerSource), zap.String("user", head.UserName))
	out, err := json.Marshal(full)
	if err != nil {
		return nil, fmt.Errorf("encode cognito event: %w", err)
	}
	return out, nil
}
