package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cognitotypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fortune/internal/fate"
	"fortune/internal/llm"
	"fortune/internal/profile"
	"fortune/internal/store"
)

func TestMain(m *testing.M) {
	// genai's dependency graph starts the opencensus view worker in an init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func apiRequest(method, body string, claims map[string]string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{Body: body, Headers: map[string]string{}}
	req.RequestContext.HTTP.Method = method
	if claims != nil {
		req.RequestContext.Authorizer = &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
			JWT: &events.APIGatewayV2HTTPRequestContextAuthorizerJWTDescription{Claims: claims},
		}
	}
	return req
}

func bearer(payload string) string {
	enc := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return "Bearer eyJhbGciOiJSUzI1NiJ9." + enc + ".sig"
}

func decode(t *testing.T, resp events.APIGatewayV2HTTPResponse) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &m), resp.Body)
	return m
}

type stubGen struct {
	reply string
	err   error
}

func (g stubGen) Generate(context.Context, string) (string, error) { return g.reply, g.err }

type memSaver struct {
	mu   sync.Mutex
	recs []store.Record
}

func (s *memSaver) Save(_ context.Context, rec store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func newFateHandler(gen fate.Generator) (*FateHandler, *memSaver) {
	saver := &memSaver{}
	svc := fate.NewService(gen, nil)
	return NewFateHandler(svc, saver, nil), saver
}

func TestFate_SajuSuccess(t *testing.T) {
	h, saver := newFateHandler(stubGen{reply: `{"fortune":"F","description":"D","elements":{"wood":10,"fire":20,"earth":30,"metal":40,"water":50}}`})
	body := `{"category":"saju","birthDate":"1990-05-15","gender":"male","language":"ko"}`

	resp, err := h.Handle(context.Background(), apiRequest(http.MethodPost, body, map[string]string{"sub": "user-1"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	assert.Equal(t, "*", resp.Headers["access-control-allow-origin"])

	m := decode(t, resp)
	assert.Equal(t, true, m["success"])
	data := m["data"].(map[string]any)
	assert.Equal(t, "saju", data["category"])
	assert.Equal(t, float64(1990), data["year"])
	assert.Equal(t, float64(5), data["month"])
	assert.Equal(t, float64(15), data["day"])
	assert.Equal(t, "male", data["gender"])
	assert.Equal(t, map[string]any{"wood": 10.0, "fire": 20.0, "earth": 30.0, "metal": 40.0, "water": 50.0}, data["elements"])

	require.Len(t, saver.recs, 1)
	assert.Equal(t, m["id"], saver.recs[0].ID)
	assert.Equal(t, "user-1", saver.recs[0].UserID)
	assert.Equal(t, "1990-05-15", saver.recs[0].Input.BirthDate)
}

func TestFate_AnonymousAndBearer(t *testing.T) {
	h, saver := newFateHandler(stubGen{reply: `{"fortune":"F","description":"D"}`})

	resp, err := h.Handle(context.Background(), apiRequest(http.MethodPost, `{"category":"today"}`, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := apiRequest(http.MethodPost, `{"category":"today"}`, nil)
	req.Headers["Authorization"] = bearer(`{"sub":"from-token"}`)
	_, err = h.Handle(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, saver.recs, 2)
	assert.Empty(t, saver.recs[0].UserID)
	assert.Equal(t, "from-token", saver.recs[1].UserID)
}

func TestFate_Base64Body(t *testing.T) {
	h, _ := newFateHandler(stubGen{reply: `{"fortune":"F","description":"D"}`})
	req := apiRequest(http.MethodPost, base64.StdEncoding.EncodeToString([]byte(`{"category":"today"}`)), nil)
	req.IsBase64Encoded = true

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFate_Methods(t *testing.T) {
	h, _ := newFateHandler(stubGen{})

	resp, err := h.Handle(context.Background(), apiRequest(http.MethodOptions, "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "POST, OPTIONS", resp.Headers["access-control-allow-methods"])

	resp, err = h.Handle(context.Background(), apiRequest(http.MethodGet, "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestFate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		gen     stubGen
		body    string
		status  int
		message string
	}{
		{"bad json", stubGen{}, `{"category":`, http.StatusBadRequest, message(fate.LangKorean, msgInvalidBody)},
		{"missing sign", stubGen{}, `{"category":"zodiac"}`, http.StatusBadRequest, `missing required fields for category "zodiac": zodiacSign`},
		{
			"timeout", stubGen{err: &llm.TimeoutError{Provider: "groq", After: time.Second}},
			`{"category":"today","language":"en"}`, http.StatusGatewayTimeout, message(fate.LangEnglish, msgGenerationTimeout),
		},
		{
			"upstream", stubGen{err: &llm.UpstreamError{Provider: "groq", Status: 503}},
			`{"category":"today","language":"ja"}`, http.StatusInternalServerError, message(fate.LangJapanese, msgGenerationFailed),
		},
		{
			"config", stubGen{err: &llm.ConfigurationError{Provider: "groq", Reason: "no key"}},
			`{"category":"today"}`, http.StatusInternalServerError, message(fate.LangKorean, msgGenerationFailed),
		},
		{
			"empty", stubGen{err: fmt.Errorf("wrapped: %w", &llm.EmptyResponseError{Provider: "groq"})},
			`{"category":"today","language":"en"}`, http.StatusInternalServerError, message(fate.LangEnglish, msgGenerationFailed),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, saver := newFateHandler(tt.gen)
			resp, err := h.Handle(context.Background(), apiRequest(http.MethodPost, tt.body, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			m := decode(t, resp)
			assert.Equal(t, false, m["success"])
			assert.Equal(t, tt.message, m["error"])
			assert.Empty(t, saver.recs)
		})
	}
}

type fakeReader struct {
	recs map[string]store.Record
	err  error
}

func (f fakeReader) Get(_ context.Context, id string) (*store.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.recs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (f fakeReader) ListByUser(_ context.Context, userID string) ([]store.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Record
	for _, r := range f.recs {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestHistory(t *testing.T) {
	reader := fakeReader{recs: map[string]store.Record{
		"a": {ID: "a", UserID: "u1", Category: fate.CategoryLove},
		"b": {ID: "b", UserID: "u2", Category: fate.CategorySaju},
	}}
	h := NewHistoryHandler(reader, nil)

	withID := func(id string, claims map[string]string) events.APIGatewayV2HTTPRequest {
		req := apiRequest(http.MethodGet, "", claims)
		if id != "" {
			req.PathParameters = map[string]string{"id": id}
		}
		return req
	}

	resp, _ := h.Handle(context.Background(), withID("", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = h.Handle(context.Background(), withID("", map[string]string{"sub": "u1"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode(t, resp)["data"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].(map[string]any)["id"])

	resp, _ = h.Handle(context.Background(), withID("a", map[string]string{"cognito:username": "u1"}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.Handle(context.Background(), withID("b", map[string]string{"sub": "u1"}))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.Handle(context.Background(), withID("zzz", map[string]string{"sub": "u1"}))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = NewHistoryHandler(fakeReader{err: errors.New("boom")}, nil).Handle(context.Background(), withID("", map[string]string{"sub": "u1"}))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = h.Handle(context.Background(), apiRequest(http.MethodOptions, "", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHistory_LanguageFromQuery(t *testing.T) {
	req := apiRequest(http.MethodGet, "", nil)
	req.QueryStringParameters = map[string]string{"lang": "en"}
	resp, _ := NewHistoryHandler(fakeReader{}, nil).Handle(context.Background(), req)
	assert.Equal(t, "Sign-in is required.", decode(t, resp)["error"])
}

type fakeSigner struct{ err error }

func (f fakeSigner) UploadURL(_ context.Context, userID, ext string) (*profile.Upload, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := "profiles/" + userID + "-1." + ext
	return &profile.Upload{UploadURL: "https://signed/" + key, ImageURL: "https://img/" + key, Key: key}, nil
}

type fakeUsers struct {
	sub, url string
	err      error
}

func (f *fakeUsers) SaveImageURL(_ context.Context, sub, url string) error {
	f.sub, f.url = sub, url
	return f.err
}

func TestProfile_UploadURL(t *testing.T) {
	h := NewProfileHandler(fakeSigner{}, &fakeUsers{}, nil)
	req := apiRequest(http.MethodGet, "", map[string]string{"sub": "u1"})
	req.PathParameters = map[string]string{"extension": "png"}

	resp, err := h.UploadURL(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decode(t, resp)
	assert.Equal(t, "profiles/u1-1.png", m["key"])
	assert.Equal(t, "https://signed/profiles/u1-1.png", m["uploadUrl"])

	resp, _ = NewProfileHandler(fakeSigner{err: &profile.ErrUnsupportedExtension{Ext: "exe"}}, nil, nil).UploadURL(context.Background(), req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = NewProfileHandler(fakeSigner{err: errors.New("s3")}, nil, nil).UploadURL(context.Background(), req)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = h.UploadURL(context.Background(), apiRequest(http.MethodGet, "", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfile_UpdateImage(t *testing.T) {
	users := &fakeUsers{}
	h := NewProfileHandler(fakeSigner{}, users, nil)

	resp, err := h.UpdateImage(context.Background(), apiRequest(http.MethodPost, `{"imageUrl":" https://img/a.png "}`, map[string]string{"sub": "u1"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", users.sub)
	assert.Equal(t, "https://img/a.png", users.url)
	assert.Equal(t, "https://img/a.png", decode(t, resp)["imageUrl"])

	resp, _ = h.UpdateImage(context.Background(), apiRequest(http.MethodPost, `{}`, map[string]string{"sub": "u1"}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.UpdateImage(context.Background(), apiRequest(http.MethodPost, `{"imageUrl":"x"}`, nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	users.err = errors.New("ddb")
	resp, _ = h.UpdateImage(context.Background(), apiRequest(http.MethodPost, `{"imageUrl":"x"}`, map[string]string{"sub": "u1"}))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestAutoConfirm(t *testing.T) {
	a := NewAutoConfirm(nil)

	in := `{"version":"1","triggerSource":"PreSignUp_SignUp","userName":"kim","request":{"userAttributes":{"email":"k@example.com"}},"response":{}}`
	out, err := a.Handle(context.Background(), json.RawMessage(in))
	require.NoError(t, err)

	var got struct {
		Request  map[string]any  `json:"request"`
		Response map[string]bool `json:"response"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, map[string]bool{"autoConfirmUser": true, "autoVerifyEmail": true, "autoVerifyPhone": false}, got.Response)
	assert.NotNil(t, got.Request["userAttributes"])

	passthrough := `{"triggerSource":"PostConfirmation_ConfirmSignUp","userName":"kim"}`
	out, err = a.Handle(context.Background(), json.RawMessage(passthrough))
	require.NoError(t, err)
	assert.Equal(t, passthrough, string(out))

	_, err = a.Handle(context.Background(), json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestCallerID(t *testing.T) {
	assert.Equal(t, "sub-1", callerID(apiRequest(http.MethodGet, "", map[string]string{"sub": "sub-1"})))

	req := apiRequest(http.MethodGet, "", nil)
	req.Headers["authorization"] = bearer(`{"cognito:username":"kim"}`)
	assert.Equal(t, "kim", callerID(req))

	req.Headers["authorization"] = "Bearer not-a-jwt"
	assert.Empty(t, callerID(req))

	req.Headers["authorization"] = "Basic abc"
	assert.Empty(t, callerID(req))
}

func TestAuthorizedID_IgnoresBearerPayload(t *testing.T) {
	assert.Equal(t, "sub-1", authorizedID(apiRequest(http.MethodGet, "", map[string]string{"sub": "sub-1"})))
	assert.Equal(t, "kim", authorizedID(apiRequest(http.MethodGet, "", map[string]string{"cognito:username": "kim"})))

	req := apiRequest(http.MethodGet, "", nil)
	req.Headers["authorization"] = bearer(`{"sub":"u2"}`)
	assert.Empty(t, authorizedID(req))
	assert.Equal(t, "u2", callerID(req))
}

func TestOwnerRoutes_RejectUnverifiedBearer(t *testing.T) {
	forged := func(method, body string) events.APIGatewayV2HTTPRequest {
		req := apiRequest(method, body, nil)
		req.Headers["authorization"] = bearer(`{"sub":"u2"}`)
		return req
	}

	history := NewHistoryHandler(fakeReader{recs: map[string]store.Record{
		"b": {ID: "b", UserID: "u2", Category: fate.CategorySaju},
	}}, nil)
	req := forged(http.MethodGet, "")
	req.PathParameters = map[string]string{"id": "b"}
	resp, _ := history.Handle(context.Background(), req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = history.Handle(context.Background(), forged(http.MethodGet, ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	users := &fakeUsers{}
	prof := NewProfileHandler(fakeSigner{}, users, nil)
	upload := forged(http.MethodGet, "")
	upload.PathParameters = map[string]string{"extension": "png"}
	resp, _ = prof.UploadURL(context.Background(), upload)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = prof.UpdateImage(context.Background(), forged(http.MethodPost, `{"imageUrl":"x"}`))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, users.sub)
}

type fakeCognito struct {
	in  *cognitoidentityprovider.ChangePasswordInput
	err error
}

func (f *fakeCognito) ChangePassword(_ context.Context, in *cognitoidentityprovider.ChangePasswordInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ChangePasswordOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &cognitoidentityprovider.ChangePasswordOutput{}, nil
}

func passwordRequest(token, body string) events.APIGatewayV2HTTPRequest {
	req := apiRequest(http.MethodPost, body, nil)
	if token != "" {
		req.Headers["Authorization"] = "Bearer " + token
	}
	return req
}

func TestPassword_Success(t *testing.T) {
	cog := &fakeCognito{}
	h := NewPasswordHandler(cog, nil)

	resp, err := h.Handle(context.Background(), passwordRequest("access-1", `{"oldPassword":"Old12345","newPassword":"NewPass12"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	assert.Equal(t, map[string]any{"success": true, "message": "비밀번호가 성공적으로 변경되었습니다."}, decode(t, resp))

	require.NotNil(t, cog.in)
	assert.Equal(t, "access-1", aws.ToString(cog.in.AccessToken))
	assert.Equal(t, "Old12345", aws.ToString(cog.in.PreviousPassword))
	assert.Equal(t, "NewPass12", aws.ToString(cog.in.ProposedPassword))
}

func TestPassword_RequestChecks(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		body   string
		status int
		msg    string
	}{
		{"no token", "", `{"oldPassword":"a","newPassword":"NewPass12"}`, http.StatusUnauthorized, "An access token is required."},
		{"bad body", "t", `{`, http.StatusBadRequest, "The request body is not valid JSON."},
		{"missing old", "t", `{"newPassword":"NewPass12"}`, http.StatusBadRequest, "Both the current and the new password are required."},
		{"missing new", "t", `{"oldPassword":"Old12345"}`, http.StatusBadRequest, "Both the current and the new password are required."},
		{"too short", "t", `{"oldPassword":"x","newPassword":"Ab1"}`, http.StatusBadRequest, "The password must be at least 8 characters long."},
		{"no upper", "t", `{"oldPassword":"x","newPassword":"newpass12"}`, http.StatusBadRequest, "The password must contain an uppercase letter."},
		{"no lower", "t", `{"oldPassword":"x","newPassword":"NEWPASS12"}`, http.StatusBadRequest, "The password must contain a lowercase letter."},
		{"no digit", "t", `{"oldPassword":"x","newPassword":"NewPassword"}`, http.StatusBadRequest, "The password must contain a digit."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cog := &fakeCognito{}
			req := passwordRequest(tt.token, tt.body)
			req.QueryStringParameters = map[string]string{"lang": "en"}

			resp, err := NewPasswordHandler(cog, nil).Handle(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, decode(t, resp)["error"])
			assert.Nil(t, cog.in, "cognito must not be called")
		})
	}
}

func TestPassword_CognitoErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"wrong password", &cognitotypes.NotAuthorizedException{Message: aws.String("Incorrect username or password.")}, http.StatusUnauthorized, "The current password is incorrect."},
		{"policy", &cognitotypes.InvalidPasswordException{Message: aws.String("policy")}, http.StatusBadRequest, "The new password does not meet the password policy."},
		{"parameter", &cognitotypes.InvalidParameterException{Message: aws.String("length")}, http.StatusBadRequest, "The password is too short or does not meet the policy."},
		{"wrapped", fmt.Errorf("operation error: %w", &cognitotypes.NotAuthorizedException{}), http.StatusUnauthorized, "The current password is incorrect."},
		{"other", errors.New("throttled"), http.StatusInternalServerError, "The password could not be changed."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := passwordRequest("t", `{"oldPassword":"Old12345","newPassword":"NewPass12"}`)
			req.Headers["Accept-Language"] = "en-US"

			resp, err := NewPasswordHandler(&fakeCognito{err: tt.err}, nil).Handle(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, decode(t, resp)["error"])
		})
	}
}

func TestPassword_Methods(t *testing.T) {
	h := NewPasswordHandler(&fakeCognito{}, nil)
	resp, _ := h.Handle(context.Background(), apiRequest(http.MethodOptions, "", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "POST, OPTIONS", resp.Headers["access-control-allow-methods"])

	resp, _ = h.Handle(context.Background(), apiRequest(http.MethodGet, "", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	resp, err := Health(context.Background(), events.APIGatewayV2HTTPRequest{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true, "service": "fate-backend"}, decode(t, resp))
}
