package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/darasahq/darasa/apps/api/echo"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
)

func parseClaims(t *testing.T, token string) *echoapi.Claims {
	t.Helper()
	claims := new(echoapi.Claims)
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return conf.SecretKey, nil
	}); err != nil {
		t.Fatalf("jwt.ParseWithClaims(): %v", err)
	}
	return claims
}

func Test_authApi_register(t *testing.T) {
	resetDB(t)

	createUser(t, "Taken", "taken@test.cd", "s3cretW0rd")

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": reqMsg, "password": reqMsg}),
		},
		{
			name: "invalid email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Email: "lol", Password: "s3cretW0rd"}),
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "weak password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Email: "new@test.cd", Password: "lol"}),
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
		{
			name: "taken email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Email: "taken@test.cd", Password: "s3cretW0rd"}),
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name: "registered", wantCode: http.StatusCreated,
			body: marchallObj(t, user.NewUser{Name: "Hero", Email: "hero@test.cd", Password: "s3cretW0rd"}),
		},
		{
			name: "name defaults to email local part", wantCode: http.StatusCreated,
			body:  marchallObj(t, user.NewUser{Email: "solo@test.cd", Password: "s3cretW0rd"}),
			extra: "solo",
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/register"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if usr.ID == "" {
					t.Error("failed! no ID in response")
				}
				if wantName, ok := tt.extra.(string); ok && usr.Name != wantName {
					t.Errorf("failed! name = %q, want %q", usr.Name, wantName)
				}
				if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
					t.Error("failed! response leaks password data")
				}
			}
		})
	}
}

func Test_authApi_login(t *testing.T) {
	resetDB(t)

	student := createUser(t, "Hero", "hero@test.cd", "s3cretW0rd")
	admin := createUser(t, "Boss", adminEmail, "s3cretW0rd")

	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{
			name: "required fields", body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "lol@test.cd", Password: "s3cretW0rd"}),
			wantData: authFailed,
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Email: student.Email, Password: "wrong"}),
			wantData: authFailed,
		},
		{
			name: "student login", wantCode: http.StatusOK,
			body:  marchallObj(t, echoapi.LoginRequest{Email: student.Email, Password: "s3cretW0rd"}),
			extra: false,
		},
		{
			name: "admin login", wantCode: http.StatusOK,
			body:  marchallObj(t, echoapi.LoginRequest{Email: admin.Email, Password: "s3cretW0rd"}),
			extra: true,
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
			}
			var respData echoapi.LoginResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
				t.Fatalf("json.Unmarshal(): %v", err)
			}
			if respData.Token == "" {
				t.Fatal("failed! empty token")
			}
			claims := parseClaims(t, respData.Token)
			if wantAdmin := tt.extra.(bool); claims.IsAdmin != wantAdmin {
				t.Errorf("failed! IsAdmin = %v, want %v", claims.IsAdmin, wantAdmin)
			}
		})
	}

	t.Run("login sets lastLogin", func(t *testing.T) {
		refreshed, err := usrRepo.GetUserByID(context.Background(), student.ID)
		if err != nil {
			t.Fatalf("GetUserByID(): %v", err)
		}
		if refreshed.LastLogin.IsZero() {
			t.Error("failed! lastLogin not set")
		}
	})
}

func Test_authApi_forgotPassword(t *testing.T) {
	resetDB(t)

	student := createUser(t, "Hero", "hero@test.cd", "s3cretW0rd")
	successData := marchallObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	type extraTest struct {
		emailSent bool
	}
	tests := []httpTest{
		{
			name: "required fields", body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required"}),
		},
		{
			name: "invalid email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.cd"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}),
			wantData: successData, extra: extraTest{emailSent: true},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/forgot-password"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ClearSentMessages()

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				msg, sent := emailsvc.LastSentMessage()
				if sent != extra.emailSent {
					t.Fatalf("failed! email sent = %v, want %v", sent, extra.emailSent)
				}
				if extra.emailSent {
					if got := msg.To[0].Address; got != student.Email {
						t.Errorf("failed! To = %s, want %s", got, student.Email)
					}
					if !strings.Contains(msg.TextContent, "/auth/reset-password?token=") {
						t.Error("failed! email does not contain a reset link")
					}
				}
			}
		})
	}
}

func Test_authApi_resetPassword(t *testing.T) {
	resetDB(t)

	ctx := context.Background()
	student := createUser(t, "Hero", "hero@test.cd", "s3cretW0rd")
	if err := usrSvc.RequestPasswordReset(ctx, student.Email); err != nil {
		t.Fatalf("RequestPasswordReset(): %v", err)
	}
	stored, err := usrRepo.GetUserByID(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetUserByID(): %v", err)
	}

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"token": reqMsg, "password": reqMsg}),
		},
		{
			name: "weak password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: stored.ResetToken, Password: "lol"}),
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", Password: "newW0rd123"}),
			wantData: marchallObj(t, httpErr{Error: "invalid or expired reset token"}),
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: stored.ResetToken, Password: "newW0rd123"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name: "token is single-use", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: stored.ResetToken, Password: "another123"}),
			wantData: marchallObj(t, httpErr{Error: "invalid or expired reset token"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/reset-password"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshed, err := usrRepo.GetUserByID(ctx, student.ID)
				if err != nil {
					t.Fatalf("GetUserByID(): %v", err)
				}
				if err := refreshed.CheckPassword("newW0rd123"); err != nil {
					t.Errorf("failed to set new password: %v", err)
				}
			}
		})
	}
}

func Test_authApi_refreshToken(t *testing.T) {
	resetDB(t)

	student := createUser(t, "Hero", "hero@test.cd", "s3cretW0rd")

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   student.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Name:         student.Name,
		Email:        student.Email,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("admin flag recomputed on refresh", func(t *testing.T) {
		promoted := createUser(t, "Late Boss", adminEmail, "s3cretW0rd")

		// token issued as if before the allow-list change
		claims := echoapi.GetUserClaims(conf, promoted)
		claims.IsAdmin = false
		token, err := echoapi.GenerateToken(claims)
		if err != nil {
			t.Fatalf("GenerateToken(): %v", err)
		}

		req, rec := newAuthRequest(http.MethodPost, "/api/auth/token-refresh", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var respData echoapi.LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if refreshed := parseClaims(t, respData.Token); !refreshed.IsAdmin {
			t.Error("failed! IsAdmin not recomputed from allow-list")
		}
	})
}
