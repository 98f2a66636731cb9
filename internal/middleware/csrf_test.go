package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newCSRFTestHandler(t *testing.T) (http.Handler, *bool) {
	t.Helper()
	called := false
	mw := NewCSRFMiddleware(CSRFConfig{CookieSecure: false})
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	return h, &called
}

// TestCSRFMiddleware_SafeMethodsPassWithoutToken は読み取り系メソッドが
// トークンなしで通過することを確認する。
func TestCSRFMiddleware_SafeMethodsPassWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			h, called := newCSRFTestHandler(t)

			req := httptest.NewRequest(method, "/api/games/active", nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if !*called {
				t.Fatalf("%s はトークンなしで通過すべき", method)
			}
		})
	}
}

// TestCSRFMiddleware_MutatingMethodsRequireToken は状態変更メソッドが
// トークンなしでは403になることを確認する。
func TestCSRFMiddleware_MutatingMethodsRequireToken(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			h, called := newCSRFTestHandler(t)

			req := httptest.NewRequest(method, "/api/queue", nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if *called {
				t.Fatalf("%s はトークンなしでハンドラーに到達すべきではない", method)
			}
			if w.Result().StatusCode != http.StatusForbidden {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
			}
		})
	}
}

// TestCSRFMiddleware_TokenValidation はCookieとヘッダーの組み合わせごとの
// 検証結果を確認する（double-submit cookie方式）。
func TestCSRFMiddleware_TokenValidation(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{"Cookieとヘッダーが一致", "token-1", "token-1", http.StatusOK},
		{"Cookieのみでヘッダーなし", "token-1", "", http.StatusForbidden},
		{"Cookieとヘッダーが不一致", "token-1", "token-2", http.StatusForbidden},
		{"どちらもなし", "", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newCSRFTestHandler(t)

			req := httptest.NewRequest(http.MethodPost, "/api/games/game-1/summon", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

// TestCSRFMiddleware_IssuesCookieOnFirstGET は初回GETでトークンCookieが
// 発行され、フロントエンドから読める属性になっていることを確認する。
func TestCSRFMiddleware_IssuesCookieOnFirstGET(t *testing.T) {
	h, _ := newCSRFTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	cookie := findCookie(w.Result().Cookies(), csrfCookieName)
	if cookie == nil {
		t.Fatal("初回GETでCSRF Cookieが発行されるべき")
	}
	if cookie.Value == "" {
		t.Error("Cookieの値が空")
	}
	if cookie.HttpOnly {
		t.Error("CSRF CookieはHttpOnlyであってはならない（フロントエンドが読むため）")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", cookie.SameSite)
	}
}

// TestCSRFMiddleware_KeepsExistingCookie は既存トークンを持つリクエストでは
// Cookieを再発行しないことを確認する。
func TestCSRFMiddleware_KeepsExistingCookie(t *testing.T) {
	h, _ := newCSRFTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if findCookie(w.Result().Cookies(), csrfCookieName) != nil {
		t.Error("既存トークンがある場合はCookieを再発行すべきではない")
	}
}

// TestCSRFTokenHandler はトークン取得エンドポイントがCookieとJSONで
// 同一のトークンを返すことを確認する。
func TestCSRFTokenHandler(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{CookieSecure: false})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body.Token == "" {
		t.Fatal("トークンが空")
	}

	cookie := findCookie(resp.Cookies(), csrfCookieName)
	if cookie == nil {
		t.Fatal("トークンCookieが設定されるべき")
	}
	if cookie.Value != body.Token {
		t.Errorf("Cookie値 %q とレスポンストークン %q が一致しない", cookie.Value, body.Token)
	}
}

// TestCSRFTokenHandler_ReusesExistingToken は既存Cookieのトークンを
// そのまま返すことを確認する。
func TestCSRFTokenHandler_ReusesExistingToken(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{CookieSecure: false})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "issued-before"})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body.Token != "issued-before" {
		t.Errorf("token = %q, want issued-before", body.Token)
	}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
