package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"signbridge/internal/generated"
)

// TestAPIDocumentCoversRoutes は登録されたルートがすべてドキュメントに記載されていることをテストする
func TestAPIDocumentCoversRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	router, err := loadAPIRouter()
	if err != nil {
		t.Fatalf("OpenAPIドキュメントの読み込みに失敗しました: %v", err)
	}

	for _, route := range srv.engine.Routes() {
		if route.Path == "/" {
			continue
		}
		path := strings.ReplaceAll(route.Path, ":page", "practice")
		req := httptest.NewRequest(route.Method, path, nil)
		if _, _, err := router.FindRoute(req); err != nil {
			t.Errorf("%s %s がドキュメントにありません: %v", route.Method, route.Path, err)
		}
	}
}

// TestRequestValidation はドキュメントに反するリクエストが拒否されることをテストする
func TestRequestValidation(t *testing.T) {
	srv, platform := newTestServer(t)

	testCases := []struct {
		name   string
		method string
		path   string
		status int
		code   string
	}{
		{"大文字を含むページ名", http.MethodGet, "/api/pages/Practice/camera", http.StatusBadRequest, "invalid_request"},
		{"記号で始まるページ名", http.MethodPost, "/api/pages/-practice/camera/start", http.StatusBadRequest, "invalid_request"},
		{"ドットを含むページ名", http.MethodGet, "/api/pages/a.b/camera/snapshot", http.StatusBadRequest, "invalid_request"},
		{"書式は正しいが未設定のページ", http.MethodGet, "/api/pages/settings/camera", http.StatusNotFound, "page_not_found"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, tc.method, tc.path)
			if rec.Code != tc.status {
				t.Fatalf("ステータスコードが一致しません: got %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}

			var response generated.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
				t.Fatalf("エラー応答のデコードに失敗しました: %v", err)
			}
			if response.Error != tc.code {
				t.Errorf("エラーコードが一致しません: got %s, want %s", response.Error, tc.code)
			}
			if response.Message == "" || response.Timestamp.IsZero() {
				t.Errorf("エラー応答が不完全です: %+v", response)
			}
		})
	}

	// 拒否された要求は取得を始めない
	if platform.Requests() != 0 {
		t.Errorf("検証に失敗した要求で取得が行われました: %d", platform.Requests())
	}
}

// TestValidationMessage は検証エラーの説明にパラメータ名が含まれることをテストする
func TestValidationMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/pages/Practice/camera")

	var response generated.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(response.Message, "page") {
		t.Errorf("説明にパラメータ名が含まれていません: %s", response.Message)
	}
}
