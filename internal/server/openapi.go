package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/gin-gonic/gin"

	"signbridge/api"
)

// loadAPIRouter は埋め込まれたOpenAPIドキュメントからルーターを作る
func loadAPIRouter() (routers.Router, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(api.Spec)
	if err != nil {
		return nil, fmt.Errorf("OpenAPIドキュメントの読み込みに失敗: %w", err)
	}
	// リクエストのホストに関係なくパスだけで照合する
	doc.Servers = nil

	// NewRouterはドキュメント自体の検証も行う
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("APIルーターの作成に失敗: %w", err)
	}
	return router, nil
}

// requestValidator はOpenAPIドキュメントに対してリクエストを検証するミドルウェア
// ドキュメントにないパスはそのまま通す
func requestValidator(router routers.Router) gin.HandlerFunc {
	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(c *gin.Context) {
		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			var routeErr *routers.RouteError
			if errors.As(err, &routeErr) {
				c.Next()
				return
			}
			errorJSON(c, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    options,
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid_request", validationMessage(err))
			return
		}
		c.Next()
	}
}

// validationMessage は検証エラーから利用者向けの説明を取り出す
func validationMessage(err error) string {
	var requestErr *openapi3filter.RequestError
	if errors.As(err, &requestErr) {
		reason := requestErr.Reason
		if reason == "" && requestErr.Err != nil {
			reason = requestErr.Err.Error()
		}
		if requestErr.Parameter != nil {
			return fmt.Sprintf("パラメータ %s が不正です: %s", requestErr.Parameter.Name, reason)
		}
		if reason != "" {
			return reason
		}
	}
	return err.Error()
}
