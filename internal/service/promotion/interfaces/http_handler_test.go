package interfaces

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"tomatomall/internal/pkg/database"
	"tomatomall/internal/pkg/database/dbtest"
	"tomatomall/internal/pkg/identity"
	"tomatomall/internal/service/promotion/application"
	"tomatomall/internal/service/promotion/infrastructure"
	"tomatomall/internal/service/promotion/infrastructure/rule"
)

func newMux(t *testing.T) *http.ServeMux {
	t.Helper()
	db := dbtest.New(t, &infrastructure.CouponTemplateModel{}, &infrastructure.CouponModel{})
	engine, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	svc := application.NewPromotionService(
		infrastructure.NewGormCouponRepository(db),
		infrastructure.NewGormTemplateRepository(db),
		engine,
		database.NewTxManager(db),
		noop.NewTracerProvider().Tracer("test"),
	)
	mux := http.NewServeMux()
	NewPromotionHandler(svc).RegisterRoutes(mux)
	return mux
}

func call(mux *http.ServeMux, method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(identity.HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPromotionHandler_IssueFlow(t *testing.T) {
	mux := newMux(t)
	expireAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	rec := call(mux, http.MethodPost, "/api/coupons/templates", "",
		fmt.Sprintf(`{"title":"满100减20","type":"FULL_REDUCTION","threshold":"100","reduce":"20","restCnt":1,"expireAt":%q}`, expireAt))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tpl application.TemplateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tpl))

	issuePath := fmt.Sprintf("/api/coupons/templates/%d/issue", tpl.ID)
	assert.Equal(t, http.StatusUnauthorized, call(mux, http.MethodPost, issuePath, "", "").Code)
	assert.Equal(t, http.StatusCreated, call(mux, http.MethodPost, issuePath, "7", "").Code)
	assert.Equal(t, http.StatusConflict, call(mux, http.MethodPost, issuePath, "8", "").Code)

	rec = call(mux, http.MethodGet, "/api/coupons", "7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var coupons []application.CouponResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&coupons))
	require.Len(t, coupons, 1)
	assert.Equal(t, tpl.ID, coupons[0].TemplateID)
}

func TestPromotionHandler_InvalidTemplate(t *testing.T) {
	mux := newMux(t)
	rec := call(mux, http.MethodPost, "/api/coupons/templates", "",
		`{"title":"bad","type":"FULL_REDUCTION","threshold":"10","reduce":"10","restCnt":1,"expireAt":"2099-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
