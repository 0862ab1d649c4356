package ledger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-ledger/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const handlerSecret = "ledger-secret"

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Auth.JWTSecret = handlerSecret

	r := gin.New()
	r.Use(middleware.Error())
	NewHandler(svc, middleware.NewAuthenticator(cfg)).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func token(t *testing.T, role, subject string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(handlerSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func serve(r http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetBalanceHandler(t *testing.T) {
	svc := newTestService(t, nil)
	seedAvailable(t, svc, "prov-a", "100", "250.50")
	r := newTestRouter(svc)

	w := serve(r, http.MethodGet, "/api/v1/provider/balance?currency=ngn", token(t, middleware.RoleProvider, "prov-a"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data Balance `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "NGN", resp.Data.Currency)
	requireAmount(t, "350.50", resp.Data.AvailableBalance)

	w = serve(r, http.MethodGet, "/api/v1/provider/balance", token(t, middleware.RoleAdmin, "admin-1"), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestListEarningsHandler(t *testing.T) {
	svc := newTestService(t, nil)
	seedAvailable(t, svc, "prov-a", "10", "20", "30")
	seedAvailable(t, svc, "prov-b", "40")
	r := newTestRouter(svc)
	auth := token(t, middleware.RoleProvider, "prov-a")

	w := serve(r, http.MethodGet, "/api/v1/provider/earnings?status=AVAILABLE&limit=2", auth, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data []Earning `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	for _, e := range resp.Data {
		require.Equal(t, "prov-a", e.ProviderID)
	}

	w = serve(r, http.MethodGet, "/api/v1/provider/earnings?status=SPENT", auth, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestFreezeEarningHandler(t *testing.T) {
	svc := newTestService(t, nil)
	earnings := seedAvailable(t, svc, "prov-a", "75")
	r := newTestRouter(svc)
	admin := token(t, middleware.RoleAdmin, "admin-1")
	path := "/api/v1/admin/earnings/" + earnings[0].ID + "/freeze"

	w := serve(r, http.MethodPost, path, admin, map[string]string{})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(r, http.MethodPost, path, admin, map[string]string{"reason": "chargeback dispute"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), string(EarningFrozen))

	w = serve(r, http.MethodPost, path, admin, map[string]string{"reason": "again"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = serve(r, http.MethodPost, path, token(t, middleware.RoleProvider, "prov-a"), map[string]string{"reason": "mine"})
	require.Equal(t, http.StatusForbidden, w.Code)
}
