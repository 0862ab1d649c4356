package payout

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-ledger/pkg/middleware"
	"marketplace-ledger/pkg/validation"
	"marketplace-ledger/services/ledger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "handler-secret"

func (f *fixture) router(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.Register())

	f.cfg.Auth.JWTSecret = jwtSecret
	r := gin.New()
	r.Use(middleware.Error())
	NewHandler(f.svc, middleware.NewAuthenticator(f.cfg)).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func bearer(t *testing.T, role, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func do(r http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func createBody(amount any) map[string]any {
	return map[string]any{
		"amount":           amount,
		"account_number":   "0123456789",
		"account_name":     "Ada Obi",
		"bank_code":        "058",
		"bank_name":        "GTBank",
		"payment_provider": "flutterwave",
	}
}

func TestCreatePayoutHandler(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)
	f.trusted(t, "prov-a")
	f.earn(t, "prov-a", "2500")

	w := do(r, http.MethodPost, "/api/v1/provider/payouts", bearer(t, middleware.RoleProvider, "prov-a"), createBody("2500"))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		Data    ledger.Payout `json:"data"`
		Message string        `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, ledger.PayoutProcessing, resp.Data.Status)
	require.Equal(t, "flutterwave", resp.Data.PaymentProvider)
	require.Equal(t, MessageProcessing, resp.Message)

	w = do(r, http.MethodPost, "/api/v1/provider/payouts", bearer(t, middleware.RoleProvider, "prov-a"), createBody(100))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, ReasonInsufficientBalance, decodeError(t, w).Error.Reason)
}

func TestCreatePayoutHandlerHeldForReview(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)
	f.earn(t, "prov-a", "100")

	w := do(r, http.MethodPost, "/api/v1/provider/payouts", bearer(t, middleware.RoleProvider, "prov-a"), createBody(100))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), MessageUnderReview)
}

func TestCreatePayoutHandlerValidation(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)

	body := createBody(-5)
	body["account_number"] = "12ab"
	body["payment_provider"] = "cash"

	w := do(r, http.MethodPost, "/api/v1/provider/payouts", bearer(t, middleware.RoleProvider, "prov-a"), body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	e := decodeError(t, w)
	require.Equal(t, "VALIDATION_FAILED", e.Error.Code)
	fields := map[string]bool{}
	for _, d := range e.Error.Details {
		fields[d.Field] = true
	}
	require.True(t, fields["amount"])
	require.True(t, fields["account_number"])
	require.True(t, fields["payment_provider"])
	require.Zero(t, f.payoutCount(t, "prov-a"))
}

func TestPayoutRoutesRequireRole(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)

	w := do(r, http.MethodPost, "/api/v1/provider/payouts", "", createBody(100))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/v1/admin/payouts/review", bearer(t, middleware.RoleProvider, "prov-a"), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetAndListPayoutHandlers(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)
	f.trusted(t, "prov-a")
	f.earn(t, "prov-a", "300", "200")

	res, err := f.svc.CreatePayoutRequest(t.Context(), "prov-a", request("500"))
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/api/v1/provider/payouts/"+res.Payout.ID, bearer(t, middleware.RoleProvider, "prov-a"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/provider/payouts/"+res.Payout.ID, bearer(t, middleware.RoleProvider, "prov-b"), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/provider/payouts?status=PROCESSING", bearer(t, middleware.RoleProvider, "prov-a"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var page struct {
		Data []struct {
			ID       string `json:"id"`
			Reserved struct {
				Count int64  `json:"count"`
				Total string `json:"total"`
			} `json:"reserved_earnings"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	require.Equal(t, res.Payout.ID, page.Data[0].ID)
	require.Equal(t, int64(2), page.Data[0].Reserved.Count)
	requireAmount(t, "500", dec(page.Data[0].Reserved.Total))

	w = do(r, http.MethodGet, "/api/v1/provider/payouts?status=LOST", bearer(t, middleware.RoleProvider, "prov-a"), nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAdminPayoutHandlers(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)
	f.trusted(t, "prov-a")
	f.earn(t, "prov-a", "60000", "100")

	held, err := f.svc.CreatePayoutRequest(t.Context(), "prov-a", request("60000"))
	require.NoError(t, err)
	other, err := f.svc.CreatePayoutRequest(t.Context(), "prov-a", request("100"))
	require.NoError(t, err)
	require.Equal(t, ledger.PayoutProcessing, other.Payout.Status)

	admin := bearer(t, middleware.RoleAdmin, "admin-1")

	w := do(r, http.MethodGet, "/api/v1/admin/payouts/review", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), held.Payout.ID)
	require.NotContains(t, w.Body.String(), other.Payout.ID)

	w = do(r, http.MethodPost, "/api/v1/admin/payouts/"+held.Payout.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), string(ledger.PayoutProcessing))

	w = do(r, http.MethodPost, "/api/v1/admin/payouts/"+held.Payout.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, ledger.ReasonInvalidTransition, decodeError(t, w).Error.Reason)

	w = do(r, http.MethodPost, "/api/v1/provider/payouts/"+other.Payout.ID+"/cancel", bearer(t, middleware.RoleProvider, "prov-a"), nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/v1/admin/payouts/"+other.Payout.ID+"/cancel", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), string(ledger.PayoutCancelled))
}

func webhook(t *testing.T, r http.Handler, secret string, event map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payouts", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign([]byte(secret), raw))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPayoutWebhook(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)
	ctx := t.Context()

	completed, _ := f.processing(t, "prov-a", "400")
	f.earn(t, "prov-b", "900")
	f.trusted(t, "prov-b")
	failing, err := f.svc.CreatePayoutRequest(ctx, "prov-b", request("900"))
	require.NoError(t, err)

	w := webhook(t, r, "wrong", map[string]any{"reference": completed.Reference, "status": "success"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = webhook(t, r, "whsec", map[string]any{"reference": completed.Reference, "status": "success", "provider_reference": "TRF_77"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got, err := f.svc.GetPayout(ctx, "", completed.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.PayoutCompleted, got.Status)
	require.Equal(t, "TRF_77", got.ProviderReference)

	// redelivery is harmless
	w = webhook(t, r, "whsec", map[string]any{"reference": completed.Reference, "status": "success", "provider_reference": "TRF_77"})
	require.Equal(t, http.StatusOK, w.Code)

	w = webhook(t, r, "whsec", map[string]any{"reference": failing.Payout.Reference, "status": "failed", "reason": "account dormant"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got, err = f.svc.GetPayout(ctx, "", failing.Payout.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.PayoutFailed, got.Status)
	require.Equal(t, "account dormant", got.FailureReason)
	for _, e := range f.earnings(t, "prov-b") {
		require.Equal(t, ledger.EarningAvailable, e.Status)
	}

	w = webhook(t, r, "whsec", map[string]any{"reference": "PO-NOPE", "status": "success"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = webhook(t, r, "whsec", map[string]any{"reference": completed.Reference, "status": "done"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
