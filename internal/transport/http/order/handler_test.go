package order

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/identity"
	repo "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/repository/order"
	service "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/service/order"
)

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	svc := service.NewServiceWithStore(repo.NewMemory(), zap.NewNop())
	Register(e, NewHandler(svc))
	return e
}

func doJSON(e *echo.Echo, method, target string, body string, userID string, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set(identity.HeaderUserID, userID)
	}
	if role != "" {
		req.Header.Set(identity.HeaderRole, role)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		ID     int64   `json:"id"`
		Number string  `json:"number"`
		Status string  `json:"status"`
		Total  float64 `json:"total"`
		Lines  []struct {
			ProductID string `json:"product_id"`
			Qty       int64  `json:"qty"`
		} `json:"items"`
	} `json:"data"`
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRoutesRequireIdentity(t *testing.T) {
	e := newTestRouter(t)

	rec := doJSON(e, http.MethodGet, "/orders/draft", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodGet, "/orders", "", "not-a-number", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	e := newTestRouter(t)

	rec := doJSON(e, http.MethodGet, "/orders/admin/all", "", "1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode(t, rec).Error.Kind)

	rec = doJSON(e, http.MethodGet, "/orders/admin/all", "", "1", "admin")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDraftLifecycleOverHTTP(t *testing.T) {
	e := newTestRouter(t)

	rec := doJSON(e, http.MethodGet, "/orders/draft", "", "7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decode(t, rec)
	assert.Equal(t, "Draft", draft.Data.Status)

	// Idempotent: a second fetch returns the same draft.
	rec = doJSON(e, http.MethodGet, "/orders/draft", "", "7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, draft.Data.ID, decode(t, rec).Data.ID)

	itemURL := fmt.Sprintf("/orders/%d/items", draft.Data.ID)
	rec = doJSON(e, http.MethodPost, itemURL, `{"product_id":"p1","name":"Rice","price":50,"qty":2}`, "7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100.0, decode(t, rec).Data.Total)

	rec = doJSON(e, http.MethodPost, itemURL, `{"product_id":"p1","name":"Rice","price":50,"qty":1}`, "7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.Len(t, env.Data.Lines, 1)
	assert.Equal(t, int64(3), env.Data.Lines[0].Qty)
	assert.Equal(t, 150.0, env.Data.Total)

	confirmURL := fmt.Sprintf("/orders/%d/confirm", draft.Data.ID)
	rec = doJSON(e, http.MethodPost, confirmURL, `{"payment_mode":"cash","delivery_mode":"collectFromShop"}`, "7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pending", decode(t, rec).Data.Status)

	// Item mutation after confirm is an invalid state, mapped to 409.
	rec = doJSON(e, http.MethodPost, itemURL, `{"product_id":"p2","name":"Sugar","price":40,"qty":1}`, "7", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decode(t, rec).Error.Kind)
}

func TestConfirmValidationOverHTTP(t *testing.T) {
	e := newTestRouter(t)

	rec := doJSON(e, http.MethodGet, "/orders/draft", "", "7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decode(t, rec)

	confirmURL := fmt.Sprintf("/orders/%d/confirm", draft.Data.ID)
	rec = doJSON(e, http.MethodPost, confirmURL, `{"payment_mode":"cash","delivery_mode":"doorDelivery"}`, "7", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unprocessable_entity", decode(t, rec).Error.Kind)
}

func TestOwnershipIsolationOverHTTP(t *testing.T) {
	e := newTestRouter(t)

	rec := doJSON(e, http.MethodGet, "/orders/draft", "", "7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decode(t, rec)

	itemURL := fmt.Sprintf("/orders/%d/items", draft.Data.ID)
	rec = doJSON(e, http.MethodPost, itemURL, `{"product_id":"p1","name":"Rice","price":50,"qty":1}`, "8", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	cancelURL := fmt.Sprintf("/orders/%d/cancel", draft.Data.ID)
	rec = doJSON(e, http.MethodPost, cancelURL, "", "8", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminStatusAndDeleteOverHTTP(t *testing.T) {
	e := newTestRouter(t)

	rec := doJSON(e, http.MethodGet, "/orders/draft", "", "7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decode(t, rec)

	confirmURL := fmt.Sprintf("/orders/%d/confirm", draft.Data.ID)
	rec = doJSON(e, http.MethodPost, confirmURL, `{"payment_mode":"cash","delivery_mode":"collectFromShop"}`, "7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	statusURL := fmt.Sprintf("/orders/admin/%d/status", draft.Data.ID)
	rec = doJSON(e, http.MethodPut, statusURL, `{"status":"Accepted"}`, "1", "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Accepted", decode(t, rec).Data.Status)

	rec = doJSON(e, http.MethodPut, statusURL, `{"status":"Shipped"}`, "1", "admin")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	deleteURL := fmt.Sprintf("/orders/admin/%d", draft.Data.ID)
	rec = doJSON(e, http.MethodDelete, deleteURL, "", "1", "admin")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodDelete, deleteURL, "", "1", "admin")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidOrderIDOverHTTP(t *testing.T) {
	e := newTestRouter(t)

	rec := doJSON(e, http.MethodPost, "/orders/abc/items", `{"product_id":"p1","name":"Rice","price":50,"qty":1}`, "7", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/orders/999/cancel", "", "7", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
