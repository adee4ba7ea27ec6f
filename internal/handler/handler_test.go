package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tiendita/pedidos/internal/auth"
	"github.com/tiendita/pedidos/internal/model"
	"github.com/tiendita/pedidos/internal/service"
	serviceconfig "github.com/tiendita/pedidos/internal/service/config"
	"github.com/tiendita/pedidos/internal/store"
)

type testEnv struct {
	srv   *httptest.Server
	auth  auth.Auth
	store store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemStore()
	require.NoError(t, st.CustomerPut(ctx, model.Customer{ID: "cl-1", Name: "Cliente Uno"}))
	require.NoError(t, st.ProductPut(ctx, model.Product{
		ID:        "prd-1",
		Name:      "Café molido",
		UnitPrice: decimal.RequireFromString("20.00"),
		Stock:     10,
		Active:    true,
	}))

	a := auth.NewAuth("test-secret")
	svc := service.NewService(serviceconfig.Config{}, st)
	h := newHandler(a, svc, "", zap.NewNop())
	srv := httptest.NewServer(h.newRouter())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, auth: a, store: st}
}

func (e *testEnv) do(t *testing.T, method string, path string, body any, role string) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reqBody)
	require.NoError(t, err)
	if role != "" {
		token, err := e.auth.BuildToken("cl-1", role, time.Hour)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: auth.CookieName(), Value: token})
	}

	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (e *testEnv) createOrder(t *testing.T) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/orders",
		PostOrderJSONRequest{Customer: "cl-1", PaymentMethod: "efectivo"}, auth.RoleClient)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created PostOrderJSONResponse
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.OrderID)
	return created.OrderID
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/api/orders",
		PostOrderJSONRequest{Customer: "cl-1"}, "")
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostOrder(t *testing.T) {
	e := newTestEnv(t)

	orderID := e.createOrder(t)
	require.Contains(t, orderID, "ped-")

	resp := e.do(t, http.MethodPost, "/api/orders",
		PostOrderJSONRequest{Customer: "cl-ghost"}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/orders",
		PostOrderJSONRequest{Customer: "cl 1 with spaces"}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestItemEndpoints(t *testing.T) {
	e := newTestEnv(t)
	orderID := e.createOrder(t)

	qty := 3
	resp := e.do(t, http.MethodPost, "/api/orders/"+orderID+"/items",
		PostItemJSONRequest{ProductID: "prd-1", Quantity: &qty}, auth.RoleClient)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lines []LineJSONResponse
	decodeBody(t, resp, &lines)
	require.Len(t, lines, 1)
	require.Equal(t, 3, lines[0].Quantity)
	require.True(t, lines[0].Subtotal.Equal(decimal.RequireFromString("60.00")))

	// only 7 left
	tooMany := 8
	resp = e.do(t, http.MethodPost, "/api/orders/"+orderID+"/items",
		PostItemJSONRequest{ProductID: "prd-1", Quantity: &tooMany}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	zero := 0
	resp = e.do(t, http.MethodPost, "/api/orders/"+orderID+"/items",
		PostItemJSONRequest{ProductID: "prd-1", Quantity: &zero}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/orders/"+orderID+"/items",
		PostItemJSONRequest{ProductID: "prd-ghost", Quantity: &qty}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/api/orders/"+orderID+"/items/prd-1?quantity=2", nil, auth.RoleClient)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &lines)
	require.Len(t, lines, 1)
	require.Equal(t, 1, lines[0].Quantity)

	resp = e.do(t, http.MethodDelete, "/api/orders/"+orderID+"/items/prd-1", nil, auth.RoleClient)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &lines)
	require.Empty(t, lines)

	resp = e.do(t, http.MethodDelete, "/api/orders/"+orderID+"/items/prd-1", nil, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	e := newTestEnv(t)
	orderID := e.createOrder(t)

	resp := e.do(t, http.MethodPut, "/api/orders/"+orderID+"/status",
		PutStatusJSONRequest{Status: "Enviado"}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// empty order cannot confirm
	resp = e.do(t, http.MethodPut, "/api/orders/"+orderID+"/status",
		PutStatusJSONRequest{Status: model.OrderStatusConfirmado}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	qty := 2
	resp = e.do(t, http.MethodPost, "/api/orders/"+orderID+"/items",
		PostItemJSONRequest{ProductID: "prd-1", Quantity: &qty}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPut, "/api/orders/"+orderID+"/status",
		PutStatusJSONRequest{Status: model.OrderStatusCancelado}, auth.RoleClient)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result OrderWithLinesJSONResponse
	decodeBody(t, resp, &result)
	require.Equal(t, model.OrderStatusCancelado, result.Order.Status)

	// terminal
	resp = e.do(t, http.MethodPost, "/api/orders/"+orderID+"/items",
		PostItemJSONRequest{ProductID: "prd-1", Quantity: &qty}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = e.do(t, http.MethodPut, "/api/orders/ped-ghost/status",
		PutStatusJSONRequest{Status: model.OrderStatusCancelado}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVerifyEndpoint(t *testing.T) {
	e := newTestEnv(t)
	orderID := e.createOrder(t)

	qty := 3
	resp := e.do(t, http.MethodPost, "/api/orders/"+orderID+"/items",
		PostItemJSONRequest{ProductID: "prd-1", Quantity: &qty}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/orders/"+orderID+"/verify", nil, auth.RoleClient)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deficits []DeficitJSONResponse
	decodeBody(t, resp, &deficits)
	require.Empty(t, deficits)

	resp = e.do(t, http.MethodGet, "/api/orders/ped-ghost/verify", nil, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetOrders(t *testing.T) {
	e := newTestEnv(t)
	orderID := e.createOrder(t)

	resp := e.do(t, http.MethodGet, "/api/orders?customer=cl-1", nil, auth.RoleClient)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []OrderJSONResponse
	decodeBody(t, resp, &orders)
	require.Len(t, orders, 1)
	require.Equal(t, orderID, orders[0].ID)

	resp = e.do(t, http.MethodGet, "/api/orders?status="+model.OrderStatusConfirmado, nil, auth.RoleClient)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &orders)
	require.Empty(t, orders)

	// no filter falls back to the session's own orders (cookie subject cl-1)
	resp = e.do(t, http.MethodGet, "/api/orders", nil, auth.RoleClient)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &orders)
	require.Len(t, orders, 1)

	// single get: no match reads as null
	resp = e.do(t, http.MethodGet, "/api/orders/ped-ghost", nil, auth.RoleClient)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.JSONEq(t, "null", string(raw))
}

func TestStockEndpoint(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/api/products/prd-1/stock",
		PostStockJSONRequest{Delta: 5}, auth.RoleClient)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/products/prd-1/stock",
		PostStockJSONRequest{Delta: 5}, auth.RoleAdmin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stock PostStockJSONResponse
	decodeBody(t, resp, &stock)
	require.Equal(t, 15, stock.Stock)

	resp = e.do(t, http.MethodPost, "/api/products/prd-1/stock",
		PostStockJSONRequest{Delta: -20}, auth.RoleAdmin)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/products/prd-ghost/stock",
		PostStockJSONRequest{Delta: 1}, auth.RoleAdmin)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
