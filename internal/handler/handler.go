package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tiendita/pedidos/internal/auth"
	"github.com/tiendita/pedidos/internal/gzip"
	"github.com/tiendita/pedidos/internal/handler/config"
	"github.com/tiendita/pedidos/internal/logger"
	"github.com/tiendita/pedidos/internal/model"
	"github.com/tiendita/pedidos/internal/service"
)

func Serve(cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(auth, service, cfg.ServerAddr, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	return srv.ListenAndServe()
}

type handler struct {
	auth     auth.Auth
	service  service.Service
	baseaddr string
	zaplog   *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, baseaddr string, zaplog *zap.Logger) *handler {
	return &handler{
		auth:     auth,
		service:  service,
		baseaddr: baseaddr,
		zaplog:   zaplog,
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.PostOrder), h.zaplog)))
	mux.HandleFunc("GET /api/orders", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetOrders), h.zaplog)))
	mux.HandleFunc("GET /api/orders/{id}", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetOrder), h.zaplog)))
	mux.HandleFunc("POST /api/orders/{id}/items", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.PostItem), h.zaplog)))
	mux.HandleFunc("DELETE /api/orders/{id}/items/{productID}", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.DeleteItem), h.zaplog)))
	mux.HandleFunc("PUT /api/orders/{id}/status", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.PutStatus), h.zaplog)))
	mux.HandleFunc("GET /api/orders/{id}/verify", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetVerify), h.zaplog)))
	mux.HandleFunc("POST /api/products/{id}/stock", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.AdminMiddleware(h.PostStock), h.zaplog)))

	return mux
}

// Ids are opaque; prefixes like ped-/cl- are a naming convention, not
// something to parse. Only the shape is checked here.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type OrderJSONResponse struct {
	ID            string          `json:"id"`
	Customer      string          `json:"customer_id"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

type LineJSONResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderWithLinesJSONResponse struct {
	Order OrderJSONResponse  `json:"order"`
	Lines []LineJSONResponse `json:"lines"`
}

func orderJSON(order model.Order) OrderJSONResponse {
	return OrderJSONResponse{
		ID:            order.ID,
		Customer:      order.Customer,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		Total:         order.Total,
		CreatedAt:     order.CreatedAt,
	}
}

func linesJSON(lines []model.OrderLine) []LineJSONResponse {
	out := make([]LineJSONResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineJSONResponse{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal(),
		})
	}
	return out
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(responseJSON)
}

type PostOrderJSONRequest struct {
	Customer      string `json:"customer_id"`
	PaymentMethod string `json:"payment_method"`
}

type PostOrderJSONResponse struct {
	OrderID string `json:"order_id"`
}

func (h *handler) PostOrder(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var createJSON PostOrderJSONRequest
	err = json.Unmarshal(buf.Bytes(), &createJSON)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !idPattern.MatchString(createJSON.Customer) {
		http.Error(w, "malformed customer id", http.StatusBadRequest)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), createJSON.Customer, createJSON.PaymentMethod)
	if err != nil {
		switch err {
		case service.ErrCustomerNotFound:
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, PostOrderJSONResponse{OrderID: order.ID})
}

func (h *handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customer")
	status := r.URL.Query().Get("status")
	if customer == "" && status == "" {
		// no filter: the caller's own orders
		customer = r.Header.Get(auth.HeaderUserCodeKey)
	}

	var orders []model.Order
	var err error
	switch {
	case customer != "":
		orders, err = h.service.ListByCustomer(r.Context(), customer)
	case status != "":
		orders, err = h.service.ListByStatus(r.Context(), status)
	default:
		http.Error(w, "customer or status filter required", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ordersJSON := make([]OrderJSONResponse, 0, len(orders))
	for _, order := range orders {
		ordersJSON = append(ordersJSON, orderJSON(order))
	}
	h.writeJSON(w, http.StatusOK, ordersJSON)
}

func (h *handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	order, lines, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		switch err {
		case service.ErrOrderNotFound:
			// no match reads as null, same as the list endpoints
			h.writeJSON(w, http.StatusOK, nil)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, OrderWithLinesJSONResponse{
		Order: orderJSON(order),
		Lines: linesJSON(lines),
	})
}

type PostItemJSONRequest struct {
	ProductID string           `json:"product_id"`
	Quantity  *int             `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

func (h *handler) PostItem(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var itemJSON PostItemJSONRequest
	err = json.Unmarshal(buf.Bytes(), &itemJSON)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !idPattern.MatchString(itemJSON.ProductID) {
		http.Error(w, "malformed product id", http.StatusBadRequest)
		return
	}
	if itemJSON.UnitPrice != nil && itemJSON.UnitPrice.Sign() < 0 {
		http.Error(w, "negative unit price", http.StatusBadRequest)
		return
	}

	quantity := 1
	if itemJSON.Quantity != nil {
		quantity = *itemJSON.Quantity
	}

	lines, err := h.service.AddItem(r.Context(), orderID, itemJSON.ProductID, quantity, itemJSON.UnitPrice)
	if err != nil {
		switch err {
		case service.ErrOrderNotFound, service.ErrProductNotFound:
			http.Error(w, err.Error(), http.StatusNotFound)
		case service.ErrOrderNotEditable, service.ErrInsufficientStock:
			http.Error(w, err.Error(), http.StatusConflict)
		case service.ErrInvalidQuantity:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, linesJSON(lines))
}

func (h *handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	productID := r.PathValue("productID")

	var quantity *int
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		quantity = &parsed
	}

	lines, err := h.service.RemoveItem(r.Context(), orderID, productID, quantity)
	if err != nil {
		switch err {
		case service.ErrOrderNotFound, service.ErrProductNotFound, service.ErrLineNotFound:
			http.Error(w, err.Error(), http.StatusNotFound)
		case service.ErrOrderNotEditable, service.ErrInsufficientStock:
			http.Error(w, err.Error(), http.StatusConflict)
		case service.ErrInvalidQuantity:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, linesJSON(lines))
}

type PutStatusJSONRequest struct {
	Status string `json:"status"`
}

func (h *handler) PutStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var statusJSON PutStatusJSONRequest
	err = json.Unmarshal(buf.Bytes(), &statusJSON)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, lines, err := h.service.SetEstado(r.Context(), orderID, statusJSON.Status)
	if err != nil {
		switch err {
		case service.ErrOrderNotFound:
			http.Error(w, err.Error(), http.StatusNotFound)
		case service.ErrInvalidStatus:
			http.Error(w, err.Error(), http.StatusBadRequest)
		case service.ErrOrderNotEditable,
			service.ErrOrderHasNoItems,
			service.ErrOrderTotalNotPositive,
			service.ErrStockInconsistent:
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, OrderWithLinesJSONResponse{
		Order: orderJSON(order),
		Lines: linesJSON(lines),
	})
}

type DeficitJSONResponse struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
	Deficit   int    `json:"deficit"`
}

func (h *handler) GetVerify(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	deficits, err := h.service.VerifyStock(r.Context(), orderID)
	if err != nil {
		switch err {
		case service.ErrOrderNotFound:
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	deficitsJSON := make([]DeficitJSONResponse, 0, len(deficits))
	for _, d := range deficits {
		deficitsJSON = append(deficitsJSON, DeficitJSONResponse{
			ProductID: d.ProductID,
			Required:  d.Required,
			Available: d.Available,
			Deficit:   d.Deficit,
		})
	}
	h.writeJSON(w, http.StatusOK, deficitsJSON)
}

type PostStockJSONRequest struct {
	Delta int `json:"delta"`
}

type PostStockJSONResponse struct {
	Stock int `json:"stock"`
}

func (h *handler) PostStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var stockJSON PostStockJSONRequest
	err = json.Unmarshal(buf.Bytes(), &stockJSON)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stock, err := h.service.AdjustStock(r.Context(), productID, stockJSON.Delta)
	if err != nil {
		switch err {
		case service.ErrProductNotFound:
			http.Error(w, err.Error(), http.StatusNotFound)
		case service.ErrInsufficientStock:
			http.Error(w, err.Error(), http.StatusConflict)
		case service.ErrInvalidQuantity:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, PostStockJSONResponse{Stock: stock})
}
