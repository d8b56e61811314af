package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/iurnickita/posmart/internal/allocation"
	"github.com/iurnickita/posmart/internal/auth"
	"github.com/iurnickita/posmart/internal/backend"
	"github.com/iurnickita/posmart/internal/cart"
	"github.com/iurnickita/posmart/internal/checkout"
	"github.com/iurnickita/posmart/internal/coupon"
	"github.com/iurnickita/posmart/internal/handler/config"
	"github.com/iurnickita/posmart/internal/logger"
	"github.com/iurnickita/posmart/internal/model"
	"github.com/iurnickita/posmart/internal/service"
	"github.com/iurnickita/posmart/internal/snapshot"
	"github.com/iurnickita/posmart/internal/token"
)

// Serve blocks until ctx is done or the listener fails.
func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(auth, service, zaplog)
	router := h.newRouter()

	addr := cfg.ServerAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errc := make(chan error, 1)
	go func() {
		zaplog.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			return err
		}
		return nil
	}
}

type handler struct {
	auth    auth.Auth
	service service.Service
	zaplog  *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, zaplog *zap.Logger) *handler {
	return &handler{
		auth:    auth,
		service: service,
		zaplog:  zaplog,
	}
}

func (h *handler) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(logger.RequestLogMdlw(h.zaplog))

	r.Route("/api/pos", func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/catalog", h.GetCatalog)
		r.Get("/products/{productID}/batches", h.GetBatches)

		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.DeleteCart)
		r.Post("/cart/lines", h.PostLine)
		r.Patch("/cart/lines/{productID}", h.PatchLine)
		r.Delete("/cart/lines/{productID}", h.DeleteLine)
		r.Put("/cart/customer", h.PutCustomer)
		r.Put("/cart/notes", h.PutNotes)
		r.Put("/cart/payment", h.PutPayment)
		r.Put("/cart/discount", h.PutDiscount)
		r.Post("/cart/coupon", h.PostCoupon)
		r.Delete("/cart/coupon", h.DeleteCoupon)

		r.Post("/checkout/open", h.PostCheckoutOpen)
		r.Post("/checkout/cancel", h.PostCheckoutCancel)
		r.Post("/checkout", h.PostCheckout)

		r.Get("/saved-carts", h.GetSavedCarts)
		r.Post("/saved-carts", h.PostSavedCart)
		r.Post("/saved-carts/{id}/load", h.PostLoadSavedCart)
		r.Delete("/saved-carts/{id}", h.DeleteSavedCart)
	})

	return r
}

func operator(r *http.Request) string {
	op, _ := token.FromContext(r.Context())
	return op.Code
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorStatus(err error) int {
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, service.ErrInsufficientData):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownProduct),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, snapshot.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrSubmitInProgress),
		errors.Is(err, checkout.ErrNotOpen),
		errors.Is(err, cart.ErrCouponApplied):
		return http.StatusConflict
	case errors.Is(err, cart.ErrEmptyAllocation),
		errors.Is(err, cart.ErrStockExceeded),
		errors.Is(err, cart.ErrInvalidDiscount),
		errors.Is(err, cart.ErrInvalidPayment),
		errors.Is(err, cart.ErrCouponDiscountType),
		errors.Is(err, allocation.ErrNoPurchaseHistory),
		errors.Is(err, allocation.ErrNothingAllocated),
		errors.Is(err, allocation.ErrUnknownBatch),
		errors.Is(err, allocation.ErrNegativePrice),
		errors.Is(err, coupon.ErrCodeRequired),
		errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrEmptyCart),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrCustomerName),
		errors.Is(err, checkout.ErrCustomerEmail),
		errors.Is(err, checkout.ErrInvalidEmail),
		errors.Is(err, checkout.ErrInvalidPayment),
		errors.Is(err, checkout.ErrInvalidCardNumber),
		errors.Is(err, snapshot.ErrEmptyCart),
		errors.Is(err, snapshot.ErrNameRequired):
		return http.StatusUnprocessableEntity
	case errors.As(err, &statusErr),
		errors.Is(err, backend.ErrUnexpectedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.zaplog.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (h *handler) respondCart(w http.ResponseWriter, view service.CartView, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.Catalog(r.Context(), operator(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (h *handler) GetBatches(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.OpenAllocation(r.Context(), operator(r), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetCart(r.Context(), operator(r))
	h.respondCart(w, view, err)
}

func (h *handler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ClearCart(r.Context(), operator(r))
	h.respondCart(w, view, err)
}

func (h *handler) PostLine(w http.ResponseWriter, r *http.Request) {
	var req service.AddRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.service.AddToCart(r.Context(), operator(r), req)
	h.respondCart(w, view, err)
}

type PatchLineJSONRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handler) PatchLine(w http.ResponseWriter, r *http.Request) {
	var req PatchLineJSONRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.service.UpdateQuantity(r.Context(), operator(r), chi.URLParam(r, "productID"), req.Quantity)
	h.respondCart(w, view, err)
}

func (h *handler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveLine(r.Context(), operator(r), chi.URLParam(r, "productID"))
	h.respondCart(w, view, err)
}

func (h *handler) PutCustomer(w http.ResponseWriter, r *http.Request) {
	var req model.Customer
	if !decode(w, r, &req) {
		return
	}
	view, err := h.service.SetCustomer(r.Context(), operator(r), req)
	h.respondCart(w, view, err)
}

type PutNotesJSONRequest struct {
	Notes string `json:"notes"`
}

func (h *handler) PutNotes(w http.ResponseWriter, r *http.Request) {
	var req PutNotesJSONRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.service.SetNotes(r.Context(), operator(r), req.Notes)
	h.respondCart(w, view, err)
}

func (h *handler) PutPayment(w http.ResponseWriter, r *http.Request) {
	var req model.Payment
	if !decode(w, r, &req) {
		return
	}
	view, err := h.service.SetPayment(r.Context(), operator(r), req)
	h.respondCart(w, view, err)
}

func (h *handler) PutDiscount(w http.ResponseWriter, r *http.Request) {
	var req model.Discount
	if !decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		req.Source = model.DiscountManual
	}
	view, err := h.service.SetDiscount(r.Context(), operator(r), req)
	h.respondCart(w, view, err)
}

type PostCouponJSONRequest struct {
	Code string `json:"code"`
}

func (h *handler) PostCoupon(w http.ResponseWriter, r *http.Request) {
	var req PostCouponJSONRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.service.ApplyCoupon(r.Context(), operator(r), req.Code)
	h.respondCart(w, view, err)
}

func (h *handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveCoupon(r.Context(), operator(r))
	h.respondCart(w, view, err)
}

func (h *handler) PostCheckoutOpen(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.OpenCheckout(r.Context(), operator(r))
	h.respondCart(w, view, err)
}

func (h *handler) PostCheckoutCancel(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CancelCheckout(r.Context(), operator(r))
	h.respondCart(w, view, err)
}

type PostCheckoutJSONResponse struct {
	Invoice  model.Invoice `json:"invoice"`
	Redirect string        `json:"redirect"`
}

func (h *handler) PostCheckout(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.SubmitCheckout(r.Context(), operator(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, PostCheckoutJSONResponse{
		Invoice:  invoice,
		Redirect: "/invoices/" + invoice.ID,
	})
}

func (h *handler) GetSavedCarts(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.service.SavedCarts(r.Context(), operator(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

type PostSavedCartJSONRequest struct {
	Name string `json:"name"`
}

func (h *handler) PostSavedCart(w http.ResponseWriter, r *http.Request) {
	var req PostSavedCartJSONRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.service.SaveCart(r.Context(), operator(r), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *handler) PostLoadSavedCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.LoadCart(r.Context(), operator(r), chi.URLParam(r, "id"))
	h.respondCart(w, view, err)
}

func (h *handler) DeleteSavedCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSavedCart(r.Context(), operator(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
