// Package backend is the REST client for the inventory and invoicing API.
// Calls are made once: no retries and no client-side timeout.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/iurnickita/posmart/internal/backend/config"
	"github.com/iurnickita/posmart/internal/model"
	"github.com/iurnickita/posmart/internal/token"
)

type Catalog struct {
	Products   []model.Product `json:"products"`
	Categories []string        `json:"categories"`
}

// CouponValidation is the answer of POST /coupons/validate.
type CouponValidation struct {
	Valid   bool                `json:"valid"`
	Message string              `json:"message"`
	Coupon  model.AppliedCoupon `json:"coupon"`
}

type Client interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	Catalog(ctx context.Context) (Catalog, error)
	ListPurchases(ctx context.Context, productID string) ([]model.PurchaseBatch, error)
	ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (CouponValidation, error)
	UseCoupon(ctx context.Context, couponID string) error
	CreateInvoice(ctx context.Context, req model.InvoiceRequest) (model.Invoice, error)
}

var ErrUnexpectedResponse = errors.New("unexpected backend response")

// StatusError is a non-2xx answer. Message comes from the backend's
// "message" field when present.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend request status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend request status: %d", e.Code)
}

type client struct {
	http *resty.Client
}

func NewClient(cfg config.Config) Client {
	return &client{http: resty.New().SetBaseURL(cfg.BaseURL)}
}

func (c *client) request(ctx context.Context) *resty.Request {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")
	if operator, ok := token.FromContext(ctx); ok && operator.Raw != "" {
		req.SetAuthToken(operator.Raw)
	}
	return req
}

func statusError(resp *resty.Response) *StatusError {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(resp.Body(), &body)
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	return &StatusError{Code: resp.StatusCode(), Message: msg}
}

func success(resp *resty.Response) bool {
	return resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices
}

// decodeEnvelope accepts both {"data": {field: ...}} and {field: ...}.
func decodeEnvelope(body []byte, field string, out interface{}) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if data, ok := envelope["data"]; ok {
		var inner map[string]json.RawMessage
		if json.Unmarshal(data, &inner) == nil {
			if raw, ok := inner[field]; ok {
				return json.Unmarshal(raw, out)
			}
		}
	}
	if raw, ok := envelope[field]; ok {
		return json.Unmarshal(raw, out)
	}
	return fmt.Errorf("%w: no %q in body", ErrUnexpectedResponse, field)
}

func (c *client) ListProducts(ctx context.Context) ([]model.Product, error) {
	resp, err := c.request(ctx).
		SetQueryParam("forPOS", "true").
		Get("/inventory")
	if err != nil {
		return nil, err
	}
	if !success(resp) {
		return nil, statusError(resp)
	}

	var products []model.Product
	if err := decodeEnvelope(resp.Body(), "items", &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *client) ListCategories(ctx context.Context) ([]string, error) {
	resp, err := c.request(ctx).Get("/inventory/categories")
	if err != nil {
		return nil, err
	}
	if !success(resp) {
		return nil, statusError(resp)
	}

	var categories []string
	if err := decodeEnvelope(resp.Body(), "categories", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// Catalog fetches products and categories concurrently and waits for both.
func (c *client) Catalog(ctx context.Context) (Catalog, error) {
	var (
		g       errgroup.Group
		catalog Catalog
	)
	g.Go(func() error {
		products, err := c.ListProducts(ctx)
		catalog.Products = products
		return err
	})
	g.Go(func() error {
		categories, err := c.ListCategories(ctx)
		catalog.Categories = categories
		return err
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

func (c *client) ListPurchases(ctx context.Context, productID string) ([]model.PurchaseBatch, error) {
	resp, err := c.request(ctx).Get("/inventory/" + url.PathEscape(productID) + "/purchases")
	if err != nil {
		return nil, err
	}
	if !success(resp) {
		return nil, statusError(resp)
	}

	var batches []model.PurchaseBatch
	if err := decodeEnvelope(resp.Body(), "purchases", &batches); err != nil {
		return nil, err
	}
	return batches, nil
}

// ValidateCoupon reports a rejected coupon as Valid=false. Only transport
// failures and server errors come back as errors.
func (c *client) ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (CouponValidation, error) {
	resp, err := c.request(ctx).
		SetBody(map[string]interface{}{"code": code, "subtotal": subtotal}).
		Post("/coupons/validate")
	if err != nil {
		return CouponValidation{}, err
	}

	switch {
	case success(resp):
		var answer CouponValidation
		if err := json.Unmarshal(resp.Body(), &answer); err != nil {
			return CouponValidation{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		return answer, nil
	case resp.StatusCode() >= http.StatusBadRequest && resp.StatusCode() < http.StatusInternalServerError &&
		resp.StatusCode() != http.StatusUnauthorized && resp.StatusCode() != http.StatusForbidden:
		return CouponValidation{Valid: false, Message: statusError(resp).Message}, nil
	default:
		return CouponValidation{}, statusError(resp)
	}
}

func (c *client) UseCoupon(ctx context.Context, couponID string) error {
	resp, err := c.request(ctx).Post("/coupons/" + url.PathEscape(couponID) + "/use")
	if err != nil {
		return err
	}
	if !success(resp) {
		return statusError(resp)
	}
	return nil
}

func (c *client) CreateInvoice(ctx context.Context, invoiceReq model.InvoiceRequest) (model.Invoice, error) {
	req := c.request(ctx).SetBody(invoiceReq)
	if invoiceReq.RequestID != "" {
		req.SetHeader("Idempotency-Key", invoiceReq.RequestID)
	}
	resp, err := req.Post("/invoices")
	if err != nil {
		return model.Invoice{}, err
	}
	if !success(resp) {
		return model.Invoice{}, statusError(resp)
	}

	var invoice model.Invoice
	if err := decodeEnvelope(resp.Body(), "invoice", &invoice); err != nil {
		if err := decodeEnvelope(resp.Body(), "data", &invoice); err != nil {
			return model.Invoice{}, err
		}
	}
	if invoice.ID == "" {
		return model.Invoice{}, fmt.Errorf("%w: invoice without id", ErrUnexpectedResponse)
	}
	return invoice, nil
}
