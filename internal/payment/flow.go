// Package payment prepares the redirect of a visitor to the payment gateway.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/ikkim/storefront/pkg/formpost"
	"github.com/ikkim/storefront/pkg/logger"
)

// Variant selects the field set the gateway expects.
type Variant string

const (
	VariantProduction Variant = "production"
	VariantTest       Variant = "test"
)

// ParseVariant maps a config value onto a Variant. Empty means production.
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case "", VariantProduction:
		return VariantProduction, nil
	case VariantTest:
		return VariantTest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// Backend is the subset of apiclient.Client the flow calls.
type Backend interface {
	Send(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error)
}

// InitData is the backend's payment-initialization response.
type InitData struct {
	PaymentURL  string `json:"paymentUrl"`
	Msg         string `json:"msg"`
	Checksum    string `json:"checksum"`
	MerchantID  string `json:"merchantId"`
	OrderNumber string `json:"orderNumber"`
	BdOrderID   string `json:"bdOrderId"`
	RData       string `json:"rdata"`
}

// Redirect is a validated hand-over to the gateway.
type Redirect struct {
	OrderNumber string
	Form        *formpost.Form
}

// Flow prepares one gateway redirect at a time.
type Flow struct {
	api      Backend
	variant  Variant
	log      *logger.Logger
	inFlight atomic.Bool
}

func NewFlow(api Backend, variant Variant, log *logger.Logger) *Flow {
	if log == nil {
		log = logger.Get()
	}
	if variant == "" {
		variant = VariantProduction
	}
	return &Flow{api: api, variant: variant, log: log}
}

// Prepare requests initialization data for orderID and builds the gateway
// form. No form is returned unless every required field is present.
func (f *Flow) Prepare(ctx context.Context, orderID string) (*Redirect, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	if !f.inFlight.CompareAndSwap(false, true) {
		return nil, ErrPaymentInProgress
	}
	defer f.inFlight.Store(false)

	raw, err := f.api.Send(ctx, http.MethodPost, "/payments/billdesk/initialize/"+url.PathEscape(orderID), nil)
	if err != nil {
		f.log.Warn("Payment initialization failed", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("failed to initialize payment: %w", err)
	}

	data, err := decodeInitData(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecurityDataMissing, err)
	}

	form, err := f.buildForm(data)
	if err != nil {
		f.log.Warn("Payment initialization incomplete", map[string]interface{}{
			"order_id": orderID,
			"variant":  string(f.variant),
			"error":    err.Error(),
		})
		return nil, err
	}

	f.log.Info("Payment redirect prepared", map[string]interface{}{
		"order_id":     orderID,
		"order_number": data.OrderNumber,
		"variant":      string(f.variant),
	})
	return &Redirect{OrderNumber: data.OrderNumber, Form: form}, nil
}

func (f *Flow) buildForm(d InitData) (*formpost.Form, error) {
	var required map[string]string
	var fields []formpost.Field

	switch f.variant {
	case VariantTest:
		required = map[string]string{
			"paymentUrl":  d.PaymentURL,
			"bdOrderId":   d.BdOrderID,
			"merchantId":  d.MerchantID,
			"rdata":       d.RData,
			"orderNumber": d.OrderNumber,
		}
		fields = []formpost.Field{
			{Name: "bdorderid", Value: d.BdOrderID},
			{Name: "merchantid", Value: d.MerchantID},
			{Name: "rdata", Value: d.RData},
		}
	default:
		required = map[string]string{
			"paymentUrl":  d.PaymentURL,
			"msg":         d.Msg,
			"checksum":    d.Checksum,
			"orderNumber": d.OrderNumber,
		}
		fields = []formpost.Field{
			{Name: "msg", Value: d.Msg},
			{Name: "checksum", Value: d.Checksum},
		}
	}

	if missing := missingFields(required); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrSecurityDataMissing, strings.Join(missing, ", "))
	}

	form, err := formpost.New(d.PaymentURL, fields...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecurityDataMissing, err)
	}
	return form, nil
}

func missingFields(required map[string]string) []string {
	var missing []string
	for _, name := range []string{"paymentUrl", "msg", "checksum", "bdOrderId", "merchantId", "rdata", "orderNumber"} {
		if v, ok := required[name]; ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// decodeInitData accepts the fields at the top level or under data.
func decodeInitData(raw json.RawMessage) (InitData, error) {
	var envelope struct {
		InitData
		Data *InitData `json:"data"`
	}
	if len(raw) == 0 {
		return InitData{}, fmt.Errorf("empty response")
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return InitData{}, err
	}
	if envelope.PaymentURL == "" && envelope.Data != nil {
		return *envelope.Data, nil
	}
	return envelope.InitData, nil
}
