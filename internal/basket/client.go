package basket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/harborlane/clienteling-core/pkg/config"
	"github.com/harborlane/clienteling-core/pkg/enums"
	pkgerrors "github.com/harborlane/clienteling-core/pkg/errors"
	"github.com/harborlane/clienteling-core/pkg/logger"
	"github.com/harborlane/clienteling-core/pkg/metrics"
	"github.com/harborlane/clienteling-core/pkg/notify"
	"github.com/harborlane/clienteling-core/pkg/types"
)

// TokenSource supplies a bearer token for a storefront host. The client asks
// before every call; caching is the source's concern.
type TokenSource interface {
	Token(ctx context.Context, host string) (string, error)
}

// ClientParams collects the collaborators of a commerce basket client.
type ClientParams struct {
	Config     config.CommerceConfig
	Tokens     TokenSource
	Logger     *logger.Logger
	Metrics    *metrics.EngineMetrics
	Hub        *notify.Hub
	HTTPClient *http.Client

	// BaseURL overrides the config-derived API root. Tests point it at a
	// local fake server.
	BaseURL string
}

// Client talks to the commerce basket API with etag preconditions, bounded
// conflict retry, and change notifications.
type Client struct {
	cfg     config.CommerceConfig
	tokens  TokenSource
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
	hub     *notify.Hub
	http    *http.Client
	baseURL string
}

func NewClient(params ClientParams) (*Client, error) {
	if params.Tokens == nil {
		return nil, fmt.Errorf("token source required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimSuffix(params.BaseURL, "/")
	if baseURL == "" {
		baseURL = params.Config.BaseURL()
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: params.Config.Timeout}
	}
	hub := params.Hub
	if hub == nil {
		hub = notify.NewHub()
	}
	return &Client{
		cfg:     params.Config,
		tokens:  params.Tokens,
		logg:    params.Logger,
		metrics: params.Metrics,
		hub:     hub,
		http:    httpClient,
		baseURL: baseURL,
	}, nil
}

// Hub exposes the notification hub so callers can subscribe.
func (c *Client) Hub() *notify.Hub {
	return c.hub
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	etag   string
}

// do issues one authenticated call and decodes a basket-shaped response,
// returning the new etag from the response header.
func (c *Client) do(ctx context.Context, req request) (*Basket, string, error) {
	token, err := c.tokens.Token(ctx, c.cfg.Host)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "fetching bearer token")
	}

	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var reader io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, reader)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.etag != "" {
		httpReq.Header.Set("If-Match", req.etag)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commerce api unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", decodeFault(resp.StatusCode, body)
	}

	parsed := &Basket{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, parsed); err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding basket response")
		}
	}
	return parsed, resp.Header.Get("ETag"), nil
}

func (c *Client) basketPath(h *Handle, suffix string) string {
	path := "/baskets/" + h.ID()
	if suffix != "" {
		path += "/" + strings.TrimPrefix(suffix, "/")
	}
	return path
}

func (c *Client) publishSync(h *Handle) {
	snapshot := h.Snapshot()
	c.hub.Publish(notify.TopicBasketSync, map[string]any{"basket_id": snapshot.BasketID})
}

// FetchOrCreate obtains the session basket, creating one server-side on
// demand. Local workflow state survives the replace. When the display
// currency differs from the site currency, one silent follow-up update
// converts the basket before the call resolves.
func (c *Client) FetchOrCreate(ctx context.Context, h *Handle) (Basket, error) {
	return c.mutate(ctx, h, "fetch_or_create", true, func(etag string) (*Basket, string, error) {
		server, newEtag, err := c.do(ctx, request{method: http.MethodPost, path: "/baskets", etag: etag})
		if err != nil {
			return nil, "", err
		}
		if c.cfg.NeedsCurrencyConversion() && string(server.Currency) != c.cfg.DisplayCurrency {
			convertEtag := newEtag
			if convertEtag == "" {
				convertEtag = etag
			}
			converted, convertedEtag, err := c.do(ctx, request{
				method: http.MethodPatch,
				path:   "/baskets/" + basketIDOrSentinel(server),
				body:   map[string]string{"currency": c.cfg.DisplayCurrency},
				etag:   convertEtag,
			})
			if err != nil {
				return nil, "", err
			}
			return converted, convertedEtag, nil
		}
		return server, newEtag, nil
	})
}

// FetchByID fetches an existing basket. The same field-preservation rule as
// FetchOrCreate applies.
func (c *Client) FetchByID(ctx context.Context, h *Handle, id string) (Basket, error) {
	server, etag, err := c.do(ctx, request{method: http.MethodGet, path: "/baskets/" + id})
	c.observe(ctx, "fetch_by_id", err)
	if err != nil {
		return Basket{}, err
	}
	h.applyReplace(server, etag)
	c.publishSync(h)
	return h.Snapshot(), nil
}

// Delete destroys the basket server-side and clears local state. A stale
// etag is absorbed the same way as on any other mutation: one resync, one
// retry.
func (c *Client) Delete(ctx context.Context, h *Handle) error {
	_, err := c.mutate(ctx, h, "delete", false, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{method: http.MethodDelete, path: c.basketPath(h, ""), etag: etag})
	})
	if err != nil {
		return err
	}
	h.Clear()
	c.publishSync(h)
	return nil
}

// AddLineItems posts one or more product line items. On the first-ever call
// no etag precondition exists yet; the etag the server returns becomes the
// precondition for every later call. A success without any etag means the
// operation has not completed and must not resolve.
func (c *Client) AddLineItems(ctx context.Context, h *Handle, items []ProductItem) (Basket, error) {
	hadEtag := h.Etag() != ""
	snapshot, err := c.mutate(ctx, h, "add_line_items", true, func(etag string) (*Basket, string, error) {
		server, newEtag, err := c.do(ctx, request{
			method: http.MethodPost,
			path:   c.basketPath(h, "items"),
			body:   map[string]any{"product_items": items},
			etag:   etag,
		})
		if err != nil {
			return nil, "", err
		}
		if newEtag == "" && !hadEtag {
			return nil, "", pkgerrors.New(pkgerrors.CodeDependency, "server returned no basket version; add not yet complete")
		}
		return server, newEtag, nil
	})
	if err != nil {
		return Basket{}, err
	}
	return snapshot, nil
}

// ProductItemUpdate carries the mutable fields of a line item replace.
type ProductItemUpdate struct {
	ProductID   string            `json:"product_id,omitempty"`
	Quantity    int               `json:"quantity,omitempty"`
	OptionItems []OptionSelection `json:"option_items,omitempty"`
}

// ReplaceLineItem patches a single line item; the checkout stage fields
// survive the refresh.
func (c *Client) ReplaceLineItem(ctx context.Context, h *Handle, itemID string, info ProductItemUpdate) (Basket, error) {
	return c.mutate(ctx, h, "replace_line_item", true, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{
			method: http.MethodPatch,
			path:   c.basketPath(h, "items/"+itemID),
			body:   info,
			etag:   etag,
		})
	})
}

// RemoveLineItem deletes a single line item; same stage-preservation rule.
func (c *Client) RemoveLineItem(ctx context.Context, h *Handle, itemID string) (Basket, error) {
	return c.mutate(ctx, h, "remove_line_item", true, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{
			method: http.MethodDelete,
			path:   c.basketPath(h, "items/"+itemID),
			etag:   etag,
		})
	})
}

// Patch sends a generic basket PATCH carrying exactly one instruction.
// Silent by default: callers decide whether a sync notification fires.
func (c *Client) Patch(ctx context.Context, h *Handle, instruction Instruction, notifySync bool) (Basket, error) {
	encoded, err := EncodeInstruction(instruction)
	if err != nil {
		return Basket{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding patch instruction")
	}
	op := "patch_" + string(instruction.Operation())
	return c.mutate(ctx, h, op, notifySync, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{
			method: http.MethodPatch,
			path:   c.basketPath(h, ""),
			body:   map[string]string{"c_patch": encoded},
			etag:   etag,
		})
	})
}

// SetProductPriceOverride applies an associate-authorized override through
// the generic patch channel without firing a sync notification.
func (c *Client) SetProductPriceOverride(ctx context.Context, h *Handle, override PriceOverrideInstruction) (Basket, error) {
	return c.Patch(ctx, h, override, false)
}

// SetShippingAddress updates the first shipment's address. verify=false
// tells the server to skip address standardization, used when the client
// already validated the address.
func (c *Client) SetShippingAddress(ctx context.Context, h *Handle, address types.Address, verify bool) (Basket, error) {
	query := url.Values{}
	if !verify {
		query.Set("skip_verification", "true")
	}
	basket, err := c.mutate(ctx, h, "set_shipping_address", true, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{
			method: http.MethodPut,
			path:   c.basketPath(h, "shipping_address"),
			query:  query,
			body:   address,
			etag:   etag,
		})
	})
	if err == nil {
		c.hub.Publish(notify.TopicShipmentsChanged, nil)
	}
	return basket, err
}

// SetBillingAddress updates the billing address with the same verify rule.
func (c *Client) SetBillingAddress(ctx context.Context, h *Handle, address types.Address, verify bool) (Basket, error) {
	query := url.Values{}
	if !verify {
		query.Set("skip_verification", "true")
	}
	return c.mutate(ctx, h, "set_billing_address", true, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{
			method: http.MethodPut,
			path:   c.basketPath(h, "billing_address"),
			query:  query,
			body:   address,
			etag:   etag,
		})
	})
}

// SetShippingMethod selects a shipping method; an optional instruction rides
// along for compound operations such as a shipping price override.
func (c *Client) SetShippingMethod(ctx context.Context, h *Handle, method ShippingMethod, instruction Instruction) (Basket, error) {
	body := map[string]any{"shipping_method": method}
	if instruction != nil {
		encoded, err := EncodeInstruction(instruction)
		if err != nil {
			return Basket{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding patch instruction")
		}
		body["c_patch"] = encoded
	}
	basket, err := c.mutate(ctx, h, "set_shipping_method", true, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{
			method: http.MethodPut,
			path:   c.basketPath(h, "shipping_method"),
			body:   body,
			etag:   etag,
		})
	})
	if err == nil {
		c.hub.Publish(notify.TopicShipmentsChanged, nil)
	}
	return basket, err
}

// SetCustomerInfo attaches the customer record to the basket.
func (c *Client) SetCustomerInfo(ctx context.Context, h *Handle, info types.CustomerInfo) (Basket, error) {
	return c.mutate(ctx, h, "set_customer_info", true, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{
			method: http.MethodPut,
			path:   c.basketPath(h, "customer"),
			body:   info,
			etag:   etag,
		})
	})
}

// AddCoupon applies a coupon code. A code already present locally is
// rejected without a server round trip.
func (c *Client) AddCoupon(ctx context.Context, h *Handle, code string) (Basket, error) {
	snapshot := h.Snapshot()
	if snapshot.HasCoupon(code) {
		return snapshot, pkgerrors.New(pkgerrors.CodeConflict, "coupon already in basket").
			WithDetails(map[string]any{"code": code, "status_code": string(enums.CouponAlreadyInBasket)})
	}
	basket, err := c.mutate(ctx, h, "add_coupon", true, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{
			method: http.MethodPost,
			path:   c.basketPath(h, "coupons"),
			body:   map[string]string{"code": code},
			etag:   etag,
		})
	})
	if err == nil {
		c.hub.Publish(notify.TopicCouponsChanged, nil)
	}
	return basket, err
}

// RemoveCoupon removes a coupon item by id.
func (c *Client) RemoveCoupon(ctx context.Context, h *Handle, couponItemID string) (Basket, error) {
	basket, err := c.mutate(ctx, h, "remove_coupon", true, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{
			method: http.MethodDelete,
			path:   c.basketPath(h, "coupons/"+couponItemID),
			etag:   etag,
		})
	})
	if err == nil {
		c.hub.Publish(notify.TopicCouponsChanged, nil)
	}
	return basket, err
}

// GetShippingMethods enumerates the applicable shipping methods through the
// patch channel; the list arrives in the extension blob.
func (c *Client) GetShippingMethods(ctx context.Context, h *Handle) ([]ShippingMethod, error) {
	basket, err := c.Patch(ctx, h, ShippingMethodListInstruction{}, false)
	if err != nil {
		return nil, err
	}
	return basket.AvailableShippingMethods, nil
}

// ValidateCartForCheckout runs the server's checkout-eligibility rules and
// reports the resulting enable_checkout flag.
func (c *Client) ValidateCartForCheckout(ctx context.Context, h *Handle) (bool, error) {
	basket, err := c.Patch(ctx, h, ValidateCartInstruction{}, false)
	if err != nil {
		return false, err
	}
	return basket.Workflow.EnableCheckout, nil
}

// CreateOrder converts the basket into an order. On a server fault the
// returned basket snapshot carries the fault payload so callers can read a
// fault-carrying basket. Success alone is not sufficient to proceed: callers
// must still check enable_checkout.
func (c *Client) CreateOrder(ctx context.Context, h *Handle) (Basket, error) {
	server, etag, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/orders",
		body:   map[string]string{"basket_id": h.ID()},
		etag:   h.Etag(),
	})
	if IsPreconditionFault(err) {
		if _, ferr := c.FetchByID(ctx, h, h.ID()); ferr != nil {
			c.observe(ctx, "create_order", ferr)
			return Basket{}, ferr
		}
		server, etag, err = c.do(ctx, request{
			method: http.MethodPost,
			path:   "/orders",
			body:   map[string]string{"basket_id": h.ID()},
			etag:   h.Etag(),
		})
	}
	c.observe(ctx, "create_order", err)
	if err != nil {
		faulted := h.Snapshot()
		var carrier *FaultError
		if errors.As(err, &carrier) {
			faulted.Fault = &carrier.Fault
		}
		return faulted, err
	}
	h.applyReplace(server, etag)
	c.publishSync(h)
	return h.Snapshot(), nil
}

func (c *Client) observe(ctx context.Context, op string, err error) {
	c.metrics.ObserveMutation(op, err)
	if err != nil {
		c.logg.Error(ctx, "basket "+op+" failed", err)
	}
}

func basketIDOrSentinel(b *Basket) string {
	if b == nil || b.BasketID == "" {
		return SentinelID
	}
	return b.BasketID
}
