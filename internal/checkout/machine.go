package checkout

import (
	"context"
	"fmt"

	"github.com/harborlane/clienteling-core/internal/basket"
	"github.com/harborlane/clienteling-core/pkg/config"
	"github.com/harborlane/clienteling-core/pkg/enums"
	pkgerrors "github.com/harborlane/clienteling-core/pkg/errors"
	"github.com/harborlane/clienteling-core/pkg/logger"
	"github.com/harborlane/clienteling-core/pkg/notify"
	"github.com/harborlane/clienteling-core/pkg/types"
)

// Commerce is the slice of the basket client the state machine drives.
type Commerce interface {
	ValidateCartForCheckout(ctx context.Context, h *basket.Handle) (bool, error)
	CreateOrder(ctx context.Context, h *basket.Handle) (basket.Basket, error)
	SetShippingAddress(ctx context.Context, h *basket.Handle, address types.Address, verify bool) (basket.Basket, error)
	SetBillingAddress(ctx context.Context, h *basket.Handle, address types.Address, verify bool) (basket.Basket, error)
	SetShippingMethod(ctx context.Context, h *basket.Handle, method basket.ShippingMethod, instruction basket.Instruction) (basket.Basket, error)
	AbandonOrder(ctx context.Context, h *basket.Handle, creds basket.AbandonCredentials) error
}

// WorkflowStore persists workflow state across process restarts. Saving is
// best effort; a store failure never blocks a transition.
type WorkflowStore interface {
	Save(ctx context.Context, basketID string, state basket.WorkflowState) error
}

// Params collects the collaborators of a checkout state machine.
type Params struct {
	Config   config.CheckoutConfig
	Commerce Commerce
	Handle   *basket.Handle
	Logger   *logger.Logger
	Hub      *notify.Hub
	Store    WorkflowStore
}

// Machine tracks the checkout stage for one basket and enforces the guarded
// transitions between stages. It is driven by basket state: every transition
// lands in the basket's workflow fields, and the current stage is always read
// back from there rather than held separately.
type Machine struct {
	cfg      config.CheckoutConfig
	sequence []enums.CheckoutStage
	commerce Commerce
	handle   *basket.Handle
	logg     *logger.Logger
	hub      *notify.Hub
	store    WorkflowStore
}

func NewMachine(params Params) (*Machine, error) {
	if params.Commerce == nil {
		return nil, fmt.Errorf("commerce client required")
	}
	if params.Handle == nil {
		return nil, fmt.Errorf("basket handle required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	hub := params.Hub
	if hub == nil {
		hub = notify.NewHub()
	}
	return &Machine{
		cfg:      params.Config,
		sequence: Sequence(params.Config),
		commerce: params.Commerce,
		handle:   params.Handle,
		logg:     params.Logger,
		hub:      hub,
		store:    params.Store,
	}, nil
}

// Stages returns the session's reachable stage sequence.
func (m *Machine) Stages() []enums.CheckoutStage {
	out := make([]enums.CheckoutStage, len(m.sequence))
	copy(out, m.sequence)
	return out
}

// Current returns the stage the basket is in right now.
func (m *Machine) Current() enums.CheckoutStage {
	return m.handle.Workflow().CheckoutStatus
}

// Previous returns the stage before the most recent transition.
func (m *Machine) Previous() enums.CheckoutStage {
	return m.handle.Workflow().LastCheckoutStatus
}

// setStage records a transition in the basket workflow, notifies subscribers
// and persists the new state. A stage outside this session's sequence clamps
// to cart.
func (m *Machine) setStage(ctx context.Context, stage enums.CheckoutStage) {
	if !contains(m.sequence, stage) {
		stage = enums.StageCart
	}
	var from enums.CheckoutStage
	state := m.handle.UpdateWorkflow(func(w *basket.WorkflowState) {
		from = w.CheckoutStatus
		w.LastCheckoutStatus = w.CheckoutStatus
		w.CheckoutStatus = stage
	})
	m.hub.Publish(notify.TopicStageChanged, map[string]any{
		"from": from.String(),
		"to":   stage.String(),
	})
	if m.store != nil {
		if err := m.store.Save(ctx, m.handle.ID(), state); err != nil {
			m.logg.Warn(m.logg.WithStage(ctx, stage.String()), "persisting workflow state failed")
		}
	}
}

// requireStage guards an operation against being invoked out of order.
func (m *Machine) requireStage(want ...enums.CheckoutStage) error {
	current := m.Current()
	for _, stage := range want {
		if current == stage {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation,
		fmt.Sprintf("operation not allowed in stage %q", current))
}

// BeginCheckout leaves the cart stage. The server's eligibility rules run
// first; when checkout comes back disabled the machine stays in cart and the
// caller gets a typed error.
func (m *Machine) BeginCheckout(ctx context.Context) error {
	if err := m.requireStage(enums.StageCart); err != nil {
		return err
	}
	enabled, err := m.commerce.ValidateCartForCheckout(ctx, m.handle)
	if err != nil {
		return err
	}
	if !enabled {
		m.handle.UpdateWorkflow(func(w *basket.WorkflowState) {
			w.EnableCheckout = false
		})
		return pkgerrors.New(pkgerrors.CodeCheckoutDisabled, "cart is not eligible for checkout")
	}
	m.handle.UpdateWorkflow(func(w *basket.WorkflowState) {
		w.EnableCheckout = true
	})
	m.setStage(ctx, next(m.sequence, enums.StageCart))
	return nil
}

// BillingPrompt is the synthetic decision point between the shipping and
// billing address stages. It is client-only; no server stage corresponds.
type BillingPrompt struct {
	// Ask is false when the prompt can be skipped entirely (a billing
	// address already exists, or a logged-in customer owns one).
	Ask bool
	// SamePerson selects the wording of the prompt: "is the billing person
	// the same" (store pickup) versus "is the billing address the same".
	SamePerson bool
	// Prefill is the billing address to apply when the answer is yes.
	Prefill types.Address
}

// SubmitShippingAddress saves the shipping address and advances. A save
// failure keeps the machine in the shipping address stage. On success the
// returned prompt tells the caller whether and how to ask about billing.
func (m *Machine) SubmitShippingAddress(ctx context.Context, address types.Address, verify bool) (BillingPrompt, error) {
	if err := m.requireStage(enums.StageShippingAddress); err != nil {
		return BillingPrompt{}, err
	}
	snapshot, err := m.commerce.SetShippingAddress(ctx, m.handle, address, verify)
	if err != nil {
		return BillingPrompt{}, err
	}

	prompt := m.decideBilling(snapshot, address)
	if prompt.Ask && contains(m.sequence, enums.StageAskBillingAddress) {
		m.setStage(ctx, enums.StageAskBillingAddress)
	} else {
		m.setStage(ctx, enums.StageBillingAddress)
	}
	return prompt, nil
}

// decideBilling implements the billing decision tree: an existing billing
// address skips the prompt; store pickups ask about the person (contact
// fields only) unless the customer is already logged in; everything else
// asks about the address and copies it wholesale on yes.
func (m *Machine) decideBilling(snapshot basket.Basket, shipping types.Address) BillingPrompt {
	if snapshot.BillingAddress != nil && !snapshot.BillingAddress.IsEmpty() {
		return BillingPrompt{Ask: false, Prefill: *snapshot.BillingAddress}
	}

	workflow := m.handle.Workflow()
	if workflow.ShipToStore || workflow.DifferentStorePickup {
		loggedIn := snapshot.CustomerInfo != nil && snapshot.CustomerInfo.LoggedIn
		if loggedIn {
			return BillingPrompt{Ask: false}
		}
		return BillingPrompt{Ask: true, SamePerson: true, Prefill: shipping.ContactOnly()}
	}
	return BillingPrompt{Ask: true, Prefill: shipping}
}

// ResolveBillingPrompt records the associate's answer. Yes applies the
// prefilled address without re-verification (it was already verified as the
// shipping address); no drops into manual billing entry.
func (m *Machine) ResolveBillingPrompt(ctx context.Context, prompt BillingPrompt, same bool) error {
	if err := m.requireStage(enums.StageAskBillingAddress, enums.StageBillingAddress); err != nil {
		return err
	}
	if !same {
		m.setStage(ctx, enums.StageBillingAddress)
		return nil
	}
	if _, err := m.commerce.SetBillingAddress(ctx, m.handle, prompt.Prefill, false); err != nil {
		return err
	}
	m.setStage(ctx, enums.StageShippingMethod)
	return nil
}

// SubmitBillingAddress saves a manually entered billing address and advances
// to shipping method selection. A failure holds the current stage.
func (m *Machine) SubmitBillingAddress(ctx context.Context, address types.Address, verify bool) error {
	if err := m.requireStage(enums.StageBillingAddress, enums.StageAskBillingAddress); err != nil {
		return err
	}
	if _, err := m.commerce.SetBillingAddress(ctx, m.handle, address, verify); err != nil {
		return err
	}
	m.setStage(ctx, next(m.sequence, enums.StageBillingAddress))
	return nil
}

// SelectShippingMethod records the chosen fulfillment option. An optional
// shipping price override rides on the same round trip. The machine stays in
// the shipping method stage until the order is placed.
func (m *Machine) SelectShippingMethod(ctx context.Context, method basket.ShippingMethod, override *basket.PriceOverride) error {
	if err := m.requireStage(enums.StageShippingMethod); err != nil {
		return err
	}
	var instruction basket.Instruction
	if override != nil {
		instruction = basket.ShippingOverrideInstruction{Override: *override}
	}
	_, err := m.commerce.SetShippingMethod(ctx, m.handle, method, instruction)
	return err
}

// PlaceOrder converts the basket into an order and enters the payment stage.
// Order creation succeeding is not sufficient: when the server reports
// checkout disabled on the resulting basket the machine falls back to cart.
func (m *Machine) PlaceOrder(ctx context.Context) (basket.Basket, error) {
	if err := m.requireStage(enums.StageShippingMethod); err != nil {
		return basket.Basket{}, err
	}
	order, err := m.commerce.CreateOrder(ctx, m.handle)
	if err != nil {
		return order, err
	}
	if !m.handle.Workflow().EnableCheckout {
		m.setStage(ctx, enums.StageCart)
		return order, pkgerrors.New(pkgerrors.CodeCheckoutDisabled,
			"checkout disabled after order creation")
	}
	if m.cfg.PaymentFlow == config.PaymentFlowWeb {
		m.setStage(ctx, enums.StagePayThroughWeb)
	} else {
		m.setStage(ctx, enums.StagePayments)
	}
	return order, nil
}

// ObserveConfirmation reacts to the basket's confirmation status. Once the
// server confirms the order, the machine enters its terminal stage.
func (m *Machine) ObserveConfirmation(ctx context.Context) bool {
	if m.handle.Snapshot().ConfirmationStatus != enums.ConfirmationConfirmed {
		return false
	}
	m.setStage(ctx, enums.StageConfirmation)
	return true
}

// Abandon runs the compensating abandon chain and drops back to cart with
// checkout re-enabled on the rebuilt basket.
func (m *Machine) Abandon(ctx context.Context, creds basket.AbandonCredentials) error {
	if err := m.commerce.AbandonOrder(ctx, m.handle, creds); err != nil {
		return err
	}
	m.handle.UpdateWorkflow(func(w *basket.WorkflowState) {
		w.EnableCheckout = true
	})
	m.setStage(ctx, enums.StageCart)
	return nil
}

// Restore rehydrates a previously persisted workflow state, clamping a stage
// this session's configuration cannot reach back to cart.
func (m *Machine) Restore(ctx context.Context, state basket.WorkflowState) {
	if !contains(m.sequence, state.CheckoutStatus) {
		state.CheckoutStatus = enums.StageCart
	}
	m.handle.UpdateWorkflow(func(w *basket.WorkflowState) {
		*w = state
	})
	m.hub.Publish(notify.TopicStageChanged, map[string]any{
		"from": "",
		"to":   state.CheckoutStatus.String(),
	})
}
