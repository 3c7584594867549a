package checkout

import (
	"github.com/harborlane/clienteling-core/pkg/config"
	"github.com/harborlane/clienteling-core/pkg/enums"
)

// Sequence computes the reachable checkout stages, in order, for one session.
// The sequence is data, not code: business configuration decides whether the
// billing-address prompt exists and whether payment is collected on an
// embedded terminal or through a web redirect.
func Sequence(cfg config.CheckoutConfig) []enums.CheckoutStage {
	stages := []enums.CheckoutStage{
		enums.StageCart,
		enums.StageShippingAddress,
	}
	if !cfg.AlwaysCollectBilling {
		stages = append(stages, enums.StageAskBillingAddress)
	}
	stages = append(stages, enums.StageBillingAddress, enums.StageShippingMethod)
	if cfg.PaymentFlow == config.PaymentFlowWeb {
		stages = append(stages, enums.StagePayThroughWeb)
	} else {
		stages = append(stages, enums.StagePayments)
	}
	return append(stages, enums.StageConfirmation)
}

// next returns the stage following current in the sequence, or current itself
// when it is the last (or not part of the sequence at all).
func next(sequence []enums.CheckoutStage, current enums.CheckoutStage) enums.CheckoutStage {
	for i, stage := range sequence {
		if stage == current && i+1 < len(sequence) {
			return sequence[i+1]
		}
	}
	return current
}

// contains reports whether the stage is reachable in this session.
func contains(sequence []enums.CheckoutStage, stage enums.CheckoutStage) bool {
	for _, candidate := range sequence {
		if candidate == stage {
			return true
		}
	}
	return false
}
