package enums

import "fmt"

// CouponStatus is the server-reported status code for a coupon item.
type CouponStatus string

const (
	CouponApplied                CouponStatus = "applied"
	CouponAdhoc                  CouponStatus = "adhoc"
	CouponAlreadyInBasket        CouponStatus = "coupon_already_in_basket"
	CouponAlreadyRedeemed        CouponStatus = "coupon_already_redeemed"
	CouponUnknown                CouponStatus = "coupon_code_unknown"
	CouponDisabled               CouponStatus = "coupon_disabled"
	CouponLimitExceeded          CouponStatus = "coupon_limit_exceeded"
	CouponCustomerLimitExceeded  CouponStatus = "customer_redemption_limit_exceeded"
	CouponTimeFrameLimitExceeded CouponStatus = "timeframe_redemption_limit_exceeded"
	CouponNoActivePromotion      CouponStatus = "no_active_promotion"
	CouponNoApplicablePromotion  CouponStatus = "no_applicable_promotion"
)

var validCouponStatuses = []CouponStatus{
	CouponApplied,
	CouponAdhoc,
	CouponAlreadyInBasket,
	CouponAlreadyRedeemed,
	CouponUnknown,
	CouponDisabled,
	CouponLimitExceeded,
	CouponCustomerLimitExceeded,
	CouponTimeFrameLimitExceeded,
	CouponNoActivePromotion,
	CouponNoApplicablePromotion,
}

// String implements fmt.Stringer.
func (s CouponStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CouponStatus.
func (s CouponStatus) IsValid() bool {
	for _, candidate := range validCouponStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCouponStatus converts raw input into a CouponStatus.
func ParseCouponStatus(value string) (CouponStatus, error) {
	for _, candidate := range validCouponStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon status %q", value)
}
