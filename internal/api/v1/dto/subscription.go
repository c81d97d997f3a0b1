package dto

// SubscriptionCheckoutRequest selects the premium plan to purchase.
type SubscriptionCheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly annual"`
}
