package models

type UserInfo struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
}

// CheckoutRequest is the body of a checkout-session request. Items are a
// snapshot of the caller's cart.
type CheckoutRequest struct {
	Items     []CartItem `json:"items"`
	UserEmail string     `json:"userEmail"`
	UserInfo  UserInfo   `json:"userInfo"`
}

// CheckoutSession is the hosted payment session created for a cart. Only
// SessionID and URL are returned to the caller.
type CheckoutSession struct {
	SessionID string     `json:"session_id"`
	URL       string     `json:"url"`
	UserID    string     `json:"-"`
	Email     string     `json:"-"`
	Items     []CartItem `json:"-"`
}
