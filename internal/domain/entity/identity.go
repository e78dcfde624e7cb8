package entity

// Identity is the authenticated caller, normalized at the transport boundary
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}
