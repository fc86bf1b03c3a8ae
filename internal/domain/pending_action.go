package domain

// ActionKind is the kind of product mutation staged by the chat assistant
type ActionKind string

const (
	ActionEdit     ActionKind = "edit"
	ActionDelete   ActionKind = "delete"
	ActionSetPrice ActionKind = "setPrice"
)

// PendingAction is a staged, unconfirmed product mutation.
// ProductName and CurrentPrice are snapshots taken when the action was staged.
type PendingAction struct {
	Kind          ActionKind `json:"kind"`
	ProductID     string     `json:"product_id"`
	ProductName   string     `json:"product_name"`
	ProposedPrice *float64   `json:"proposed_price,omitempty"`
	CurrentPrice  *float64   `json:"current_price,omitempty"`
	MinPrice      *float64   `json:"min_price,omitempty"`
	MaxPrice      *float64   `json:"max_price,omitempty"`
}

// OutsideRange reports whether the proposed price falls outside the
// recommended range captured at staging time. Without a full range it is never outside.
func (a PendingAction) OutsideRange() bool {
	if a.ProposedPrice == nil || a.MinPrice == nil || a.MaxPrice == nil {
		return false
	}
	return *a.ProposedPrice < *a.MinPrice || *a.ProposedPrice > *a.MaxPrice
}
