package domain

// SaleEvent is an inbound sale notification. Fields are read from either a
// form-encoded or a JSON body.
type SaleEvent struct {
	Email     string `json:"email" validate:"required,max=320"`
	ProductID string `json:"product_id"`
	SaleID    string `json:"sale_id"`
}
