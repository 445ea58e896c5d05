package model

// CustomerInfo is the data captured from the checkout form.
type CustomerInfo struct {
	Name  string `json:"customerName"`
	Email string `json:"customerEmail"`
	Phone string `json:"customerPhone"`
}

// CheckoutRequest starts a checkout attempt and submits customer details.
type CheckoutRequest struct {
	ProductID     string `json:"productId"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
}

// Customer returns the customer portion of the request.
func (r *CheckoutRequest) Customer() CustomerInfo {
	return CustomerInfo{
		Name:  r.CustomerName,
		Email: r.CustomerEmail,
		Phone: r.CustomerPhone,
	}
}

// ConfirmRequest reports that the provider redirected back after payment.
type ConfirmRequest struct {
	TransactionID string `json:"transactionId"`
}

// CallbackRequest is the payload delivered by the embedded payment widget.
type CallbackRequest struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
}
