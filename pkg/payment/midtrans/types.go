package midtrans

// TransactionDetails identifies a transaction and its amount
type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

// CustomerDetails carries applicant contact data to the gateway
type CustomerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// ItemDetail describes one billed line item
type ItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

// BankTransfer selects the virtual account bank
type BankTransfer struct {
	Bank string `json:"bank"`
}

// CustomExpiry overrides the default payment window. Omitted entirely for
// the no-expiry public flow.
type CustomExpiry struct {
	ExpiryDuration int    `json:"expiry_duration"`
	Unit           string `json:"unit"`
}

// ChargeRequest is the Core API bank-transfer charge payload
type ChargeRequest struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails TransactionDetails `json:"transaction_details"`
	CustomerDetails    CustomerDetails    `json:"customer_details"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
	BankTransfer       BankTransfer       `json:"bank_transfer"`
	CustomExpiry       *CustomExpiry      `json:"custom_expiry,omitempty"`
}

// VANumber is one bank/number pair issued for a charge
type VANumber struct {
	Bank     string `json:"bank"`
	VANumber string `json:"va_number"`
}

// ChargeResponse is the Core API charge response
type ChargeResponse struct {
	StatusCode        string     `json:"status_code"`
	StatusMessage     string     `json:"status_message"`
	TransactionID     string     `json:"transaction_id"`
	OrderID           string     `json:"order_id"`
	GrossAmount       string     `json:"gross_amount"`
	PaymentType       string     `json:"payment_type"`
	TransactionTime   string     `json:"transaction_time"`
	TransactionStatus string     `json:"transaction_status"`
	VANumbers         []VANumber `json:"va_numbers"`
	FraudStatus       string     `json:"fraud_status"`
	ExpiryTime        string     `json:"expiry_time"`
}

// StatusResponse is the Core API transaction status response
type StatusResponse struct {
	StatusCode        string     `json:"status_code"`
	StatusMessage     string     `json:"status_message"`
	TransactionID     string     `json:"transaction_id"`
	OrderID           string     `json:"order_id"`
	GrossAmount       string     `json:"gross_amount"`
	PaymentType       string     `json:"payment_type"`
	TransactionStatus string     `json:"transaction_status"`
	FraudStatus       string     `json:"fraud_status"`
	VANumbers         []VANumber `json:"va_numbers"`
	SignatureKey      string     `json:"signature_key"`
}

// ErrorResponse is the Core API error body
type ErrorResponse struct {
	StatusCode      string   `json:"status_code"`
	StatusMessage   string   `json:"status_message"`
	ValidationError []string `json:"validation_messages"`
}
