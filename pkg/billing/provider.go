package billing

import "context"

// InvoiceRequest describes an invoice to open with the payment provider.
// Amount is in minor units of Currency.
type InvoiceRequest struct {
	OrderID     string
	Description string
	Amount      int64
	Currency    string
}

// Invoice is the provider's answer to an InvoiceRequest.
type Invoice struct {
	ID  string
	URL string
}

// InvoiceProvider opens hosted invoices.
type InvoiceProvider interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error)
}
