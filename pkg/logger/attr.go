package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// InvoiceID records the provider invoice identifier.
func InvoiceID(id string) slog.Attr {
	return slog.String("invoice_id", id)
}

// PaymentID records the provider payment identifier.
func PaymentID(id string) slog.Attr {
	return slog.String("payment_id", id)
}

// OrderID records the encoded order identifier.
func OrderID(id string) slog.Attr {
	return slog.String("order_id", id)
}

// ProviderStatus records the raw status reported by the payment provider.
func ProviderStatus(status string) slog.Attr {
	return slog.String("provider_status", status)
}

// RequestID records the request identifier under the key "request_id".
// Empty ids produce an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Duration records an elapsed duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}
