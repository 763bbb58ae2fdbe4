// Package qrcode renders payment links as QR code images so a checkout can be
// completed by scanning the hosted invoice page from a phone wallet.
//
// PNG returns raw image bytes for the /qr endpoint and DataURI returns the
// same image as a data: URI for embedding in JSON responses. Rendering is
// delegated to github.com/skip2/go-qrcode.
package qrcode
