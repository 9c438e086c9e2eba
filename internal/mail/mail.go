// Package mail contains the outgoing email interface and its SMTP
// implementation. Delivery guarantees are the SMTP server's concern, the
// service only hands messages over.
package mail

import (
	"context"
)

//go:generate mockgen -destination=./mock/mail.go -package=mock -source=mail.go

// Message is a single outgoing email.
type Message struct {
	Subject string
	Body    string
	To      []string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}
