package mail

import (
	"context"

	"github.com/mwx2006/blessing-skin-server/internal/models"
)

// Purposes of outbound mail jobs.
const (
	PurposePasswordReset     = "password_reset"
	PurposeEmailVerification = "email_verification"
)

// Sender dispatches a mail job and reports success or failure
// synchronously. Implemented by the SMTP transport and by the queue
// publisher.
type Sender interface {
	Send(ctx context.Context, msg models.Message) error
}
