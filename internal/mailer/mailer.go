// Package mailer is the out-of-band delivery capability for passcodes.
package mailer

import "context"

// Mailer sends a single message to one recipient. Implementations must bound
// how long a send can take; callers treat delivery failure as non-fatal.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
