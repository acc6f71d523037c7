package payments

import "github.com/snapboxhq/snapbox/app/models"

// Transition validates a status change against the transaction state
// machine. It returns changed=false with a nil error when the target equals
// the current terminal state, which makes replayed webhook deliveries
// no-ops without a dedupe table.
//
// Rules:
//   - PENDING may move to exactly COMPLETED, FAILED or EXPIRED.
//   - A terminal state never changes; re-applying the same terminal target
//     succeeds as a no-op, a different terminal target is ErrAlreadyTerminal.
//   - Anything else is ErrInvalidTransition and indicates a bug.
//
// Callers must only apply the result while holding the row lock on the
// transaction being mutated.
func Transition(current, target string) (changed bool, err error) {
	if models.IsTerminalStatus(current) {
		if current == target {
			return false, nil
		}
		return false, ErrAlreadyTerminal
	}
	if current != models.TransactionStatusPending {
		return false, ErrInvalidTransition
	}
	if !models.IsTerminalStatus(target) {
		return false, ErrInvalidTransition
	}
	return true, nil
}
