package machine

import (
	"errors"
	"fmt"

	"github.com/chenzhangda16/web3-vending/internal/vending/cooldown"
)

var (
	// ErrOutOfStock: recoverable only by a restock. Nothing was changed.
	ErrOutOfStock = errors.New("vending: out of stock")

	// ErrCooldownActive matches every *CooldownActiveError.
	ErrCooldownActive = cooldown.ErrActive

	// ErrInternalInconsistency matches every *InconsistencyError.
	ErrInternalInconsistency = errors.New("vending: internal inconsistency")
)

// CooldownActiveError carries how long the caller still has to wait.
type CooldownActiveError = cooldown.ActiveError

// InconsistencyError is fatal for the invocation: the whole transaction view is
// dropped and the caller must not treat it as a business outcome.
type InconsistencyError struct {
	Op  string
	Err error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("vending: internal inconsistency in %s: %v", e.Op, e.Err)
}

func (e *InconsistencyError) Unwrap() error { return e.Err }

func (e *InconsistencyError) Is(target error) bool { return target == ErrInternalInconsistency }

func inconsistent(op string, err error) error {
	var ie *InconsistencyError
	if errors.As(err, &ie) {
		return err
	}
	return &InconsistencyError{Op: op, Err: err}
}

// IsBusiness reports whether err is one of the recoverable outcomes.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrOutOfStock) || errors.Is(err, ErrCooldownActive)
}
