package checkout

import (
	"fmt"
)

// StepError описывает неудачу конкретного шага оформления.
// errors.Is находит как вид ошибки шага (Kind), так и исходную причину (Cause).
type StepError struct {
	Step State
	// Kind — доменная ошибка шага, например domain.ErrPaymentSessionCreationFailed.
	Kind error
	// OrderID заполнен, если заказ уже создан на сервере.
	OrderID int64
	Cause   error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("checkout %s", e.Step)
	if e.OrderID > 0 {
		msg += fmt.Sprintf(" (order %d)", e.OrderID)
	}
	switch {
	case e.Kind != nil && e.Cause != nil && e.Kind != e.Cause:
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Cause)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *StepError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil && e.Cause != e.Kind {
		errs = append(errs, e.Cause)
	}
	return errs
}
