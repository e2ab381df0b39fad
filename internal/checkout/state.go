// Package checkout ведёт попытку оформления заказа через явный конечный автомат:
// загрузка корзины, адрес, создание заказа, платёжная сессия, перенаправление и подтверждение.
package checkout

// State — состояние попытки оформления.
type State int

const (
	Idle State = iota
	LoadingCart
	AwaitingAddress
	PlacingOrder
	CreatingPaymentSession
	Redirecting
	Returned
	ConfirmingOrder
	Completed
	Failed
)

var stateNames = map[State]string{
	Idle:                   "idle",
	LoadingCart:            "loading_cart",
	AwaitingAddress:        "awaiting_address",
	PlacingOrder:           "placing_order",
	CreatingPaymentSession: "creating_payment_session",
	Redirecting:            "redirecting",
	Returned:               "returned",
	ConfirmingOrder:        "confirming_order",
	Completed:              "completed",
	Failed:                 "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// transitions — допустимые переходы. Failed → шаг возможен только как повтор по действию пользователя.
// Из Redirecting переходов нет: управление уже у платёжного провайдера.
var transitions = map[State][]State{
	Idle:                   {LoadingCart, Returned},
	LoadingCart:            {AwaitingAddress, Failed},
	AwaitingAddress:        {PlacingOrder},
	PlacingOrder:           {CreatingPaymentSession, Failed},
	CreatingPaymentSession: {Redirecting, Failed},
	Returned:               {ConfirmingOrder, Failed},
	ConfirmingOrder:        {Completed, Failed},
	Failed:                 {PlacingOrder, CreatingPaymentSession},
}

// CanTransition сообщает, разрешён ли переход from → to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal сообщает, что попытка больше не продвинется без действия пользователя.
func (s State) Terminal() bool {
	switch s {
	case Redirecting, Completed, Failed:
		return true
	}
	return false
}

// networkStep — шаги, во время которых другая попытка не может начаться.
func (s State) networkStep() bool {
	return s == PlacingOrder || s == CreatingPaymentSession
}
