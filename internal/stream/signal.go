package stream

// Kind identifies a signal.
type Kind int

// Signal kinds. A subscription sees zero or more KindNext signals followed by
// at most one terminal KindComplete or KindError.
const (
	KindNext Kind = iota
	KindComplete
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindComplete:
		return "complete"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Signal is one notification delivered to a subscriber.
type Signal[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// IsTerminal reports whether the signal ends the subscription.
func (s Signal[T]) IsTerminal() bool {
	return s.Kind == KindComplete || s.Kind == KindError
}

func next[T any](v T) Signal[T] { return Signal[T]{Kind: KindNext, Value: v} }

func complete[T any]() Signal[T] { return Signal[T]{Kind: KindComplete} }

func failed[T any](err error) Signal[T] { return Signal[T]{Kind: KindError, Err: err} }
