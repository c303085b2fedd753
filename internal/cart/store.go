package cart

import "sync"

// State is everything a UI needs to render the cart.
type State struct {
	Cart      Cart    `json:"cart"`
	IsLoading bool    `json:"isLoading"`
	Error     *string `json:"error"`
	// Stale is set when Cart came from the fallback snapshot instead of the
	// backend.
	Stale bool `json:"stale"`
}

// ErrorMessage returns the current error or "".
func (s State) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// InitialState is the state before the first refresh.
func InitialState() State {
	return State{Cart: Empty()}
}

type ActionType string

const (
	ActionSetLoading ActionType = "SET_LOADING"
	ActionSetError   ActionType = "SET_ERROR"
	ActionSetCart    ActionType = "SET_CART"
	ActionClearCart  ActionType = "CLEAR_CART"
)

// Action is one store transition. Build it with the constructors below.
type Action struct {
	Type    ActionType
	Loading bool
	Error   *string
	Raw     *RawCart
	Stale   bool
}

func SetLoading(loading bool) Action {
	return Action{Type: ActionSetLoading, Loading: loading}
}

// SetError records msg. A nil msg clears the error.
func SetError(msg *string) Action {
	return Action{Type: ActionSetError, Error: msg}
}

// SetErrorMessage is SetError for a plain string.
func SetErrorMessage(msg string) Action {
	return SetError(&msg)
}

func SetCart(raw *RawCart, stale bool) Action {
	return Action{Type: ActionSetCart, Raw: raw, Stale: stale}
}

func ClearCart() Action {
	return Action{Type: ActionClearCart}
}

// IsTerminal reports whether a settles an operation.
func (a Action) IsTerminal() bool {
	switch a.Type {
	case ActionSetError, ActionSetCart, ActionClearCart:
		return true
	}
	return false
}

// Reduce applies a to s and returns the new state. s is never modified.
func Reduce(s State, a Action) State {
	switch a.Type {
	case ActionSetLoading:
		s.IsLoading = a.Loading
	case ActionSetError:
		s.Error = a.Error
		s.IsLoading = false
	case ActionSetCart:
		s.Cart = Normalize(a.Raw)
		s.Error = nil
		s.IsLoading = false
		s.Stale = a.Stale
	case ActionClearCart:
		s.Cart = Empty()
		s.Error = nil
		s.IsLoading = false
		s.Stale = false
	}
	return s
}

// Store holds the single cart state of one client. Dispatches are
// serialized and every subscriber sees each resulting state in order.
// Subscribers run on the dispatching goroutine and must not Dispatch.
type Store struct {
	dispatchMu sync.Mutex

	mu          sync.RWMutex
	state       State
	subscribers map[int]func(State)
	nextID      int
}

func NewStore() *Store {
	return &Store{
		state:       InitialState(),
		subscribers: make(map[int]func(State)),
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch applies a and notifies subscribers.
func (s *Store) Dispatch(a Action) State {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Subscribe registers fn and returns a func that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}
