package storefront

// State is a page-load cycle state.
//
//	Idle ──► CheckingCache ──(hit)──► Displaying
//	              │
//	            (miss)
//	              ▼
//	           Loading ──(fetched)──► Displaying
//	              └──────(failed)───► Error
//
// Displaying and Error are terminal for the cycle.
type State int

const (
	StateIdle State = iota
	StateCheckingCache
	StateLoading
	StateDisplaying
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingCache:
		return "checking_cache"
	case StateLoading:
		return "loading"
	case StateDisplaying:
		return "displaying"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateDisplaying || s == StateError
}

var transitions = map[State][]State{
	StateIdle:          {StateCheckingCache},
	StateCheckingCache: {StateDisplaying, StateLoading},
	StateLoading:       {StateDisplaying, StateError},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
