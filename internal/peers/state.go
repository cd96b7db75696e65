package peers

// State is the node's view of a peer within its connection lifecycle.
type State uint8

const (
	// StateUnknown marks peers discovered through OS reconciliation only.
	// A log event replaces it with the node's real state.
	StateUnknown State = iota
	StateCold
	StateWarm
	StateHot
	StateCooling
)

var stateNames = map[State]string{
	StateUnknown: "Unknown",
	StateCold:    "Cold",
	StateWarm:    "Warm",
	StateHot:     "Hot",
	StateCooling: "Cooling",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ParseState resolves a state token from a status-change string. Unknown is
// deliberately not parseable: the logs never report it.
func ParseState(token string) (State, bool) {
	switch token {
	case "Cold":
		return StateCold, true
	case "Warm":
		return StateWarm, true
	case "Hot":
		return StateHot, true
	case "Cooling":
		return StateCooling, true
	}
	return StateUnknown, false
}

// Direction says which side opened the connection.
type Direction uint8

const (
	DirectionUnknown Direction = iota
	DirectionInbound
	DirectionOutbound
)

func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "Inbound"
	case DirectionOutbound:
		return "Outbound"
	}
	return "Unknown"
}

// validTransitions is the explicit (from, to) table the node's governors
// move peers through. Transitions outside the table are still applied, the
// to-state reflects the node's authoritative view, but the mismatch is
// logged.
var validTransitions = map[State]map[State]bool{
	StateUnknown: {StateCold: true, StateWarm: true, StateHot: true, StateCooling: true},
	StateCold:    {StateWarm: true},
	StateWarm:    {StateHot: true, StateCold: true, StateCooling: true},
	StateHot:     {StateWarm: true, StateCooling: true},
	StateCooling: {StateCold: true},
}

// ValidTransition reports whether from→to appears in the transition table.
func ValidTransition(from, to State) bool {
	return validTransitions[from][to]
}
