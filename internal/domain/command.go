package domain

// Candidate is a relay whose label matched a transcript, with its 0-100 score.
type Candidate struct {
	Relay string
	Label string
	Score int
}

type DeviceAction struct {
	Room   string
	Relay  string
	Label  string
	Status Status
}

// Resolution is what a transcript resolves to: either a mode (activate or
// deactivate) or a set of device actions with the sentence to speak back.
type Resolution struct {
	Mode       *Mode
	Deactivate bool
	Actions    []DeviceAction
	Skipped    []DeviceAction
	Feedback   string
}

func (r Resolution) IsMode() bool {
	return r.Mode != nil
}

func (r Resolution) Empty() bool {
	return r.Mode == nil && len(r.Actions) == 0
}
