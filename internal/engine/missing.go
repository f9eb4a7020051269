package engine

// AwaitingField names the single qualification field the bot is waiting for.
type AwaitingField string

const (
	AwaitNone          AwaitingField = ""
	AwaitComplaint     AwaitingField = "complaint"
	AwaitAge           AwaitingField = "age"
	AwaitPeriod        AwaitingField = "period"
	AwaitSlotSelection AwaitingField = "slot_selection"
	AwaitPatientName   AwaitingField = "patient_name"
	AwaitUnknown       AwaitingField = "unknown"
)

// LeadFlags describes what is already known about a lead at turn start.
type LeadFlags struct {
	HasTherapy     bool
	HasComplaint   bool
	HasAge         bool
	HasPeriod      bool
	HasSlotsToShow bool
	HasChosenSlot  bool
	PatientName    string
}

// MissingFields is the recomputed-every-turn view of what the funnel still
// needs. Each NeedsX is gated on all logically prior fields being present, so
// at most one of the awaited fields is active at a time.
type MissingFields struct {
	NeedsTherapy       bool
	NeedsComplaint     bool
	NeedsAge           bool
	NeedsPeriod        bool
	NeedsSlot          bool
	NeedsSlotSelection bool
	NeedsName          bool

	CurrentAwaiting AwaitingField
}

// ResolveMissingFields computes the missing-field set for a lead.
// NeedsSlot means "fetch and display options"; NeedsSlotSelection means
// "options are on screen, waiting for the lead to pick one".
func ResolveMissingFields(f LeadFlags) MissingFields {
	qualified := f.HasTherapy && f.HasComplaint && f.HasAge && f.HasPeriod

	m := MissingFields{
		NeedsTherapy:       !f.HasTherapy,
		NeedsComplaint:     f.HasTherapy && !f.HasComplaint,
		NeedsAge:           f.HasTherapy && f.HasComplaint && !f.HasAge,
		NeedsPeriod:        f.HasTherapy && f.HasComplaint && f.HasAge && !f.HasPeriod,
		NeedsSlot:          qualified && !f.HasSlotsToShow && !f.HasChosenSlot,
		NeedsSlotSelection: qualified && f.HasSlotsToShow && !f.HasChosenSlot,
		NeedsName:          f.HasChosenSlot && f.PatientName == "",
	}
	m.CurrentAwaiting = currentAwaiting(m)
	return m
}

// currentAwaiting applies the fixed precedence complaint > age > period >
// slot_selection > name. NeedsSlot is deliberately absent: fetching slots is
// the bot's move, not something the lead is asked for.
func currentAwaiting(m MissingFields) AwaitingField {
	switch {
	case m.NeedsComplaint:
		return AwaitComplaint
	case m.NeedsAge:
		return AwaitAge
	case m.NeedsPeriod:
		return AwaitPeriod
	case m.NeedsSlotSelection:
		return AwaitSlotSelection
	case m.NeedsName:
		return AwaitPatientName
	default:
		return AwaitNone
	}
}
