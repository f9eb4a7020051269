package engine

// TopicShiftInput bundles everything the detector needs for one message.
type TopicShiftInput struct {
	Intent      Intent
	MessageText string
	Extracted   ExtractedInfo
	Lead        LeadState
	Booking     BookingContext
	Missing     MissingFields
}

// TopicShift classifies a message relative to an in-progress scheduling flow.
type TopicShift struct {
	IsInterruption   bool
	IsNaturalResume  bool
	ResumedField     AwaitingField
	InterruptedField AwaitingField
	SideIntent       Intent
}

// DetectTopicShift decides whether a message naturally resumes the awaited
// funnel field or interrupts the flow with a side topic.
//
// Resumption is checked before interruption on purpose: an ambiguous short
// reply that satisfies the awaited field's validator must never be
// misclassified as a detour.
func DetectTopicShift(in TopicShiftInput) TopicShift {
	if !hasSchedulingContext(in) {
		// Nothing to interrupt.
		return TopicShift{}
	}

	if awaited := in.Missing.CurrentAwaiting; awaited != AwaitNone {
		if MessageAnswersAwaiting(awaited, in.MessageText, in.Extracted) {
			return TopicShift{
				IsNaturalResume: true,
				ResumedField:    awaited,
			}
		}
	}

	if IsSideIntent(in.Intent) {
		interrupted := in.Missing.CurrentAwaiting
		if interrupted == AwaitNone {
			interrupted = AwaitUnknown
		}
		return TopicShift{
			IsInterruption:   true,
			InterruptedField: interrupted,
			SideIntent:       in.Intent,
		}
	}

	return TopicShift{}
}

// hasSchedulingContext reports whether a scheduling flow exists to be
// interrupted: the lead has started qualifying, slots are in play, or the
// missing-field state shows the funnel is past the therapy/complaint stage.
func hasSchedulingContext(in TopicShiftInput) bool {
	if in.Lead.TherapyArea != "" || in.Lead.PrimaryComplaint != "" {
		return true
	}
	if in.Booking.Slots != nil || in.Booking.ChosenSlot != nil {
		return true
	}
	m := in.Missing
	return m.NeedsAge || m.NeedsPeriod || m.NeedsSlot || m.NeedsSlotSelection || m.NeedsName
}
