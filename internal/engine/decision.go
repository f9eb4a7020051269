package engine

// Action is what the bot should do next.
type Action string

const (
	ActionClinicalGate   Action = "clinical_gate"
	ActionAskTherapy     Action = "ask_therapy"
	ActionAskComplaint   Action = "ask_complaint"
	ActionAskAge         Action = "ask_age"
	ActionAskPeriod      Action = "ask_period"
	ActionAskPatientName Action = "ask_patient_name"
	ActionConfirmBooking Action = "confirm_booking"
	ActionSearchSlots    Action = "search_slots"
	ActionAnswerPrice    Action = "answer_price"
	ActionTherapyInfo    Action = "therapy_info"
	ActionFallback       Action = "fallback"
	ActionJobInfo        Action = "job_info"
	ActionQualify        Action = "qualify"
)

// Handler names the external component responsible for producing reply text.
type Handler string

const (
	HandlerTherapyGate       Handler = "therapyGateHandler"
	HandlerLeadQualification Handler = "leadQualificationHandler"
	HandlerScheduling        Handler = "schedulingHandler"
	HandlerProduct           Handler = "productHandler"
	HandlerTherapyInfo       Handler = "therapyInfoHandler"
	HandlerFallback          Handler = "fallbackHandler"
	HandlerJob               Handler = "jobHandler"
)

// Decision is the engine's sole output contract. Reason is a machine-readable
// justification for logs and analytics; it is never shown to the lead.
type Decision struct {
	Action  Action  `json:"action"`
	Handler Handler `json:"handler"`
	Reason  string  `json:"reason"`
}

// DecisionInput is everything the decision engine looks at for one turn.
type DecisionInput struct {
	Analysis Analysis
	Missing  MissingFields
	Urgency  Urgency
	Booking  BookingContext
	Clinical ClinicalVerdict
}

// Decide maps one turn's context to the next action. Pure function: same
// inputs always produce the same output, and no input combination panics.
// Unrecognized intents fall through to the default qualification action.
func Decide(in DecisionInput) Decision {
	// Clinical gates outrank everything, including explicit booking intent.
	if in.Clinical.Blocked {
		return Decision{
			Action:  ActionClinicalGate,
			Handler: HandlerTherapyGate,
			Reason:  "clinical_rule:" + string(in.Clinical.Reason),
		}
	}

	switch in.Analysis.Intent {
	case IntentScheduling:
		return decideScheduling(in)

	case IntentPrice:
		reason := "price_inquiry"
		if in.Urgency >= UrgencyHigh {
			reason = "price_inquiry_urgent"
		}
		return Decision{Action: ActionAnswerPrice, Handler: HandlerProduct, Reason: reason}

	case IntentTherapyInfo:
		return Decision{Action: ActionTherapyInfo, Handler: HandlerTherapyInfo, Reason: "therapy_info_request"}

	case IntentPartnership:
		return Decision{Action: ActionFallback, Handler: HandlerFallback, Reason: "partnership_out_of_scope"}

	case IntentJob:
		return Decision{Action: ActionJobInfo, Handler: HandlerJob, Reason: "job_inquiry"}
	}

	// Funnel-forcing fallbacks: keep an in-progress flow moving even when the
	// classifier mislabels the message.
	if in.Missing.NeedsComplaint {
		return Decision{Action: ActionAskComplaint, Handler: HandlerLeadQualification, Reason: "funnel_force_complaint"}
	}
	if in.Booking.ChosenSlot != nil && in.Missing.NeedsName {
		return Decision{Action: ActionAskPatientName, Handler: HandlerScheduling, Reason: "funnel_force_name"}
	}

	return Decision{Action: ActionQualify, Handler: HandlerLeadQualification, Reason: "default_qualification"}
}

// decideScheduling drills through the funnel in its canonical order:
// therapy → complaint → age → period → slot handling → name → confirm.
// Complaint-before-age is deliberate; clinical context comes before
// demographic and logistic questions.
func decideScheduling(in DecisionInput) Decision {
	m := in.Missing
	switch {
	case m.NeedsTherapy:
		return Decision{Action: ActionAskTherapy, Handler: HandlerLeadQualification, Reason: "funnel_therapy"}
	case m.NeedsComplaint:
		return Decision{Action: ActionAskComplaint, Handler: HandlerLeadQualification, Reason: "funnel_complaint"}
	case m.NeedsAge:
		return Decision{Action: ActionAskAge, Handler: HandlerLeadQualification, Reason: "funnel_age"}
	case m.NeedsPeriod:
		return Decision{Action: ActionAskPeriod, Handler: HandlerScheduling, Reason: "funnel_period"}
	}

	if in.Booking.ChosenSlot != nil {
		if m.NeedsName {
			return Decision{Action: ActionAskPatientName, Handler: HandlerScheduling, Reason: "funnel_name"}
		}
		return Decision{Action: ActionConfirmBooking, Handler: HandlerScheduling, Reason: "funnel_confirm"}
	}

	if m.NeedsSlotSelection {
		// Options are already on screen; re-present them instead of fetching.
		return Decision{Action: ActionSearchSlots, Handler: HandlerScheduling, Reason: "funnel_slot_choice"}
	}

	return Decision{Action: ActionSearchSlots, Handler: HandlerScheduling, Reason: "funnel_slots"}
}
