package engine

// ExtractedInfo carries the entities the external classifier/LLM pulled out of
// the current message. Zero values mean "not extracted".
type ExtractedInfo struct {
	Age              int    `json:"age,omitempty"`
	Complaint        string `json:"complaint,omitempty"`
	Period           string `json:"period,omitempty"`
	PatientName      string `json:"patientName,omitempty"`
	TherapyArea      string `json:"therapyArea,omitempty"`
	Relationship     string `json:"relationship,omitempty"`
	UrgencyLevel     string `json:"urgencyLevel,omitempty"`
	EmotionalState   string `json:"emotionalState,omitempty"`
	MultipleChildren bool   `json:"multipleChildren,omitempty"`
}

// Sentiment is the classifier's coarse sentiment label.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Analysis is the per-message output of the external NLU layer after intent
// normalization. The engine consumes it, never produces it.
type Analysis struct {
	Intent    Intent        `json:"intent"`
	Extracted ExtractedInfo `json:"extracted"`
	Sentiment Sentiment     `json:"sentiment"`
}

// Urgency is the caller-assessed urgency of the current message.
type Urgency int

const (
	UrgencyNone Urgency = iota
	UrgencyModerate
	UrgencyHigh
)

// LeadState is the slice of the persisted lead the engine reads. The engine
// never mutates a lead; handlers downstream do.
type LeadState struct {
	TherapyArea      string
	PrimaryComplaint string
	PatientAge       int
	PatientName      string
}

// Slot is one offered appointment option.
type Slot struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SlotSet is the set of options shown (or about to be shown) to the lead.
type SlotSet struct {
	Primary      *Slot  `json:"primary,omitempty"`
	Alternatives []Slot `json:"alternatives,omitempty"`
}

// BookingContext is the ephemeral, per-turn scheduling progress that has not
// been committed to the lead yet.
type BookingContext struct {
	Slots      *SlotSet `json:"slots,omitempty"`
	ChosenSlot *Slot    `json:"chosenSlot,omitempty"`
}
