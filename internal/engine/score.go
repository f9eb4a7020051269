package engine

import (
	"regexp"
	"strings"
	"time"
)

// Mode is the coarse conversational stance derived from accumulated score.
type Mode string

const (
	ModeDiscovery Mode = "discovery"
	ModeWarming   Mode = "warming"
	ModeClosing   Mode = "closing"
)

// Trend compares the new accumulated score against the previous one.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

const (
	scoreFloor = 10
	scoreCeil  = 100

	decayNormal = 0.7
	decayStale  = 0.6 // more than 4h since last interaction
	decayCold   = 0.5 // more than 24h

	maxIntentHistory = 10
)

// Signals are the per-turn interest indicators detected on one message.
type Signals struct {
	BookingPhrase         bool
	ScheduleInquiry       bool
	ReturnedAfterDay      bool
	CompleteQualification bool
	PriceInquiry          bool
	Urgency               bool
	MultipleChildren      bool
	EmotionalInvestment   bool
	PositiveSentiment     bool
	Cancellation          bool
	PriorGhosting         bool
}

var signalWeights = []struct {
	name   string
	weight int
	active func(Signals) bool
}{
	{"booking_phrase", 50, func(s Signals) bool { return s.BookingPhrase }},
	{"schedule_inquiry", 25, func(s Signals) bool { return s.ScheduleInquiry }},
	{"returned_after_day", 20, func(s Signals) bool { return s.ReturnedAfterDay }},
	{"complete_qualification", 30, func(s Signals) bool { return s.CompleteQualification }},
	{"price_inquiry", 15, func(s Signals) bool { return s.PriceInquiry }},
	{"urgency", 15, func(s Signals) bool { return s.Urgency }},
	{"multiple_children", 10, func(s Signals) bool { return s.MultipleChildren }},
	{"emotional_investment", 10, func(s Signals) bool { return s.EmotionalInvestment }},
	{"positive_sentiment", 10, func(s Signals) bool { return s.PositiveSentiment }},
	{"cancellation", -20, func(s Signals) bool { return s.Cancellation }},
	{"prior_ghosting", -15, func(s Signals) bool { return s.PriorGhosting }},
}

// ScoreSignals sums fixed weights for the detected signals and clamps the
// per-turn result to [0,100] before it feeds the accumulator.
func ScoreSignals(s Signals) (score int, active []string) {
	for _, w := range signalWeights {
		if w.active(s) {
			score += w.weight
			active = append(active, w.name)
		}
	}
	if score < 0 {
		score = 0
	}
	if score > scoreCeil {
		score = scoreCeil
	}
	return score, active
}

// ScoreUpdate is one entry of the lead's bounded intent history.
type ScoreUpdate struct {
	Score     int       `json:"score"`
	Trend     Trend     `json:"trend"`
	Signals   []string  `json:"signals"`
	Timestamp time.Time `json:"timestamp"`
}

// Accumulate applies time-decayed accumulation: stale enthusiasm should not
// project into long-delayed replies at full weight.
func Accumulate(previousScore, signalScore int, sinceLast time.Duration) (int, Trend) {
	decay := decayNormal
	switch {
	case sinceLast > 24*time.Hour:
		decay = decayCold
	case sinceLast > 4*time.Hour:
		decay = decayStale
	}

	score := int(float64(previousScore)*decay) + signalScore
	if score < scoreFloor {
		score = scoreFloor
	}
	if score > scoreCeil {
		score = scoreCeil
	}

	trend := TrendStable
	if score > previousScore {
		trend = TrendUp
	} else if score < previousScore {
		trend = TrendDown
	}
	return score, trend
}

// DeriveMode maps the accumulated score (and its trend) to a conversational
// mode.
func DeriveMode(score int, trend Trend) Mode {
	if score >= 75 || (score >= 60 && trend == TrendUp) {
		return ModeClosing
	}
	if score >= 40 || trend == TrendUp {
		return ModeWarming
	}
	return ModeDiscovery
}

// ModeProfile constrains the tone and shape of generated replies. The engine
// only derives the constraints; the text-generation handler applies them.
type ModeProfile struct {
	MaxMessageChars int
	MaxQuestions    int
	Permitted       []string
	Forbidden       []string
}

var modeProfiles = map[Mode]ModeProfile{
	ModeDiscovery: {
		MaxMessageChars: 420,
		MaxQuestions:    2,
		Permitted:       []string{"open_questions", "empathy", "clinic_overview"},
		Forbidden:       []string{"price_unprompted", "hard_cta"},
	},
	ModeWarming: {
		MaxMessageChars: 320,
		MaxQuestions:    1,
		Permitted:       []string{"soft_cta", "social_proof", "schedule_suggestion"},
		Forbidden:       []string{"long_explanations"},
	},
	ModeClosing: {
		MaxMessageChars: 220,
		MaxQuestions:    1,
		Permitted:       []string{"direct_cta", "slot_offer", "confirmation"},
		Forbidden:       []string{"long_explanations", "new_open_questions"},
	},
}

// ProfileFor returns the constraint profile for a mode, defaulting to
// discovery for anything unrecognized.
func ProfileFor(mode Mode) ModeProfile {
	if p, ok := modeProfiles[mode]; ok {
		return p
	}
	return modeProfiles[ModeDiscovery]
}

// PrepareIntentScoreForSave produces the field-path → value partial update the
// persistence layer applies after a turn. History stays bounded at 10 entries.
func PrepareIntentScoreForSave(history []ScoreUpdate, update ScoreUpdate, mode Mode) map[string]any {
	next := append(append([]ScoreUpdate{}, history...), update)
	if len(next) > maxIntentHistory {
		next = next[len(next)-maxIntentHistory:]
	}
	return map[string]any{
		"qualificationData.intentScore":      update.Score,
		"qualificationData.intentHistory":    next,
		"qualificationData.conversationMode": string(mode),
	}
}

// ---------- signal detection heuristics ----------

var (
	bookingPhraseRE    = regexp.MustCompile(`(?i)\b(quero\s+(agendar|marcar)|pode\s+marcar|vamos\s+agendar|fechado|pode\s+ser\s+esse)\b`)
	scheduleInquiryRE  = regexp.MustCompile(`(?i)\b(tem\s+hor[áa]rio|quais\s+hor[áa]rios|agenda|disponibilidade|que\s+dia)\b`)
	priceInquiryRE     = regexp.MustCompile(`(?i)\b(pre[çc]o|valor|quanto\s+(custa|fica)|mensalidade|or[çc]amento)\b`)
	urgencySignalRE    = regexp.MustCompile(`(?i)\b(urgente|urg[êe]ncia|o\s+quanto\s+antes|essa\s+semana|r[áa]pido)\b`)
	multipleChildrenRE = regexp.MustCompile(`(?i)\b(meus\s+filhos|as\s+crian[çc]as|os\s+dois|g[êe]meos)\b`)
	emotionalRE        = regexp.MustCompile(`(?i)\b(preocupad[ao]|aflit[ao]|desesperad[ao]|sofrendo|ansios[ao]|n[ãa]o\s+sei\s+mais)\b`)
	cancellationRE     = regexp.MustCompile(`(?i)\b(cancelar|desmarcar|n[ãa]o\s+vou\s+(mais|poder)|desisti)\b`)
)

// SignalContext carries the cross-turn facts signal detection needs beyond the
// message text itself.
type SignalContext struct {
	SinceLastInbound   time.Duration
	FullyQualified     bool
	GhostRecoverySent  bool
	MultipleChildren   bool
	Sentiment          Sentiment
	UrgencyLevel       Urgency
	EmotionalState     string
}

// DetectSignals derives the per-turn signal set from the message text and the
// caller-supplied context. Structured extraction wins over regex where both
// exist.
func DetectSignals(text string, ctx SignalContext) Signals {
	lower := strings.ToLower(text)
	return Signals{
		BookingPhrase:         bookingPhraseRE.MatchString(lower),
		ScheduleInquiry:       scheduleInquiryRE.MatchString(lower),
		ReturnedAfterDay:      ctx.SinceLastInbound > 24*time.Hour,
		CompleteQualification: ctx.FullyQualified,
		PriceInquiry:          priceInquiryRE.MatchString(lower),
		Urgency:               ctx.UrgencyLevel >= UrgencyHigh || urgencySignalRE.MatchString(lower),
		MultipleChildren:      ctx.MultipleChildren || multipleChildrenRE.MatchString(lower),
		EmotionalInvestment:   ctx.EmotionalState != "" || emotionalRE.MatchString(lower),
		PositiveSentiment:     ctx.Sentiment == SentimentPositive,
		Cancellation:          cancellationRE.MatchString(lower),
		PriorGhosting:         ctx.GhostRecoverySent,
	}
}
