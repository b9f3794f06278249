// Package session classifies live workout state and maps it to a response
// style. Both functions are pure: no transition history is kept, the
// classification is recomputed on every prompt build.
package session

// LiveSet describes the set the user is currently performing, when a
// workout is running in the app.
type LiveSet struct {
	Exercise        string `json:"exercise"`
	CurrentSet      int    `json:"current_set"`
	TotalSets       int    `json:"total_sets"`
	IsResting       bool   `json:"is_resting"`
	RestSecondsLeft int    `json:"rest_seconds_left"`
}

// State is the live session input to classification. Fields outside
// IsActive and Training.IsResting never influence the result.
type State struct {
	IsActive bool     `json:"is_active"`
	Training *LiveSet `json:"training,omitempty"`
}

// Awareness is the 3-state classification of live session state.
type Awareness int

const (
	Idle Awareness = iota
	ActiveEffort
	ActiveRest
)

func (a Awareness) String() string {
	switch a {
	case ActiveEffort:
		return "active-effort"
	case ActiveRest:
		return "active-rest"
	default:
		return "idle"
	}
}

// Classify maps (isActive, isResting) to an Awareness. An active session
// without set detail counts as effort: mid-workout brevity is the safer
// default.
func Classify(s State) Awareness {
	if !s.IsActive {
		return Idle
	}
	if s.Training != nil && s.Training.IsResting {
		return ActiveRest
	}
	return ActiveEffort
}

// Length buckets for assistant replies.
type Length string

const (
	LengthUltraShort Length = "ultra-short" // 5-15 words
	LengthShort      Length = "short"       // 1-2 sentences
	LengthMedium     Length = "medium"      // 2-4 sentences
	LengthDetailed   Length = "detailed"
)

// ResponseStyle is the length/tone policy applied when rendering assistant
// text. It is recomputed per prompt build and never stored.
type ResponseStyle struct {
	Length    Length `json:"length"`
	Tone      string `json:"tone"`
	Formality string `json:"formality"`
	Emoji     bool   `json:"emoji"`
}

// StyleFor resolves the response style for an awareness state. The mapping
// is total and deterministic.
func StyleFor(a Awareness) ResponseStyle {
	switch a {
	case ActiveEffort:
		return ResponseStyle{Length: LengthUltraShort, Tone: "motivational", Formality: "casual", Emoji: true}
	case ActiveRest:
		return ResponseStyle{Length: LengthShort, Tone: "motivational", Formality: "casual", Emoji: true}
	default:
		return ResponseStyle{Length: LengthMedium, Tone: "conversational", Formality: "neutral", Emoji: false}
	}
}
