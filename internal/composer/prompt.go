// Package composer renders a knowledge snapshot plus live session state
// into the system prompt handed to the downstream assistant. Sections use
// progressive disclosure: anything without data is omitted entirely rather
// than rendered as "N/A".
package composer

import (
	"fmt"
	"strings"
	"time"

	"github.com/forgefit/brain/internal/gaps"
	"github.com/forgefit/brain/internal/knowledge"
	"github.com/forgefit/brain/internal/session"
)

const defaultMaxPromptTokens = 4000

// AppActivity is where the user currently is in the app. Route and locale
// feed the activity section only; they never influence the response style.
type AppActivity struct {
	Route     string    `json:"route"`
	Locale    string    `json:"locale"`
	LocalTime time.Time `json:"local_time"`
}

// BrainContext is the ephemeral composite built per prompt request. It is
// never persisted.
type BrainContext struct {
	Knowledge *knowledge.UserKnowledge
	Activity  AppActivity
	Session   session.State
	Gaps      *gaps.Report
}

// Composer assembles system prompts under a token budget.
type Composer struct {
	MaxPromptTokens int
}

// New creates a Composer. maxPromptTokens <= 0 selects the default (4000).
func New(maxPromptTokens int) *Composer {
	if maxPromptTokens <= 0 {
		maxPromptTokens = defaultMaxPromptTokens
	}
	return &Composer{MaxPromptTokens: maxPromptTokens}
}

// BuildSystemPrompt renders the ordered prompt sections: base
// instructions, user-knowledge summary, current-activity summary, missing
// data nudge, response-style directive, and live-exercise
// micro-instructions. Base instructions and the style directive are always
// emitted; data sections are dropped from the end when the budget is
// exceeded.
func (c *Composer) BuildSystemPrompt(bc BrainContext, basePrompt string) string {
	awareness := session.Classify(bc.Session)
	style := session.StyleFor(awareness)

	var optional []string
	if s := knowledgeSummary(bc.Knowledge); s != "" {
		optional = append(optional, s)
	}
	if s := activitySummary(bc); s != "" {
		optional = append(optional, s)
	}
	if s := gapNudge(bc.Gaps, awareness); s != "" {
		optional = append(optional, s)
	}

	required := styleDirective(style)
	if s := liveInstructions(bc.Session, awareness); s != "" {
		required += "\n\n" + s
	}

	budget := c.MaxPromptTokens - EstimateTokens(basePrompt) - EstimateTokens(required)

	var sb strings.Builder
	sb.WriteString(basePrompt)
	for _, sec := range optional {
		tokens := EstimateTokens(sec)
		if tokens > budget {
			continue
		}
		budget -= tokens
		sb.WriteString("\n\n")
		sb.WriteString(sec)
	}
	sb.WriteString("\n\n")
	sb.WriteString(required)
	return sb.String()
}

// knowledgeSummary walks each forge's populated fields in a fixed order
// and renders only present values.
func knowledgeSummary(k *knowledge.UserKnowledge) string {
	if k == nil {
		return ""
	}
	var lines []string

	p := k.Profile
	if p.Name != "" {
		lines = append(lines, "Name: "+p.Name)
	}
	if p.Age > 0 {
		lines = append(lines, fmt.Sprintf("Age: %d", p.Age))
	}
	if p.Objective != "" {
		lines = append(lines, "Objective: "+p.Objective)
	}
	if p.ActivityLevel != "" {
		lines = append(lines, "Activity level: "+p.ActivityLevel)
	}
	if len(p.Goals) > 0 {
		lines = append(lines, "Goals: "+strings.Join(p.Goals, ", "))
	}

	t := k.Training
	if t.SessionCount > 0 {
		lines = append(lines, fmt.Sprintf("Training: %d sessions in 60d (%.1f/week), avg RPE %.1f, avg %.0f min",
			t.SessionCount, t.SessionsPerWeek, t.AvgRPE, t.AvgDurationMin))
		if len(t.FrequentMovements) > 0 {
			lines = append(lines, "Frequent movements: "+strings.Join(t.FrequentMovements, ", "))
		}
	}

	e := k.Equipment
	if len(e.Locations) > 0 {
		lines = append(lines, "Trains at: "+strings.Join(e.Locations, ", "))
	}
	if len(e.Items) > 0 {
		lines = append(lines, "Equipment: "+strings.Join(e.Items, ", "))
	}

	n := k.Nutrition
	if n.TrackedDays > 0 {
		lines = append(lines, fmt.Sprintf("Nutrition: ~%.0f kcal/day, %.0fg protein over %d tracked days",
			n.AvgDailyKcal, n.AvgProteinG, n.TrackedDays))
	}

	f := k.Fasting
	if f.SessionCount > 0 {
		line := fmt.Sprintf("Fasting: %d fasts, avg %.1fh window, %.0f%% completed",
			f.SessionCount, f.AvgWindowHours, f.CompletionRate*100)
		if f.Protocol != "" {
			line += " (" + f.Protocol + ")"
		}
		lines = append(lines, line)
	}

	b := k.Body
	if b.ScanCount > 0 {
		line := fmt.Sprintf("Body: %.1fkg", b.LatestWeightKG)
		if b.LatestBodyFatPct > 0 {
			line += fmt.Sprintf(", %.1f%% body fat", b.LatestBodyFatPct)
		}
		if b.WeightDeltaKG != 0 {
			line += fmt.Sprintf(", %+.1fkg over 90d", b.WeightDeltaKG)
		}
		lines = append(lines, line)
	}

	en := k.Energy
	if en.RecordCount > 0 {
		line := fmt.Sprintf("Recovery: %.1fh sleep avg", en.AvgSleepHours)
		if en.AvgEnergyLevel > 0 {
			line += fmt.Sprintf(", energy %.1f/10", en.AvgEnergyLevel)
		}
		if en.AvgRestingHR > 0 {
			line += fmt.Sprintf(", resting HR %.0f", en.AvgRestingHR)
		}
		lines = append(lines, line)
	}

	tp := k.Temporal
	if len(tp.PreferredDays) > 0 {
		line := "Usually trains: " + strings.Join(tp.PreferredDays, ", ")
		if len(tp.PreferredHours) > 0 {
			line += fmt.Sprintf(" around %s", joinHours(tp.PreferredHours))
		}
		lines = append(lines, line)
	}

	pn := k.Perinatal
	if pn.Status != "" {
		lines = append(lines, "Perinatal: "+pn.Status+", adjust guidance accordingly")
		if len(pn.KeyNutrients) > 0 {
			lines = append(lines, "Priority nutrients: "+strings.Join(pn.KeyNutrients, ", "))
		}
		if len(pn.Cautions) > 0 {
			lines = append(lines, "Cautions: "+strings.Join(pn.Cautions, "; "))
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return "[User]\n" + strings.Join(lines, "\n")
}

// activitySummary renders today's activity plus where the user is in the
// app right now.
func activitySummary(bc BrainContext) string {
	var lines []string
	if bc.Knowledge != nil {
		td := bc.Knowledge.Today
		if td.SessionsToday > 0 {
			lines = append(lines, fmt.Sprintf("Trained today: %d session(s)", td.SessionsToday))
		}
		if td.MealsLogged > 0 {
			lines = append(lines, fmt.Sprintf("Meals today: %d (%.0f kcal, %.0fg protein)",
				td.MealsLogged, td.KcalSoFar, td.ProteinSoFar))
		}
		if td.FastingActive {
			lines = append(lines, fmt.Sprintf("Currently fasting: %.1fh elapsed", td.FastingElapsedHours))
		}
	}
	if bc.Activity.Route != "" {
		lines = append(lines, "User is on the "+bc.Activity.Route+" screen")
	}
	if len(lines) == 0 {
		return ""
	}
	return "[Now]\n" + strings.Join(lines, "\n")
}

// gapNudge surfaces the single top suggestion, and only when idle: a
// user mid-set does not need profile homework.
func gapNudge(r *gaps.Report, a session.Awareness) string {
	if r == nil || len(r.Suggestions) == 0 || a != session.Idle {
		return ""
	}
	top := r.Suggestions[0]
	return "[Data gap]\nIf it fits the conversation, nudge: " + top.Message
}

func styleDirective(style session.ResponseStyle) string {
	var sb strings.Builder
	sb.WriteString("[Response style]\n")
	switch style.Length {
	case session.LengthUltraShort:
		sb.WriteString("Reply in 5-15 words.")
	case session.LengthShort:
		sb.WriteString("Reply in 1-2 sentences.")
	case session.LengthDetailed:
		sb.WriteString("Reply in depth, with structure.")
	default:
		sb.WriteString("Reply in 2-4 sentences.")
	}
	sb.WriteString(" Tone: " + style.Tone + ".")
	if style.Emoji {
		sb.WriteString(" Emoji welcome.")
	} else {
		sb.WriteString(" No emoji.")
	}
	return sb.String()
}

// liveInstructions adds exercise-specific micro-coaching when a set is in
// flight.
func liveInstructions(s session.State, a session.Awareness) string {
	if a == session.Idle || s.Training == nil {
		return ""
	}
	t := s.Training
	var lines []string
	if t.Exercise != "" {
		lines = append(lines, fmt.Sprintf("Live: %s, set %d of %d.", t.Exercise, t.CurrentSet, t.TotalSets))
	}
	if a == session.ActiveRest && t.RestSecondsLeft > 0 {
		lines = append(lines, fmt.Sprintf("Resting, %ds left. Prep them for the next set.", t.RestSecondsLeft))
	}
	if a == session.ActiveEffort {
		lines = append(lines, "They are mid-effort. Cue form or push, nothing else.")
	}
	if len(lines) == 0 {
		return ""
	}
	return "[Live session]\n" + strings.Join(lines, "\n")
}

// EstimateTokens provides a rough token count using the 4 chars per token
// heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func joinHours(hours []int) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = fmt.Sprintf("%02d:00", h)
	}
	return strings.Join(parts, "/")
}
