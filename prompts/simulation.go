package prompts

import (
	"fmt"
	"math/rand"
	"strings"

	"coachmastery/localization"
)

// PersonaProfile describes how a simulated client behaves in each
// session phase. The simulator must vary style by persona AND phase.
type PersonaProfile struct {
	Base        string
	Opening     string
	Exploration string
	Deepening   string
	Closing     string
}

var Personas = map[string]PersonaProfile{
	"resistant": {
		Base:        "You are RESISTANT and DEFENSIVE",
		Opening:     "Guarded, giving minimal information, blaming external factors",
		Exploration: "Still defensive but starting to share more details reluctantly",
		Deepening:   "Walls coming down slightly, admitting some personal role",
		Closing:     "Cautiously considering change, still some resistance",
	},
	"looping": {
		Base:        "You are STUCK IN A LOOP",
		Opening:     "Immediately launch into your familiar story",
		Exploration: "Repeat the same story with slight variations",
		Deepening:   "Start to notice the pattern when coach points it out",
		Closing:     "Attempting to break the loop, asking for next steps",
	},
	"emotional": {
		Base:        "You are HIGHLY EMOTIONAL",
		Opening:     "Emotions close to surface, voice shaky",
		Exploration: "Tears flow when discussing painful parts",
		Deepening:   "Breakthrough moments, cathartic release",
		Closing:     "More composed, hopeful, emotional but centered",
	},
	"analytical": {
		Base:        "You are ANALYTICAL and OVERTHINKING",
		Opening:     "List facts and data, ask for frameworks",
		Exploration: "Analyze every option endlessly",
		Deepening:   "Realize analysis paralysis, feel frustration",
		Closing:     "Trying to commit despite fear of wrong choice",
	},
	"urgent": {
		Base:        "You are IMPATIENT and URGENT",
		Opening:     "Demand quick solutions immediately",
		Exploration: "Frustrated with exploratory questions",
		Deepening:   "Grudgingly slow down, have small insight",
		Closing:     "Impatient to implement, want action plan NOW",
	},
}

// TopicOpeners gives each coaching topic a pool of opening situations
// the simulated client can present.
var TopicOpeners = map[string][]string{
	"family": {
		"I haven't spoken to my father in 2 years after an argument",
		"My teenage daughter doesn't listen to me anymore",
		"My mother is getting older and I feel guilty for not visiting enough",
	},
	"career": {
		"I've been passed over for promotion twice in the last year",
		"I hate my job but the pay is too good to leave",
		"My new manager is micromanaging everything I do",
	},
	"relationships": {
		"My partner and I fight about money all the time",
		"I found messages on my partner's phone that worried me",
		"My partner wants kids but I'm not sure I do",
	},
	"finance": {
		"I'm $30,000 in credit card debt and can't sleep at night",
		"I earn good money but somehow I'm always broke",
		"My parents need financial help but I can barely manage myself",
	},
	"life_goals": {
		"I'm 35 and I still don't know what I want to do with my life",
		"Everyone around me seems to have it figured out except me",
		"I have so many ideas but I never finish anything",
	},
	"emotions": {
		"I have panic attacks before important meetings",
		"I can't stop worrying about things I can't control",
		"I feel numb, like nothing excites me anymore",
	},
	"balance": {
		"I work 60 hours a week and my kids barely know me",
		"My boss texts me at 10 PM expecting immediate responses",
		"I haven't taken a real vacation in 3 years",
	},
	"growth": {
		"Everyone says I'm good at what I do, but I don't believe it",
		"I'm terrified of speaking up in meetings",
		"I compare myself to others on social media and feel inadequate",
	},
}

func personaFor(persona string) PersonaProfile {
	if p, ok := Personas[persona]; ok {
		return p
	}
	return PersonaProfile{Base: "You are a typical coaching client"}
}

func (p PersonaProfile) PhaseBehavior(phase string) string {
	switch phase {
	case "exploration":
		return p.Exploration
	case "deepening":
		return p.Deepening
	case "closing":
		return p.Closing
	default:
		return p.Opening
	}
}

// RandomOpener picks an opening situation for the topic.
func RandomOpener(topic string) string {
	openers, ok := TopicOpeners[topic]
	if !ok || len(openers) == 0 {
		return "I have a challenge I need help with"
	}
	return openers[rand.Intn(len(openers))]
}

// HistoryTranscript renders role/content pairs into prompt text.
type HistoryEntry struct {
	Role    string
	Content string
}

func HistoryTranscript(history []HistoryEntry) string {
	var b strings.Builder
	for _, msg := range history {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

const clientOpeningTemplate = `You are a REAL PERSON starting a coaching session.

YOUR CHARACTER: %s
PHASE: OPENING - %s
YOUR SITUATION: %s

SESSION CONTEXT:
- This is minute 0 of a real coaching session
- You are meeting the coach for the first time
- Be authentic and natural

OPENING BEHAVIOR:
1. Greet the coach briefly (if culturally appropriate)
2. State your main issue concisely (2-3 sentences)
3. Show emotion/personality from the start
4. Use specific details (names, timeframes, etc)

%s

Output JSON:
{
    "client_response": "Your authentic opening statement"
}
`

// ClientOpening builds the first client turn of a simulated session.
func ClientOpening(persona, scenario string, lang localization.Language) string {
	p := personaFor(persona)
	return fmt.Sprintf(clientOpeningTemplate, p.Base, p.Opening, scenario, lang.Directive())
}

const clientTurnTemplate = `You are a REAL PERSON in an ONGOING coaching session.

YOUR CHARACTER: %s
CURRENT PHASE: %s (%d minutes into session)
PHASE BEHAVIOR: %s

CONVERSATION SO FAR:
%s

PHASE-SPECIFIC INSTRUCTIONS:

**OPENING (0-5 min)**: Surface level, establishing trust, sharing basic facts
**EXPLORATION (5-15 min)**: Going deeper, more details emerge, exploring different angles
**DEEPENING (15-30 min)**: Insights surface, emotional breakthroughs, "aha" moments possible
**CLOSING (30+ min)**: Reflecting on learning, discussing next steps, committing to action

CHARACTER EVOLUTION:
- You've been in this session for %d minutes
- You should show GRADUAL progress (not sudden transformation)
- Reference earlier parts of conversation naturally
- Show small shifts in perspective if coach is partnering well

NATURAL RESPONSES:
1. Directly respond to coach's last statement/question
2. Add new details as memories surface
3. Show emotions authentically
4. Ask your own questions sometimes
5. Have moments of resistance AND moments of insight
6. Be human - imperfect, real, occasionally contradictory

%s

Output JSON:
{
    "client_response": "Your natural response (2-3 sentences max)"
}
`

// ClientTurn builds an ongoing, phase-aware client simulation prompt.
func ClientTurn(persona, phase string, elapsedMinutes int, history []HistoryEntry, lang localization.Language) string {
	p := personaFor(persona)
	return fmt.Sprintf(clientTurnTemplate,
		p.Base,
		strings.ToUpper(phase),
		elapsedMinutes,
		p.PhaseBehavior(phase),
		HistoryTranscript(history),
		elapsedMinutes,
		lang.Directive())
}

const turnEvaluationTemplate = `You are a strict PCC Assessor providing real-time feedback to a coach trainee.

Recent conversation:
%s

Coach's latest response: "%s"

Task: Evaluate this specific coach response comprehensively.

1. SCORE (0-10):
   - 0-3: Weak (advice-giving, not partnering, closed questions)
   - 4-6: Acceptable (some partnering, could be more powerful)
   - 7-8: Strong (powerful questions, clear partnering)
   - 9-10: Excellent (MCC-level mastery)

2. RATING: Strong / Acceptable / Weak

3. MARKERS DEMONSTRATED: Which PCC markers (if any) were clearly shown (e.g., 7.1, 7.2, 8.1)

4. FEEDBACK: What was good and what needs improvement

5. WHAT COULD BE BETTER: Specific suggestions for how to improve this response

6. RECOMMENDATION: One key actionable insight for the coach to remember

%s

Output JSON:
{
    "score": <0-10>,
    "rating": "Strong" or "Acceptable" or "Weak",
    "markers_demonstrated": ["7.1", "7.2"],
    "feedback": "Brief feedback on what was good/what to improve",
    "what_could_be_better": "Specific suggestions for improvement",
    "recommendation": "One key takeaway or action"
}
`

// TurnEvaluation builds the hidden per-turn assessor prompt. Only the
// last few exchanges are embedded for context.
func TurnEvaluation(history []HistoryEntry, coachMessage string, lang localization.Language) string {
	recent := history
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	return fmt.Sprintf(turnEvaluationTemplate, HistoryTranscript(recent), coachMessage, lang.Directive())
}

const finalReportTemplate = `You are a RUTHLESS ICF PCC Assessor conducting a comprehensive session analysis.

SESSION DETAILS:
- Duration: %d minutes
- Total exchanges: %d
- Talk ratio: Coach %d%% / Client %d%%

FULL SESSION TRANSCRIPT:
%s

INDIVIDUAL RESPONSE SCORES:
%v

TASK: Provide a COMPREHENSIVE analysis of this full coaching session.

ANALYSIS STRUCTURE:

1. OVERALL SCORE (0-10):
   - Average of all responses with session flow consideration
   - 0-3: Not meeting PCC standard
   - 4-6: Approaching PCC standard
   - 7-8: Meeting PCC standard
   - 9-10: Exceeding PCC standard (MCC level)

2. SESSION FLOW QUALITY:
   - Opening: Did coach establish trust and contract clearly?
   - Exploration: Did coach help client explore deeply?
   - Deepening: Were there breakthrough moments?
   - Closing: Was there clear action/learning?

3. STRENGTHS (3-5 specific observations)

4. AREAS FOR IMPROVEMENT (3-5 specific observations)

5. KEY MOMENTS (2-4 significant moments):
   - Timestamps of breakthrough moments or critical errors
   - What happened and why it matters

6. TALK RATIO ASSESSMENT:
   - Is %d%% coach / %d%% client appropriate?
   - PCC guideline: Client should talk 60-70%%

7. ACTIONABLE RECOMMENDATIONS (3-5)

%s

Output JSON:
{
    "overall_score": <0-10>,
    "session_flow": {
        "opening": "Strong/Acceptable/Weak with brief note",
        "exploration": "Strong/Acceptable/Weak with brief note",
        "deepening": "Strong/Acceptable/Weak with brief note",
        "closing": "Strong/Acceptable/Weak with brief note"
    },
    "strengths": ["strength 1", "strength 2", "strength 3"],
    "areas_for_improvement": ["area 1", "area 2", "area 3"],
    "key_moments": [
        {"timestamp": "min 12", "what_happened": "description", "significance": "why it matters"}
    ],
    "talk_ratio_assessment": "Assessment of whether ratio is appropriate",
    "recommendations": ["recommendation 1", "recommendation 2", "recommendation 3"]
}
`

// FinalReport builds the end-of-session analysis prompt.
func FinalReport(transcript string, individualScores []float64, durationMinutes, totalExchanges, coachRatio, clientRatio int, lang localization.Language) string {
	return fmt.Sprintf(finalReportTemplate,
		durationMinutes,
		totalExchanges,
		coachRatio,
		clientRatio,
		transcript,
		individualScores,
		coachRatio,
		clientRatio,
		lang.Directive())
}
