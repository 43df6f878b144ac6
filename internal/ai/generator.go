package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contextmeet/contextmeet/pkg/logger"
	"github.com/contextmeet/contextmeet/pkg/metrics"
)

// Confidence scores attached to generated briefs. Model output carries the
// base score, the template fallback for an unreachable endpoint advertises
// itself as low confidence, and a reachable endpoint that returns an empty
// or non-JSON completion gets the parse-layer default of zero.
const (
	ConfidenceModel    = 85
	ConfidenceFallback = 50
	ConfidenceUnparsed = 0
)

// Brief is the structured preparation content for one meeting.
type Brief struct {
	MeetingType            string
	Summary                string
	KeyTopics              []string
	PreparationChecklist   []string
	SuggestedAgenda        []string
	EstimatedImportance    string
	RecommendedPrepMinutes int
	AttendeeContext        map[string]string
	PotentialOutcomes      []string
	FollowUpSuggestions    []string
	ConfidenceScore        int
	ModelVersion           string
	Fallback               bool
}

// MeetingInput carries the meeting details fed into the prompt.
type MeetingInput struct {
	Title       string
	Description string
	Attendees   []string
	StartTime   time.Time

	// AttendeeNotes maps attendee email to accumulated background notes.
	AttendeeNotes map[string]string

	// PreviousMeetings lists recent similar meetings for light grounding.
	PreviousMeetings []PreviousMeeting
}

// PreviousMeeting is a compact reference to an earlier meeting of the user.
type PreviousMeeting struct {
	Title       string
	MeetingType string
}

// Generator produces meeting briefs. An unreachable or disabled endpoint
// degrades to a deterministic template; a reachable endpoint whose
// completion carries no usable JSON degrades further to parse defaults.
type Generator struct {
	client *Client
	log    *zap.Logger
}

// NewGenerator builds a Generator around the given model client.
func NewGenerator(client *Client) *Generator {
	return &Generator{
		client: client,
		log:    logger.WithModule("ai"),
	}
}

// Generate returns a brief for the meeting. It never returns an error:
// any upstream failure yields the fallback template.
func (g *Generator) Generate(ctx context.Context, input MeetingInput) *Brief {
	completion, err := g.client.Complete(ctx, buildPrompt(input))
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			g.log.Warn("model completion failed, using fallback",
				zap.String("title", input.Title),
				zap.Error(err),
			)
		}
		metrics.ContextsGenerated.WithLabelValues("fallback").Inc()
		return fallbackBrief(input.Title, input.Description)
	}

	brief, err := parseBrief(completion)
	if err != nil {
		g.log.Warn("model response unparseable, using parse defaults",
			zap.String("title", input.Title),
			zap.Error(err),
		)
		metrics.ContextsGenerated.WithLabelValues("unparsed").Inc()
		return unparsedBrief(input.Title)
	}

	brief.ModelVersion = g.client.Model()
	metrics.ContextsGenerated.WithLabelValues("model").Inc()
	return brief
}

func buildPrompt(input MeetingInput) string {
	attendees := "No attendees listed"
	if len(input.Attendees) > 0 {
		attendees = strings.Join(input.Attendees, ", ")
	}

	description := input.Description
	if description == "" {
		description = "No description provided"
	}

	var b strings.Builder
	b.WriteString("You are an AI assistant that helps professionals prepare for meetings. ")
	b.WriteString("Analyze this meeting and provide structured context.\n\n")
	b.WriteString("Meeting Details:\n")
	fmt.Fprintf(&b, "- Title: %s\n", input.Title)
	fmt.Fprintf(&b, "- Description: %s\n", description)
	fmt.Fprintf(&b, "- Start Time: %s\n", input.StartTime.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "- Attendees: %s\n", attendees)

	if len(input.AttendeeNotes) > 0 {
		b.WriteString("\nKnown attendee background:\n")
		for _, email := range input.Attendees {
			if note, ok := input.AttendeeNotes[email]; ok && note != "" {
				fmt.Fprintf(&b, "- %s: %s\n", email, note)
			}
		}
	}

	b.WriteString(`
Please provide a comprehensive analysis in the following JSON format:
{
    "meeting_type": "<type: one_on_one, team_sync, client_call, brainstorm, review, planning, or general>",
    "ai_brief": "<2-3 sentence summary of what this meeting is about and key objectives>",
    "key_topics": ["<topic 1>", "<topic 2>", "<topic 3>"],
    "preparation_checklist": ["<action 1>", "<action 2>", "<action 3>"],
    "suggested_agenda": ["<item 1>", "<item 2>", "<item 3>"],
    "estimated_importance": "<high, medium, or low>",
    "recommended_prep_time": "<minutes>",
    "attendee_roles": {"<attendee_email>": "<likely role/context>"},
    "potential_outcomes": ["<outcome 1>", "<outcome 2>"],
    "follow_up_suggestions": ["<suggestion 1>", "<suggestion 2>"]
}

Respond ONLY with valid JSON, no additional text.`)

	if len(input.PreviousMeetings) > 0 {
		b.WriteString("\n\nPrevious similar meetings:\n")
		limit := len(input.PreviousMeetings)
		if limit > 3 {
			limit = 3
		}
		for _, prev := range input.PreviousMeetings[:limit] {
			meetingType := prev.MeetingType
			if meetingType == "" {
				meetingType = "general"
			}
			fmt.Fprintf(&b, "- %s: %s\n", prev.Title, meetingType)
		}
	}

	return b.String()
}

// rawBrief tolerates the key variants and loose number typing the model
// tends to produce.
type rawBrief struct {
	MeetingType          string            `json:"meeting_type"`
	AIBrief              string            `json:"ai_brief"`
	BriefAlt             string            `json:"brief"`
	KeyTopics            []string          `json:"key_topics"`
	TopicsAlt            []string          `json:"topics"`
	PreparationChecklist []string          `json:"preparation_checklist"`
	ChecklistAlt         []string          `json:"checklist"`
	SuggestedAgenda      []string          `json:"suggested_agenda"`
	AgendaAlt            []string          `json:"agenda"`
	EstimatedImportance  string            `json:"estimated_importance"`
	ImportanceAlt        string            `json:"importance"`
	RecommendedPrepTime  flexibleInt       `json:"recommended_prep_time"`
	PrepTimeAlt          flexibleInt       `json:"prep_time"`
	AttendeeRoles        map[string]string `json:"attendee_roles"`
	AttendeesAlt         map[string]string `json:"attendees"`
	PotentialOutcomes    []string          `json:"potential_outcomes"`
	OutcomesAlt          []string          `json:"outcomes"`
	FollowUpSuggestions  []string          `json:"follow_up_suggestions"`
	FollowUpAlt          []string          `json:"follow_up"`
}

// flexibleInt accepts both `15` and `"15"`.
type flexibleInt int

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	if trimmed == "" || trimmed == "null" {
		*f = 0
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(trimmed))
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexibleInt(value)
	return nil
}

// parseBrief extracts the JSON object embedded in the completion text.
// Models frequently wrap the payload in prose, so everything outside the
// outermost braces is ignored.
func parseBrief(completion string) (*Brief, error) {
	start := strings.Index(completion, "{")
	end := strings.LastIndex(completion, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("ai: no JSON object in completion")
	}

	var raw rawBrief
	if err := json.Unmarshal([]byte(completion[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("ai: parse completion: %w", err)
	}

	brief := &Brief{
		MeetingType:            firstNonEmpty(raw.MeetingType, "general"),
		Summary:                firstNonEmpty(raw.AIBrief, raw.BriefAlt),
		KeyTopics:              firstNonNil(raw.KeyTopics, raw.TopicsAlt),
		PreparationChecklist:   firstNonNil(raw.PreparationChecklist, raw.ChecklistAlt),
		SuggestedAgenda:        firstNonNil(raw.SuggestedAgenda, raw.AgendaAlt),
		EstimatedImportance:    firstNonEmpty(raw.EstimatedImportance, raw.ImportanceAlt, "medium"),
		RecommendedPrepMinutes: int(raw.RecommendedPrepTime),
		AttendeeContext:        raw.AttendeeRoles,
		PotentialOutcomes:      firstNonNil(raw.PotentialOutcomes, raw.OutcomesAlt),
		FollowUpSuggestions:    firstNonNil(raw.FollowUpSuggestions, raw.FollowUpAlt),
		ConfidenceScore:        ConfidenceModel,
	}

	if brief.RecommendedPrepMinutes <= 0 {
		brief.RecommendedPrepMinutes = int(raw.PrepTimeAlt)
	}
	if brief.RecommendedPrepMinutes <= 0 {
		brief.RecommendedPrepMinutes = 15
	}
	if brief.AttendeeContext == nil {
		brief.AttendeeContext = raw.AttendeesAlt
	}
	if brief.AttendeeContext == nil {
		brief.AttendeeContext = map[string]string{}
	}

	return brief, nil
}

func fallbackBrief(title, description string) *Brief {
	summary := fmt.Sprintf("Meeting: %s. %s", title, firstNonEmpty(description, "No description provided."))

	return &Brief{
		MeetingType:            "general",
		Summary:                summary,
		KeyTopics:              []string{"Meeting objectives", "Key discussion points", "Action items"},
		PreparationChecklist:   []string{"Review meeting agenda", "Prepare questions", "Gather relevant materials"},
		SuggestedAgenda:        []string{"Introduction and context", "Main discussion topics", "Decision points", "Action items and next steps"},
		EstimatedImportance:    "medium",
		RecommendedPrepMinutes: 10,
		AttendeeContext:        map[string]string{},
		PotentialOutcomes:      []string{"Clear action items", "Next steps defined", "Alignment achieved"},
		FollowUpSuggestions:    []string{"Send meeting notes", "Schedule follow-up if needed", "Track action items"},
		ConfidenceScore:        ConfidenceFallback,
		Fallback:               true,
	}
}

// unparsedBrief covers completions the endpoint delivered but that carried
// no usable JSON (empty body included). Every section takes its parse
// default: empty lists, general type, zero confidence. Only the title
// feeds the summary.
func unparsedBrief(title string) *Brief {
	return &Brief{
		MeetingType:          "general",
		Summary:              fmt.Sprintf("Meeting: %s.", title),
		KeyTopics:            []string{},
		PreparationChecklist: []string{},
		SuggestedAgenda:      []string{},
		EstimatedImportance:  "medium",
		AttendeeContext:      map[string]string{},
		PotentialOutcomes:    []string{},
		FollowUpSuggestions:  []string{},
		ConfidenceScore:      ConfidenceUnparsed,
		Fallback:             true,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return []string{}
}
