package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/leads"
	"github.com/estatedesk/backend/internal/llm"
	"github.com/estatedesk/backend/internal/metrics"
	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/pkg/logger"
)

// ErrSessionGated is returned when a visitor sends free text into a
// session whose input is blocked pending the contact form.
var ErrSessionGated = errors.New("session is gated: contact form required")

var ErrSessionNotFound = errors.New("chat session not found")

// ConnectionUnstableReply is appended in place of a model answer when the
// language-model call fails; the failed turn does not count against the
// visitor.
const ConnectionUnstableReply = "I'm sorry, the connection is unstable right now. Please try again in a moment."

const gatingDirective = `IMPORTANT OVERRIDE: The visitor has reached the inquiry limit for this listing. From this reply onward, do not disclose any further specifics about the property (no price, no address, no exact figures, no access or showing details). Politely explain that an agent can share the full details, and ask for the visitor's name and phone number so the agent can follow up.`

// Generator is the slice of the LLM client the concierge needs.
type Generator interface {
	GenerateContent(ctx context.Context, system string, turns []llm.Turn) (string, error)
}

type PropertyStore interface {
	GetProperty(userID, propertyID string) (*models.PropertyRecord, error)
}

type SettingsStore interface {
	GetSettings(userID string) (*models.AgentSettings, error)
}

// LeadSink receives captured leads; in production it is the lead service.
type LeadSink interface {
	Capture(ctx context.Context, req leads.CaptureRequest) (*models.Lead, error)
}

type Service struct {
	sessions   *Manager
	generator  Generator
	properties PropertyStore
	settings   SettingsStore
	leadSink   LeadSink
}

func NewService(sessions *Manager, generator Generator, properties PropertyStore, settings SettingsStore, leadSink LeadSink) *Service {
	return &Service{
		sessions:   sessions,
		generator:  generator,
		properties: properties,
		settings:   settings,
		leadSink:   leadSink,
	}
}

func (s *Service) StartSession(userID, propertyID string) *Session {
	return s.sessions.Start(userID, propertyID)
}

func (s *Service) Session(sessionID string) (*Session, bool) {
	return s.sessions.Get(sessionID)
}

func (s *Service) EndSession(sessionID string) {
	s.sessions.End(sessionID)
}

// Response is the outcome of one visitor turn.
type Response struct {
	Reply         string       `json:"reply"`
	State         SessionState `json:"state"`
	SpecificCount int          `json:"specific_count"`
	Gated         bool         `json:"gated"`
	Failed        bool         `json:"failed"`
	LeadCaptured  bool         `json:"lead_captured"`
	Transcript    []llm.Turn   `json:"-"`
}

// SendMessage runs one turn of the concierge conversation, evaluating the
// gate before the message is sent upstream.
func (s *Service) SendMessage(ctx context.Context, sessionID, message string) (*Response, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.State == StateGated {
		return nil, ErrSessionGated
	}

	prop, err := s.properties.GetProperty(sess.UserID, sess.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load property for session: %w", err)
	}
	settings := s.loadSettings(sess.UserID)

	// Side-channel capture fires on any recognizable phone number,
	// regardless of gate state or what happens to this turn.
	leadCaptured := false
	if phone := FindPhoneNumber(message, ""); phone != "" {
		if err := s.captureOpportunistic(ctx, sess, prop, phone); err != nil {
			logger.Warn("Opportunistic lead capture failed", zap.Error(err))
		} else {
			leadCaptured = true
		}
	}

	specific := IsSpecificQuestion(message)
	gateNow := s.shouldGate(sess, prop, settings, specific)

	system := s.buildSystemPrompt(settings, prop, sess.State == StateGated || gateNow)
	if gateNow {
		system = gatingDirective + "\n\n" + system
	}

	turns := append(append([]llm.Turn{}, sess.Turns...), llm.Turn{Role: "user", Text: message})

	reply, err := s.generator.GenerateContent(ctx, system, turns)
	if err != nil {
		// A failed turn leaves the gate state and the counter untouched.
		logger.Error("Chat turn failed", zap.String("session_id", sess.ID), zap.Error(err))
		metrics.ChatTurnsTotal.WithLabelValues("failed").Inc()

		sess.Turns = append(sess.Turns,
			llm.Turn{Role: "user", Text: message},
			llm.Turn{Role: "model", Text: ConnectionUnstableReply},
		)
		return &Response{
			Reply:         ConnectionUnstableReply,
			State:         sess.State,
			SpecificCount: sess.SpecificCount,
			Failed:        true,
			LeadCaptured:  leadCaptured,
			Transcript:    sess.Turns,
		}, nil
	}

	if gateNow {
		reply = scrubGatedValues(reply, prop)
	}

	sess.Turns = append(sess.Turns,
		llm.Turn{Role: "user", Text: message},
		llm.Turn{Role: "model", Text: reply},
	)
	if specific {
		sess.SpecificCount++
	}
	if gateNow {
		sess.State = StateGated
		metrics.GateTransitionsTotal.Inc()
		logger.Info("Session gated",
			zap.String("session_id", sess.ID),
			zap.String("property_id", sess.PropertyID),
			zap.Int("specific_count", sess.SpecificCount),
		)
	}

	metrics.ChatTurnsTotal.WithLabelValues("ok").Inc()

	return &Response{
		Reply:         reply,
		State:         sess.State,
		SpecificCount: sess.SpecificCount,
		Gated:         gateNow,
		LeadCaptured:  leadCaptured,
		Transcript:    sess.Turns,
	}, nil
}

// shouldGate evaluates the gate condition before the message is sent:
// either the visitor already burned both free specific questions and is
// asking another, or high-security mode plus an estate_guard listing
// gates on the very first specific question.
func (s *Service) shouldGate(sess *Session, prop *models.PropertyRecord, settings *models.AgentSettings, specific bool) bool {
	if !specific {
		return false
	}
	if sess.SpecificCount >= 2 {
		return true
	}
	return settings.HighSecurityMode && prop.Tier == models.TierEstateGuard
}

// ContactForm is the capture form shown when a session gates.
type ContactForm struct {
	Name           string `json:"name" validate:"required"`
	Phone          string `json:"phone" validate:"required"`
	Email          string `json:"email,omitempty"`
	ContactChannel string `json:"contact_channel,omitempty"`
	TimeWindow     string `json:"time_window,omitempty"`
}

// SubmitContactForm captures the lead and reopens the session: the gate
// returns to OPEN and the specific-question counter resets to zero, so a
// qualified visitor gets a fresh allowance.
func (s *Service) SubmitContactForm(ctx context.Context, sessionID string, form ContactForm) (*models.Lead, error) {
	if strings.TrimSpace(form.Name) == "" || strings.TrimSpace(form.Phone) == "" {
		return nil, fmt.Errorf("name and phone are required")
	}

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	prop, err := s.properties.GetProperty(sess.UserID, sess.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load property for session: %w", err)
	}

	conversation := make([]models.ChatTurn, 0, len(sess.Turns))
	for _, t := range sess.Turns {
		conversation = append(conversation, models.ChatTurn{Role: t.Role, Text: t.Text})
	}

	notes := []string{}
	if form.ContactChannel != "" {
		notes = append(notes, "Preferred channel: "+form.ContactChannel)
	}
	if form.TimeWindow != "" {
		notes = append(notes, "Preferred time: "+form.TimeWindow)
	}

	lead, err := s.leadSink.Capture(ctx, leads.CaptureRequest{
		UserID:          sess.UserID,
		Name:            form.Name,
		Phone:           form.Phone,
		Email:           form.Email,
		PropertyID:      prop.PropertyID,
		PropertyAddress: prop.Listing.Address,
		Notes:           notes,
		Conversation:    conversation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture lead: %w", err)
	}

	sess.State = StateOpen
	sess.SpecificCount = 0
	sess.Turns = append(sess.Turns, llm.Turn{
		Role: "model",
		Text: fmt.Sprintf("Thanks %s! An agent will reach out shortly. Feel free to keep asking questions in the meantime.", form.Name),
	})

	metrics.LeadsCapturedTotal.WithLabelValues("chat_form").Inc()
	logger.Info("Lead captured from contact form",
		zap.String("session_id", sess.ID),
		zap.String("lead_id", lead.ID),
	)

	return lead, nil
}

func (s *Service) captureOpportunistic(ctx context.Context, sess *Session, prop *models.PropertyRecord, phone string) error {
	conversation := make([]models.ChatTurn, 0, len(sess.Turns))
	for _, t := range sess.Turns {
		conversation = append(conversation, models.ChatTurn{Role: t.Role, Text: t.Text})
	}

	_, err := s.leadSink.Capture(ctx, leads.CaptureRequest{
		UserID:          sess.UserID,
		Name:            "Chat Visitor",
		Phone:           phone,
		PropertyID:      prop.PropertyID,
		PropertyAddress: prop.Listing.Address,
		Notes:           []string{"Captured automatically: phone number mentioned in chat"},
		Conversation:    conversation,
	})
	if err != nil {
		return err
	}

	metrics.LeadsCapturedTotal.WithLabelValues("chat_phone").Inc()
	return nil
}

func (s *Service) loadSettings(userID string) *models.AgentSettings {
	settings, err := s.settings.GetSettings(userID)
	if err != nil {
		return models.DefaultSettings(userID)
	}
	return settings
}

// buildSystemPrompt assembles the concierge instruction. The property
// context honors the listing's visibility protocol: gated fields are
// omitted entirely once the session is (or is about to be) gated.
func (s *Service) buildSystemPrompt(settings *models.AgentSettings, prop *models.PropertyRecord, gated bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the AI concierge for %s, a real-estate agency. Answer prospective buyers' questions about the listing below. Be warm, concise, and accurate. Never invent details.\n", settings.AgencyName)
	if settings.Language != "" && settings.Language != "en" {
		fmt.Fprintf(&b, "Respond in language code %q.\n", settings.Language)
	}
	if settings.KnowledgeBase != "" {
		b.WriteString("\nAgency knowledge base:\n")
		b.WriteString(settings.KnowledgeBase)
		b.WriteString("\n")
	}

	b.WriteString("\nListing context:\n")
	for _, field := range disclosableFields(prop, gated) {
		if value := fieldValue(prop, field); value != "" {
			fmt.Fprintf(&b, "- %s: %s\n", field, value)
		}
	}
	if prop.AITraining != "" {
		b.WriteString("\nNeighborhood facts:\n")
		b.WriteString(prop.AITraining)
		b.WriteString("\n")
	}

	b.WriteString("\nNever reveal agent-only information such as seller motivation or showing instructions.")
	return b.String()
}

// disclosableFields returns the field names the model may see: the public
// set always, the gated set only while the session is fully open.
func disclosableFields(prop *models.PropertyRecord, gated bool) []string {
	fields := append([]string{}, prop.Visibility.PublicFields...)
	if !gated {
		fields = append(fields, prop.Visibility.GatedFields...)
	}
	return fields
}

func fieldValue(prop *models.PropertyRecord, field string) string {
	switch field {
	case "category":
		return prop.Category
	case "transaction_type":
		return prop.TransactionType
	case "narrative":
		return prop.Listing.Narrative
	case "address":
		return prop.Listing.Address
	case "price":
		if prop.Listing.Price <= 0 {
			return ""
		}
		return fmt.Sprintf("$%s", formatAmount(prop.Listing.Price))
	case "bedrooms":
		if prop.Listing.KeyStats.Bedrooms == 0 {
			return ""
		}
		return strconv.Itoa(prop.Listing.KeyStats.Bedrooms)
	case "bathrooms":
		if prop.Listing.KeyStats.Bathrooms == 0 {
			return ""
		}
		return strconv.FormatFloat(prop.Listing.KeyStats.Bathrooms, 'f', -1, 64)
	case "sq_ft":
		if prop.Listing.KeyStats.SqFt == 0 {
			return ""
		}
		return strconv.Itoa(prop.Listing.KeyStats.SqFt)
	case "lot_size":
		if prop.Listing.KeyStats.LotSize == 0 {
			return ""
		}
		return strconv.FormatFloat(prop.Listing.KeyStats.LotSize, 'f', -1, 64)
	case "private_appraisal":
		if prop.DeepData == nil {
			return ""
		}
		return prop.DeepData.PrivateAppraisal
	case "showing_access":
		if prop.DeepData == nil {
			return ""
		}
		return prop.DeepData.MechanicalSpecs
	default:
		return ""
	}
}

// scrubGatedValues removes concrete gated field values from a model
// reply, as a backstop for the prompt-level directive.
func scrubGatedValues(reply string, prop *models.PropertyRecord) string {
	const placeholder = "[shared after you leave your contact details]"

	for _, field := range prop.Visibility.GatedFields {
		switch field {
		case "address":
			if prop.Listing.Address != "" {
				reply = strings.ReplaceAll(reply, prop.Listing.Address, placeholder)
			}
		case "price":
			if prop.Listing.Price > 0 {
				amount := formatAmount(prop.Listing.Price)
				reply = strings.ReplaceAll(reply, "$"+amount, placeholder)
				reply = strings.ReplaceAll(reply, amount, placeholder)
			}
		case "sq_ft":
			if prop.Listing.KeyStats.SqFt > 0 {
				reply = strings.ReplaceAll(reply, strconv.Itoa(prop.Listing.KeyStats.SqFt), placeholder)
			}
		}
	}
	return reply
}

// formatAmount renders 1234567.0 as "1,234,567".
func formatAmount(v float64) string {
	whole := strconv.FormatFloat(v, 'f', 0, 64)
	if len(whole) <= 3 {
		return whole
	}

	var b strings.Builder
	lead := len(whole) % 3
	if lead > 0 {
		b.WriteString(whole[:lead])
	}
	for i := lead; i < len(whole); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(whole[i : i+3])
	}
	return b.String()
}
