package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/backend/internal/leads"
	"github.com/estatedesk/backend/internal/llm"
	"github.com/estatedesk/backend/internal/storage/models"
)

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, system string, turns []llm.Turn) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakePropertyStore struct {
	prop *models.PropertyRecord
}

func (f *fakePropertyStore) GetProperty(userID, propertyID string) (*models.PropertyRecord, error) {
	return f.prop, nil
}

type fakeSettingsStore struct {
	settings *models.AgentSettings
	err      error
}

func (f *fakeSettingsStore) GetSettings(userID string) (*models.AgentSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.settings, nil
}

type fakeLeadSink struct {
	captured []leads.CaptureRequest
	err      error
}

func (f *fakeLeadSink) Capture(ctx context.Context, req leads.CaptureRequest) (*models.Lead, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.captured = append(f.captured, req)
	return &models.Lead{ID: "lead-1", Name: req.Name, Phone: req.Phone}, nil
}

func testProperty(tier string) *models.PropertyRecord {
	return &models.PropertyRecord{
		PropertyID:      "prop-1",
		UserID:          "user-1",
		Category:        models.CategoryResidential,
		TransactionType: models.TransactionSale,
		Status:          models.StatusActive,
		Tier:            tier,
		Visibility:      models.DefaultVisibility(),
		Listing: models.ListingDetails{
			Address:   "12 Oak Lane",
			Price:     750000,
			Narrative: "A lovely home.",
			KeyStats:  models.KeyStats{Bedrooms: 3, Bathrooms: 2, SqFt: 1800},
		},
	}
}

func newTestService(gen *fakeGenerator, settings *models.AgentSettings, tier string) (*Service, *fakeLeadSink) {
	sink := &fakeLeadSink{}
	svc := NewService(
		NewManager(),
		gen,
		&fakePropertyStore{prop: testProperty(tier)},
		&fakeSettingsStore{settings: settings},
		sink,
	)
	return svc, sink
}

func defaultTestSettings() *models.AgentSettings {
	s := models.DefaultSettings("user-1")
	return s
}

func TestSendMessageGatesOnThirdSpecificQuestion(t *testing.T) {
	gen := &fakeGenerator{reply: "Sure, happy to help."}
	svc, _ := newTestService(gen, defaultTestSettings(), models.TierStandard)
	sess := svc.StartSession("user-1", "prop-1")

	resp, err := svc.SendMessage(context.Background(), sess.ID, "What is the price?")
	require.NoError(t, err)
	assert.False(t, resp.Gated)
	assert.Equal(t, 1, resp.SpecificCount)

	resp, err = svc.SendMessage(context.Background(), sess.ID, "How many bedrooms?")
	require.NoError(t, err)
	assert.False(t, resp.Gated)
	assert.Equal(t, 2, resp.SpecificCount)

	// Third specific question: answered, but the session gates.
	resp, err = svc.SendMessage(context.Background(), sess.ID, "What is the address?")
	require.NoError(t, err)
	assert.True(t, resp.Gated)
	assert.Equal(t, StateGated, resp.State)
	assert.NotEmpty(t, resp.Reply)

	_, err = svc.SendMessage(context.Background(), sess.ID, "Hello?")
	assert.ErrorIs(t, err, ErrSessionGated)
}

func TestSendMessageNonSpecificNeverGates(t *testing.T) {
	gen := &fakeGenerator{reply: "Hello there!"}
	svc, _ := newTestService(gen, defaultTestSettings(), models.TierStandard)
	sess := svc.StartSession("user-1", "prop-1")

	for i := 0; i < 10; i++ {
		resp, err := svc.SendMessage(context.Background(), sess.ID, "Hi, tell me more!")
		require.NoError(t, err)
		assert.False(t, resp.Gated)
		assert.Equal(t, 0, resp.SpecificCount)
		assert.Equal(t, StateOpen, resp.State)
	}
}

func TestSendMessageHighSecurityEstateGuardGatesImmediately(t *testing.T) {
	settings := defaultTestSettings()
	settings.HighSecurityMode = true

	gen := &fakeGenerator{reply: "An agent can share that."}
	svc, _ := newTestService(gen, settings, models.TierEstateGuard)
	sess := svc.StartSession("user-1", "prop-1")

	resp, err := svc.SendMessage(context.Background(), sess.ID, "What is the price?")
	require.NoError(t, err)
	assert.True(t, resp.Gated)
	assert.Equal(t, StateGated, resp.State)
}

func TestSendMessageHighSecurityStandardTierUsesNormalThreshold(t *testing.T) {
	settings := defaultTestSettings()
	settings.HighSecurityMode = true

	gen := &fakeGenerator{reply: "Of course."}
	svc, _ := newTestService(gen, settings, models.TierStandard)
	sess := svc.StartSession("user-1", "prop-1")

	resp, err := svc.SendMessage(context.Background(), sess.ID, "What is the price?")
	require.NoError(t, err)
	assert.False(t, resp.Gated)
}

func TestSendMessageFailedTurnLeavesStateUntouched(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	svc, _ := newTestService(gen, defaultTestSettings(), models.TierStandard)
	sess := svc.StartSession("user-1", "prop-1")

	_, err := svc.SendMessage(context.Background(), sess.ID, "What is the price?")
	require.NoError(t, err)

	gen.err = errors.New("upstream timeout")
	resp, err := svc.SendMessage(context.Background(), sess.ID, "And the address?")
	require.NoError(t, err)
	assert.True(t, resp.Failed)
	assert.Equal(t, ConnectionUnstableReply, resp.Reply)
	assert.Equal(t, 1, resp.SpecificCount, "failed turn must not advance the counter")
	assert.Equal(t, StateOpen, resp.State)

	// The failed exchange is still visible in the transcript.
	require.Len(t, sess.Turns, 4)
	assert.Equal(t, ConnectionUnstableReply, sess.Turns[3].Text)

	// Recovery: the same question counts normally once the model is back.
	gen.err = nil
	resp, err = svc.SendMessage(context.Background(), sess.ID, "And the address?")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.SpecificCount)
}

func TestSendMessagePhoneSideChannelCapture(t *testing.T) {
	gen := &fakeGenerator{reply: "Got it, thanks!"}
	svc, sink := newTestService(gen, defaultTestSettings(), models.TierStandard)
	sess := svc.StartSession("user-1", "prop-1")

	resp, err := svc.SendMessage(context.Background(), sess.ID, "Call me at (415) 555-2671 anytime")
	require.NoError(t, err)
	assert.True(t, resp.LeadCaptured)

	require.Len(t, sink.captured, 1)
	assert.Equal(t, "+14155552671", sink.captured[0].Phone)
	assert.Equal(t, "Chat Visitor", sink.captured[0].Name)
	assert.Equal(t, "prop-1", sink.captured[0].PropertyID)
}

func TestSendMessageUnknownSession(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	svc, _ := newTestService(gen, defaultTestSettings(), models.TierStandard)

	_, err := svc.SendMessage(context.Background(), "nope", "hello")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmitContactFormReopensSession(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	svc, sink := newTestService(gen, defaultTestSettings(), models.TierStandard)
	sess := svc.StartSession("user-1", "prop-1")

	for _, msg := range []string{"price?", "beds?", "address?"} {
		_, err := svc.SendMessage(context.Background(), sess.ID, msg)
		require.NoError(t, err)
	}
	require.Equal(t, StateGated, sess.State)

	lead, err := svc.SubmitContactForm(context.Background(), sess.ID, ContactForm{
		Name:           "Dana Reyes",
		Phone:          "+14155552671",
		ContactChannel: "whatsapp",
		TimeWindow:     "evenings",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", lead.Name)

	require.Len(t, sink.captured, 1)
	assert.NotEmpty(t, sink.captured[0].Conversation, "transcript should ride along with the lead")
	assert.Contains(t, sink.captured[0].Notes, "Preferred channel: whatsapp")

	// Fresh allowance after qualifying.
	assert.Equal(t, StateOpen, sess.State)
	assert.Equal(t, 0, sess.SpecificCount)

	resp, err := svc.SendMessage(context.Background(), sess.ID, "So what is the price?")
	require.NoError(t, err)
	assert.False(t, resp.Gated)
	assert.Equal(t, 1, resp.SpecificCount)
}

func TestSubmitContactFormValidation(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	svc, _ := newTestService(gen, defaultTestSettings(), models.TierStandard)
	sess := svc.StartSession("user-1", "prop-1")

	_, err := svc.SubmitContactForm(context.Background(), sess.ID, ContactForm{Name: "", Phone: "123"})
	assert.Error(t, err)

	_, err = svc.SubmitContactForm(context.Background(), sess.ID, ContactForm{Name: "A", Phone: "  "})
	assert.Error(t, err)
}

func TestScrubGatedValues(t *testing.T) {
	prop := testProperty(models.TierStandard)
	reply := "It is listed at $750,000 and sits at 12 Oak Lane with 1800 sqft."

	scrubbed := scrubGatedValues(reply, prop)
	assert.NotContains(t, scrubbed, "750,000")
	assert.NotContains(t, scrubbed, "12 Oak Lane")
	assert.NotContains(t, scrubbed, "1800")
}

func TestBuildSystemPromptHidesGatedFields(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	svc, _ := newTestService(gen, defaultTestSettings(), models.TierStandard)
	prop := testProperty(models.TierStandard)

	open := svc.buildSystemPrompt(defaultTestSettings(), prop, false)
	assert.Contains(t, open, "12 Oak Lane")
	assert.Contains(t, open, "750,000")

	gated := svc.buildSystemPrompt(defaultTestSettings(), prop, true)
	assert.NotContains(t, gated, "12 Oak Lane")
	assert.NotContains(t, gated, "750,000")
	assert.Contains(t, gated, "A lovely home.", "public narrative stays visible")
}
