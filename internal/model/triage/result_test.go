package triage

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("")
	require.NoError(t, err)
	assert.Equal(t, VersionConversational, v)

	v, err = ParseVersion(" Triage.V2 ")
	require.NoError(t, err)
	assert.Equal(t, VersionAssessment, v)

	_, err = ParseVersion("v4")
	assert.True(t, errors.Is(err, ErrUnknownVersion))
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryMildDistress, ParseCategory("Mild Distress"))
	assert.Equal(t, CategoryAdviceRequest, ParseCategory("advice-request"))
	assert.Equal(t, CategoryAmbiguous, ParseCategory("confused"))
}

func TestDecodePayloadRequiresNarrative(t *testing.T) {
	_, err := DecodePayload(VersionConversational, []byte(`{"reply":"hi"}`))
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = DecodePayload(VersionAssessment, []byte(`{"triageResult":""}`))
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = DecodePayload(VersionCoping, []byte(`not json`))
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	p, err := DecodePayload(VersionCoping, []byte(`{"initialResponse":"I hear you.","copingStrategies":"* breathe"}`))
	require.NoError(t, err)
	assert.Equal(t, Coping{InitialResponse: "I hear you.", CopingStrategies: "* breathe"}, p)
}

func TestTextComposesVariantFields(t *testing.T) {
	coping := Result{
		Version: VersionCoping,
		Payload: Coping{InitialResponse: "That sounds hard.", CopingStrategies: "* Take a short walk."},
	}
	assert.Equal(t, "That sounds hard.\n\n* Take a short walk.", coping.Text())

	assessment := Result{
		Version: VersionAssessment,
		Payload: Assessment{TriageResult: "You seem stressed.", SuggestedResources: []string{"Counseling center", " "}},
	}
	assert.Equal(t, "You seem stressed.\n\nSuggested resources:\n- Counseling center", assessment.Text())
}

func TestTextAppendsHelpChannelOnce(t *testing.T) {
	help := "Reach out anonymously through CampusMind support."
	r := Result{
		Version:     VersionConversational,
		Escalate:    true,
		HelpChannel: help,
		Payload:     Conversational{Response: "I'm really glad you told me."},
	}
	assert.Equal(t, 1, strings.Count(r.Text(), help))

	r.Payload = Conversational{Response: "Please talk to someone. " + help}
	assert.Equal(t, 1, strings.Count(r.Text(), help))
}

func TestFallbackTextIsFixed(t *testing.T) {
	r := Result{Version: VersionCoping, Fallback: true, Payload: Coping{InitialResponse: "ignored", CopingStrategies: "ignored"}}
	assert.Equal(t, FallbackText, r.Narrative())
	assert.Equal(t, FallbackText, r.Text())
	assert.Empty(t, r.CopingStrategies())
}

func TestResultJSONRoundTripKeepsVariant(t *testing.T) {
	in := Result{
		Version:  VersionAssessment,
		Category: CategoryCrisis,
		Escalate: true,
		Payload:  Assessment{TriageResult: "Please reach out.", SuggestedResources: []string{"Hotline"}, EscalateToProfessional: true},
	}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version":"triage.v2"`)

	var out Result
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.Payload, out.Payload)
	assert.Equal(t, in.Category, out.Category)
	assert.True(t, out.Escalate)
}
