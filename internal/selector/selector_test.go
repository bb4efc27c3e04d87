package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowering(t *testing.T) {
	assert.Equal(t, `internal:role=button[name="Submit"i]`, Role("button", "Submit", false))
	assert.Equal(t, `internal:role=heading`, Role("heading", "", false))
	assert.Equal(t, `internal:text="Sign \"in\""s`, Text(`Sign "in"`, true))
	assert.Equal(t, `[data-testid="login"]`, TestID("login"))
	assert.Equal(t, `li >> nth=2`, Nth("li", 2))
}

func TestParseRoundTrip(t *testing.T) {
	parts, err := Parse(Chain(Role("dialog", "Confirm >> now", true), Nth(Text("OK", false), 1)))
	require.NoError(t, err)
	require.Len(t, parts, 3)

	assert.Equal(t, EngineRole, parts[0].Engine)
	assert.Equal(t, "dialog", parts[0].Role)
	assert.Equal(t, "Confirm >> now", parts[0].Value)
	assert.True(t, parts[0].Exact)

	assert.Equal(t, EngineText, parts[1].Engine)
	assert.Equal(t, "OK", parts[1].Value)
	assert.False(t, parts[1].Exact)

	assert.Equal(t, EngineNth, parts[2].Engine)
	assert.Equal(t, 1, parts[2].Index)
}

func TestParseCSSShapes(t *testing.T) {
	parts, err := Parse(`#form [data-testid="email"]`)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, EngineCSS, parts[0].Engine)

	parts, err = Parse(TestID("email"))
	require.NoError(t, err)
	assert.Equal(t, EngineTestID, parts[0].Engine)
	assert.Equal(t, "email", parts[0].Value)

	parts, err = Parse(Placeholder("Search"))
	require.NoError(t, err)
	assert.Equal(t, EnginePlaceholder, parts[0].Engine)
}

func TestParseErrors(t *testing.T) {
	for _, sel := range []string{"", "  ", "nth=x", `internal:text="open`} {
		_, err := Parse(sel)
		assert.Error(t, err, sel)
	}
}
