package esign

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jane@example.com", "jane@example.com"},
		{"Jane@Example.com", "jane@example.com"},
		{"  JANE@EXAMPLE.COM\t", "jane@example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			once := NormalizeEmail(tt.in)
			assert.Equal(t, tt.want, once)
			assert.Equal(t, once, NormalizeEmail(once))
		})
	}
}

func TestCorrelationID(t *testing.T) {
	id := CorrelationID("Jane@Example.com")

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())

	assert.Equal(t, id, CorrelationID("jane@example.com"))
	assert.Equal(t, id, CorrelationID(" JANE@EXAMPLE.COM "))
	assert.NotEqual(t, id, CorrelationID("john@example.com"))
}

func TestBuildTabs(t *testing.T) {
	tabs := BuildTabs(DefaultAnchors)

	require.Len(t, tabs.SignHereTabs, 1)
	sign := tabs.SignHereTabs[0]
	assert.Equal(t, "Client Signature:", sign.AnchorString)
	assert.Equal(t, "pixels", sign.AnchorUnits)
	assert.Equal(t, "150", sign.AnchorXOffset)
	assert.Equal(t, "-10", sign.AnchorYOffset)
	assert.Equal(t, "false", sign.AnchorIgnoreIfNotPresent)

	require.Len(t, tabs.DateSignedTabs, 1)
	date := tabs.DateSignedTabs[0]
	assert.Equal(t, "Date:", date.AnchorString)
	assert.Equal(t, "true", date.AnchorIgnoreIfNotPresent)

	assert.Empty(t, tabs.FullNameTabs)
}
