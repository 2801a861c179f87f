package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCadenceEscalatesWithSeverity(t *testing.T) {
	cases := []struct {
		severity float64
		want     string
	}{
		{0.9, "daily"},
		{0.6, "weekly"},
		{0.35, "biweekly"},
		{0.1, "monthly"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, cadenceFor(tc.severity), "severity %.2f", tc.severity)
	}
}

func TestAlertChannelsEscalateWithSeverity(t *testing.T) {
	assert.Equal(t, []string{"pager", "chat", "email"}, channelsFor(0.9))
	assert.Equal(t, []string{"chat", "email"}, channelsFor(0.6))
	assert.Equal(t, []string{"email"}, channelsFor(0.2))
}
