package realtime

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelName(t *testing.T) {
	tests := []struct {
		firmaID string
		want    string
	}{
		{"AbC123", "scheduling_abc123"},
		{"firma_1", "scheduling_firma_1"},
		{"firma-1", "scheduling_firma_1"},
		{"a.b c", "scheduling_a_b_c"},
		{"", "scheduling_"},
		{"Müller", "scheduling_m_ller"},
		{"x'; DROP TABLE users;--", "scheduling_x___drop_table_users___"},
	}

	for _, tt := range tests {
		t.Run(tt.firmaID, func(t *testing.T) {
			assert.Equal(t, tt.want, ChannelName(tt.firmaID))
		})
	}
}

func TestChannelNameIsTotalAndSafe(t *testing.T) {
	safe := regexp.MustCompile(`^scheduling_[a-z0-9_]*$`)
	inputs := []string{"ÀÉÎ", "tab\there", "emoji😀", "UPPER", "a/b\\c", "\x00\x01"}
	for _, in := range inputs {
		name := ChannelName(in)
		assert.Regexp(t, safe, name)
		assert.Equal(t, name, ChannelName(in), "deterministic")
	}
}
