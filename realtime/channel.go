package realtime

import "strings"

// ChannelPrefix namespaces every tenant channel.
const ChannelPrefix = "scheduling_"

// ChannelName maps a tenant identifier to its channel: lowercased, with every
// character outside [a-z0-9_] replaced by an underscore.
func ChannelName(firmaID string) string {
	lower := strings.ToLower(firmaID)
	var b strings.Builder
	b.Grow(len(ChannelPrefix) + len(lower))
	b.WriteString(ChannelPrefix)
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
