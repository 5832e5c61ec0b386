package clubsite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLocale(t *testing.T) {
	assert.Equal(t, LocaleRU, normalizeLocale("ru", LocaleEN))
	assert.Equal(t, LocaleRU, normalizeLocale("ru-RU", LocaleEN))
	assert.Equal(t, LocaleEN, normalizeLocale(" EN_us ", LocaleRU))
	assert.Equal(t, LocaleRU, normalizeLocale("de", LocaleRU))
	assert.Equal(t, LocaleEN, normalizeLocale("", LocaleEN))
}

func TestFormatEventDate(t *testing.T) {
	assert.Equal(t, "Jul 14, 2024 18:30", formatEventDate("2024-07-14T18:30:00Z", LocaleEN))
	assert.Equal(t, "14.07.2024 18:30", formatEventDate("2024-07-14T18:30", LocaleRU))
	assert.Equal(t, "Jul 14, 2024", formatEventDate("2024-07-14", LocaleEN))
	assert.Equal(t, "14.07.2024", formatEventDate("2024-07-14", LocaleRU))
	assert.Equal(t, "next Friday", formatEventDate("next Friday", LocaleEN))
}

func TestEventMessage(t *testing.T) {
	msg := eventMessage(LocaleEN, EventPayload{
		EventID:     "ev-1",
		Title:       "Cup <final>",
		EventDate:   "2024-07-14",
		Location:    "Field & Court",
		Description: "Bring water",
	}, "https://club.example/events/ev-1/")

	assert.Equal(t, "New event: Cup <final>", msg.Title)
	assert.Contains(t, msg.HTML, "<b>Cup &lt;final&gt;</b>")
	assert.Contains(t, msg.HTML, "📍 Field &amp; Court")
	assert.Contains(t, msg.HTML, "Bring water")
	assert.Contains(t, msg.HTML, `<a href="https://club.example/events/ev-1/">Details</a>`)
	assert.Equal(t, "Cup <final> · Jul 14, 2024 · Field & Court", msg.Plain)
}

func TestEventMessageWithoutOptionalFields(t *testing.T) {
	msg := eventMessage(LocaleRU, EventPayload{EventID: "1", Title: "Турнир", EventDate: "2024-07-14"}, "")
	assert.Equal(t, "Новое мероприятие: Турнир", msg.Title)
	assert.NotContains(t, msg.HTML, "📍")
	assert.NotContains(t, msg.HTML, "<a href")
	assert.Equal(t, "Турнир · 14.07.2024", msg.Plain)
}

func TestMatchAndRoleMessages(t *testing.T) {
	match := matchMessage(LocaleRU, MatchPayload{UserID: "u1", MatchedUserName: "Аня <3"}, "")
	assert.Equal(t, "Новый мэтч!", match.Title)
	assert.Contains(t, match.HTML, "<b>Аня &lt;3</b>")
	assert.Equal(t, "У вас взаимная симпатия с Аня <3.", match.Plain)

	role := roleMessage(LocaleEN, RolePayload{UserID: "u1", Role: "captain"}, "https://club.example/profile/")
	assert.Equal(t, "New role", role.Title)
	assert.Contains(t, role.HTML, "<b>captain</b>")
	assert.Contains(t, role.HTML, `<a href="https://club.example/profile/">Open</a>`)
	assert.Equal(t, "You have been granted the role captain.", role.Plain)
}

func TestUnknownLocaleUsesEnglish(t *testing.T) {
	assert.Equal(t, "New role", roleMessage("de", RolePayload{Role: "x"}, "").Title)
}
