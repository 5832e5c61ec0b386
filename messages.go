package clubsite

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Supported message locales.
const (
	LocaleEN = "en"
	LocaleRU = "ru"
)

// normalizeLocale reduces a language tag such as "ru-RU" to a supported
// locale, returning fallback for anything else.
func normalizeLocale(lang, fallback string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	switch lang {
	case LocaleEN, LocaleRU:
		return lang
	}
	return fallback
}

// outgoing is one notification rendered for both channels: HTML for the bot
// and plain text for the in-app notification row.
type outgoing struct {
	Title string
	HTML  string
	Plain string
}

type phrasebook struct {
	eventTitle   string
	eventHeading string
	eventDetails string
	matchTitle   string
	matchHTML    string
	matchPlain   string
	roleTitle    string
	roleHTML     string
	rolePlain    string
	openApp      string
	dateLayout   string
}

var phrasebooks = map[string]phrasebook{
	LocaleEN: {
		eventTitle:   "New event: %s",
		eventHeading: "📅 <b>New event</b>",
		eventDetails: "Details",
		matchTitle:   "New match!",
		matchHTML:    "🎉 <b>New match!</b>\n\nYou matched with <b>%s</b>. Open the app to start a conversation.",
		matchPlain:   "You matched with %s.",
		roleTitle:    "New role",
		roleHTML:     "⭐ <b>New role granted</b>\n\nYou have been granted the role <b>%s</b>.",
		rolePlain:    "You have been granted the role %s.",
		openApp:      "Open",
		dateLayout:   "Jan 2, 2006 15:04",
	},
	LocaleRU: {
		eventTitle:   "Новое мероприятие: %s",
		eventHeading: "📅 <b>Новое мероприятие</b>",
		eventDetails: "Подробнее",
		matchTitle:   "Новый мэтч!",
		matchHTML:    "🎉 <b>Новый мэтч!</b>\n\nУ вас взаимная симпатия с <b>%s</b>. Откройте приложение, чтобы начать общение.",
		matchPlain:   "У вас взаимная симпатия с %s.",
		roleTitle:    "Новая роль",
		roleHTML:     "⭐ <b>Вам выдана новая роль</b>\n\nВам присвоена роль <b>%s</b>.",
		rolePlain:    "Вам присвоена роль %s.",
		openApp:      "Открыть",
		dateLayout:   "02.01.2006 15:04",
	},
}

func book(locale string) phrasebook {
	if pb, ok := phrasebooks[locale]; ok {
		return pb
	}
	return phrasebooks[LocaleEN]
}

// formatEventDate renders an RFC 3339 or YYYY-MM-DD date for locale, falling
// back to the raw value.
func formatEventDate(raw, locale string) string {
	pb := book(locale)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(pb.dateLayout)
	}
	if t, err := time.Parse("2006-01-02T15:04", raw); err == nil {
		return t.Format(pb.dateLayout)
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		layout := strings.TrimSuffix(pb.dateLayout, " 15:04")
		return t.Format(layout)
	}
	return raw
}

func linkLine(label, href string) string {
	if href == "" {
		return ""
	}
	return fmt.Sprintf("\n\n<a href=\"%s\">%s</a>", html.EscapeString(href), html.EscapeString(label))
}

func eventMessage(locale string, ev EventPayload, link string) outgoing {
	pb := book(locale)
	when := formatEventDate(ev.EventDate, locale)

	var b strings.Builder
	b.WriteString(pb.eventHeading)
	b.WriteString("\n\n<b>")
	b.WriteString(html.EscapeString(ev.Title))
	b.WriteString("</b>\n🗓 ")
	b.WriteString(html.EscapeString(when))
	if ev.Location != "" {
		b.WriteString("\n📍 ")
		b.WriteString(html.EscapeString(ev.Location))
	}
	if ev.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(ev.Description))
	}
	b.WriteString(linkLine(pb.eventDetails, link))

	plain := ev.Title + " · " + when
	if ev.Location != "" {
		plain += " · " + ev.Location
	}
	return outgoing{
		Title: fmt.Sprintf(pb.eventTitle, ev.Title),
		HTML:  b.String(),
		Plain: plain,
	}
}

func matchMessage(locale string, m MatchPayload, link string) outgoing {
	pb := book(locale)
	return outgoing{
		Title: pb.matchTitle,
		HTML:  fmt.Sprintf(pb.matchHTML, html.EscapeString(m.MatchedUserName)) + linkLine(pb.openApp, link),
		Plain: fmt.Sprintf(pb.matchPlain, m.MatchedUserName),
	}
}

func roleMessage(locale string, r RolePayload, link string) outgoing {
	pb := book(locale)
	return outgoing{
		Title: pb.roleTitle,
		HTML:  fmt.Sprintf(pb.roleHTML, html.EscapeString(r.Role)) + linkLine(pb.openApp, link),
		Plain: fmt.Sprintf(pb.rolePlain, r.Role),
	}
}
