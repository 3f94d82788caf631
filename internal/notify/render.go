package notify

import (
	"fmt"
	"strings"
)

// Render produces the plain-text alert body.
func Render(p Payload) string {
	var b strings.Builder

	b.WriteString(Subject + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	if p.FilterDate != "" {
		fmt.Fprintf(&b, "Filter Date: %s\n\n", p.FilterDate)
		b.WriteString("Available Titles:\n")
		for _, show := range p.Shows {
			fmt.Fprintf(&b, "  • %s\n", show.Title)
			if show.URL != "" {
				fmt.Fprintf(&b, "    URL: %s\n", show.URL)
			}
		}
	} else {
		b.WriteString("Titles with New Dates:\n")
		for _, show := range p.Shows {
			fmt.Fprintf(&b, "\n• %s\n", show.Title)
			if show.URL != "" {
				fmt.Fprintf(&b, "  URL: %s\n", show.URL)
			}
			b.WriteString("  Available Dates:\n")
			for _, d := range show.Dates {
				fmt.Fprintf(&b, "    - %s\n", d)
			}
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Alert generated: %s\n", p.GeneratedAt.Format("2006-01-02 15:04:05"))

	return b.String()
}

// RenderHTML produces the HTML alert body used by the email channel.
func RenderHTML(p Payload) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; }\n")
	b.WriteString(".header { border-bottom: 2px solid #8e44ad; padding-bottom: 10px; margin-bottom: 20px; }\n")
	b.WriteString(".show { margin-bottom: 20px; padding: 15px; background: #f8f9fa; border-radius: 8px; }\n")
	b.WriteString(".dates { color: #555; margin: 5px 0 0 0; }\n")
	b.WriteString(".footer { margin-top: 20px; padding-top: 10px; border-top: 2px solid #ecf0f1; color: #7f8c8d; font-size: 0.9em; }\n")
	b.WriteString("a { color: #8e44ad; text-decoration: none; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString("<div class=\"header\">\n")
	b.WriteString("<h2>" + Subject + "</h2>\n")
	if p.FilterDate != "" {
		fmt.Fprintf(&b, "<p>Filter Date: %s</p>\n", escapeHTML(p.FilterDate))
	}
	b.WriteString("</div>\n")

	for _, show := range p.Shows {
		b.WriteString("<div class=\"show\">\n")
		if show.URL != "" {
			fmt.Fprintf(&b, "<strong><a href=\"%s\">%s</a></strong>\n", escapeHTML(show.URL), escapeHTML(show.Title))
		} else {
			fmt.Fprintf(&b, "<strong>%s</strong>\n", escapeHTML(show.Title))
		}
		if len(show.Dates) > 0 {
			fmt.Fprintf(&b, "<p class=\"dates\">%s</p>\n", escapeHTML(strings.Join(show.Dates, ", ")))
		}
		b.WriteString("</div>\n")
	}

	b.WriteString("<div class=\"footer\">\n")
	fmt.Fprintf(&b, "Alert generated: %s\n", p.GeneratedAt.Format("2006-01-02 15:04:05"))
	b.WriteString("</div>\n")

	b.WriteString("</body>\n</html>")

	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}
