package gateway

import (
	"fmt"
	"strings"

	"github.com/flightfinder-eu/flightbot/internal/model"
)

const welcomeText = `🛫 *Welcome to Flight Finder EU!*

I will help you find the cheapest flights in Europe.

*Examples:*
- Warsaw → Barcelona in June
- POZ → LIS in May
- Krakow to Rome, cheap

*Commands:*
/help - Help

Tell me where you want to fly! ✈️`

const helpText = `📖 *How to use:*

*Examples:*
✈️ Poznan → Barcelona in July
✈️ WAW → ROM 10-15 June

*Airport codes:*
🇵🇱 WAW (Warsaw), KRK (Krakow), POZ (Poznan)
🇪🇸 BCN (Barcelona), MAD (Madrid)
🇮🇹 FCO (Rome), MXP (Milan)
🇵🇹 LIS (Lisbon), OPO (Porto)`

const (
	searchingText     = "🔍 Searching for the best flights...\n⏳ This may take 15-30 seconds..."
	notUnderstoodText = "❌ I don't understand.\n\n*Try:*\n\"Warsaw → Barcelona in June\""
	noFlightsText     = "❌ No flights found.\nCheck that both cities are in the EU and the codes are correct."
	genericErrorText  = "❌ An error occurred, please try again shortly."
	flexibleDateText  = "flexible date"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown escapes Telegram legacy Markdown control characters.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func understoodText(intent model.TravelIntent) string {
	return fmt.Sprintf("✅ Got it!\n🛫 From: *%s*\n🛬 To: *%s*\n📅 %s\n\nChecking flights...",
		escapeMarkdown(intent.Origin),
		escapeMarkdown(intent.Destination),
		escapeMarkdown(intent.DateLabel(flexibleDateText)),
	)
}
