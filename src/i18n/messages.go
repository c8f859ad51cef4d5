// Package i18n provides the locale-sensitive user-facing strings the API
// returns on quota exhaustion. Matching uses BCP 47 tags so "de-AT" finds
// the German messages and anything unknown falls back to English.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
)

// QuotaMessage is the title/detail pair surfaced with a 402 response.
type QuotaMessage struct {
	Title  string
	Detail string
}

type quotaTemplate struct {
	title  string
	detail string // fmt template receiving the token limit
}

var quotaTags = []language.Tag{
	language.English, // fallback
	language.German,
	language.Spanish,
	language.French,
	language.Japanese,
	language.BrazilianPortuguese,
}

var quotaTemplates = map[language.Tag]quotaTemplate{
	language.English: {
		title:  "Trial quota exhausted",
		detail: "The free trial quota of %d tokens has been used up. Add your own API key in the extension options to continue.",
	},
	language.German: {
		title:  "Testkontingent aufgebraucht",
		detail: "Das kostenlose Testkontingent von %d Tokens ist aufgebraucht. Hinterlegen Sie einen eigenen API-Schlüssel in den Erweiterungsoptionen, um fortzufahren.",
	},
	language.Spanish: {
		title:  "Cuota de prueba agotada",
		detail: "La cuota de prueba gratuita de %d tokens se ha agotado. Añade tu propia clave de API en las opciones de la extensión para continuar.",
	},
	language.French: {
		title:  "Quota d'essai épuisé",
		detail: "Le quota d'essai gratuit de %d jetons est épuisé. Ajoutez votre propre clé API dans les options de l'extension pour continuer.",
	},
	language.Japanese: {
		title:  "試用枠を使い切りました",
		detail: "無料試用枠（%dトークン）を使い切りました。続行するには拡張機能のオプションでご自身のAPIキーを設定してください。",
	},
	language.BrazilianPortuguese: {
		title:  "Cota de teste esgotada",
		detail: "A cota de teste gratuita de %d tokens foi esgotada. Adicione sua própria chave de API nas opções da extensão para continuar.",
	},
}

var quotaMatcher = language.NewMatcher(quotaTags)

// QuotaExceeded returns the quota-exhausted message for the given locale.
func QuotaExceeded(locale string, limitTokens int) QuotaMessage {
	_, index := language.MatchStrings(quotaMatcher, locale)
	tmpl := quotaTemplates[quotaTags[index]]
	return QuotaMessage{
		Title:  tmpl.title,
		Detail: fmt.Sprintf(tmpl.detail, limitTokens),
	}
}
