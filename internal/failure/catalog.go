package failure

import "strings"

// Catalog holds the localized message templates for one language.
type Catalog struct {
	Locale    string
	LeadIn    string
	Templates map[Category]string
}

// Spanish is the default catalog.
var Spanish = Catalog{
	Locale: "es",
	LeadIn: "Lo siento, ocurrió un error al procesar tu consulta.",
	Templates: map[Category]string{
		ModelUnavailable: "El modelo de IA configurado no está disponible en este momento.",
		RateLimited:      "Se superó el límite de solicitudes. Espera unos segundos y vuelve a intentarlo.",
		InvalidRequest:   "La solicitud no es válida. Prueba a reformular tu pregunta.",
		Unknown:          "Por favor, inténtalo de nuevo más tarde.",
	},
}

// English mirrors Spanish.
var English = Catalog{
	Locale: "en",
	LeadIn: "Sorry, something went wrong while processing your question.",
	Templates: map[Category]string{
		ModelUnavailable: "The configured AI model is not available right now.",
		RateLimited:      "The request limit was exceeded. Wait a few seconds and try again.",
		InvalidRequest:   "The request was not valid. Try rephrasing your question.",
		Unknown:          "Please try again later.",
	},
}

// CatalogFor returns the catalog for locale, falling back to Spanish.
// Region suffixes ("en-US", "es_AR") are ignored.
func CatalogFor(locale string) Catalog {
	lang := strings.ToLower(locale)
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	switch lang {
	case "en":
		return English
	default:
		return Spanish
	}
}

// Message renders the lead-in followed by the category template.
func (c Catalog) Message(cat Category) string {
	tmpl, ok := c.Templates[cat]
	if !ok {
		tmpl = c.Templates[Unknown]
	}
	return c.LeadIn + " " + tmpl
}
