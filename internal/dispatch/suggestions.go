package dispatch

// suggestedQueries are the canned prompts offered next to the input, in display order.
var suggestedQueries = []string{
	"¿Cuántos registros hay en la base de datos?",
	"¿Qué tipos de contenido hay disponibles?",
	"¿Hay audios en español?",
	"Muéstrame las imágenes más recientes",
	"¿Qué videos están relacionados con conciertos?",
}

// SuggestedQueries returns the suggested prompts in display order.
func SuggestedQueries() []string {
	out := make([]string, len(suggestedQueries))
	copy(out, suggestedQueries)
	return out
}
