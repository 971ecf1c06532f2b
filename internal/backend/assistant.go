package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"mediachat/internal/config"
	"mediachat/internal/conversation"
)

// Assistant produces the reply text for one chat turn.
type Assistant interface {
	Reply(ctx context.Context, message string, history []conversation.Turn) (string, error)
	Name() string
}

// UpstreamError is a provider failure rendered as the text clients classify,
// together with the HTTP status the service answers with.
type UpstreamError struct {
	Status int
	Text   string
}

func (e *UpstreamError) Error() string { return e.Text }

// upstream builds an UpstreamError; a zero status becomes 502.
func upstream(status int, format string, args ...any) error {
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &UpstreamError{Status: status, Text: fmt.Sprintf(format, args...)}
}

// NewAssistant builds the provider named in cfg.
func NewAssistant(ctx context.Context, cfg config.LLMConfig, catalog *Catalog) (Assistant, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "echo":
		return NewCatalogAssistant(catalog), nil
	case "openai":
		return NewOpenAIAssistant(cfg, catalog), nil
	case "gemini":
		return NewGeminiAssistant(ctx, cfg, catalog)
	default:
		return nil, errors.Errorf("unknown provider %q", cfg.Provider)
	}
}

// =============================================================================
// OFFLINE CATALOG ASSISTANT
// =============================================================================

// CatalogAssistant answers from the catalog alone, without a model. It
// recognizes media types and languages mentioned in the question.
type CatalogAssistant struct {
	catalog *Catalog
}

// NewCatalogAssistant creates the offline assistant.
func NewCatalogAssistant(catalog *Catalog) *CatalogAssistant {
	return &CatalogAssistant{catalog: catalog}
}

func (a *CatalogAssistant) Name() string { return "echo" }

var typeKeywords = map[string][]string{
	"audio":    {"audio", "audios", "podcast", "podcasts", "sonido"},
	"video":    {"video", "videos", "vídeo", "vídeos", "documental"},
	"image":    {"imagen", "imágenes", "imagenes", "image", "images", "foto", "fotos"},
	"document": {"documento", "documentos", "document", "documents", "texto", "transcripción"},
}

var languageKeywords = map[string][]string{
	"es": {"español", "espanol", "spanish", "castellano"},
	"en": {"inglés", "ingles", "english"},
}

// ParseQuery extracts a catalog query from free text.
func ParseQuery(message string) Query {
	var q Query
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !(r == 'á' || r == 'é' || r == 'í' || r == 'ó' || r == 'ú' || r == 'ñ' ||
			(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	for _, w := range words {
		if q.Type == "" {
			q.Type = matchKeyword(typeKeywords, w)
		}
		if q.Language == "" {
			q.Language = matchKeyword(languageKeywords, w)
		}
	}
	return q
}

func matchKeyword(table map[string][]string, word string) string {
	for key, words := range table {
		for _, w := range words {
			if w == word {
				return key
			}
		}
	}
	return ""
}

func (a *CatalogAssistant) Reply(ctx context.Context, message string, _ []conversation.Turn) (string, error) {
	q := ParseQuery(message)
	if q.Type == "" && q.Language == "" {
		stats, err := a.catalog.Stats(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("El catálogo tiene %d registros de tipo %s. Pregúntame por un tipo o un idioma.",
			stats.TotalRecords, strings.Join(stats.Types, ", ")), nil
	}

	recs, err := a.catalog.Find(ctx, Query{Type: q.Type, Language: q.Language, Limit: 5})
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "No encontré registros que coincidan con tu consulta.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Encontré %d registro(s):", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&b, "\n- %s (%s, %s)", r.Title, r.Type, r.Language)
	}
	return b.String(), nil
}

// catalogContext renders the catalog summary for a model's system prompt.
func catalogContext(ctx context.Context, catalog *Catalog) string {
	if catalog == nil {
		return ""
	}
	recs, err := catalog.Find(ctx, Query{Limit: 50})
	if err != nil || len(recs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nCatálogo disponible:")
	for _, r := range recs {
		fmt.Fprintf(&b, "\n- [%s] %s (%s, %s)", r.ID, r.Title, r.Type, r.Language)
	}
	return b.String()
}
