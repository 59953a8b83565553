package connected

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/dropDatabas3/attachedclients/internal/domain/repository"
	"github.com/dropDatabas3/attachedclients/internal/observability/logger"
	"go.uber.org/zap"
)

// timeLayout es el layout de los timestamps formateados (siempre UTC).
const timeLayout = "Mon, 02 Jan 2006 15:04:05 MST"

// Formatter post-procesa cada AttachedClient: localiza timestamps y
// ubicación según la cadena de resolución de idioma
// (pedido → soportado → default).
type Formatter struct {
	matcher   language.Matcher
	supported []language.Tag

	// Piso de plausibilidad para lastAccessTime (epoch ms). Debajo de
	// esto el valor real se considera no confiable y se publica el piso
	// como aproximación.
	earliestSaneAccessTime int64

	log *zap.Logger
}

// NewFormatter arma el formatter. defaultLanguage encabeza la cadena de
// fallback; supportedLanguages que no parsean se ignoran.
func NewFormatter(supportedLanguages []string, defaultLanguage string, earliestSaneAccessTime int64) *Formatter {
	tags := make([]language.Tag, 0, len(supportedLanguages)+1)
	def, err := language.Parse(defaultLanguage)
	if err != nil {
		def = language.English
	}
	tags = append(tags, def)
	for _, s := range supportedLanguages {
		t, err := language.Parse(s)
		if err != nil || t == def {
			continue
		}
		tags = append(tags, t)
	}
	return &Formatter{
		matcher:                language.NewMatcher(tags),
		supported:              tags,
		earliestSaneAccessTime: earliestSaneAccessTime,
		log:                    logger.Named("formatter"),
	}
}

// resolveLanguage resuelve el mejor idioma soportado para un header
// Accept-Language. Cae al default ante headers vacíos o inválidos.
func (f *Formatter) resolveLanguage(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return f.supported[0]
	}
	tag, _ := language.MatchStrings(f.matcher, acceptLanguage)
	return tag
}

// FormatTimestamps escribe los campos *Formatted del client. Si
// lastAccessTime es anterior al piso configurado, además publica el piso
// como approximateLastAccessTime; el valor crudo queda intacto para el
// orden interno.
func (f *Formatter) FormatTimestamps(c *AttachedClient, acceptLanguage string) {
	// La resolución corre siempre, aunque el layout de render sea fijo:
	// valida el header y deja el mismo comportamiento de fallback que
	// formatLocation.
	f.resolveLanguage(acceptLanguage)

	if c.CreatedTime != 0 {
		c.CreatedTimeFormatted = formatMillis(c.CreatedTime)
	}
	if c.LastAccessTime != 0 {
		c.LastAccessTimeFormatted = formatMillis(c.LastAccessTime)
		if c.LastAccessTime < f.earliestSaneAccessTime {
			c.ApproximateLastAccessTime = f.earliestSaneAccessTime
			c.ApproximateLastAccessTimeFormatted = formatMillis(f.earliestSaneAccessTime)
		}
	}
}

// FormatLocation reduce la ubicación a lo que el idioma destino puede
// renderizar. Para la familia en-* los campos pasan intactos; para el
// resto solo se resuelve el nombre localizado del país. Ante cualquier
// falla de lookup la ubicación degrada a objeto vacío, nunca falla.
func (f *Formatter) FormatLocation(c *AttachedClient, acceptLanguage string) {
	if c.Location == nil {
		c.Location = &repository.Location{}
		return
	}
	loc := *c.Location

	tag := f.resolveLanguage(acceptLanguage)
	base := tag.String()

	if strings.HasPrefix(base, "en") {
		c.Location = &repository.Location{
			City:      loc.City,
			State:     loc.State,
			StateCode: loc.StateCode,
			Country:   loc.Country,
		}
		return
	}

	country, ok := territoryName(base, loc.CountryCode)
	if !ok {
		f.log.Debug("location lookup failed",
			zap.String("language", base),
			zap.String("country_code", loc.CountryCode),
		)
		c.Location = &repository.Location{}
		return
	}
	c.Location = &repository.Location{Country: country}
}

// territoryName resuelve el nombre localizado de un país por código ISO.
func territoryName(locale, countryCode string) (string, bool) {
	if countryCode == "" {
		return "", false
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", false
	}
	region, err := language.ParseRegion(countryCode)
	if err != nil {
		return "", false
	}
	namer := display.Regions(tag)
	if namer == nil {
		return "", false
	}
	name := namer.Name(region)
	if name == "" {
		return "", false
	}
	return name, true
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(timeLayout)
}
