package connected

import "strings"

// SynthesizeClientName deriva un nombre legible desde los campos de
// user-agent de una sesión: browser + versión mayor, coma, y form factor
// si existe, si no OS (+ versión de OS).
func SynthesizeClientName(s AttachedSession) string {
	var b strings.Builder

	if s.UABrowser != "" {
		b.WriteString(s.UABrowser)
		if s.UABrowserVersion != "" {
			b.WriteString(" ")
			b.WriteString(majorVersion(s.UABrowserVersion))
		}
		if s.UAOS != "" || s.UAFormFactor != "" {
			b.WriteString(", ")
		}
	}

	// El form factor pisa a OS+versión cuando ambos existen.
	if s.UAFormFactor != "" {
		b.WriteString(s.UAFormFactor)
		return b.String()
	}

	if s.UAOS != "" {
		b.WriteString(s.UAOS)
		if s.UAOSVersion != "" {
			b.WriteString(" ")
			b.WriteString(s.UAOSVersion)
		}
	}

	return b.String()
}

// majorVersion devuelve la porción antes del primer punto.
func majorVersion(v string) string {
	if i := strings.Index(v, "."); i >= 0 {
		return v[:i]
	}
	return v
}
