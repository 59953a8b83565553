package connected

import (
	"sort"
	"strings"
)

// sortClients ordena para presentación: lastAccessTime descendente,
// desempate por name ascendente, luego createdTime ascendente, y por
// último scope stringificado ascendente para que el orden sea
// determinístico.
func sortClients(clients []*AttachedClient) {
	sort.SliceStable(clients, func(i, j int) bool {
		a, b := clients[i], clients[j]
		if a.LastAccessTime != b.LastAccessTime {
			return a.LastAccessTime > b.LastAccessTime
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.CreatedTime != b.CreatedTime {
			return a.CreatedTime < b.CreatedTime
		}
		return scopeString(a.Scope) < scopeString(b.Scope)
	})
}

// sortAuthorizedClients aplica el mismo criterio sobre la vista
// authorized-clients (client_name en lugar de name).
func sortAuthorizedClients(clients []AuthorizedClient) {
	sort.SliceStable(clients, func(i, j int) bool {
		a, b := clients[i], clients[j]
		if a.LastAccessTime != b.LastAccessTime {
			return a.LastAccessTime > b.LastAccessTime
		}
		if a.ClientName != b.ClientName {
			return a.ClientName < b.ClientName
		}
		if a.CreatedTime != b.CreatedTime {
			return a.CreatedTime < b.CreatedTime
		}
		return scopeString(a.Scope) < scopeString(b.Scope)
	})
}

func scopeString(scope []string) string {
	return strings.Join(scope, " ")
}

// sortedScopes devuelve una copia ordenada alfabéticamente, para salida
// consistente.
func sortedScopes(scope []string) []string {
	out := make([]string, len(scope))
	copy(out, scope)
	sort.Strings(out)
	return out
}
