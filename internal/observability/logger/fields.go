package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar usados en todo el servicio. Centralizarlos acá evita
// drift en los nombres de atributos entre paquetes.

// UID crea un campo para el ID de la cuenta.
func UID(v string) zap.Field {
	return zap.String("uid", v)
}

// ClientID crea un campo para el ID del cliente OAuth.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// TokenID crea un campo para el ID de un token (session/refresh/access).
func TokenID(v string) zap.Field {
	return zap.String("token_id", v)
}

// Scope crea un campo para el scope lógico del cache.
func Scope(v string) zap.Field {
	return zap.String("scope", v)
}

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// State crea un campo para el estado del circuito del cache.
func State(v string) zap.Field {
	return zap.String("state", v)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}
