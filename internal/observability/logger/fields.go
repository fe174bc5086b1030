package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes crea un campo para bytes escritos en la respuesta.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - DOMINIO
// =================================================================================

// DID crea un campo para el DID federado del usuario.
func DID(v string) zap.Field {
	return zap.String("did", v)
}

// Handle crea un campo para el handle del identity provider.
func Handle(v string) zap.Field {
	return zap.String("handle", v)
}

// UserID crea un campo para el ID interno del usuario.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// Provider crea un campo para el nombre del provider externo.
func Provider(v string) zap.Field {
	return zap.String("provider", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - ARQUITECTURA
// =================================================================================

// Component identifica el componente que emite el log.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op identifica la operación en curso.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer identifica la capa (http, service, store, provider).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// CAMPOS GENÉRICOS
// =================================================================================

// Count crea un campo numérico genérico "count".
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string con key arbitraria.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int con key arbitraria.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool con key arbitraria.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any crea un campo de tipo arbitrario.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
