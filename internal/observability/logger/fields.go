package logger

import (
	"time"

	"go.uber.org/zap"
)

func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

func Method(v string) zap.Field {
	return zap.String("method", v)
}

func Path(v string) zap.Field {
	return zap.String("path", v)
}

func Status(v int) zap.Field {
	return zap.Int("status", v)
}

func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

func CertificateID(v string) zap.Field {
	return zap.String("certificate_id", v)
}

func NotarizationID(v string) zap.Field {
	return zap.String("notarization_id", v)
}

func KeyID(v string) zap.Field {
	return zap.String("public_key_id", v)
}
