package core

// # Error Codes Reference
//
// This file maps technical errors to messages shown to operators, each with a
// code they can quote to support.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Empty file: no header or no data rows
//	FILE003 - Missing required columns
//	FILE004 - No file was provided
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Import rejected: one or more rows are invalid or duplicated
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Identifier already registered in the college
//	DB002 - College does not exist
//	DB003 - Connection refused
//	DB004 - Connection reset
//	DB005 - Timeout
//	DB006 - Deadlock
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import cancelled
//	IMP002 - Too many imports in progress
//	IMP003 - Import not found or expired
//	IMP004 - Request cancelled
//	IMP005 - Request timed out
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Fallback
//
//	ERR000 - Unexpected error; check logs for the original error

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is an error message suitable for display.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code,omitempty"`
}

var (
	msgFileTooLarge = UserMessage{
		Message: "El archivo supera el tamaño máximo permitido",
		Action:  "Divida el archivo en partes más pequeñas",
		Code:    "FILE001",
	}
	msgEmptyFile = UserMessage{
		Message: "El archivo debe tener un encabezado y al menos una fila de datos",
		Action:  "Descargue la plantilla y complete al menos un estudiante",
		Code:    "FILE002",
	}
	msgMissingColumns = UserMessage{
		Message: "Faltan columnas obligatorias en el encabezado",
		Action:  "El archivo debe incluir las columnas name, identifier y email",
		Code:    "FILE003",
	}
	msgAborted = UserMessage{
		Message: "La importación fue rechazada por errores en el archivo",
		Action:  "Corrija las líneas indicadas y vuelva a subir el archivo completo",
		Code:    "VAL001",
	}
	msgIdentifierTaken = UserMessage{
		Message: MsgIdentifierExists,
		Action:  "Quite el estudiante del archivo o use otro identificador",
		Code:    "DB001",
	}
	msgCollegeNotFound = UserMessage{
		Message: "El colegio no existe",
		Action:  "Verifique el colegio seleccionado",
		Code:    "DB002",
	}
	msgImportNotFound = UserMessage{
		Message: "La importación no existe o ya expiró",
		Action:  "Inicie una nueva importación",
		Code:    "IMP003",
	}
)

// errorPattern maps an error substring to a user-friendly message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted in order after the typed checks in MapError.
var errorPatterns = []errorPattern{
	// Database
	{
		pattern: "duplicate key",
		msg:     msgIdentifierTaken,
	},
	{
		pattern: "violates foreign key",
		msg:     msgCollegeNotFound,
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "No se pudo conectar con la base de datos",
			Action:  "Intente nuevamente en unos momentos",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Se interrumpió la conexión con la base de datos",
			Action:  "Intente nuevamente",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "La operación tardó demasiado",
			Action:  "Intente con un archivo más pequeño o más tarde",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "La base de datos estaba ocupada",
			Action:  "Intente nuevamente",
			Code:    "DB006",
		},
	},

	// File
	{
		pattern: "file too large",
		msg:     msgFileTooLarge,
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No se seleccionó ningún archivo",
			Action:  "Seleccione un archivo CSV para importar",
			Code:    "FILE004",
		},
	},

	// Import
	{
		pattern: "import cancelled",
		msg: UserMessage{
			Message: "La importación fue cancelada",
			Action:  "Inicie una nueva importación cuando esté listo",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "El sistema está procesando otras importaciones",
			Action:  "Espere un momento e intente nuevamente",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import not found",
		msg:     msgImportNotFound,
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "La solicitud fue cancelada",
			Action:  "Intente nuevamente",
			Code:    "IMP004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "La solicitud excedió el tiempo de espera",
			Action:  "Intente con un archivo más pequeño",
			Code:    "IMP005",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Demasiadas solicitudes",
			Action:  "Espere un momento antes de intentar nuevamente",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000). Support should
// check the logs for the original error.
var defaultMessage = UserMessage{
	Message: "Ocurrió un error inesperado",
	Action:  "Intente nuevamente o contacte a soporte",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Known error
// types and sentinels are matched first, then substrings (case-insensitive).
// Unmatched errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		empty   *EmptyFileError
		missing *MissingColumnsError
		aborted *AbortedError
		ue      *UserError
	)
	switch {
	case errors.As(err, &ue):
		return ue.User
	case errors.As(err, &empty):
		return msgEmptyFile
	case errors.As(err, &missing):
		m := msgMissingColumns
		m.Message = fmt.Sprintf("Faltan columnas obligatorias: %s", strings.Join(missing.Missing, ", "))
		return m
	case errors.As(err, &aborted):
		return msgAborted
	case errors.Is(err, ErrFileTooLarge):
		return msgFileTooLarge
	case errors.Is(err, ErrIdentifierTaken):
		return msgIdentifierTaken
	case errors.Is(err, ErrCollegeNotFound):
		return msgCollegeNotFound
	case errors.Is(err, ErrImportNotFound):
		return msgImportNotFound
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats err as "Message (Código: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Código: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with the message shown
// to the user.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
