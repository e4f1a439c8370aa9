package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Product limits for user-submitted data. Labels feed the message catalog
// below, which is kept separate from the rule engine so the copy can be
// localized without touching validation logic.

type fieldLimits struct {
	Min   int
	Max   int
	Label string
}

var (
	fullNameLimits    = fieldLimits{Min: 2, Max: 100, Label: "Nome completo"}
	usernameLimits    = fieldLimits{Min: 3, Max: 30, Label: "Nome de usuário"}
	emailLimits       = fieldLimits{Min: 5, Max: 100, Label: "Email"}
	passwordLimits    = fieldLimits{Min: 6, Max: 128, Label: "Senha"}
	bioLimits         = fieldLimits{Max: 500, Label: "Bio"}
	postContentLimits = fieldLimits{Min: 1, Max: 5000, Label: "Legenda"}
	commentLimits     = fieldLimits{Min: 1, Max: 1000, Label: "Comentário"}
)

var (
	usernameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegexp    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Image admission rules.
const (
	MaxImageSize  = 5 * 1024 * 1024
	MinImageSize  = 10 * 1024
	MaxAvatarSize = 2 * 1024 * 1024

	imageLabel = "Imagem"
)

// AllowedImageTypes are the accepted MIME types for uploads.
var AllowedImageTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif"}

// Message catalog.

// RequiredMessage is the error for a missing mandatory field.
func RequiredMessage(field string) string {
	return fmt.Sprintf("%s é obrigatório", field)
}

// MinLengthMessage is the error for a value below the minimum length.
func MinLengthMessage(field string, min int) string {
	return fmt.Sprintf("%s deve ter pelo menos %d caracteres", field, min)
}

// MaxLengthMessage is the error for a value above the maximum length.
func MaxLengthMessage(field string, max int) string {
	return fmt.Sprintf("%s não pode exceder %d caracteres", field, max)
}

// InvalidFormatMessage is the generic pattern-mismatch error.
func InvalidFormatMessage(field string) string {
	return fmt.Sprintf("%s inválido", field)
}

const (
	// InvalidEmailMessage rejects malformed addresses.
	InvalidEmailMessage = "Email inválido"
	// InvalidUsernameMessage rejects characters outside [A-Za-z0-9_].
	InvalidUsernameMessage = "Username só pode conter letras, números e underscore"
	// ImageRequiredMessage rejects posts submitted without an image.
	ImageRequiredMessage = "É necessário adicionar uma imagem"
)

// FileTooLargeMessage is the error for an oversized upload.
func FileTooLargeMessage(max int64) string {
	return fmt.Sprintf("Arquivo muito grande. Máximo: %s", FormatBytes(max))
}

// FileTooSmallMessage is the error for an undersized upload.
func FileTooSmallMessage(min int64) string {
	return fmt.Sprintf("Arquivo muito pequeno. Mínimo: %s", FormatBytes(min))
}

// InvalidFileTypeMessage lists the accepted upload extensions.
func InvalidFileTypeMessage(allowed []string) string {
	return fmt.Sprintf("Apenas arquivos %s são permitidos", strings.Join(allowed, ", "))
}

// FormatBytes renders a byte count with binary units, trimming trailing
// zeros ("5 MB", "2.5 KB").
func FormatBytes(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	sizes := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizes[i]
}
