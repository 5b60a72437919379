package constants

import (
	"mime"
	"strings"
)

// MediaTypePDF is the only media type the intake accepts.
const MediaTypePDF = "application/pdf"

// ExtPDF is the file extension used for stored documents.
const ExtPDF = "pdf"

// MaxUploadBytesDefault caps a single document upload (32 MiB).
const MaxUploadBytesDefault int64 = 32 << 20

// AllowedMediaTypes holds the media types accepted by the intake.
var AllowedMediaTypes = map[string]struct{}{
	MediaTypePDF: {},
}

// NormalizeMediaType lowercases a media type and strips its parameters
// ("Application/PDF; charset=binary" -> "application/pdf").
func NormalizeMediaType(mt string) string {
	mt = strings.TrimSpace(mt)
	if mt == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// AllowedMediaType reports whether mt (after normalization) may be selected.
func AllowedMediaType(mt string) bool {
	_, ok := AllowedMediaTypes[NormalizeMediaType(mt)]
	return ok
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
