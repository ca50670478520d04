package transcriber

import (
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leonardotrapani/factstream/internal/model"
)

var uploadMimetypes = map[string]bool{
	"audio/wav": true, "audio/x-wav": true,
	"audio/mpeg": true, "audio/mp3": true,
	"audio/ogg": true, "audio/vorbis": true,
	"audio/flac":               true,
	"audio/webm":               true,
	"audio/mp4":                true,
	"audio/m4a":                true,
	"audio/aac":                true,
	"audio/pcm":                true,
	"audio/l16":                true,
	"audio/raw":                true,
	"application/octet-stream": true,
}

// uploadExtensions maps accepted file extensions to the mimetype sent upstream
var uploadExtensions = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".pcm":  "audio/raw",
	".raw":  "audio/raw",
}

// SupportedUploadTypes lists accepted mimetypes for error messages
func SupportedUploadTypes() []string {
	out := make([]string, 0, len(uploadMimetypes))
	for t := range uploadMimetypes {
		if t != "application/octet-stream" {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// ResolveUploadFormat decides whether an uploaded file is acceptable audio and
// which format to announce upstream. The extension is a fallback for clients
// that send a generic or wrong content type.
func ResolveUploadFormat(filename, contentType string) (model.AudioFormat, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		ct = parsed
	}
	ext := strings.ToLower(filepath.Ext(filename))
	extType, extOK := uploadExtensions[ext]

	if !uploadMimetypes[ct] && !extOK {
		return model.AudioFormat{}, fmt.Errorf("%w: %s. Supported formats: %s",
			ErrUnsupportedFormat, contentType, strings.Join(SupportedUploadTypes(), ", "))
	}

	raw := model.AudioFormat{Mimetype: ct}
	if raw.IsRaw() || ext == ".pcm" || ext == ".raw" {
		return model.DefaultAudioFormat(), nil
	}

	mimetype := ct
	if !uploadMimetypes[ct] || ct == "application/octet-stream" {
		if extOK {
			mimetype = extType
		}
	}
	return model.AudioFormat{Mimetype: mimetype}, nil
}
