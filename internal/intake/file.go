package intake

import (
	"encoding/base64"
	"strings"
)

// File is a user-selected image.
type File struct {
	Name string
	Type string
	Data []byte
}

// Size returns the file size in bytes.
func (f File) Size() int {
	return len(f.Data)
}

// IsImage reports whether the MIME type denotes an image.
func (f File) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.Type)), "image/")
}

// DataURL encodes the file as a base64 data URL.
func (f File) DataURL() string {
	return "data:" + f.Type + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}
