package analysis

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const defaultMIME = "image/jpeg"

// Image is a decoded image ready to be sent to a model.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL renders the image as a base64 data URL.
func (img Image) DataURL() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// DecodePayload decodes a base64 image, optionally prefixed with a
// "data:<mime>;base64," header. Standard encoding is tried before URL encoding.
func DecodePayload(payload string) (Image, error) {
	s := strings.TrimSpace(payload)
	var hint string
	if strings.HasPrefix(s, "data:") {
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hint = meta[:semi]
			} else {
				hint = meta
			}
			s = s[idx+1:]
		}
	}
	if s == "" {
		return Image{}, fmt.Errorf("empty image payload")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var urlErr error
		data, urlErr = base64.URLEncoding.DecodeString(s)
		if urlErr != nil {
			return Image{}, fmt.Errorf("failed to decode image payload: %w", err)
		}
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("empty image payload")
	}
	return Image{Data: data, MIMEType: PickMIME(hint, data)}, nil
}

// PickMIME prefers the data URL hint, then sniffs the bytes, then falls back
// to JPEG.
func PickMIME(hint string, data []byte) string {
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}
	return defaultMIME
}
