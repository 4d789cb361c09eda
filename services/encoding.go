package services

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// EncodedImage is the internal currency for image payloads crossing the
// styling engine boundary: raw bytes plus the mime type they were served with.
type EncodedImage struct {
	MimeType string
	Data     []byte
}

// DataURL renders the image as a data URL suitable for direct display.
func (e EncodedImage) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", e.MimeType, base64.StdEncoding.EncodeToString(e.Data))
}

// ParseDataURL decodes a `data:<mime>;base64,<payload>` URL back into an
// EncodedImage. Anything that does not match the shape is a classified
// malformed-data-URL error, never a panic.
func ParseDataURL(url string) (EncodedImage, error) {
	if !strings.HasPrefix(url, "data:") {
		return EncodedImage{}, NewStylistError(ErrMalformedDataURL, "image reference is not a data URL", nil)
	}
	rest := strings.TrimPrefix(url, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return EncodedImage{}, NewStylistError(ErrMalformedDataURL, "data URL has no payload separator", nil)
	}
	mimeType, encoding, found := strings.Cut(meta, ";")
	if !found || encoding != "base64" {
		return EncodedImage{}, NewStylistError(ErrMalformedDataURL, "data URL is not base64 encoded", nil)
	}
	if mimeType == "" {
		return EncodedImage{}, NewStylistError(ErrMalformedDataURL, "data URL has no mime type", nil)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return EncodedImage{}, NewStylistError(ErrMalformedDataURL, "data URL payload is not valid base64", err)
	}
	return EncodedImage{MimeType: mimeType, Data: data}, nil
}

// FetchImageAsEncoded resolves an image reference to bytes. Data URLs are
// decoded in place; anything else is fetched over HTTP. Network and status
// failures come back as fetch-failure errors so callers can degrade.
func FetchImageAsEncoded(url string) (EncodedImage, error) {
	if strings.HasPrefix(url, "data:") {
		return ParseDataURL(url)
	}
	content, err := ReadFileFromUrl(url)
	if err != nil {
		return EncodedImage{}, NewStylistError(ErrFetchFailure, "could not fetch image", err)
	}
	mimeType := http.DetectContentType(content)
	if !strings.HasPrefix(mimeType, "image/") {
		return EncodedImage{}, NewStylistError(ErrFetchFailure, "fetched resource is not an image", nil)
	}
	return EncodedImage{MimeType: mimeType, Data: content}, nil
}
