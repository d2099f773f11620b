package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ImageKind tells which wire shape an Image was decoded from.
type ImageKind int

const (
	ImageNone ImageKind = iota
	ImageURL
	ImageObject
)

// Image is a product or avatar picture. The backend sends either a bare
// URL string or an object carrying the URL under "url" or "image".
type Image struct {
	Kind ImageKind
	URL  string
	Alt  string
}

type imageObject struct {
	ID    ID     `json:"id"`
	URL   string `json:"url"`
	Image string `json:"image"`
	Alt   string `json:"alt_text"`
}

func (img *Image) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*img = Image{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*img = NewImage(s)
		return nil
	default:
		var obj imageObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		url := obj.URL
		if url == "" {
			url = obj.Image
		}
		url = strings.TrimSpace(url)
		if url == "" {
			*img = Image{}
			return nil
		}
		*img = Image{Kind: ImageObject, URL: url, Alt: obj.Alt}
		return nil
	}
}

// MarshalJSON always emits the normalized string form.
func (img Image) MarshalJSON() ([]byte, error) {
	if img.URL == "" {
		return []byte("null"), nil
	}
	return json.Marshal(img.URL)
}

// NewImage builds a URL-kind image, or the zero Image for blank input.
func NewImage(url string) Image {
	url = strings.TrimSpace(url)
	if url == "" {
		return Image{}
	}
	return Image{Kind: ImageURL, URL: url}
}

func (img Image) IsZero() bool {
	return img.URL == ""
}

// ResolveURL prefixes relative media paths with host.
func (img Image) ResolveURL(host string) string {
	if img.URL == "" || host == "" {
		return img.URL
	}
	if strings.HasPrefix(img.URL, "http://") || strings.HasPrefix(img.URL, "https://") || strings.HasPrefix(img.URL, "data:") {
		return img.URL
	}
	return strings.TrimRight(host, "/") + "/" + strings.TrimLeft(img.URL, "/")
}
