package backend

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// Upload is a file sent alongside a multipart form.
type Upload struct {
	Field    string
	Filename string
	Content  io.Reader
}

type multipartBody struct {
	fields  [][2]string
	uploads []Upload
}

func (m *multipartBody) add(name, value string) {
	m.fields = append(m.fields, [2]string{name, value})
}

func (m *multipartBody) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range m.fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	for _, u := range m.uploads {
		field := u.Field
		if field == "" {
			field = "uploaded_images"
		}
		part, err := w.CreateFormFile(field, u.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, u.Content); err != nil {
			return nil, "", fmt.Errorf("copy %s: %w", u.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
