package authclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

// Request describes one logical call. Body is held as bytes so the
// retry after a reissue can send it again unchanged.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string
}

// Response is a completed 2xx exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into dest. An empty body leaves dest
// untouched.
func (r *Response) Decode(dest any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 || dest == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// JSON builds a request with v encoded as the body. A nil v yields an
// empty body.
func JSON(method, path string, v any) (Request, error) {
	req := Request{Method: method, Path: path}
	if v == nil {
		return req, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return Request{}, fmt.Errorf("encode request: %w", err)
	}
	req.Body = body
	req.ContentType = "application/json"
	return req, nil
}

// Part is one section of a multipart body. Parts with a Filename are sent
// as file fields.
type Part struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// Multipart builds a multipart/form-data request from parts.
func Multipart(method, path string, parts ...Part) (Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, part := range parts {
		header := make(textproto.MIMEHeader)
		disposition := fmt.Sprintf(`form-data; name=%q`, part.Name)
		if part.Filename != "" {
			disposition += fmt.Sprintf(`; filename=%q`, part.Filename)
		}
		header.Set("Content-Disposition", disposition)
		contentType := part.ContentType
		if contentType == "" && part.Filename != "" {
			contentType = "application/octet-stream"
		}
		if contentType != "" {
			header.Set("Content-Type", contentType)
		}
		w, err := mw.CreatePart(header)
		if err != nil {
			return Request{}, fmt.Errorf("create part %s: %w", part.Name, err)
		}
		if _, err := w.Write(part.Data); err != nil {
			return Request{}, fmt.Errorf("write part %s: %w", part.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return Request{}, fmt.Errorf("close multipart: %w", err)
	}
	return Request{
		Method:      method,
		Path:        path,
		Body:        buf.Bytes(),
		ContentType: mw.FormDataContentType(),
	}, nil
}
