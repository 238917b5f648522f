package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/services"
)

const (
	// maxPostBody leaves room for form fields next to a full-size image.
	maxPostBody      = services.MaxImageSize + 1<<20
	multipartMemory  = 8 << 20
	imageFieldPost   = "featuredImage"
	imageFieldUpload = "image"
)

// postRequest is the JSON form of a create or update body.
type postRequest struct {
	Title           *string         `json:"title"`
	Excerpt         *string         `json:"excerpt"`
	Content         *string         `json:"content"`
	Author          *string         `json:"author"`
	Status          *string         `json:"status"`
	Tags            json.RawMessage `json:"tags"`
	MetaTitle       *string         `json:"metaTitle"`
	MetaDescription *string         `json:"metaDescription"`
}

// parsedPost is a decoded post body. Close releases the uploaded file and any
// temporary files of the multipart form.
type parsedPost struct {
	input services.PostInput
	image *services.ImageUpload
	close func()
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func parsePostRequest(w http.ResponseWriter, r *http.Request) (*parsedPost, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPostBody)
	if isMultipart(r) {
		return parseMultipartPost(r)
	}
	return parseJSONPost(r)
}

func parseJSONPost(r *http.Request) (*parsedPost, error) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errs.NewMalformedPayloadError("blog post", err)
	}
	tags, err := decodeTags(req.Tags)
	if err != nil {
		return nil, err
	}
	return &parsedPost{
		input: services.PostInput{
			Title:           req.Title,
			Excerpt:         req.Excerpt,
			Content:         req.Content,
			Author:          req.Author,
			Status:          req.Status,
			Tags:            tags,
			MetaTitle:       req.MetaTitle,
			MetaDescription: req.MetaDescription,
		},
		close: func() {},
	}, nil
}

func parseMultipartForm(r *http.Request) error {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.NewUnsupportedImageError("image", "image exceeds the 5MB limit")
		}
		return errs.NewMalformedPayloadError("multipart", err)
	}
	return nil
}

func parseMultipartPost(r *http.Request) (*parsedPost, error) {
	if err := parseMultipartForm(r); err != nil {
		return nil, err
	}
	form := r.MultipartForm

	field := func(name string) *string {
		if values, ok := form.Value[name]; ok && len(values) > 0 {
			v := values[0]
			return &v
		}
		return nil
	}

	tags, err := formTags(form.Value)
	if err != nil {
		form.RemoveAll()
		return nil, err
	}

	parsed := &parsedPost{
		input: services.PostInput{
			Title:           field("title"),
			Excerpt:         field("excerpt"),
			Content:         field("content"),
			Author:          field("author"),
			Status:          field("status"),
			Tags:            tags,
			MetaTitle:       field("metaTitle"),
			MetaDescription: field("metaDescription"),
		},
	}

	image, file, err := formImage(form, imageFieldPost)
	if err != nil {
		form.RemoveAll()
		return nil, err
	}
	parsed.image = image
	parsed.close = func() {
		if file != nil {
			file.Close()
		}
		form.RemoveAll()
	}
	return parsed, nil
}

// formImage opens the first file under name, or returns nil when none was sent.
func formImage(form *multipart.Form, name string) (*services.ImageUpload, multipart.File, error) {
	headers := form.File[name]
	if len(headers) == 0 {
		return nil, nil, nil
	}
	fh := headers[0]
	file, err := fh.Open()
	if err != nil {
		return nil, nil, errs.NewMalformedPayloadError("multipart", err)
	}
	return &services.ImageUpload{
		Field:       name,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
	}, file, nil
}

// formTags accepts repeated tags fields, a JSON array or a comma-separated string.
func formTags(values map[string][]string) ([]string, error) {
	raw, ok := values["tags"]
	if !ok {
		raw, ok = values["tags[]"]
	}
	if !ok {
		return nil, nil
	}
	if len(raw) == 1 {
		single := strings.TrimSpace(raw[0])
		if strings.HasPrefix(single, "[") {
			return decodeTags(json.RawMessage(single))
		}
		return splitTags(single), nil
	}
	return cleanTagList(raw), nil
}

// decodeTags reads tags from JSON: an array of strings, a comma-separated
// string, or null/absent meaning "not supplied".
func decodeTags(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return cleanTagList(list), nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return splitTags(single), nil
	}
	return nil, errs.NewInvalidFieldError("tags", "must be an array of strings or a comma-separated string")
}

func splitTags(s string) []string {
	return cleanTagList(strings.Split(s, ","))
}

func cleanTagList(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
