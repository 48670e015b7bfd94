package worker

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/sendloop/wa-platform/internal/models"
	"github.com/sendloop/wa-platform/internal/phone"
)

var templateNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var allowedMediaExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".txt":  true,
	".mp4":  true,
}

// Validator enforces the field-level job constraints before any network
// call is attempted.
type Validator struct {
	MaxBodyParams      int
	MaxButtonParams    int
	DefaultCountryCode string
}

// Sanitize trims all string fields and collapses empty optional slices.
func (v *Validator) Sanitize(p *models.JobPayload) {
	p.PhoneNumber = strings.TrimSpace(p.PhoneNumber)
	p.TemplateName = strings.TrimSpace(p.TemplateName)
	p.ImageURL = strings.TrimSpace(p.ImageURL)
	p.DocumentURL = strings.TrimSpace(p.DocumentURL)
	p.Filename = strings.TrimSpace(p.Filename)

	p.Params = trimAll(p.Params)
	p.ButtonParams = trimAll(p.ButtonParams)
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, s := range values {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// Validate returns a *ValidationError listing every violated constraint,
// or nil when the payload is acceptable.
func (v *Validator) Validate(p *models.JobPayload) error {
	var fields []FieldError

	hasContact := p.ContactID != nil
	hasPhone := p.PhoneNumber != ""
	switch {
	case !hasContact && !hasPhone:
		fields = append(fields, FieldError{Field: "recipient", Reason: "either contactId or phoneNumber is required"})
	case hasContact && hasPhone:
		fields = append(fields, FieldError{Field: "recipient", Reason: "contactId and phoneNumber are mutually exclusive"})
	}

	if hasPhone {
		if _, err := phone.Canonicalize(p.PhoneNumber, v.DefaultCountryCode); err != nil {
			fields = append(fields, FieldError{Field: "phoneNumber", Reason: "must contain at least 7 digits"})
		}
	}

	switch {
	case p.TemplateName == "":
		fields = append(fields, FieldError{Field: "templateName", Reason: "is required"})
	case !templateNamePattern.MatchString(p.TemplateName):
		fields = append(fields, FieldError{Field: "templateName", Reason: "may only contain letters, digits and underscores"})
	}

	if len(p.Params) > v.MaxBodyParams {
		fields = append(fields, FieldError{Field: "params", Reason: "too many body parameters"})
	}
	if len(p.ButtonParams) > v.MaxButtonParams {
		fields = append(fields, FieldError{Field: "buttonParams", Reason: "at most 3 button parameters are allowed"})
	}

	if p.ImageURL != "" {
		if reason := checkMediaURL(p.ImageURL); reason != "" {
			fields = append(fields, FieldError{Field: "imageUrl", Reason: reason})
		}
	}
	if p.DocumentURL != "" {
		if reason := checkMediaURL(p.DocumentURL); reason != "" {
			fields = append(fields, FieldError{Field: "documentUrl", Reason: reason})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	return nil
}

func checkMediaURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "is not a valid URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "must use http or https"
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if !allowedMediaExtensions[ext] {
		return "file extension is not allowed"
	}

	return ""
}
