package whatsapp

// TemplateMessage describes one outbound template send.
type TemplateMessage struct {
	To           string
	TemplateName string
	Language     string
	BodyParams   []string
	ButtonParams []string
	ImageURL     string
	DocumentURL  string
	Filename     string
}

// Cloud API wire types.

type sendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type templateBody struct {
	Name       string         `json:"name"`
	Language   languageBody   `json:"language"`
	Components []componentRow `json:"components,omitempty"`
}

type languageBody struct {
	Code string `json:"code"`
}

type componentRow struct {
	Type       string         `json:"type"`
	SubType    string         `json:"sub_type,omitempty"`
	Index      string         `json:"index,omitempty"`
	Parameters []parameterRow `json:"parameters,omitempty"`
}

type parameterRow struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	Image    *mediaLink    `json:"image,omitempty"`
	Document *documentLink `json:"document,omitempty"`
}

type mediaLink struct {
	Link string `json:"link"`
}

type documentLink struct {
	Link     string `json:"link"`
	Filename string `json:"filename,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}
