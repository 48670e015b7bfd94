package service

import "errors"

// Sentinel errors returned by the service layer. The HTTP layer maps
// them onto status codes: not-found errors become 404, everything else
// here becomes 400.
var (
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrTemplateNotApproved  = errors.New("template is not approved")
	ErrNameRequired         = errors.New("campaign name is required")
	ErrNoSegments           = errors.New("campaign has no target segments")
	ErrNoRecipients         = errors.New("campaign segments resolve to no contacts")
	ErrInvalidTransition    = errors.New("invalid campaign status transition")
	ErrCampaignLocked       = errors.New("campaign cannot be modified in its current status")
	ErrInvalidRecipient     = errors.New("exactly one of contact_id and phone_number must be set")
	ErrTemplateNameRequired = errors.New("template name is required")
	ErrEmptyMessage         = errors.New("message text is required")
)

// IsNotFound reports whether err maps to a 404. A missing template on
// campaign create is a caller mistake, not a missing resource, so it is
// deliberately absent here.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrConversationNotFound)
}
