package handler

import (
	"errors"

	"github.com/sendloop/wa-platform/internal/service"
)

// isPreconditionError reports whether the error is a caller-fixable
// precondition failure, rendered as 400.
func isPreconditionError(err error) bool {
	for _, sentinel := range []error{
		service.ErrNameRequired,
		service.ErrNoSegments,
		service.ErrNoRecipients,
		service.ErrInvalidTransition,
		service.ErrCampaignLocked,
		service.ErrTemplateNotApproved,
		service.ErrTemplateNotFound,
		service.ErrInvalidRecipient,
		service.ErrTemplateNameRequired,
		service.ErrEmptyMessage,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
