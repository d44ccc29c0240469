package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is returned when a campaign id does not exist.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ValidationError covers malformed input data: an invalid phone number, an
// empty rendered message. Recorded on the task, never aborts a batch.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ProviderError is an explicit rejection from the messaging gateway.
type ProviderError struct {
	Msg string
}

func (e *ProviderError) Error() string { return e.Msg }

func NewProvider(format string, args ...any) error {
	return &ProviderError{Msg: fmt.Sprintf(format, args...)}
}

// PreconditionError rejects an operator action before any task is touched:
// provider not connected, starting a campaign already sending, editing a
// non-draft campaign.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

func NewPrecondition(format string, args ...any) error {
	return &PreconditionError{Msg: fmt.Sprintf(format, args...)}
}

func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *ErrCampaignNotFound
	return errors.As(err, &nf)
}
