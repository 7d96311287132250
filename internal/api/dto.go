package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/noteshare/internal/models"
	"github.com/starford/noteshare/internal/noteservice"
)

// SendCodeRequest starts a phone sign-in.
type SendCodeRequest struct {
	Phone string `json:"phone" example:"+15551234567" validate:"required"`
}

// Validate validates the request.
func (r SendCodeRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Phone, validation.Required))
}

// SendCodeResponse carries the verification ID to confirm against.
type SendCodeResponse struct {
	VerificationID string `json:"verification_id" validate:"required"`
}

// ConfirmCodeRequest completes a phone sign-in.
type ConfirmCodeRequest struct {
	VerificationID string `json:"verification_id" validate:"required"`
	Code           string `json:"code" example:"123456" validate:"required"`
}

// Validate validates the request.
func (r ConfirmCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.VerificationID, validation.Required),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6)),
	)
}

// CredentialsRequest is the body of sign-up and sign-in.
type CredentialsRequest struct {
	Email    string `json:"email" example:"ada@example.com" validate:"required"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name,omitempty" example:"Ada"`
}

// Validate validates the request.
func (r CredentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// ProfileRequest updates the editable profile fields.
type ProfileRequest struct {
	Name    string `json:"name" example:"Ada" validate:"required"`
	College string `json:"college" example:"Trinity"`
}

// Validate validates the request.
func (r ProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.College, validation.Length(0, 200)),
	)
}

// InterestsBody is both the request and response of /me/interests.
type InterestsBody struct {
	Interests []string `json:"interests" validate:"required"`
}

// OpenListingRequest creates a listing session.
type OpenListingRequest struct {
	Kind   noteservice.ListingKind `json:"kind" example:"subject" validate:"required"`
	Filter string                  `json:"filter,omitempty" example:"Physics"`
}

// Validate validates the request.
func (r OpenListingRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In(
			noteservice.ListingSubject, noteservice.ListingSearch, noteservice.ListingStarred)),
	)
}

// VisibleRequest reports the last visible row of a listing.
type VisibleRequest struct {
	LastIndex *int `json:"last_index" example:"9" validate:"required"`
}

// Validate validates the request.
func (r VisibleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.LastIndex, validation.NotNil, validation.Min(0)),
	)
}

// VisibleResponse reports whether a next-page fetch was started.
type VisibleResponse struct {
	Started bool         `json:"started"`
	Listing *ListingInfo `json:"listing"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = models.Note

// NotePage is a cursor page of summaries (aliased from the domain layer).
type NotePage = noteservice.Page

// ListingInfo is a listing session response (aliased from the domain layer).
type ListingInfo = noteservice.ListingInfo

// SubjectsResponse lists subjects with at least one note.
type SubjectsResponse struct {
	Subjects []string `json:"subjects" validate:"required"`
}
