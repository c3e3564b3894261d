package handler

import (
	"strings"

	"github.com/asaskevich/govalidator"

	"churnboard/internal/account"
	"churnboard/internal/account/service"
	dErrors "churnboard/pkg/domain-errors"
	"churnboard/pkg/email"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72
	maxTextLength     = 200
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Company  string `json:"company"`
}

func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = email.Normalize(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.Company = strings.TrimSpace(r.Company)
	if !email.IsValid(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email must be a valid address")
	}
	if err := validatePassword(r.Password); err != nil {
		return err
	}
	if !govalidator.StringLength(r.Name, "0", "200") || !govalidator.StringLength(r.Company, "0", "200") {
		return dErrors.New(dErrors.CodeValidation, "name and company must be at most 200 characters")
	}
	return nil
}

func (r *RegisterRequest) ToInput() service.RegisterInput {
	return service.RegisterInput{
		Email:    r.Email,
		Password: r.Password,
		Name:     r.Name,
		Company:  r.Company,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = email.Normalize(r.Email)
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	return nil
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

func (r *PasswordResetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = email.Normalize(r.Email)
	if !email.IsValid(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email must be a valid address")
	}
	return nil
}

type PasswordResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r *PasswordResetConfirmRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Token = strings.TrimSpace(r.Token)
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	return validatePassword(r.Password)
}

// UpdateProfileRequest carries the fields to change; omitted fields keep
// their value.
type UpdateProfileRequest struct {
	Name    *string `json:"name"`
	Company *string `json:"company"`
}

func (r *UpdateProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Name == nil && r.Company == nil {
		return dErrors.New(dErrors.CodeValidation, "name or company is required")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
	}
	for _, v := range []*string{r.Name, r.Company} {
		if v != nil && len(strings.TrimSpace(*v)) > maxTextLength {
			return dErrors.New(dErrors.CodeValidation, "name and company must be at most 200 characters")
		}
	}
	return nil
}

func (r *UpdateProfileRequest) ToUpdate() service.ProfileUpdate {
	return service.ProfileUpdate{Name: r.Name, Company: r.Company}
}

type SettingsRequest struct {
	DefaultModel         string `json:"defaultModel"`
	DefaultThresholdType string `json:"defaultThresholdType"`
}

func (r *SettingsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.DefaultModel = strings.TrimSpace(r.DefaultModel)
	r.DefaultThresholdType = strings.TrimSpace(r.DefaultThresholdType)
	if r.DefaultModel == "" || r.DefaultThresholdType == "" {
		return dErrors.New(dErrors.CodeValidation, "defaultModel and defaultThresholdType are required")
	}
	return nil
}

func (r *SettingsRequest) ToSettings() account.Settings {
	return account.Settings{
		DefaultModel:         r.DefaultModel,
		DefaultThresholdType: r.DefaultThresholdType,
	}
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be between 8 and 72 bytes")
	}
	return nil
}
