package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"churnboard/internal/account"
	"churnboard/internal/churn"
	id "churnboard/pkg/domain"
	dErrors "churnboard/pkg/domain-errors"
	"churnboard/pkg/platform/sentinel"
	"churnboard/pkg/requestcontext"
)

// ProfileUpdate changes the fields that are set.
type ProfileUpdate struct {
	Name    *string
	Company *string
}

func (s *Service) Profile(ctx context.Context, userID id.UserID) (*account.Profile, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID id.UserID, upd ProfileUpdate) (*account.Profile, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "name cannot be empty")
		}
		u.Name = name
	}
	if upd.Company != nil {
		u.Company = strings.TrimSpace(*upd.Company)
	}
	u.UpdatedAt = requestcontext.Now(ctx).UTC()
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	s.logAudit(ctx, "profile_updated", "user_id", userID)
	p := u.Profile()
	return &p, nil
}

func (s *Service) Settings(ctx context.Context, userID id.UserID) (*account.Settings, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings := u.Settings()
	return &settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, userID id.UserID, settings account.Settings) (*account.Settings, error) {
	if !slices.Contains([]string{churn.ModelLogistic, churn.ModelRandomForest}, settings.DefaultModel) {
		return nil, dErrors.New(dErrors.CodeValidation, "defaultModel must be logistic or randomForest")
	}
	if !slices.Contains([]string{churn.ThresholdF1, churn.ThresholdCost}, settings.DefaultThresholdType) {
		return nil, dErrors.New(dErrors.CodeValidation, "defaultThresholdType must be f1 or cost")
	}

	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.DefaultModel = settings.DefaultModel
	u.DefaultThresholdType = settings.DefaultThresholdType
	u.UpdatedAt = requestcontext.Now(ctx).UTC()
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	s.logAudit(ctx, "settings_updated",
		"user_id", userID,
		"model", settings.DefaultModel,
		"threshold_type", settings.DefaultThresholdType,
	)
	updated := u.Settings()
	return &updated, nil
}

// PredictionDefaults returns the user's preferred model and threshold type.
func (s *Service) PredictionDefaults(ctx context.Context, userID id.UserID) (string, string, error) {
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return settings.DefaultModel, settings.DefaultThresholdType, nil
}

func (s *Service) load(ctx context.Context, userID id.UserID) (*account.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return u, nil
}

func (s *Service) save(ctx context.Context, u *account.User) error {
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account")
	}
	return nil
}
