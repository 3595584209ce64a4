package mapper

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/AlibekovAA/userstore/internal/user/domain"
	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func ToModel(user domain.User) model.User {
	return model.User{ID: user.ID()}
}

func ToModelInScope(user domain.User, scope string) model.User {
	return model.User{ID: user.ID(), Scope: scope}
}

// FromModel rebuilds the entity from a stored record. Records without a usable
// identifier fail with repository.ErrConversion.
func FromModel(record model.User) (domain.User, error) {
	if strings.TrimSpace(record.ID) == "" {
		return domain.User{}, repository.Conversion(errors.New("record has no id"))
	}
	if err := recordValidator().Struct(record); err != nil {
		return domain.User{}, repository.Conversion(fmt.Errorf("record %q: %w", record.ID, err))
	}
	return domain.New(record.ID), nil
}

func FromModels(records []model.User) ([]domain.User, error) {
	result := make([]domain.User, len(records))
	for i, r := range records {
		u, err := FromModel(r)
		if err != nil {
			return nil, err
		}
		result[i] = u
	}
	return result, nil
}
