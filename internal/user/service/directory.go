// Package service exposes user storage in terms of domain entities.
package service

import (
	"context"

	"github.com/AlibekovAA/userstore/internal/common/clock"
	"github.com/AlibekovAA/userstore/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/userstore/internal/common/errors"
	"github.com/AlibekovAA/userstore/internal/common/logger"
	"github.com/AlibekovAA/userstore/internal/user/domain"
	"github.com/AlibekovAA/userstore/internal/user/mapper"
	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
)

type DirectoryDeps struct {
	Store       repository.UserStore[model.User]
	Clock       clock.Clock
	IDGenerator crypto.IDGenerator
	Log         *logger.Logger
}

type Directory struct {
	store       repository.UserStore[model.User]
	clock       clock.Clock
	idGenerator crypto.IDGenerator
	log         *logger.Logger
}

func NewDirectory(deps DirectoryDeps) *Directory {
	c := deps.Clock
	if c == nil {
		c = clock.NewRealClock()
	}
	gen := deps.IDGenerator
	if gen == nil {
		gen = crypto.NewUUIDGenerator()
	}
	return &Directory{
		store:       deps.Store,
		clock:       c,
		idGenerator: gen,
		log:         deps.Log,
	}
}

// Register stores u as a new member of scope.
func (d *Directory) Register(ctx context.Context, scope string, u domain.User, opts ...RecordOption) error {
	if err := ValidateID(u.ID()); err != nil {
		d.log.WithFields(ctx, logger.Fields{
			"user_id": u.ID(),
			"scope":   scope,
			"action":  "register_validation_failed",
		}).Warnf("register rejected: %v", err)
		return err
	}

	now := d.clock.Now()
	record := mapper.ToModelInScope(u, scope)
	record.CreatedAt = now
	record.UpdatedAt = now
	for _, opt := range opts {
		opt(&record)
	}

	if err := d.store.Add(ctx, record); err != nil {
		return err
	}

	d.log.WithFields(ctx, logger.Fields{
		"user_id": u.ID(),
		"scope":   scope,
		"action":  "register_success",
	}).Info("user registered")
	return nil
}

// RegisterNew registers a user under a freshly generated id.
func (d *Directory) RegisterNew(ctx context.Context, scope string, opts ...RecordOption) (domain.User, error) {
	id, err := d.idGenerator.NewID()
	if err != nil {
		d.log.WithFields(ctx, logger.Fields{
			"scope":  scope,
			"action": "register_id_generation_failed",
		}).Errorf("register failed: id generation error: %v", err)
		return domain.User{}, err
	}
	if id == "" {
		return domain.User{}, commonerrors.ErrEmptyUUID
	}

	u := domain.New(id)
	if err := d.Register(ctx, scope, u, opts...); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (d *Directory) Get(ctx context.Context, id string) (domain.User, error) {
	record, err := d.store.Fetch(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return mapper.FromModel(record)
}

// Amend applies opts to the stored record and writes the whole record back.
// The id never changes.
func (d *Directory) Amend(ctx context.Context, id string, opts ...RecordOption) (model.User, error) {
	record, err := d.store.Fetch(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	for _, opt := range opts {
		opt(&record)
	}
	record.ID = id
	record.UpdatedAt = d.clock.Now()

	if err := d.store.Update(ctx, record); err != nil {
		return model.User{}, err
	}

	d.log.WithFields(ctx, logger.Fields{
		"user_id": id,
		"scope":   record.Scope,
		"action":  "amend_success",
	}).Info("user updated")
	return record, nil
}

// Rescope moves a user to scope, keeping the rest of the stored record.
func (d *Directory) Rescope(ctx context.Context, id, scope string) error {
	_, err := d.Amend(ctx, id, WithScope(scope))
	return err
}

func (d *Directory) Delete(ctx context.Context, id string) (domain.User, error) {
	record, err := d.store.Remove(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	d.log.WithFields(ctx, logger.Fields{
		"user_id": id,
		"scope":   record.Scope,
		"action":  "delete_success",
	}).Info("user deleted")
	return domain.New(record.ID), nil
}

func (d *Directory) Members(ctx context.Context, scope string) ([]domain.User, error) {
	records, err := d.store.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	return mapper.FromModels(records)
}

func (d *Directory) Exists(ctx context.Context, id string) (bool, error) {
	return d.store.Exists(ctx, id)
}
