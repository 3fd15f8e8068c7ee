// Package addressbook loads saved addresses and turns them into order snapshots.
package addressbook

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) GetAddress(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var address models.Address
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("address", id.String())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return &address, nil
}

// SnapshotOwned loads an address, checks it belongs to ownerID and copies it.
func (r *Repository) SnapshotOwned(ctx context.Context, id, ownerID uuid.UUID) (types.AddressSnapshot, error) {
	address, err := r.GetAddress(ctx, id)
	if err != nil {
		return types.AddressSnapshot{}, err
	}
	if address.UserID != ownerID {
		return types.AddressSnapshot{}, pkgerrors.Ownership("address", id.String())
	}
	return Snapshot(*address), nil
}

// Snapshot copies the deliverable fields of an address book entry.
func Snapshot(address models.Address) types.AddressSnapshot {
	return types.AddressSnapshot{
		FullName:    address.FullName,
		Phone:       address.Phone,
		Area:        address.Area,
		AddressLine: address.AddressLine,
		City:        address.City,
		Landmark:    address.Landmark,
	}
}
