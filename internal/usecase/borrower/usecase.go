package borrower

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"microloan-backend/internal/domain/borrower"
	"microloan-backend/pkg/id"
)

type Usecase struct{ repo borrower.Repository }

func NewUsecase(r borrower.Repository) *Usecase { return &Usecase{repo: r} }

type RegisterInput struct {
	FullName   string `json:"full_name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

type BorrowerDTO struct {
	BorrowerID string    `json:"borrower_id"`
	FullName   string    `json:"full_name"`
	NationalID string    `json:"national_id"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *Usecase) Register(ctx context.Context, in RegisterInput) (*BorrowerDTO, error) {
	if in.FullName == "" || in.NationalID == "" || in.Phone == "" {
		return nil, errors.New("full name, national id and phone are required")
	}

	// One registration per national ID.
	existing, err := u.repo.GetByNationalID(ctx, in.NationalID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: borrower %s", borrower.ErrNationalIDExists, existing.BorrowerID)
	case !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, borrower.ErrNotFound):
		return nil, err
	}

	b := &borrower.Borrower{
		BorrowerID: id.NewID32(),
		FullName:   in.FullName,
		NationalID: in.NationalID,
		Phone:      in.Phone,
		Email:      in.Email,
	}
	if err := u.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	return toDTO(b), nil
}

func (u *Usecase) Get(ctx context.Context, borrowerID string) (*BorrowerDTO, error) {
	b, err := u.repo.GetByBorrowerID(ctx, borrowerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, borrower.ErrNotFound
		}
		return nil, err
	}
	return toDTO(b), nil
}

func toDTO(b *borrower.Borrower) *BorrowerDTO {
	return &BorrowerDTO{
		BorrowerID: b.BorrowerID,
		FullName:   b.FullName,
		NationalID: b.NationalID,
		Phone:      b.Phone,
		Email:      b.Email,
		CreatedAt:  b.CreatedAt,
	}
}
