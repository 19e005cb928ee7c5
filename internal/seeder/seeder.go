// Package seeder loads demo data for development environments: a pair of
// approved profiles with funded wallets, enough to exercise the full
// transfer workflow against a fresh database.
package seeder

import (
	"log/slog"

	"github.com/cradoe/gopass"
	"github.com/seyialao/payguard/internal/models"
	"github.com/seyialao/payguard/internal/repository"
)

type Seeder struct {
	DB     repository.Database
	Logger *slog.Logger
}

func New(db repository.Database, logger *slog.Logger) *Seeder {
	return &Seeder{
		DB:     db,
		Logger: logger,
	}
}

func (seeder *Seeder) Run() {
	seeder.seedDemoProfiles()
}

func (seeder *Seeder) seedDemoProfiles() {
	profiles := []struct {
		user    models.User
		balance int64
	}{
		{
			user: models.User{
				FirstName:   "Ada",
				LastName:    "Obi",
				Email:       "ada@payguard.app",
				PhoneNumber: "+2348012345678",
			},
			balance: 500_000_00, // N500,000 in kobo
		},
		{
			user: models.User{
				FirstName:   "Tunde",
				LastName:    "Bello",
				Email:       "tunde@payguard.app",
				PhoneNumber: "+2348087654321",
			},
			balance: 250_000_00,
		},
	}

	for _, profile := range profiles {
		_, found, err := seeder.DB.User().GetByEmail(profile.user.Email)
		if err != nil {
			seeder.Logger.Error("error checking seed profile", "email", profile.user.Email, "error", err)
			continue
		}
		if found {
			continue
		}

		hashedPassword, err := gopass.Hash("Pa55word!Demo")
		if err != nil {
			seeder.Logger.Error("error hashing seed password", "error", err)
			continue
		}

		profile.user.HashedPassword = hashedPassword
		profile.user.WalletBalance = profile.balance

		id, err := seeder.DB.User().Insert(&profile.user, nil)
		if err != nil {
			seeder.Logger.Error("error inserting seed profile", "email", profile.user.Email, "error", err)
			continue
		}

		// seeded profiles skip identity review so transfers work right away
		err = seeder.DB.User().SetVerificationStatus(id, repository.VerificationApproved)
		if err != nil {
			seeder.Logger.Error("error approving seed profile", "email", profile.user.Email, "error", err)
		}
	}
}
