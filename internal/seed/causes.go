package seed

import (
	"context"
	"errors"
	"fmt"

	"causeconnect/pkg/types"
)

// CauseRepository is the subset of store.CauseRepository the seeder writes through.
type CauseRepository interface {
	Cause(ctx context.Context, causeID string) (*types.Cause, error)
	CreateCause(ctx context.Context, cause *types.Cause) error
}

// Fixed ids keep reseeding idempotent.
// To generate new IDs: `go run ./cmd/causeconnect nanoid`
var sampleCauses = []types.CauseInput{
	{
		Title:       "Clean Water for Riverside School",
		Description: "Fund a filtration unit and refill station for 400 students.",
		Story:       "The school's only tap draws from a contaminated well.",
		Impact:      "Safe drinking water for every student during school hours.",
		Timeline:    "Installation within six weeks of full sponsorship.",
		Category:    "education",
		Goal:        1500,
	},
	{
		Title:       "Community Kitchen Winter Meals",
		Description: "Keep the downtown kitchen serving hot meals through the winter.",
		Story:       "Demand doubles every December while donations drop.",
		Impact:      "Roughly 12,000 meals over three months.",
		Timeline:    "December through February.",
		Category:    "food",
		Goal:        2500,
	},
	{
		Title:       "Library Books for Hillcrest",
		Description: "Restock the children's section of the Hillcrest branch library.",
		Story:       "Flooding last spring destroyed most of the picture book collection.",
		Impact:      "About 800 new titles for readers under twelve.",
		Timeline:    "Books on shelves by the start of the school year.",
		Category:    "education",
		Goal:        800,
	},
}

var sampleCauseIDs = []string{
	"Q7wd2RkXb0VtnJ4sYc9LmPa1eHgU3ZfK",
	"t5NcB8yLr2WqXe6GjD0vKmA9sUhP4fRz",
	"H3kZp9VsM1xTq7YbW0eNcJ5gR2dLuA8F",
}

// SeedCauses inserts the sample causes as open and online, created by
// admin. Causes that already exist are left untouched so reseeding never
// clobbers sponsorships or claims. It returns how many were created.
func SeedCauses(ctx context.Context, repo CauseRepository, admin *types.User) (int, error) {
	created := 0
	for i, input := range sampleCauses {
		id := sampleCauseIDs[i]

		_, err := repo.Cause(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, types.ErrCauseNotFound) {
			return created, fmt.Errorf("failed to fetch cause %s: %w", id, err)
		}

		cause := sampleCause(id, input, admin)
		if err := repo.CreateCause(ctx, cause); err != nil {
			return created, fmt.Errorf("failed to create cause %q: %w", input.Title, err)
		}
		created++
	}

	return created, nil
}

func sampleCause(id string, input types.CauseInput, admin *types.User) *types.Cause {
	name := admin.DisplayName()
	email := admin.Email
	return &types.Cause{
		ID:           id,
		Title:        input.Title,
		Description:  input.Description,
		Story:        input.Story,
		Impact:       input.Impact,
		Timeline:     input.Timeline,
		Category:     input.Category,
		Goal:         input.Goal,
		Status:       types.CauseStatusOpen,
		IsOnline:     true,
		CreatedBy:    &admin.ID,
		CreatorName:  &name,
		CreatorEmail: &email,
		Sponsors:     []types.Sponsor{},
	}
}
