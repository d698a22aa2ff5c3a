package service

import (
	"context"

	"optin/internal/consent/models"
)

// dependents lists, for each level a visitor can narrow to, the categories
// whose cookies stop being covered. Performance sits outside the nesting
// chain and is purged on its own.
var dependents = map[models.Category][]models.Category{
	models.CategoryStrict:     {models.CategoryFunctional, models.CategoryTargeting},
	models.CategoryFunctional: {models.CategoryTargeting},
}

// Dependents returns the categories purged when consent narrows to level.
func Dependents(level models.Category) []models.Category {
	return dependents[level]
}

// Revoke purges the associated cookies of every dependent of narrowedTo and
// returns how many cookie names were removed. Which cookies belong to which
// category is configuration; only the dependency table lives here.
func (s *Service) Revoke(ctx context.Context, cookies CookieStore, narrowedTo models.Category) int {
	purged := 0
	for _, category := range dependents[narrowedTo] {
		purged += s.purge(ctx, cookies, category)
	}
	return purged
}

// cascade purges what prior covered and next no longer does: the dependents
// of a narrower level, and every category withdrawn on its own. Functional
// can be withdrawn while targeting stays granted, so the level alone misses it.
func (s *Service) cascade(ctx context.Context, cookies CookieStore, prior, next models.Flags) {
	withdrawn := map[models.Category]bool{}
	if prior.Level().Broader(next.Level()) {
		for _, category := range dependents[next.Level()] {
			withdrawn[category] = true
		}
	}
	for _, category := range models.GateableCategories {
		if prior.Allows(category) && !next.Allows(category) {
			withdrawn[category] = true
		}
	}
	for _, category := range models.GateableCategories {
		if withdrawn[category] {
			s.purge(ctx, cookies, category)
		}
	}
}

func (s *Service) purge(ctx context.Context, cookies CookieStore, category models.Category) int {
	names := s.cfg.Associated(category)
	if len(names) == 0 || !cookies.Remove(names...) {
		return 0
	}
	s.logInfo(ctx, "associated cookies purged",
		"category", category,
		"count", len(names),
	)
	if s.metrics != nil {
		s.metrics.AddCookiesPurged(category.String(), len(names))
	}
	return len(names)
}
