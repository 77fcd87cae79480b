package types

import "fmt"

// Category represents the closed set of semantic memory categories
type Category string

const (
	CategoryPersonal Category = "PERSONAL"
	CategoryGoals    Category = "GOALS"
	CategoryFinance  Category = "FINANCE"
	CategoryOther    Category = "OTHER"
)

// AllCategories returns all valid categories
func AllCategories() []Category {
	return []Category{
		CategoryPersonal,
		CategoryGoals,
		CategoryFinance,
		CategoryOther,
	}
}

// IsValid checks if the category is valid
func (c Category) IsValid() bool {
	switch c {
	case CategoryPersonal,
		CategoryGoals,
		CategoryFinance,
		CategoryOther:
		return true
	default:
		return false
	}
}

// Normalize returns the category, treating empty as CategoryOther.
func (c Category) Normalize() Category {
	if c == "" {
		return CategoryOther
	}
	return c
}

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// ParseCategory parses a string into a Category
func ParseCategory(s string) (Category, error) {
	category := Category(s)
	if !category.IsValid() {
		return "", fmt.Errorf("invalid category: %s", s)
	}
	return category, nil
}
