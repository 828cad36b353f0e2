package responsive

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gallery-tools/internal/models"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// DefaultCategories is the manifest used when the config does not define one.
func DefaultCategories() []models.Category {
	return []models.Category{
		{
			Name:   "hero",
			Widths: []int{400, 600, 800, 1200},
			Images: []string{
				"Marianna and Paul.jpg",
				"Marianna and Paul 120.jpg",
				"Charity and Matthew.jpg",
			},
		},
		{
			Name:   "portfolio",
			Widths: []int{300, 500, 700, 1000},
			Images: []string{
				"P&D 829.jpg",
				"Olivia and Andrew.jpg",
				"J&A 367.jpg",
				"Laura & Trevor.jpg",
				"Marianna and Paul-273.jpg",
			},
		},
		{
			Name:   "about",
			Widths: []int{400, 600, 800, 1200},
			Images: []string{"Novachuk Photographer.jpg"},
		},
	}
}

// ValidateCategories rejects manifests the generator cannot process.
func ValidateCategories(categories []models.Category) error {
	for _, c := range categories {
		if c.Name == "" {
			return fmt.Errorf("manifest category without a name")
		}
		for _, w := range c.Widths {
			if w <= 0 {
				return fmt.Errorf("category %s: width must be positive, got %d", c.Name, w)
			}
		}
	}
	return nil
}

// SafeBaseName turns a source filename into the base used for derivative names.
// Special cases are substituted first (longest key first), then whitespace runs
// become '-', '&' becomes "and", and the result is lowercased.
//
//	"P&D 829.jpg"          -> "pandd-829"
//	"Laura & Trevor.jpg"   -> "laura-and-trevor"
func SafeBaseName(filename string, specialCases map[string]string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	keys := make([]string, 0, len(specialCases))
	for k := range specialCases {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		base = strings.ReplaceAll(base, k, specialCases[k])
	}

	base = whitespaceRun.ReplaceAllString(base, "-")
	base = strings.ReplaceAll(base, "&", "and")
	return strings.ToLower(base)
}

// OutputPath is the derivative file for one (image, width, encoding).
func OutputPath(outputDir, safeBase string, width int, enc models.Encoding) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s-%d.%s", safeBase, width, enc))
}
