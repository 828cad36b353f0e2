package summary

import (
	"context"
	"fmt"
	"path"
	"strings"

	"gallery-tools/internal/helpers"
	"gallery-tools/internal/models"
)

// QuickRules is the deterministic summarizer used by `commit`.
type QuickRules struct{}

func (QuickRules) Name() string { return "quick rules" }

func (QuickRules) Summarize(_ context.Context, cs models.ChangeSet) (string, error) {
	if cs.Empty() {
		return "", ErrNoChanges
	}

	var messages []string

	newAssets := filter(cs.Added, containsFunc("assets/"))
	gallery := len(newAssets) > 0 && anyOf(cs.Modified, containsFunc("Portfolio.tsx"))
	style := anyOf(cs.Modified, containsFunc(".css", "tailwind", "Navbar", "styles"))
	component := anyOf(cs.Modified, containsFunc(".tsx", ".jsx"))
	build := anyOf(cs.Modified, containsFunc("vite.config", "package.json", "tsconfig"))
	scripts := anyOf(cs.Modified, containsFunc("scripts/"))

	if gallery {
		messages = append(messages, fmt.Sprintf("Add %s gallery", stem(newAssets[0])))
	}
	if style && !gallery {
		if anyOf(cs.Modified, func(f string) bool { return f == "src/components/Navbar.tsx" }) {
			messages = append(messages, "Update navbar styles")
		} else {
			messages = append(messages, "Update styles")
		}
	}
	if component && !gallery && !style {
		var names []string
		for _, f := range cs.Modified {
			if strings.Contains(f, "components/") && len(names) < 2 {
				names = append(names, strings.TrimSuffix(path.Base(f), ".tsx"))
			}
		}
		if len(names) > 0 {
			messages = append(messages, fmt.Sprintf("Update %s components", strings.Join(names, " and ")))
		}
	}
	if build {
		messages = append(messages, "Update build configuration")
	}
	if scripts {
		messages = append(messages, "Update automation scripts")
	}

	if len(messages) == 0 {
		if n := len(cs.Modified); n > 0 {
			messages = append(messages, "Update "+helpers.Plural(n, "file"))
		}
		if n := len(cs.Added); n > 0 {
			messages = append(messages, "Add "+helpers.Plural(n, "file"))
		}
		if n := len(cs.Deleted); n > 0 {
			messages = append(messages, "Delete "+helpers.Plural(n, "file"))
		}
		if n := len(cs.Renamed); n > 0 && len(messages) == 0 {
			messages = append(messages, "Rename "+helpers.Plural(n, "file"))
		}
	}
	return strings.Join(messages, ", "), nil
}

// DeployRules is the deterministic fallback used by `deploy` when no AI summary is available.
type DeployRules struct{}

func (DeployRules) Name() string { return "deploy rules" }

func (DeployRules) Summarize(_ context.Context, cs models.ChangeSet) (string, error) {
	if cs.Empty() {
		return "", ErrNoChanges
	}
	files := cs.Files()
	changed := func(needles ...string) bool {
		for _, f := range files {
			if containsFunc(needles...)(f.Path) {
				return true
			}
		}
		return false
	}

	var newImage string
	for _, f := range files {
		if f.Action == "added" && strings.Contains(f.Path, "assets/") {
			newImage = f.Path
			break
		}
	}
	portfolio := changed("Portfolio.tsx")
	hero := changed("Hero.tsx")
	seo := changed("index.html")

	switch {
	case newImage != "" && portfolio:
		name := strings.NewReplacer(".jpg", "", ".jpeg", "", ".png", "", ".webp", "", `"`, "").Replace(path.Base(newImage))
		var updates []string
		if seo {
			updates = append(updates, "SEO updates")
		}
		if hero {
			updates = append(updates, "hero updates")
		}
		if len(updates) > 0 {
			return fmt.Sprintf("Add %s gallery with %s", name, strings.Join(updates, " and ")), nil
		}
		return fmt.Sprintf("Add %s gallery", name), nil
	case portfolio && seo:
		return "Update portfolio and SEO keywords", nil
	case hero && seo:
		return "Update hero section and SEO", nil
	case portfolio:
		return "Update portfolio gallery content", nil
	case hero:
		return "Update hero section layout", nil
	case seo:
		return "Update SEO meta tags and keywords", nil
	case changed("Navbar"):
		return "Update navbar styles and layout", nil
	case changed("About"):
		return "Update About section content", nil
	case changed("Services"):
		return "Update Services section", nil
	case changed("Contact"):
		return "Update Contact form", nil
	case changed("vite.config", "package.json"):
		return "Update build configuration", nil
	}

	var kinds []string
	seen := map[string]bool{}
	for _, f := range files {
		kind := fileKind(f.Path)
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return "Update " + strings.Join(kinds, " and "), nil
}

func fileKind(p string) string {
	switch path.Ext(p) {
	case ".tsx", ".jsx":
		return "components"
	case ".css":
		return "styles"
	case ".js", ".mjs", ".ts":
		return "scripts"
	default:
		return "files"
	}
}

func stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func containsFunc(needles ...string) func(string) bool {
	return func(s string) bool {
		for _, n := range needles {
			if strings.Contains(s, n) {
				return true
			}
		}
		return false
	}
}

func anyOf(list []string, pred func(string) bool) bool {
	for _, s := range list {
		if pred(s) {
			return true
		}
	}
	return false
}

func filter(list []string, pred func(string) bool) []string {
	var out []string
	for _, s := range list {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out
}
