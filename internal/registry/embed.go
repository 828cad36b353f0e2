package registry

import (
	"fmt"
	"regexp"
	"strings"
)

var embedIDPattern = regexp.MustCompile(`data-pt-slideshowid='([^']+)'`)

// ParseEmbed extracts the gallery embed id and slug from a hosting service
// snippet. The two values are found by independent scans, so their order in
// the snippet does not matter. host is the service's domain, e.g. "novachukphoto.gallery".
func ParseEmbed(snippet, host string) (embedID, slug string, err error) {
	var missing []string

	if m := embedIDPattern.FindStringSubmatch(snippet); m != nil {
		embedID = m[1]
	} else {
		missing = append(missing, "embedId (data-pt-slideshowid='...')")
	}

	slugPattern := regexp.MustCompile(regexp.QuoteMeta(host) + `/([-\w]+)/`)
	if m := slugPattern.FindStringSubmatch(snippet); m != nil {
		slug = m[1]
	} else {
		missing = append(missing, fmt.Sprintf("slug (%s/<slug>/)", host))
	}

	if len(missing) > 0 {
		return "", "", fmt.Errorf("%w: could not extract %s; copy the full embed code from %s",
			ErrUnparseableEmbed, strings.Join(missing, " and "), host)
	}
	return embedID, slug, nil
}
