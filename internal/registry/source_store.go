package registry

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gallery-tools/internal/models"
)

// Image extensions recognized when looking for the import block.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif"}

var (
	idPattern          = regexp.MustCompile(`\bid:\s*(\d+)`)
	recordIDPattern    = regexp.MustCompile(`(?m)^[ \t]*id:\s*(\d+),`)
	importLinePattern  = regexp.MustCompile(`(?m)^import\s+([\w$]+)\s+from\s+(?:'((?:[^'\\\n]|\\.)*)'|"((?:[^"\\\n]|\\.)*)");?[ \t]*$`)
	quotedFieldPattern = `%s:\s*"((?:[^"\\]|\\.)*)"`
	thumbnailPattern   = regexp.MustCompile(`thumbnail:\s*([\w$.]+)`)
	textContentPattern = regexp.MustCompile("(?s)textContent:\\s*`((?:[^`\\\\]|\\\\.)*)`")
)

// SourceOptions describe the layout of a TypeScript registry module.
type SourceOptions struct {
	// ListMarker is the declaration that opens the gallery array, up to and including '['.
	ListMarker string
	// ImportPrefix is prepended to the image filename in new import lines.
	ImportPrefix string
	// AssetRef must occur in an import path for the line to count as an image import.
	AssetRef string
}

// SourceStore patches the TypeScript module the front end imports at build time.
type SourceStore struct {
	opts    SourceOptions
	updater fileUpdater
}

// NewSourceStore returns a store for the registry module at path.
func NewSourceStore(path, lockPath string, opts SourceOptions) *SourceStore {
	return &SourceStore{
		opts:    opts,
		updater: fileUpdater{path: path, lockPath: lockPath},
	}
}

// Path implements Store.
func (s *SourceStore) Path() string { return s.updater.path }

// Records implements Store.
func (s *SourceStore) Records() ([]models.GalleryRecord, error) {
	data, _, err := s.updater.read()
	if err != nil {
		return nil, err
	}
	return ParseSourceRecords(string(data), s.opts.ListMarker)
}

// Add implements Store.
func (s *SourceStore) Add(ctx context.Context, rec models.GalleryRecord, asset models.ImageAsset) (models.GalleryRecord, error) {
	err := s.updater.update(ctx, func(current []byte) ([]byte, error) {
		text := string(current)
		rec.ID = NextSourceID(text)
		patched, binding, err := PatchSource(text, rec, asset, s.opts)
		if err != nil {
			return nil, err
		}
		rec.Thumbnail = binding
		return []byte(patched), nil
	})
	if err != nil {
		return models.GalleryRecord{}, err
	}
	return rec, nil
}

// NextSourceID scans registry text for every `id: <digits>` field and returns
// the highest value plus one, or 1 when there is none. Gaps and ordering are ignored.
func NextSourceID(text string) int {
	highest := 0
	for _, m := range idPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1
}

// PatchSource adds the import for asset after the last image import and puts
// rec at the head of the gallery list, with its thumbnail set to the import
// binding. An image that is already imported keeps its existing binding; a
// binding name taken by another path gets a numeric suffix. It returns the
// patched text and the binding. text is not modified when an anchor is missing.
func PatchSource(text string, rec models.GalleryRecord, asset models.ImageAsset, opts SourceOptions) (string, string, error) {
	withImport, binding, err := insertImport(text, asset, opts)
	if err != nil {
		return "", "", err
	}
	rec.Thumbnail = binding

	markerAt := strings.Index(withImport, opts.ListMarker)
	if opts.ListMarker == "" || markerAt == -1 {
		return "", "", fmt.Errorf("%w: gallery list declaration %q not found", ErrRegistryFormat, opts.ListMarker)
	}
	// The marker itself may contain type brackets (BlogPost[]); only the array literal counts.
	from := markerAt + len(strings.TrimSuffix(opts.ListMarker, "["))
	open := strings.Index(withImport[from:], "[")
	if open == -1 {
		return "", "", fmt.Errorf("%w: no '[' after %q", ErrRegistryFormat, opts.ListMarker)
	}
	insertAt := from + open + 1

	before, after := withImport[:insertAt], withImport[insertAt:]
	block := "\n" + serializeRecord(rec)
	if !strings.HasPrefix(after, "\n") && !strings.HasPrefix(after, "\r\n") {
		block += "\n"
	}
	return before + block + after, binding, nil
}

// importLine is one default import found in a registry module.
type importLine struct {
	binding string
	path    string // unescaped
	end     int    // offset of the end of the line, before its newline
}

func parseImports(text string) []importLine {
	var lines []importLine
	for _, loc := range importLinePattern.FindAllStringSubmatchIndex(text, -1) {
		raw := ""
		switch {
		case loc[4] != -1:
			raw = text[loc[4]:loc[5]]
		case loc[6] != -1:
			raw = text[loc[6]:loc[7]]
		}
		lines = append(lines, importLine{
			binding: text[loc[2]:loc[3]],
			path:    unquoteTemplate(raw),
			end:     loc[1],
		})
	}
	return lines
}

func insertImport(text string, asset models.ImageAsset, opts SourceOptions) (string, string, error) {
	importPath := opts.ImportPrefix + asset.Filename
	imports := parseImports(text)

	lastEnd := -1
	taken := make(map[string]string, len(imports))
	for _, imp := range imports {
		if imp.path == importPath {
			return text, imp.binding, nil
		}
		taken[imp.binding] = imp.path
		if isImageImport(imp.path, opts.AssetRef) {
			lastEnd = imp.end
		}
	}
	if lastEnd == -1 {
		return "", "", fmt.Errorf("%w: no image import from %q found to anchor the new import", ErrRegistryFormat, opts.AssetRef)
	}

	binding := asset.VarName
	for n := 2; ; n++ {
		if _, ok := taken[binding]; !ok {
			break
		}
		binding = fmt.Sprintf("%s%d", asset.VarName, n)
	}

	line := fmt.Sprintf("import %s from %s;", binding, jsString(importPath, '\''))
	return text[:lastEnd] + "\n" + line + text[lastEnd:], binding, nil
}

func isImageImport(path, assetRef string) bool {
	if assetRef != "" && !strings.Contains(path, assetRef) {
		return false
	}
	lower := strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func serializeRecord(rec models.GalleryRecord) string {
	var b strings.Builder
	b.WriteString("  {\n")
	fmt.Fprintf(&b, "    id: %d,\n", rec.ID)
	fmt.Fprintf(&b, "    embedId: %s,\n", quoteJS(rec.EmbedID))
	fmt.Fprintf(&b, "    slug: %s,\n", quoteJS(rec.Slug))
	fmt.Fprintf(&b, "    title: %s,\n", quoteJS(rec.Title))
	fmt.Fprintf(&b, "    description: %s,\n", quoteJS(rec.Description))
	fmt.Fprintf(&b, "    thumbnail: %s,\n", rec.Thumbnail)
	fmt.Fprintf(&b, "    textContent: %s\n", templateJS(rec.TextContent))
	b.WriteString("  },")
	return b.String()
}

// quoteJS renders s as a double-quoted JavaScript string literal.
func quoteJS(s string) string { return jsString(s, '"') }

// jsString renders s as a JavaScript string literal delimited by quote.
func jsString(s string, quote rune) string {
	var b strings.Builder
	b.WriteRune(quote)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case quote:
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028', '\u2029':
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteRune(quote)
	return b.String()
}

// templateJS renders s as a template literal with no substitutions.
func templateJS(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "`", "\\`", "${", "\\${")
	return "`" + r.Replace(s) + "`"
}

func unquoteTemplate(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ParseSourceRecords reads gallery records back out of a registry module. It is
// lenient: fields that cannot be found are left empty.
func ParseSourceRecords(text, listMarker string) ([]models.GalleryRecord, error) {
	start := strings.Index(text, listMarker)
	if listMarker == "" || start == -1 {
		return nil, fmt.Errorf("%w: gallery list declaration %q not found", ErrRegistryFormat, listMarker)
	}
	body := text[start+len(listMarker):]

	locs := recordIDPattern.FindAllStringSubmatchIndex(body, -1)
	records := make([]models.GalleryRecord, 0, len(locs))
	for i, loc := range locs {
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segment := body[loc[0]:end]

		id, _ := strconv.Atoi(body[loc[2]:loc[3]])
		rec := models.GalleryRecord{
			ID:          id,
			EmbedID:     quotedField(segment, "embedId"),
			Slug:        quotedField(segment, "slug"),
			Title:       quotedField(segment, "title"),
			Description: quotedField(segment, "description"),
		}
		if m := thumbnailPattern.FindStringSubmatch(segment); m != nil {
			rec.Thumbnail = m[1]
		}
		if m := textContentPattern.FindStringSubmatch(segment); m != nil {
			rec.TextContent = unquoteTemplate(m[1])
		}
		records = append(records, rec)
	}
	return records, nil
}

func quotedField(segment, name string) string {
	re := regexp.MustCompile(fmt.Sprintf(quotedFieldPattern, name))
	m := re.FindStringSubmatch(segment)
	if m == nil {
		return ""
	}
	v, err := strconv.Unquote(`"` + m[1] + `"`)
	if err != nil {
		return m[1]
	}
	return v
}
