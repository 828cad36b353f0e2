package main

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	binaryName = "gallery-tools"
	binaryPath string
)

// TestMain builds the binary once for all tests in the package.
func TestMain(m *testing.M) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		fmt.Println("Could not get caller information")
		os.Exit(1)
	}
	buildDir, err := os.MkdirTemp("", "gallery-tools-bin")
	if err != nil {
		fmt.Printf("Failed to create build dir: %v\n", err)
		os.Exit(1)
	}

	if runtime.GOOS == "windows" {
		binaryName += ".exe"
	}
	binaryPath = filepath.Join(buildDir, binaryName)
	buildCmd := exec.Command("go", "build", "-o", binaryPath, ".")
	buildCmd.Dir = filepath.Dir(filename)
	if out, err := buildCmd.CombinedOutput(); err != nil {
		fmt.Printf("Failed to build binary: %v\nOutput:\n%s\n", err, string(out))
		os.Exit(1)
	}

	exitCode := m.Run()
	_ = os.RemoveAll(buildDir)
	os.Exit(exitCode)
}

// runCommand executes the binary inside site and returns stdout, stderr and the exit code.
func runCommand(t *testing.T, site string, args ...string) (string, string, int) {
	t.Helper()
	full := append([]string{"--config", filepath.Join(site, "gallery-tools.toml"), "--site-root", site}, args...)
	cmd := exec.Command(binaryPath, full...)
	cmd.Dir = site

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("running %v: %v", args, err)
	}
	return stdout.String(), stderr.String(), code
}

const registryTemplate = `import React from 'react';
import mariannaAndPaulImg from '../assets/Marianna and Paul.jpg';

const portfolioItems: BlogPost[] = [
  {
    id: 7,
    embedId: "aaa111",
    slug: "marianna-paul",
    title: "Marianna & Paul",
    description: "Vineyard wedding",
    thumbnail: mariannaAndPaulImg,
    textContent: ` + "``" + `
  },
];

export default portfolioItems;
`

const siteConfig = `
[Responsive]
Concurrency = 2

[[Responsive.Categories]]
Name = "hero"
Widths = [400, 600]
Images = ["Laura & Trevor.jpg", "Missing.jpg"]
`

// newSite lays out a minimal site checkout with one real JPEG.
func newSite(t *testing.T) (site, registryPath string) {
	t.Helper()
	site = t.TempDir()
	assets := filepath.Join(site, "src", "assets")
	require.NoError(t, os.MkdirAll(assets, 0755))
	img := imaging.New(800, 500, color.NRGBA{R: 180, G: 120, B: 90, A: 255})
	require.NoError(t, imaging.Save(img, filepath.Join(assets, "Laura & Trevor.jpg")))

	registryPath = filepath.Join(site, "src", "components", "Portfolio.tsx")
	require.NoError(t, os.MkdirAll(filepath.Dir(registryPath), 0755))
	require.NoError(t, os.WriteFile(registryPath, []byte(registryTemplate), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(site, "gallery-tools.toml"), []byte(siteConfig), 0644))
	return site, registryPath
}

func TestAddGallery_UsageExitsNonZero(t *testing.T) {
	site, registryPath := newSite(t)

	for _, args := range [][]string{{"add-gallery"}, {"add-gallery", "--help"}, {"add-gallery", "-h"}} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, stderr, code := runCommand(t, site, args...)
			assert.NotEqual(t, 0, code)
			assert.Contains(t, stderr, "--embedId")
		})
	}

	data, err := os.ReadFile(registryPath)
	require.NoError(t, err)
	assert.Equal(t, registryTemplate, string(data))
}

func TestAddGallery_MissingDescription(t *testing.T) {
	site, registryPath := newSite(t)

	_, stderr, code := runCommand(t, site, "add-gallery",
		"--title", "Laura & Trevor",
		"--image", "Laura & Trevor.jpg",
		"--embedId", "zzz999",
		"--slug", "-lauratrevor")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--description")
	assert.NotContains(t, stderr, "--image")

	data, err := os.ReadFile(registryPath)
	require.NoError(t, err)
	assert.Equal(t, registryTemplate, string(data), "registry untouched")
}

func TestAddGallery_Embed(t *testing.T) {
	site, registryPath := newSite(t)
	embed := `<script> const searchread_abc123 = ` + "``" + `;</script><template data-pt-type='blog' data-pt-slideshowid='abc123' ></template>` +
		`<script src='https://www.novachukphoto.gallery/-lauratrevor/slideswebcomponentembed.js/abc123?features=lightbox&filtertags=' type='text/javascript' data-pt-scriptslideshowid='abc123'></script>`

	stdout, stderr, code := runCommand(t, site, "add-gallery",
		"--title", `Laura & Trevor "Autumn"`,
		"--description", "Backyard elopement",
		"--embed", embed,
		"--image", "Laura & Trevor.jpg")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "ID: 8")
	assert.Contains(t, stdout, "Slug: -lauratrevor")

	data, err := os.ReadFile(registryPath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "import lauraTrevorImg from '../assets/Laura & Trevor.jpg';")
	assert.Contains(t, text, `title: "Laura & Trevor \"Autumn\"",`)
	assert.Less(t, strings.Index(text, "id: 8,"), strings.Index(text, "id: 7,"))
}

func TestResponsive(t *testing.T) {
	site, _ := newSite(t)

	stdout, stderr, code := runCommand(t, site, "responsive")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Generated 4, skipped 0, failed 0, missing sources 1")
	for _, name := range []string{"laura-and-trevor-400.webp", "laura-and-trevor-400.jpg", "laura-and-trevor-600.webp", "laura-and-trevor-600.jpg"} {
		assert.FileExists(t, filepath.Join(site, "src", "assets", "responsive", name))
	}

	stdout, _, code = runCommand(t, site, "responsive")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Generated 0, skipped 4, failed 0, missing sources 1")

	stdout, _, code = runCommand(t, site, "db", "verify")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Checked 4, ok 4")
}
