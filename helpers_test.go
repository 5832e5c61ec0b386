package clubsite

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello-world"},
		{"  Café Crème  ", "cafe-creme"},
		{"Ñandú 2024", "nandu-2024"},
		{"already-a-slug", "already-a-slug"},
		{"--Trim--me--", "trim-me"},
		{"Spring Cup: Финал", "spring-cup"},
		{"Привет", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://club.example", BuildURL("https://club.example"))
	assert.Equal(t, "https://club.example/blog/cup/", BuildURL("https://club.example", "blog", "cup"))
	assert.Equal(t, "https://club.example/sub/events/", BuildURL("https://club.example/sub/", "events"))
	assert.Equal(t, "https://club.example/events/", BuildURL("https://club.example", "events/"))
}

func TestFilterEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, FilterEmpty([]string{"", " a ", "  ", "b"}))
	assert.Equal(t, []string{}, FilterEmpty(nil))
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://club.example/"
	assert.Equal(t, "https://club.example/uploads/a.jpg", absoluteURL(base, "/uploads/a.jpg"))
	assert.Equal(t, "https://club.example/uploads/a.jpg", absoluteURL(base, "uploads/a.jpg"))
	assert.Equal(t, "https://cdn.example/a.jpg", absoluteURL(base, "https://cdn.example/a.jpg"))
	assert.Equal(t, "https://cdn.example/a.jpg", absoluteURL(base, "//cdn.example/a.jpg"))
	assert.Equal(t, "", absoluteURL(base, ""))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", " b ", "c"))
	assert.Equal(t, "", firstNonEmpty())
}

func TestUploadURLEscapesFilename(t *testing.T) {
	assert.Equal(t, "/uploads/a%20b.jpg", uploadURL("a b.jpg"))
}

func TestProcessImageResizesWideImages(t *testing.T) {
	img, data, err := processImage(bytes.NewReader(testPNG(t, 1600, 900)), "Match Day.PNG")
	require.NoError(t, err)
	assert.Equal(t, "match-day.jpg", img.Filename)
	assert.Equal(t, "Match Day.PNG", img.OriginalName)
	assert.Equal(t, 800, img.Width)
	assert.Equal(t, 450, img.Height)
	assert.Equal(t, len(data), img.Size)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])
}

func TestProcessImageKeepsSmallImagesAndNamesUnnamedOnes(t *testing.T) {
	img, _, err := processImage(bytes.NewReader(testPNG(t, 40, 30)), "???.png")
	require.NoError(t, err)
	assert.Equal(t, 40, img.Width)
	assert.Equal(t, 30, img.Height)
	assert.Len(t, img.Filename, len("12345678.jpg"))

	_, _, err = processImage(bytes.NewReader([]byte("nope")), "x.png")
	assert.Error(t, err)
}
