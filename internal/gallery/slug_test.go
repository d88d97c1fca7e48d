package gallery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"con/duct Demo":       "con-duct-demo",
		"Example 123":         "example-123",
		"Test (2024)":         "test-2024",
		"fMRIPrep 1.2.3":      "fmriprep-123",
		"  padded  title  ":   "padded-title",
		"a - b":               "a-b",
		"--leading/trailing/": "leading-trailing",
		"snake_case stays":    "snake_case-stays",
		"Café Résumé":         "café-résumé",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), "Slug(%q)", in)
	}
}

func TestSlug_NormalizesUnicodeForms(t *testing.T) {
	composed := "Caf\u00e9"
	decomposed := "Cafe\u0301"
	assert.Equal(t, Slug(composed), Slug(decomposed))
}

func TestSlug_Deterministic(t *testing.T) {
	assert.Equal(t, Slug("Large Scale fMRI run"), Slug("Large Scale fMRI run"))
	assert.Equal(t, Example{Title: "Large Scale fMRI run"}.Slug(), "large-scale-fmri-run")
}
