package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperCompass/internal/models"
	"PaperCompass/internal/platform"
)

type stubConfig struct{ valid bool }

func (c *stubConfig) Validate() error {
	if !c.valid {
		return errors.New("invalid")
	}
	return nil
}

func stubProvider(name string, papers []*models.Paper) Provider {
	return Provider{
		Name:          name,
		DefaultConfig: func() platform.Config { return &stubConfig{valid: true} },
		New: func(cfg platform.Config) (platform.Platform, error) {
			return &fakePlatform{name: name, papers: papers}, nil
		},
	}
}

func TestRegisterValidation(t *testing.T) {
	assert.Error(t, Register(Provider{}))
	assert.Error(t, Register(Provider{Name: "half"}))

	require.NoError(t, Register(stubProvider("stub-register", nil)))
	assert.Error(t, Register(stubProvider("stub-register", nil)))
	assert.Contains(t, List(), "stub-register")
}

func TestOpen(t *testing.T) {
	require.NoError(t, Register(stubProvider("stub-open", nil)))

	_, err := Open("nope", nil)
	assert.Error(t, err)

	p, err := Open("stub-open", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub-open", p.Name())

	_, err = Open("stub-open", &stubConfig{valid: false})
	assert.Error(t, err)
}

func TestWebSearchOpensRegisteredPlatform(t *testing.T) {
	require.NoError(t, Register(stubProvider("stub-web", []*models.Paper{{Title: "A"}, nil, {Title: "B"}})))

	w := NewWebSearch(nil)
	papers := w.search(context.Background(), "stub-web", platform.Query{Keywords: []string{"x"}})
	require.Len(t, papers, 2)
	assert.Equal(t, "B", papers[1].Title)

	assert.Empty(t, w.search(context.Background(), "stub-web", platform.Query{Keywords: []string{" "}}))
	assert.NotNil(t, w.search(context.Background(), "missing", platform.Query{Keywords: []string{"x"}}))
}
