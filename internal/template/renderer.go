// SPDX-License-Identifier: MIT

package template

import (
	"os"

	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/fsutil"
)

// Renderer materializes templates against a fixed output directory.
type Renderer struct {
	outputDir  string
	defaultTpl *Template
}

// NewRenderer creates a renderer. defaultTemplate falls back to
// DefaultTemplate when empty.
func NewRenderer(outputDir, defaultTemplate string) (*Renderer, error) {
	if defaultTemplate == "" {
		defaultTemplate = DefaultTemplate
	}
	tpl, err := Parse(defaultTemplate)
	if err != nil {
		return nil, err
	}
	return &Renderer{outputDir: outputDir, defaultTpl: tpl}, nil
}

// OutputDir returns the directory renders are confined to.
func (r *Renderer) OutputDir() string { return r.outputDir }

// Resolve parses a client-supplied template, or returns the configured
// default when raw is empty.
func (r *Renderer) Resolve(raw string) (*Template, error) {
	if raw == "" {
		return r.defaultTpl, nil
	}
	return Parse(raw)
}

// Materialized is the outcome of rendering a template against metadata.
type Materialized struct {
	AbsPath string // confined absolute path
	RelPath string // relative to the output directory (ActiveFileSet key)
}

// Materialize renders tpl with vars, resolves collisions and confines the
// result to the output directory. Identical metadata yields the same
// relative path modulo the collision counter.
func (r *Renderer) Materialize(tpl *Template, vars map[string]string) (Materialized, error) {
	rel := tpl.Render(vars)

	candidate := rel
	for n := 0; ; n++ {
		if n > 0 {
			candidate = withCounter(rel, n)
		}
		if n > maxCollisions {
			return Materialized{}, errs.Newf(errs.CodeDownloadFailed,
				"could not find a free filename for %q after %d attempts", rel, maxCollisions)
		}

		abs, err := fsutil.ConfineRelPath(r.outputDir, candidate)
		if err != nil {
			return Materialized{}, errs.Wrap(errs.CodeInvalidFormat, "output path escapes output directory", err)
		}
		if _, err := os.Stat(abs); err == nil {
			continue // taken, bump the counter
		} else if !os.IsNotExist(err) {
			return Materialized{}, errs.Wrap(errs.CodeDownloadFailed, "stat output candidate", err)
		}
		return Materialized{AbsPath: abs, RelPath: candidate}, nil
	}
}
