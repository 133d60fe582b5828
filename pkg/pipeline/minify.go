package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/parse/v2"

	"github.com/sitebuild/sitebuild/pkg/orchestrator"
)

// Media types accepted by Minify.
const (
	MediaCSS  = "text/css"
	MediaJS   = "application/javascript"
	MediaHTML = "text/html"
	MediaSVG  = "image/svg+xml"
)

var jsMediaType = regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`)

type minifyOptions struct {
	keepWhitespace bool
	keepComments   bool
}

// MinifyOption configures Minify.
type MinifyOption func(*minifyOptions)

// KeepWhitespace stops HTML minification from collapsing whitespace.
func KeepWhitespace() MinifyOption {
	return func(o *minifyOptions) { o.keepWhitespace = true }
}

// KeepComments preserves HTML comments.
func KeepComments() MinifyOption {
	return func(o *minifyOptions) { o.keepComments = true }
}

// newMinifier returns a minifier for every supported media type. Inline
// styles, scripts and SVG inside HTML are minified too.
func newMinifier(o minifyOptions) *minify.M {
	m := minify.New()
	m.AddFunc(MediaCSS, css.Minify)
	m.AddFuncRegexp(jsMediaType, js.Minify)
	m.AddFunc(MediaSVG, svg.Minify)
	m.Add(MediaHTML, &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
		KeepWhitespace:   o.keepWhitespace,
		KeepComments:     o.keepComments,
	})
	return m
}

// Minify minifies every file as mediatype. Syntax errors are reported as
// *orchestrator.TransformationError with the offending location.
func Minify(mediatype string, opts ...MinifyOption) Stage {
	var o minifyOptions
	for _, opt := range opts {
		opt(&o)
	}
	m := newMinifier(o)

	return StageFunc{StageName: "minify", Fn: func(_ context.Context, files []File) ([]File, error) {
		out := make([]File, len(files))
		for i, f := range files {
			minified, err := m.Bytes(mediatype, f.Contents)
			if err != nil {
				return nil, minifyError(f, err)
			}
			f.Contents = minified
			out[i] = f
		}
		return out, nil
	}}
}

func minifyError(f File, err error) error {
	tErr := &orchestrator.TransformationError{
		Stage:   "minify",
		File:    f.FullPath(),
		Message: err.Error(),
		Err:     err,
	}
	var pErr *parse.Error
	if errors.As(err, &pErr) {
		tErr.Line = pErr.Line
		tErr.Column = pErr.Column
		tErr.Message = pErr.Message
	}
	if errors.Is(err, minify.ErrNotExist) {
		tErr.Message = fmt.Sprintf("no minifier for this media type: %v", err)
	}
	return tErr
}
