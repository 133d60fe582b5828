package pipeline

import (
	"bytes"
	"context"
	"image/png"
	"path"
	"strings"

	"github.com/sitebuild/sitebuild/pkg/orchestrator"
)

// OptimizeImages recompresses PNG files at the best compression level and
// minifies SVG files. Other formats pass through. A result that is not
// smaller than its input is discarded in favour of the original bytes.
func OptimizeImages() Stage {
	svgMinifier := newMinifier(minifyOptions{})
	encoder := png.Encoder{CompressionLevel: png.BestCompression}

	return StageFunc{StageName: "imagemin", Fn: func(_ context.Context, files []File) ([]File, error) {
		out := make([]File, len(files))
		for i, f := range files {
			var optimized []byte
			switch strings.ToLower(path.Ext(f.Path)) {
			case ".png":
				img, err := png.Decode(bytes.NewReader(f.Contents))
				if err != nil {
					return nil, &orchestrator.TransformationError{Stage: "imagemin", File: f.FullPath(), Message: err.Error(), Err: err}
				}
				var buf bytes.Buffer
				if err := encoder.Encode(&buf, img); err != nil {
					return nil, &orchestrator.TransformationError{Stage: "imagemin", File: f.FullPath(), Message: err.Error(), Err: err}
				}
				optimized = buf.Bytes()
			case ".svg":
				minified, err := svgMinifier.Bytes(MediaSVG, f.Contents)
				if err != nil {
					return nil, minifyError(f, err)
				}
				optimized = minified
			}

			if optimized != nil && len(optimized) < len(f.Contents) {
				fileLog.Printf("Optimized %s: %d -> %d bytes", f.Path, len(f.Contents), len(optimized))
				f.Contents = optimized
			}
			out[i] = f
		}
		return out, nil
	}}
}
