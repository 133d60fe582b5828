// Package tasks defines the site build: the sass, css, js, img and html
// pipelines, clean, build, and the live-reload development server.
package tasks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/sitebuild/sitebuild/pkg/config"
	"github.com/sitebuild/sitebuild/pkg/console"
	"github.com/sitebuild/sitebuild/pkg/livereload"
	"github.com/sitebuild/sitebuild/pkg/logger"
	"github.com/sitebuild/sitebuild/pkg/orchestrator"
	"github.com/sitebuild/sitebuild/pkg/pipeline"
)

var tasksLog = logger.New("tasks:tasks")

// Task names.
const (
	Sass    = "sass"
	CSS     = "css"
	JS      = "js"
	Img     = "img"
	HTML    = "html"
	Clean   = "clean"
	Build   = "build"
	Reload  = "reload"
	Serve   = "serve"
	Default = "default"
)

// DevServer is the live-reload server driven by the serve and reload tasks.
type DevServer interface {
	Addr() string
	Reload()
	Inject(paths []string)
	ListenAndServe(ctx context.Context) error
}

// Options configures Register.
type Options struct {
	Config config.Config
	// Runner executes the external Sass and prefix commands; nil uses
	// os/exec.
	Runner pipeline.CommandRunner
	// Server defaults to a livereload.Server on Config.Paths.Src.
	Server DevServer
	// Metrics is mounted on the default server when metrics are enabled.
	Metrics http.Handler
}

type site struct {
	o      *orchestrator.Orchestrator
	cfg    config.Config
	runner pipeline.CommandRunner
	server DevServer
}

// Register defines every site task on o.
func Register(o *orchestrator.Orchestrator, opts Options) {
	s := &site{o: o, cfg: opts.Config, runner: opts.Runner, server: opts.Server}
	if s.server == nil {
		serverOpts := []livereload.Option{livereload.WithAddr(s.cfg.Serve.Addr)}
		if opts.Metrics != nil && s.cfg.MetricsEnabled() {
			serverOpts = append(serverOpts, livereload.WithMetrics(opts.Metrics))
		}
		s.server = livereload.New(s.cfg.Paths.Src, serverOpts...)
	}
	p := s.cfg.Paths

	o.Register(Sass, nil, s.sassPipeline().Action(),
		orchestrator.WithWatch(p.SCSSIn),
		orchestrator.WithDescription("Compile Sass into "+p.SCSSOut+" and inject the result into open pages"))
	o.Register(CSS, nil, s.cssPipeline().Action(),
		orchestrator.WithWatch(p.CSSIn),
		orchestrator.WithDescription("Concatenate and minify stylesheets into "+p.CSSOut))
	o.Register(JS, nil, s.jsPipeline().Action(),
		orchestrator.WithWatch(p.JSIn),
		orchestrator.WithDescription("Concatenate and minify scripts into "+p.JSOut))
	o.Register(Img, nil, s.imgPipeline().Action(),
		orchestrator.WithWatch(p.ImgIn),
		orchestrator.WithDescription("Optimize changed images into "+p.ImgOut))
	o.Register(HTML, nil, s.htmlPipeline().Action(),
		orchestrator.WithWatch(p.HTMLIn),
		orchestrator.WithDescription("Rewrite build blocks and minify markup into "+p.HTMLOut))
	o.Register(Clean, nil, orchestrator.CleanAction(p.Dist),
		orchestrator.WithDescription("Delete "+p.Dist))

	o.Register(Build,
		[]orchestrator.Step{orchestrator.One(Clean), orchestrator.Group(HTML, JS, CSS, Img)},
		nil,
		orchestrator.WithDescription("Clean, then build markup, scripts, styles and images in parallel"))
	o.Register(Reload, nil, s.reload,
		orchestrator.WithDescription("Reload every connected browser"))
	o.Register(Serve, []orchestrator.Step{orchestrator.One(Sass)}, s.serve,
		orchestrator.WithDescription("Serve "+p.Src+" with live reload and rebuild on change"))
	o.Register(Default, []orchestrator.Step{orchestrator.One(Serve)}, nil,
		orchestrator.WithDescription("Alias for serve"))

	tasksLog.Printf("Registered site tasks (src=%s, dist=%s)", p.Src, p.Dist)
}

func (s *site) sassPipeline() pipeline.Pipeline {
	p := s.cfg.Paths
	return pipeline.Pipeline{
		Name: Sass,
		Src:  []string{p.SCSSIn},
		Stages: []pipeline.Stage{
			pipeline.Sass(pipeline.SassOptions{
				Command:    s.cfg.Sass.Command,
				SourceMaps: s.cfg.SourceMaps(),
				LoadPaths:  s.cfg.Sass.LoadPaths,
				Runner:     s.runner,
			}),
			pipeline.Prefix(pipeline.PrefixOptions{
				Enabled:  s.cfg.PrefixEnabled(),
				Browsers: s.cfg.Prefix.Browsers,
				Command:  s.cfg.Prefix.Command,
				Runner:   s.runner,
			}),
			pipeline.Rename(".css"),
			pipeline.DestStage(p.SCSSOut),
			pipeline.Tap(func(files []pipeline.File) {
				s.server.Inject(servedPaths(p.Src, files))
			}),
		},
	}
}

func (s *site) cssPipeline() pipeline.Pipeline {
	p := s.cfg.Paths
	return pipeline.Pipeline{
		Name:   CSS,
		Src:    []string{p.CSSIn},
		Stages: []pipeline.Stage{pipeline.Concat(p.CSSOutName), pipeline.Minify(pipeline.MediaCSS)},
		Dest:   p.CSSOut,
	}
}

func (s *site) jsPipeline() pipeline.Pipeline {
	p := s.cfg.Paths
	return pipeline.Pipeline{
		Name:   JS,
		Src:    []string{p.JSIn},
		Stages: []pipeline.Stage{pipeline.Concat(p.JSOutName), pipeline.Minify(pipeline.MediaJS)},
		Dest:   p.JSOut,
	}
}

func (s *site) imgPipeline() pipeline.Pipeline {
	p := s.cfg.Paths
	return pipeline.Pipeline{
		Name:   Img,
		Src:    []string{p.ImgIn},
		Stages: []pipeline.Stage{pipeline.Changed(p.ImgOut), pipeline.OptimizeImages()},
		Dest:   p.ImgOut,
	}
}

func (s *site) htmlPipeline() pipeline.Pipeline {
	p := s.cfg.Paths
	var minifyOpts []pipeline.MinifyOption
	if !s.cfg.CollapseWhitespace() {
		minifyOpts = append(minifyOpts, pipeline.KeepWhitespace())
	}
	if s.cfg.HTML.KeepComments {
		minifyOpts = append(minifyOpts, pipeline.KeepComments())
	}
	return pipeline.Pipeline{
		Name: HTML,
		Src:  []string{p.HTMLIn},
		Stages: []pipeline.Stage{
			pipeline.ReplaceBlocks(map[string]string{
				"css": p.CSSReplaceOut,
				"js":  p.JSReplaceOut,
			}),
			pipeline.Minify(pipeline.MediaHTML, minifyOpts...),
		},
		Dest: p.HTMLOut,
	}
}

func (s *site) reload(context.Context) error {
	s.server.Reload()
	return nil
}

// serve runs the dev server and both watchers until ctx ends. A server that
// cannot listen stops the watchers too.
func (s *site) serve(ctx context.Context) error {
	p := s.cfg.Paths
	fmt.Fprintln(os.Stderr, console.FormatInfoMessage(
		fmt.Sprintf("Serving %s at http://%s", p.Src, s.server.Addr())))

	wp := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	wp.Go(s.server.ListenAndServe)
	wp.Go(func(ctx context.Context) error {
		return s.o.Watch(ctx, []string{p.HTMLIn, p.JSIn}, orchestrator.One(Reload))
	})
	wp.Go(func(ctx context.Context) error {
		return s.o.Watch(ctx, []string{p.SCSSIn}, orchestrator.One(Sass))
	})
	return wp.Wait()
}

// servedPaths maps written files to URL paths under the served root. Files
// outside it are left out.
func servedPaths(root string, files []pipeline.File) []string {
	var out []string
	for _, f := range files {
		rel, err := filepath.Rel(root, f.FullPath())
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}
