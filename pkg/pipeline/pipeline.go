// This file provides the pipeline runner and its stage types.
//
// A pipeline is a source, an ordered list of stages and an optional output
// directory. Individual stages live in stages.go and the transform files.
//
// # Organization Rationale
//
// The runner is kept apart from the stages because:
//   - Most stages only see a slice of files; DestStage is the one that writes
//   - Timing and debug logging for every stage happen in one place
//   - Pipeline.Action is the single bridge to the orchestrator
//
// # Key Functions
//
// Running:
//   - Pipeline.Run() - Read sources and apply each stage in order
//   - Pipeline.Action() - Adapt a pipeline to an orchestrator action
//
// Stages:
//   - StageFunc - Wrap a plain function as a named stage
//   - DestStage() - Write files to a directory mid-pipeline

// Package pipeline implements file pipelines: read files matching globs,
// pass them through an ordered list of stages and write the results to an
// output directory.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sitebuild/sitebuild/pkg/logger"
	"github.com/sitebuild/sitebuild/pkg/orchestrator"
)

var pipelineLog = logger.New("pipeline:pipeline")

// Stage transforms the files of one pipeline run.
type Stage interface {
	Name() string
	Process(ctx context.Context, files []File) ([]File, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, files []File) ([]File, error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Process(ctx context.Context, files []File) ([]File, error) {
	return s.Fn(ctx, files)
}

// Pipeline reads Src, applies Stages in order and writes the result under
// Dest. An empty Dest leaves writing to the stages, e.g. an explicit
// DestStage followed by Tap.
type Pipeline struct {
	Name   string
	Src    []string
	Stages []Stage
	Dest   string
}

// Run executes the pipeline once. A pipeline whose sources match nothing
// succeeds without running its stages.
func (p Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	files, err := Src(p.Src...)
	if err != nil {
		return err
	}
	pipelineLog.Printf("%s: read %d file(s)", p.Name, len(files))
	if len(files) == 0 {
		return nil
	}

	stages := p.Stages
	if p.Dest != "" {
		stages = append(stages[:len(stages):len(stages)], DestStage(p.Dest))
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		files, err = stage.Process(ctx, files)
		if err != nil {
			return err
		}
		pipelineLog.Printf("%s: %s produced %d file(s)", p.Name, stage.Name(), len(files))
	}

	pipelineLog.Printf("%s: done in %s", p.Name, time.Since(start))
	return nil
}

// Action returns the pipeline as an orchestrator action.
func (p Pipeline) Action() orchestrator.Action {
	return p.Run
}

// String describes the pipeline for debug output.
func (p Pipeline) String() string {
	return fmt.Sprintf("%s: %v -> %s", p.Name, p.Src, p.Dest)
}

// DestStage writes every file under dir. Files leaving the stage are rebased
// onto dir so later stages see the written paths.
func DestStage(dir string) Stage {
	return StageFunc{StageName: "dest", Fn: func(_ context.Context, files []File) ([]File, error) {
		out := make([]File, 0, len(files))
		for _, f := range files {
			target, err := write(dir, f)
			if err != nil {
				return nil, err
			}
			fileLog.Printf("Wrote %s", target)
			f.Base = dir
			out = append(out, f)
		}
		return out, nil
	}}
}
