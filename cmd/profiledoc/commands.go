package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gofhir/profiledoc/pkg/analysis"
	"github.com/gofhir/profiledoc/pkg/batch"
	"github.com/gofhir/profiledoc/pkg/fsh"
	"github.com/gofhir/profiledoc/pkg/logger"
	"github.com/gofhir/profiledoc/pkg/query"
	"github.com/gofhir/profiledoc/pkg/registry"
	"github.com/gofhir/profiledoc/pkg/render"
)

// inputs lists the files of path. With recursive set, every
// StructureDefinition-*.json below path is used regardless of patterns.
func (a *app) inputs(path string, recursive bool, patterns ...string) ([]string, error) {
	if recursive {
		return batch.Discover(path)
	}
	return batch.Resolve(path, patterns...)
}

// loadProfile reads a JSON StructureDefinition or an FSH profile. An FSH
// source that declares no profile yields nil without error.
func (a *app) loadProfile(ctx context.Context, file string) (*registry.StructureDefinition, error) {
	if !batch.IsFSH(file) {
		return a.loader.Load(ctx, file)
	}

	text, err := a.loader.ReadText(file)
	if err != nil {
		return nil, err
	}
	p, err := fsh.Parse(text)
	if errors.Is(err, fsh.ErrNotProfile) {
		logger.Info("skipping %s: no profile declaration", file)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	logger.Debug("parsed %s", p.Summary())
	return p.ToStructureDefinition(), nil
}

// loadBase returns the base of sd, or nil when it cannot be loaded.
func (a *app) loadBase(ctx context.Context, sd *registry.StructureDefinition) *registry.StructureDefinition {
	if sd.BaseDefinition == "" {
		return nil
	}
	base, err := a.loader.LoadBase(ctx, sd.BaseDefinition)
	if err != nil {
		logger.Warn("base of %s unavailable: %v", sd.Name, err)
		return nil
	}
	return base
}

func (a *app) elementsCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "elements [path]",
		Short: "Markdown tables of the elements of each profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := a.inputs(pathArg(args), recursive, batch.PatternJSON)
			if err != nil {
				return err
			}
			return finish(batch.Run(cmd.Context(), files, func(ctx context.Context, file string) error {
				profile, err := a.loader.Load(ctx, file)
				if err != nil {
					return err
				}
				report, err := analysis.BuildElementReport(profile, a.loadBase(ctx, profile), a.cfg)
				if err != nil {
					return err
				}
				if err := render.Elements(a.out, report); err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out)
				return err
			}))
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "search subdirectories for StructureDefinition-*.json")
	return cmd
}

func (a *app) textsCmd() *cobra.Command {
	var asHTML bool
	cmd := &cobra.Command{
		Use:   "texts [path]",
		Short: "Compare element texts of each profile with its base",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := batch.Resolve(pathArg(args), batch.PatternJSON, batch.PatternFSH)
			if err != nil {
				return err
			}
			return finish(batch.Run(cmd.Context(), files, func(ctx context.Context, file string) error {
				profile, err := a.loadProfile(ctx, file)
				if err != nil || profile == nil {
					return err
				}
				report := analysis.BuildTextReport(profile, a.loadBase(ctx, profile), a.cfg)
				if asHTML {
					return render.TextsHTML(a.out, report)
				}
				return render.TextsMarkdown(a.out, report)
			}))
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "write an HTML table instead of Markdown")
	return cmd
}

// structures builds the diagram view of every input of path.
func (a *app) structures(cmd *cobra.Command, path string, mode analysis.Mode) ([]*analysis.Structure, *batch.Summary, error) {
	files, err := batch.Resolve(path, batch.PatternJSON, batch.PatternFSH)
	if err != nil {
		return nil, nil, err
	}
	var out []*analysis.Structure
	summary := batch.Run(cmd.Context(), files, func(ctx context.Context, file string) error {
		sd, err := a.loadProfile(ctx, file)
		if err != nil || sd == nil {
			return err
		}
		if s := analysis.BuildStructure(sd, a.cfg, mode); s != nil {
			out = append(out, s)
		}
		return nil
	})
	return out, summary, nil
}

func (a *app) diagramCmd() *cobra.Command {
	var modeName, formatName string
	cmd := &cobra.Command{
		Use:   "diagram [path]",
		Short: "Class diagram of the profiles as PlantUML or XMI",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := analysis.ParseMode(modeName)
			if !ok {
				return fmt.Errorf("unknown diagram mode %q", modeName)
			}
			format, err := render.ParseFormat(formatName)
			if err != nil {
				return err
			}
			var write func(io.Writer, *analysis.Diagram) error
			switch format {
			case render.FormatPlantUML:
				write = render.PlantUML
			case render.FormatXMI:
				write = render.XMI
			default:
				return fmt.Errorf("format %s is not a diagram format", format)
			}

			structures, summary, err := a.structures(cmd, pathArg(args), mode)
			if err != nil {
				return err
			}
			d := analysis.BuildDiagram(cmd.Context(), structures, analysis.DiagramOptions{
				Mode:        mode,
				Config:      a.cfg,
				FHIRVersion: a.version,
				Resolver:    a.loader,
			})
			if err := write(a.out, d); err != nil {
				return err
			}
			return finish(summary)
		},
	}
	cmd.Flags().StringVar(&modeName, "mode", "complete", "diagram mode: complete or references")
	cmd.Flags().StringVar(&formatName, "format", "plantuml", "output format: plantuml or xmi")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var prefix, where string
	cmd := &cobra.Command{
		Use:   "list <path-or-url> [simple|detailed|tree|references]",
		Short: "List the snapshot elements of a StructureDefinition",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			style := render.ListSimple
			if len(args) > 1 {
				var err error
				if style, err = render.ParseListStyle(args[1]); err != nil {
					return err
				}
			}
			filter, err := query.New(prefix, where)
			if err != nil {
				return err
			}
			sd, err := a.loader.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render.Listing(a.out, sd, render.ListOptions{Style: style, Filter: filter})
		},
	}
	cmd.Flags().StringVar(&prefix, "filter", "", "only elements whose path starts with this prefix")
	cmd.Flags().StringVar(&where, "where", "", "only elements for which this FHIRPath expression is true")
	return cmd
}

func (a *app) changesCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "changes [path]",
		Short: "List what each profile changes in its base, with an example instance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := a.inputs(pathArg(args), recursive, batch.PatternStructureDefinition)
			if err != nil {
				return err
			}
			return finish(batch.Run(cmd.Context(), files, func(ctx context.Context, file string) error {
				profile, err := a.loader.Load(ctx, file)
				if err != nil {
					return err
				}
				report, err := analysis.BuildChangeReport(profile, a.loadBase(ctx, profile), a.cfg)
				if err != nil {
					return err
				}
				return render.Changes(a.out, report)
			}))
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "search subdirectories")
	return cmd
}

func (a *app) gostructCmd() *cobra.Command {
	var pkg string
	cmd := &cobra.Command{
		Use:   "gostruct [path]",
		Short: "Generate Go struct skeletons for the profiles",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			structures, summary, err := a.structures(cmd, pathArg(args), analysis.ModeComplete)
			if err != nil {
				return err
			}
			if err := render.GoStruct(a.out, pkg, structures); err != nil {
				return err
			}
			return finish(summary)
		},
	}
	cmd.Flags().StringVar(&pkg, "package", "profiles", "package name of the generated file")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration",
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return a.cfg.WriteYAML(a.out)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := a.cfg.WriteYAML(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			logger.Info("wrote %s", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "", "file to write instead of stdout")

	cmd.AddCommand(initCmd)
	return cmd
}
