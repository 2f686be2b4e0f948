package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"modelrt/internal/service"
	"modelrt/pkg/types"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		model    string
		artifact string
		opts     types.GenerateOptions
	)
	cmd := &cobra.Command{
		Use:   "generate [flags] PROMPT...",
		Short: "Run one generation in process and print the text",
		Example: "  modelrt generate --model tiny hello world\n" +
			"  modelrt generate --artifact ./tiny.bin --max-tokens 16 --seed 7 hello",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []types.ModelDescriptor
			if artifact != "" {
				abs, err := filepath.Abs(artifact)
				if err != nil {
					return err
				}
				if model == "" {
					model = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
				}
				extra = append(extra, types.ModelDescriptor{ID: model, DisplayName: model, ArtifactLocation: abs})
			}
			if model == "" {
				model = a.cfg.DefaultModel
			}
			if model == "" {
				return fmt.Errorf("no model: pass --model or --artifact, or set default_model")
			}

			st, err := buildStack(a.cfg, a.log, extra...)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer func() { _ = st.svc.Cleanup(ctx) }()
			if !st.svc.LoadModel(ctx, model, "") {
				return fmt.Errorf("load model %s failed", model)
			}
			text := st.svc.GenerateText(ctx, model, strings.Join(args, " "), opts)
			fmt.Fprintln(a.out, text)
			if service.IsInferenceError(text) {
				return fmt.Errorf("generation failed")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&model, "model", "", "Model id from the catalog (defaults to default_model)")
	f.StringVar(&artifact, "artifact", "", "Register and use this artifact file; id defaults to the file name")
	f.IntVar(&opts.MaxTokens, "max-tokens", 0, "Maximum new tokens (0 = server default)")
	f.Float64Var(&opts.Temperature, "temperature", 0, "Sampling temperature (0 = 1.0)")
	f.Float64Var(&opts.TopP, "top-p", 0, "Nucleus sampling probability (0 = off)")
	f.IntVar(&opts.TopK, "top-k", 0, "Top-K candidates (0 = off)")
	f.Int64Var(&opts.Seed, "seed", 0, "Random seed (0 = time based)")
	f.StringSliceVar(&opts.StopSequences, "stop", nil, "Stop sequence (repeatable)")
	return cmd
}
