package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	generateimage "canvas-image-relay/modules/generate-image"
)

var genOpts struct {
	prompt   string
	negative string
	steps    int
	width    int
	height   int
	output   string
	socketID string
	enhance  bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one image against the engine and write it to a file",
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genOpts.prompt, "prompt", "", "prompt text (required)")
	f.StringVar(&genOpts.negative, "negative-prompt", "", "negative prompt")
	f.IntVar(&genOpts.steps, "steps", 25, "total passes (1 draft + steps-1 refinements)")
	f.IntVar(&genOpts.width, "width", 512, "image width")
	f.IntVar(&genOpts.height, "height", 512, "image height")
	f.StringVarP(&genOpts.output, "output", "o", "", "output file (default: generated-<seed>.png)")
	f.StringVar(&genOpts.socketID, "socket-id", "", "relay session to receive previews")
	f.BoolVar(&genOpts.enhance, "enhance", false, "rewrite the prompt with Gemini first")
	_ = generateCmd.MarkFlagRequired("prompt")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.shutdown()

	res, err := a.service.Generate(cmd.Context(), generateimage.GenerateParams{
		Prompt:         genOpts.prompt,
		NegativePrompt: genOpts.negative,
		Steps:          genOpts.steps,
		Width:          genOpts.width,
		Height:         genOpts.height,
		SocketID:       genOpts.socketID,
		Enhance:        genOpts.enhance,
	})
	if err != nil {
		return err
	}

	img, ok := res.Images.First()
	if !ok {
		return generateimage.ErrNoImage
	}
	out := genOpts.output
	if out == "" {
		out = fmt.Sprintf("generated-%d.png", res.Seed)
	}
	if err := os.WriteFile(out, img, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	log.Info().Msgf("💾 Saved %s (%d bytes, %d passes, seed=%d)", out, len(img), res.Passes, res.Seed)
	return nil
}
