package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/volume-tools-mcp/internal/chunked"
	"github.com/ironsheep/volume-tools-mcp/internal/inspect"
	"github.com/ironsheep/volume-tools-mcp/internal/intensity"
	"github.com/ironsheep/volume-tools-mcp/internal/logging"
	"github.com/ironsheep/volume-tools-mcp/internal/overlay"
	"github.com/ironsheep/volume-tools-mcp/internal/registration"
	"github.com/ironsheep/volume-tools-mcp/internal/resample"
	"github.com/ironsheep/volume-tools-mcp/internal/server"
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
	"github.com/ironsheep/volume-tools-mcp/internal/volumeio"
)

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutput writes img and prints its summary.
func writeOutput(cmd *cobra.Command, img *volume.Image, path string) error {
	if err := volumeio.WriteImage(img, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.Infof("wrote %s", path)
	return printJSON(cmd, inspect.Summarize(path, img))
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the volume tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logging.Infof("%s %s serving on stdio", server.ServerName, server.Version)
			return server.NewWithSettings(a.cfg.Processing).Run(ctx)
		},
	}
}

func newInfoCmd(_ *app) *cobra.Command {
	var headerOnly bool
	cmd := &cobra.Command{
		Use:   "info <image>",
		Short: "Print geometry, pixel type and statistics of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if headerOnly {
				info, err := volumeio.ReadImageInformation(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, info)
			}
			img, err := volumeio.ReadImage(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, inspect.Summarize(args[0], img))
		},
	}
	cmd.Flags().BoolVar(&headerOnly, "header", false, "read only the header, without pixel statistics")
	return cmd
}

func newIsotropicCmd(a *app) *cobra.Command {
	var (
		spacing      float64
		interpolator string
		defaultValue float64
		standardize  bool
	)
	cmd := &cobra.Command{
		Use:   "isotropic <input> <output>",
		Short: "Resample an image to equal spacing on every axis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			interp, err := resample.ParseInterpolator(interpolator)
			if err != nil {
				return err
			}
			img, err := volumeio.ReadImage(args[0])
			if err != nil {
				return err
			}
			out, err := resample.MakeIsotropic(cmd.Context(), img, resample.IsotropicOptions{
				Interpolator:    interp,
				Spacing:         spacing,
				DefaultValue:    defaultValue,
				StandardizeAxes: standardize,
				Workers:         a.cfg.Processing.Workers,
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, args[1])
		},
	}
	cmd.Flags().Float64Var(&spacing, "spacing", 0, "output spacing; 0 uses the smallest input spacing")
	cmd.Flags().StringVar(&interpolator, "interpolator", "linear", "interpolator (nearest, linear)")
	cmd.Flags().Float64Var(&defaultValue, "default-value", 0, "value for points outside the input")
	cmd.Flags().BoolVar(&standardize, "standardize-axes", false, "reorient to an identity direction")
	return cmd
}

func newResizeCmd(a *app) *cobra.Command {
	var (
		size         []int
		interpolator string
		opts         = resample.DefaultResizeOptions()
	)
	cmd := &cobra.Command{
		Use:   "resize <input> <output>",
		Short: "Resample an image to a new size keeping its physical extent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			interp, err := resample.ParseInterpolator(interpolator)
			if err != nil {
				return err
			}
			opts.Interpolator = interp
			opts.Workers = a.cfg.Processing.Workers
			img, err := volumeio.ReadImage(args[0])
			if err != nil {
				return err
			}
			out, err := resample.Resize(cmd.Context(), img, size, opts)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, args[1])
		},
	}
	cmd.Flags().IntSliceVar(&size, "size", nil, "output size per axis, x first")
	cmd.Flags().BoolVar(&opts.Isotropic, "isotropic", opts.Isotropic, "use one spacing for every axis")
	cmd.Flags().BoolVar(&opts.Fill, "fill", opts.Fill, "keep the requested size and pad around the input")
	cmd.Flags().StringVar(&interpolator, "interpolator", "linear", "interpolator (nearest, linear)")
	cmd.Flags().Float64Var(&opts.OutsideValue, "outside-value", 0, "value for padding")
	cmd.Flags().BoolVar(&opts.UseNearestExtrapolator, "nearest-extrapolator", false, "pad with the nearest edge value")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newThumbnailCmd(a *app) *cobra.Command {
	var (
		size         []int
		outsideValue float64
	)
	cmd := &cobra.Command{
		Use:   "thumbnail <input> <output>",
		Short: "Make an 8-bit thumbnail of the given size",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := volumeio.ReadImage(args[0])
			if err != nil {
				return err
			}
			out, err := resample.ResizeAndScale(cmd.Context(), img, size, resample.ScaleOptions{
				OutsideValue: outsideValue,
				Workers:      a.cfg.Processing.Workers,
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, args[1])
		},
	}
	cmd.Flags().IntSliceVar(&size, "size", nil, "output size per axis, x first")
	cmd.Flags().Float64Var(&outsideValue, "outside-value", 0, "padding value in [0,255]")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newEqualizeCmd(_ *app) *cobra.Command {
	opts := intensity.DefaultMatchOptions()
	cmd := &cobra.Command{
		Use:   "equalize <input> <output>",
		Short: "Equalize the intensity histogram of an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := volumeio.ReadImage(args[0])
			if err != nil {
				return err
			}
			out, err := intensity.HistogramEqualization(img, opts)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, args[1])
		},
	}
	cmd.Flags().IntVar(&opts.Levels, "levels", opts.Levels, "number of histogram levels")
	cmd.Flags().IntVar(&opts.MatchPoints, "match-points", opts.MatchPoints, "number of quantile match points")
	cmd.Flags().BoolVar(&opts.ThresholdAtMean, "threshold-at-mean", false, "ignore values below the mean")
	return cmd
}

func newOverlayCmd(_ *app) *cobra.Command {
	var (
		boxesJSON string
		colors    []string
		opts      overlay.Options
		format    string
	)
	cmd := &cobra.Command{
		Use:   "overlay <input> <output>",
		Short: "Draw bounding boxes on a 2D 8-bit image",
		Example: `  volume-tools overlay frame.png boxed.png --boxes '[[10,10,40,30]]' --colors '#00ff00'
  volume-tools overlay frame.png boxed.png --boxes '[[0.5,0.5,0.2,0.2]]' --format CENT_WH --normalized`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var boxes []overlay.Box
			if err := json.Unmarshal([]byte(boxesJSON), &boxes); err != nil {
				return fmt.Errorf("failed to parse --boxes: %w", err)
			}
			flat, err := overlay.ParseColors(colors)
			if err != nil {
				return err
			}
			opts.Colors = flat
			opts.Format = overlay.BoxFormat(format)

			img, err := volumeio.ReadImage(args[0])
			if err != nil {
				return err
			}
			out, oob, err := overlay.OverlayBoundingBoxes(img, boxes, opts)
			if err != nil {
				return err
			}
			if oob {
				logging.Warnf("some boxes did not fit in %s and were skipped", args[0])
			}
			return writeOutput(cmd, out, args[1])
		},
	}
	cmd.Flags().StringVar(&boxesJSON, "boxes", "", "boxes as a JSON array of 4-number arrays")
	cmd.Flags().StringVar(&format, "format", string(overlay.MinMax), "box format (MINXY_MAXXY, MINXY_WH, CENT_WH, CENT_HALFWH)")
	cmd.Flags().BoolVar(&opts.Normalized, "normalized", false, "box coordinates are fractions of width and height")
	cmd.Flags().StringSliceVar(&colors, "colors", nil, "one hex colour per box; default red")
	cmd.Flags().IntVar(&opts.HalfLineWidth, "half-line-width", 0, "thicken lines to 1+2*N pixels")
	_ = cmd.MarkFlagRequired("boxes")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var (
		fraction float64
		masked   float64
		initial  []float64
	)
	cmd := &cobra.Command{
		Use:   "register <fixed> <moving>",
		Short: "Estimate the translation between two images by FFT correlation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixed, err := volumeio.ReadImage(args[0])
			if err != nil {
				return err
			}
			moving, err := volumeio.ReadImage(args[1])
			if err != nil {
				return err
			}
			opts := registration.Options{
				RequiredFractionOfOverlappingPixels: fraction,
				Workers:                             a.cfg.Processing.Workers,
			}
			if cmd.Flags().Changed("masked-value") {
				opts.MaskedPixelValue = &masked
			}
			if len(initial) > 0 {
				tx, err := volume.NewTranslationTransform(initial)
				if err != nil {
					return err
				}
				opts.InitialTransform = tx
			}
			tx, err := registration.FFTTranslationInitialization(cmd.Context(), fixed, moving, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, server.NewTranslationResult(tx))
		},
	}
	cmd.Flags().Float64Var(&fraction, "overlap", 0, "required fraction of overlapping pixels in [0,1]")
	cmd.Flags().Float64Var(&masked, "masked-value", 0, "exclude pixels with this value")
	cmd.Flags().Float64SliceVar(&initial, "initial", nil, "initial translation per axis")
	return cmd
}

func newConvertCmd(a *app) *cobra.Command {
	var chunks []int
	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert between image formats, optionally reading in blocks",
		Long: `convert rewrites an image in the format named by the output extension.

With --chunks the input is read block by block (-1 keeps an axis whole),
which bounds memory for large MetaImage files.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				img *volume.Image
				err error
			)
			if len(chunks) > 0 {
				arr, ferr := chunked.FromFile(args[0], chunks)
				if ferr != nil {
					return ferr
				}
				arr.Workers = a.cfg.Processing.Workers
				logging.Debugf("reading %s in %v blocks", args[0], arr.NumBlocks())
				img, err = arr.Compute(cmd.Context())
			} else {
				img, err = volumeio.ReadImage(args[0])
			}
			if err != nil {
				return err
			}
			return writeOutput(cmd, img, args[1])
		},
	}
	cmd.Flags().IntSliceVar(&chunks, "chunks", nil, "block size per axis, x first")
	return cmd
}
