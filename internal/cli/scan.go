package cli

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"carscan-server/internal/domain/detection"
	"carscan-server/internal/domain/eventbus"
	imgcodec "carscan-server/internal/domain/image"
	"carscan-server/internal/domain/intake"
	"carscan-server/internal/domain/progress"
	"carscan-server/internal/domain/scan"
	"carscan-server/internal/domain/sessionstore"
	platformerrors "carscan-server/internal/platform/errors"
)

// newSimulator is replaced in tests.
var newSimulator = func() *progress.Simulator { return progress.New(progress.Options{}) }

type scanOptions struct {
	out         string
	endpoint    string
	locale      string
	overlayOnly bool
	noFallback  bool
	asJSON      bool
}

func newScanCommand(global *globalOptions) *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Run a damage scan on one photo and write the annotated image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, global, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output PNG path (default: <image>.overlay.png)")
	cmd.Flags().StringVarP(&opts.endpoint, "endpoint", "e", "", "detection endpoint URL (default from config)")
	cmd.Flags().StringVarP(&opts.locale, "locale", "l", "", "label language: ru or en (default from config)")
	cmd.Flags().BoolVar(&opts.overlayOnly, "overlay-only", false, "write only the overlay layer on a transparent canvas")
	cmd.Flags().BoolVar(&opts.noFallback, "no-fallback", false, "fail instead of substituting the fallback finding")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the final session snapshot as JSON")
	return cmd
}

func runScan(cmd *cobra.Command, global *globalOptions, opts *scanOptions, path string) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, logger, err := global.load()
	if err != nil {
		return err
	}
	defer logger.Close()

	file, err := readImage(path)
	if err != nil {
		return err
	}

	endpoint := cfg.Detection.URL
	if opts.endpoint != "" {
		endpoint = opts.endpoint
	}
	locale := detection.ParseLocale(cfg.Scan.Locale)
	if opts.locale != "" {
		locale = detection.ParseLocale(opts.locale)
	}

	client, err := detection.NewClient(detection.Options{
		Endpoint:        endpoint,
		FallbackEnabled: cfg.Detection.FallbackEnabled && !opts.noFallback,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	store := sessionstore.NewMemory(sessionstore.Config{})
	defer store.Close(context.Background())
	bus := eventbus.New()
	defer bus.Close()

	manager, err := scan.NewManager(scan.ManagerOptions{
		Detector:  client,
		Simulator: newSimulator(),
		Locale:    locale,
		Store:     store,
		Bus:       bus,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	session, err := manager.Create(ctx)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
	)
	unwatch := bus.Watch(session.ID(), func(ev eventbus.ScanEvent) {
		data, ok := ev.Data.(eventbus.ProgressData)
		if !ok {
			return
		}
		if data.PhaseLabel != "" {
			bar.Describe(data.PhaseLabel)
		}
		_ = bar.Set(data.Percent)
	})
	defer unwatch()

	accepted, err := session.Choose([]intake.File{file})
	if err != nil {
		return err
	}
	if !accepted {
		return platformerrors.New(platformerrors.KindIntake, "cli.scan", fmt.Sprintf("%s is not an image (%s)", path, file.ContentType))
	}
	logger.InfoTag("CLI", "scanning %s via %s", file.Name, endpoint)

	snap, err := session.Wait(ctx)
	if err != nil {
		session.Cancel()
		_ = bar.Exit()
		return err
	}
	_ = bar.Finish()
	fmt.Fprintln(stderr)

	if opts.asJSON {
		encoded, err := sonic.ConfigStd.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(encoded))
	} else {
		printSummary(stdout, snap)
	}

	if snap.Result == nil {
		return platformerrors.New(platformerrors.KindDetection, "cli.scan", snap.Error)
	}

	out := opts.out
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + ".overlay.png"
	}
	renderCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := writeOverlay(renderCtx, session, out, !opts.overlayOnly); err != nil {
		return err
	}
	if !opts.asJSON {
		fmt.Fprintf(stdout, "\noverlay written to %s\n", out)
	}
	return nil
}

// readImage loads path and infers its MIME type from the extension, then
// from the content.
func readImage(path string) (intake.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return intake.File{}, platformerrors.Wrap(platformerrors.KindIntake, "cli.read", "failed to read "+path, err)
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return intake.File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func printSummary(w io.Writer, snap scan.Snapshot) {
	if snap.Error != "" {
		fmt.Fprintf(w, "error: %s\n", snap.Error)
	}
	sum := snap.Summary
	if sum == nil {
		return
	}

	fmt.Fprintf(w, "%s\n%s\n", sum.Headline, sum.Subline)
	if sum.HasDetections {
		fmt.Fprintf(w, "count: %d  average confidence: %d%%  time: %s\n", sum.Count, sum.AverageConfidence, sum.ProcessingTime)
	} else {
		fmt.Fprintf(w, "time: %s\n", sum.ProcessingTime)
	}
	if len(sum.Details) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "\n#\tTYPE\tCONFIDENCE\tPOSITION\tAREA")
	fmt.Fprintln(tw, "-\t----\t----------\t--------\t----")
	for _, d := range sum.Details {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d, %d\t%.0f px²\n",
			d.Ordinal, d.Label, d.Confidence, d.Position[0], d.Position[1], d.Area)
	}
	tw.Flush()
}

func writeOverlay(ctx context.Context, session *scan.Session, out string, composite bool) error {
	img, _, err := session.Overlay(ctx, composite)
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindRender, "cli.write", "failed to create "+out, err)
	}
	if err := imgcodec.EncodePNG(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
