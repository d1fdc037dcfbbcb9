package detection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"carscan-server/internal/domain/intake"
	platformerrors "carscan-server/internal/platform/errors"
	"carscan-server/internal/platform/logging"
	"carscan-server/internal/platform/observability"
)

// GenericErrorMessage is surfaced when a failure carries no message of its own.
const GenericErrorMessage = "image analysis failed"

// Options configures the detection client.
type Options struct {
	Endpoint string
	// FallbackEnabled substitutes FallbackDetection when the call fails.
	FallbackEnabled bool
	HTTPClient      *http.Client
	Logger          *logging.Logger
	now             func() time.Time
}

// Client talks to the remote inference endpoint.
type Client struct {
	endpoint string
	fallback bool
	http     *http.Client
	logger   *logging.Logger
	now      func() time.Time
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, platformerrors.New(platformerrors.KindDetection, "detection.new", "endpoint is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// no client timeout: a request runs until the transport gives up
		httpClient = &http.Client{}
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}
	return &Client{
		endpoint: opts.Endpoint,
		fallback: opts.FallbackEnabled,
		http:     httpClient,
		logger:   opts.Logger,
		now:      now,
	}, nil
}

func (c *Client) Endpoint() string { return c.endpoint }

// Predict sends one multipart POST and decodes the detection array.
// The request is detached from ctx cancellation; only ctx values are kept.
func (c *Client) Predict(ctx context.Context, file intake.File) ([]Detection, error) {
	ctx, end := observability.StartSpan(context.WithoutCancel(ctx), "detection", "predict")
	var err error
	defer func() { end(err) }()

	var body *bytes.Buffer
	var contentType string
	body, contentType, err = encodeForm(file)
	if err != nil {
		return nil, err
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if reqErr != nil {
		err = platformerrors.Wrap(platformerrors.KindDetection, "detection.request", reqErr.Error(), reqErr)
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("accept", "application/json")

	resp, doErr := c.http.Do(req)
	if doErr != nil {
		err = platformerrors.Wrap(platformerrors.KindDetection, "detection.do", doErr.Error(), doErr)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		err = platformerrors.New(platformerrors.KindDetection, "detection.status", "API Error: "+statusLine(resp))
		return nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		err = platformerrors.Wrap(platformerrors.KindDetection, "detection.read", readErr.Error(), readErr)
		return nil, err
	}

	var detections []Detection
	if decodeErr := sonic.Unmarshal(raw, &detections); decodeErr != nil {
		err = platformerrors.Wrap(platformerrors.KindDetection, "detection.decode", "invalid detection response", decodeErr)
		return nil, err
	}
	if detections == nil {
		detections = []Detection{}
	}
	return detections, nil
}

// Detect runs Predict and builds the ScanResult, timing the whole call.
// On failure the returned error is non-nil and, when fallback is enabled,
// the result holds the single fallback detection.
func (c *Client) Detect(ctx context.Context, file intake.File, imageURL string) (ScanResult, error) {
	start := c.now()
	detections, err := c.Predict(ctx, file)
	elapsed := c.now().Sub(start).Milliseconds()

	if err != nil {
		c.logger.WarnTag("DETECT", "detection call failed after %dms: %v", elapsed, err)
		observability.RecordMetric(ctx, "detection.failure", 1, map[string]string{"endpoint": c.endpoint})
		if !c.fallback {
			return ScanResult{}, err
		}
		return ScanResult{
			Detections:     []Detection{FallbackDetection()},
			ImageURL:       imageURL,
			ProcessingTime: elapsed,
			Fallback:       true,
		}, err
	}

	c.logger.InfoTag("DETECT", "received %d detections in %dms", len(detections), elapsed)
	observability.RecordMetric(ctx, "detection.processing_ms", float64(elapsed), nil)
	return ScanResult{
		Detections:     detections,
		ImageURL:       imageURL,
		ProcessingTime: elapsed,
	}, nil
}

func encodeForm(file intake.File) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	name := file.Name
	if name == "" {
		name = "blob"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", platformerrors.Wrap(platformerrors.KindDetection, "detection.encode", err.Error(), err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", platformerrors.Wrap(platformerrors.KindDetection, "detection.encode", err.Error(), err)
	}
	if err := w.Close(); err != nil {
		return nil, "", platformerrors.Wrap(platformerrors.KindDetection, "detection.encode", err.Error(), err)
	}
	return body, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// statusLine renders "<code> <reason>", e.g. "500 Internal Server Error".
func statusLine(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
