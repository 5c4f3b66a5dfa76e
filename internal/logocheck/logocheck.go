package logocheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"causeconnect/internal/metrics"
	"causeconnect/internal/storage"
	"causeconnect/pkg/types"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	CheckFormat       = "Format"
	CheckResolution   = "Resolution"
	CheckTransparency = "Transparency"
	CheckContrast     = "Contrast"
)

const (
	// MinDimension is the shortest side, in pixels, that prints cleanly on a tote.
	MinDimension = 500
	// MinContrast is the WCAG ratio required against the tote fabric.
	MinContrast = 3.0
	paletteSize = 5
)

// ToteFabric is the natural canvas colour logos are printed on.
var ToteFabric = color.RGBA{R: 0xF2, G: 0xEC, B: 0xDC, A: 0xFF}

// Fetcher opens a stored upload by its URL.
type Fetcher interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

type Result struct {
	Checks  []types.LogoCheck
	Palette []string
}

// ErrRemoteNotAllowed is returned for logo URLs that are neither stored
// uploads nor on an allowed host.
var ErrRemoteNotAllowed = errors.New("logo url is not an upload or an allowed host")

// Analyzer runs the automated logo checks. Logos are read from the upload
// store; remote URLs are fetched only from hosts passed to AllowHosts.
type Analyzer struct {
	fetch   Fetcher
	client  *http.Client
	hosts   map[string]bool
	timeout time.Duration
	metrics *metrics.Metrics
}

func New(fetch Fetcher, timeout time.Duration, m *metrics.Metrics) *Analyzer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &Analyzer{
		fetch:   fetch,
		hosts:   map[string]bool{},
		timeout: timeout,
		metrics: m,
	}
	a.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 || !a.allowed(req.URL) {
				return ErrRemoteNotAllowed
			}
			return nil
		},
	}
	return a
}

// AllowHosts permits fetching logos over HTTP from the given host names.
func (a *Analyzer) AllowHosts(hosts ...string) *Analyzer {
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			a.hosts[h] = true
		}
	}
	return a
}

func (a *Analyzer) allowed(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return a.hosts[strings.ToLower(u.Hostname())]
}

// Analyze downloads url and evaluates it.
func (a *Analyzer) Analyze(ctx context.Context, url string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	data, err := a.download(ctx, url)
	if errors.Is(err, ErrRemoteNotAllowed) {
		return nil, types.ValidationError("logo must be uploaded before it can be checked")
	}
	if err != nil {
		return nil, types.UpstreamError(err, "failed to fetch logo")
	}

	result := Evaluate(data)
	if a.metrics != nil {
		for _, c := range result.Checks {
			a.metrics.LogoChecks.WithLabelValues(c.Name, fmt.Sprint(c.Passed)).Inc()
		}
	}

	return result, nil
}

func (a *Analyzer) download(ctx context.Context, rawURL string) ([]byte, error) {
	if a.fetch != nil {
		rc, err := a.fetch.Open(ctx, rawURL)
		if err == nil {
			defer rc.Close()
			return readLimited(rc)
		}
		if !errors.Is(err, storage.ErrForeignURL) {
			return nil, err
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil || !a.allowed(u) {
		return nil, ErrRemoteNotAllowed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrRemoteNotAllowed) {
			return nil, ErrRemoteNotAllowed
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching logo", resp.StatusCode)
	}

	return readLimited(resp.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, storage.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > storage.MaxUploadBytes {
		return nil, fmt.Errorf("logo exceeds %d bytes", storage.MaxUploadBytes)
	}
	return data, nil
}

// Evaluate runs every check over raw image bytes. Undecodable input fails
// the format check and skips the rest.
func Evaluate(data []byte) *Result {
	if isSVG(data) {
		return &Result{
			Checks: []types.LogoCheck{
				{Name: CheckFormat, Passed: true, Message: "SVG vector artwork"},
				{Name: CheckResolution, Passed: true, Message: "Vector artwork scales to any size"},
				{Name: CheckTransparency, Passed: true, Message: "Vector artwork has no background"},
				{Name: CheckContrast, Passed: true, Message: "Contrast is not evaluated for vector artwork"},
			},
			Palette: []string{},
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return &Result{
			Checks: []types.LogoCheck{
				{Name: CheckFormat, Passed: false, Message: "File is not a supported image"},
			},
			Palette: []string{},
		}
	}

	return &Result{
		Checks: []types.LogoCheck{
			formatCheck(format),
			resolutionCheck(img),
			transparencyCheck(img),
			contrastCheck(img),
		},
		Palette: Palette(img, paletteSize),
	}
}

func isSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

func formatCheck(format string) types.LogoCheck {
	switch format {
	case "png", "webp":
		return types.LogoCheck{Name: CheckFormat, Passed: true, Message: strings.ToUpper(format) + " is print ready"}
	case "jpeg", "gif":
		return types.LogoCheck{Name: CheckFormat, Passed: true, Message: strings.ToUpper(format) + " accepted, PNG or SVG preferred"}
	default:
		return types.LogoCheck{Name: CheckFormat, Passed: false, Message: strings.ToUpper(format) + " is not accepted, upload PNG or SVG"}
	}
}

func resolutionCheck(img image.Image) types.LogoCheck {
	b := img.Bounds()
	short := min(b.Dx(), b.Dy())
	msg := fmt.Sprintf("%dx%d pixels", b.Dx(), b.Dy())
	if short < MinDimension {
		return types.LogoCheck{Name: CheckResolution, Passed: false, Message: fmt.Sprintf("%s, at least %dpx on the short side required", msg, MinDimension)}
	}
	return types.LogoCheck{Name: CheckResolution, Passed: true, Message: msg}
}

func transparencyCheck(img image.Image) types.LogoCheck {
	if hasTransparency(img) {
		return types.LogoCheck{Name: CheckTransparency, Passed: true, Message: "Logo has a transparent background"}
	}
	return types.LogoCheck{Name: CheckTransparency, Passed: false, Message: "Logo has an opaque background"}
}

func hasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return false
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}

func contrastCheck(img image.Image) types.LogoCheck {
	ink, ok := averageInk(img)
	if !ok {
		return types.LogoCheck{Name: CheckContrast, Passed: false, Message: "Logo has no visible pixels"}
	}
	ratio := ContrastRatio(ink, ToteFabric)
	msg := fmt.Sprintf("Contrast ratio %.2f:1 against the tote", ratio)
	return types.LogoCheck{Name: CheckContrast, Passed: ratio >= MinContrast, Message: msg}
}

// averageInk is the mean colour of the mostly opaque pixels.
func averageInk(img image.Image) (color.RGBA, bool) {
	small := thumbnail(img, 64)
	b := small.Bounds()
	var r, g, bl, n uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(small.At(x, y)).(color.NRGBA)
			if c.A < 0x80 {
				continue
			}
			r += uint64(c.R)
			g += uint64(c.G)
			bl += uint64(c.B)
			n++
		}
	}
	if n == 0 {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n), A: 0xff}, true
}
