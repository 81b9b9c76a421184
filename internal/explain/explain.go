// Package explain runs the Grad-CAM pipeline for one image at a time:
// preprocess, forward, backward from the target logit, map, overlay and
// persist.
//
// An Explainer holds only read-only state (weights, preprocessing options,
// renderer, CPU backend) and is safe for concurrent use. Everything that a
// pass mutates (autodiff tape, classifier binding, capture) is created per
// request, so concurrent requests never share activations or gradients.
package explain

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/born-ml/gradcam/internal/autodiff"
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/errs"
	"github.com/born-ml/gradcam/internal/gradcam"
	"github.com/born-ml/gradcam/internal/model"
	"github.com/born-ml/gradcam/internal/nn"
	"github.com/born-ml/gradcam/internal/overlay"
	"github.com/born-ml/gradcam/internal/parallel"
	"github.com/born-ml/gradcam/internal/preprocess"
)

// DefaultGroup is used for images without a parent directory.
const DefaultGroup = "default"

// Options configures an Explainer.
type Options struct {
	OutputDir    string
	TargetLayer  string // defaults to model.TargetLayer
	DefaultGroup string // defaults to DefaultGroup
	Alpha        float64
	Preprocess   preprocess.Options
	Parallel     parallel.Config
}

// DefaultOptions returns options writing to outputDir.
func DefaultOptions(outputDir string) Options {
	return Options{
		OutputDir:    outputDir,
		TargetLayer:  model.TargetLayer,
		DefaultGroup: DefaultGroup,
		Alpha:        overlay.DefaultAlpha,
		Preprocess:   preprocess.DefaultOptions(),
		Parallel:     parallel.DefaultConfig(),
	}
}

// Request is one explanation request.
type Request struct {
	ImagePath string
	Group     string       // empty derives the group from ImagePath
	Target    *model.Label // nil explains the predicted class
}

// Result is a completed explanation.
type Result struct {
	Class      model.Label // top-1 prediction
	Target     model.Label // class the map explains
	Logits     []float32
	OutputPath string
	Map        *gradcam.Map
	Width      int // output image size, equal to the source image
	Height     int
}

// Explainer is the per-process explanation context.
type Explainer struct {
	weights  *model.Weights
	pre      *preprocess.Preprocessor
	renderer *overlay.Renderer
	backend  *cpu.CPUBackend
	opts     Options
	logger   *zap.Logger

	// observe wraps the capture before it is attached; nil attaches it as is.
	observe func(nn.LayerObserver) nn.LayerObserver
}

// New validates opts against weights and returns an Explainer.
// All failures are Configuration errors.
func New(weights *model.Weights, opts Options, logger *zap.Logger) (*Explainer, error) {
	const op = "explain.New"

	if weights == nil {
		return nil, errs.Errorf(errs.Configuration, op, "no weights")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OutputDir == "" {
		return nil, errs.Errorf(errs.Configuration, op, "output directory is required")
	}
	if opts.TargetLayer == "" {
		opts.TargetLayer = model.TargetLayer
	}
	if opts.DefaultGroup == "" {
		opts.DefaultGroup = DefaultGroup
	}
	if err := validateGroup(opts.DefaultGroup); err != nil {
		return nil, errs.E(errs.Configuration, op, err)
	}

	arch := weights.Architecture()
	if opts.Preprocess.Size != arch.ImageSize {
		return nil, errs.Errorf(errs.Configuration, op,
			"preprocess size %d does not match network input size %d", opts.Preprocess.Size, arch.ImageSize)
	}
	pre, err := preprocess.New(opts.Preprocess)
	if err != nil {
		return nil, err
	}
	renderer, err := overlay.NewRenderer(opts.Alpha)
	if err != nil {
		return nil, errs.E(errs.Configuration, op, err)
	}

	backend := cpu.NewWithConfig(opts.Parallel)

	// Probe the target layer once so a typo fails at startup.
	probe := model.NewClassifier(weights, backend)
	detach, err := probe.Attach(opts.TargetLayer, gradcam.NewCapture(opts.TargetLayer))
	if err != nil {
		return nil, errs.E(errs.Configuration, op, err)
	}
	detach()

	return &Explainer{
		weights:  weights,
		pre:      pre,
		renderer: renderer,
		backend:  backend,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Options returns the effective options.
func (e *Explainer) Options() Options {
	return e.opts
}

// Weights returns the shared weights.
func (e *Explainer) Weights() *model.Weights {
	return e.weights
}

// Explain runs the full pipeline for req and writes the overlay to
// {OutputDir}/{group}_{basename}. There is no partial result: on error no
// output file has been written or replaced.
func (e *Explainer) Explain(req Request) (res *Result, err error) {
	const op = "explain.Explain"

	start := time.Now()
	log := e.logger.With(zap.String("image", req.ImagePath))
	stage := Received

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errs.Errorf(errs.Computation, op, "panic after stage %s: %v", stage, r)
		}
		if err != nil {
			log.Warn("explain failed",
				zap.Stringer("stage", stage),
				zap.String("kind", errs.KindOf(err).String()),
				zap.Error(err))
		}
	}()
	advance := func(next Stage) {
		stage = next
		log.Debug("stage", zap.Stringer("stage", next))
	}
	advance(Received)

	group, err := ResolveGroup(req.Group, req.ImagePath, e.opts.DefaultGroup)
	if err != nil {
		return nil, err
	}

	input, err := e.pre.Load(req.ImagePath)
	if err != nil {
		return nil, err
	}
	advance(Preprocessed)

	backend := autodiff.New(e.backend)
	clf := model.NewClassifier(e.weights, backend)
	capture := gradcam.NewCapture(e.opts.TargetLayer)
	var obs nn.LayerObserver = capture
	if e.observe != nil {
		obs = e.observe(obs)
	}
	detach, err := clf.Attach(e.opts.TargetLayer, obs)
	if err != nil {
		return nil, errs.E(errs.Computation, op, err)
	}
	defer detach()

	backend.Tape().StartRecording()
	logits, err := clf.Forward(input.Input)
	if err != nil {
		return nil, err
	}
	backend.Tape().StopRecording()
	scores := append([]float32(nil), logits.Data()...)
	class := model.Argmax(scores)
	target, err := gradcam.SelectTarget(scores, req.Target)
	if err != nil {
		return nil, err
	}
	advance(Predicted)

	backend.Backward(logits, gradcam.OneHot(target, len(scores)))
	backend.Tape().Clear()
	advance(BackwardDone)

	m, err := capture.Build()
	if err != nil {
		return nil, err
	}
	advance(MapBuilt)

	img := e.renderer.Render(m, input.Original)
	advance(Rendered)

	path, err := writeImage(e.opts.OutputDir, OutputName(group, req.ImagePath), img)
	if err != nil {
		return nil, err
	}
	advance(Persisted)

	b := img.Bounds()
	res = &Result{
		Class:      class,
		Target:     target,
		Logits:     scores,
		OutputPath: path,
		Map:        m,
		Width:      b.Dx(),
		Height:     b.Dy(),
	}
	advance(Returned)

	log.Info("explained",
		zap.Stringer("class", class),
		zap.Stringer("target", target),
		zap.String("output", path),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// Classify runs preprocessing and the forward pass only, on a backend that
// records nothing.
func (e *Explainer) Classify(path string) (class model.Label, logits []float32, err error) {
	const op = "explain.Classify"

	defer func() {
		if r := recover(); r != nil {
			err = errs.Errorf(errs.Computation, op, "panic: %v", r)
		}
	}()

	input, err := e.pre.Load(path)
	if err != nil {
		return 0, nil, err
	}
	out, err := model.NewClassifier(e.weights, e.backend).Forward(input.Input)
	if err != nil {
		return 0, nil, err
	}
	logits = append([]float32(nil), out.Data()...)
	return model.Argmax(logits), logits, nil
}

// String describes the result for CLI output.
func (r *Result) String() string {
	return fmt.Sprintf("%s -> %s (target %s, %dx%d)",
		r.Class, filepath.Base(r.OutputPath), r.Target, r.Width, r.Height)
}
