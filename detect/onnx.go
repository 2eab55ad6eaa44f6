package detect

import (
	"context"
	"image"
	"image/draw"
	"os"
	"runtime"
	"sync"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-annotate/frames"
	"github.com/nvr-ai/go-annotate/geometry"
)

// ONNXConfig configures the bundled single-class ONNX adapter.
type ONNXConfig struct {
	// ModelPath is the path to the exported ONNX model file.
	ModelPath string
	// Label is the class name attached to every detection (the model has a
	// single output class).
	Label string
	// ConfidenceThreshold drops detections below this score. Zero means the
	// default of 0.25.
	ConfidenceThreshold float32
	// NMSThreshold is the IoU above which overlapping detections are
	// suppressed. Zero means the default of 0.45.
	NMSThreshold float32
	// SharedLibPath overrides the platform default onnxruntime library path.
	SharedLibPath string
}

const (
	onnxInputSize      = 640
	onnxAnchorCount    = 8400
	defaultConfidence  = 0.25
	defaultInnerNMSIoU = 0.45
)

// ONNXAdapter runs a single-class YOLO-head detection model through ONNX
// Runtime. The model takes a 1x3x640x640 normalized RGB tensor and emits a
// 1x5x8400 tensor of (cx, cy, w, h, confidence) rows in input-pixel units.
type ONNXAdapter struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	label   string
	conf    float32
	nmsIoU  float32

	// A session owns one input/output tensor pair, so runs are serialized.
	mu sync.Mutex
}

// SharedLibPath returns the platform default onnxruntime shared library path.
func SharedLibPath() string {
	switch runtime.GOOS {
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	case "windows":
		return "../third_party/onnxruntime.dll"
	default:
		if runtime.GOARCH == "arm64" {
			return "../third_party/onnxruntime_arm64.so"
		}
		return "../third_party/onnxruntime.so"
	}
}

// NewONNXAdapter loads the model and prepares the inference session.
func NewONNXAdapter(cfg ONNXConfig) (*ONNXAdapter, error) {
	libPath := cfg.SharedLibPath
	if libPath == "" {
		libPath = SharedLibPath()
	}
	if _, err := os.Stat(libPath); os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "initializing ORT environment")
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, onnxInputSize, onnxInputSize))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 5, onnxAnchorCount))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"images"}, []string{"output0"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "creating ORT session for %s", cfg.ModelPath)
	}

	conf := cfg.ConfidenceThreshold
	if conf == 0 {
		conf = defaultConfidence
	}
	nmsIoU := cfg.NMSThreshold
	if nmsIoU == 0 {
		nmsIoU = defaultInnerNMSIoU
	}

	return &ONNXAdapter{
		session: session,
		input:   input,
		output:  output,
		label:   cfg.Label,
		conf:    conf,
		nmsIoU:  nmsIoU,
	}, nil
}

// Detect implements Adapter.
func (a *ONNXAdapter) Detect(ctx context.Context, frame frames.Frame) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := frame.Mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "converting frame for inference")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	lb := letterbox(img, a.input.GetData())
	if err := a.session.Run(); err != nil {
		return nil, errors.Wrap(err, "running inference")
	}

	dets := a.decode(a.output.GetData(), lb)
	return NMS(dets, a.nmsIoU), nil
}

// Close releases the session and its tensors.
func (a *ONNXAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input.Destroy()
	a.output.Destroy()
	return a.session.Destroy()
}

// letterboxed records how the source image was fitted into the model input so
// decoded boxes can be mapped back to normalized source coordinates.
type letterboxed struct {
	scale      float32
	padX, padY float32
	srcW, srcH float32
}

// letterbox scales img to fit the square model input preserving aspect ratio,
// centers it on a neutral background, and fills dst in CHW order with values
// in [0,1].
func letterbox(img image.Image, dst []float32) letterboxed {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	scale := float32(onnxInputSize) / float32(srcW)
	if s := float32(onnxInputSize) / float32(srcH); s < scale {
		scale = s
	}
	fitW := uint(float32(srcW) * scale)
	fitH := uint(float32(srcH) * scale)

	fitted := resize.Resize(fitW, fitH, img, resize.Bilinear)

	canvas := image.NewRGBA(image.Rect(0, 0, onnxInputSize, onnxInputSize))
	padX := (onnxInputSize - int(fitW)) / 2
	padY := (onnxInputSize - int(fitH)) / 2
	draw.Draw(canvas, image.Rect(padX, padY, padX+int(fitW), padY+int(fitH)),
		fitted, fitted.Bounds().Min, draw.Src)

	plane := onnxInputSize * onnxInputSize
	for y := 0; y < onnxInputSize; y++ {
		for x := 0; x < onnxInputSize; x++ {
			i := canvas.PixOffset(x, y)
			o := y*onnxInputSize + x
			dst[o] = float32(canvas.Pix[i]) / 255
			dst[plane+o] = float32(canvas.Pix[i+1]) / 255
			dst[2*plane+o] = float32(canvas.Pix[i+2]) / 255
		}
	}

	return letterboxed{
		scale: scale,
		padX:  float32(padX),
		padY:  float32(padY),
		srcW:  float32(srcW),
		srcH:  float32(srcH),
	}
}

// decode converts the raw (cx, cy, w, h, conf) output rows into normalized
// detections in source coordinates, dropping rows below the confidence
// threshold. Model output is top-left-origin input pixels; the annotation
// space is bottom-left-origin, so the box origin becomes its lower edge
// measured from the frame bottom.
func (a *ONNXAdapter) decode(raw []float32, lb letterboxed) []Detection {
	var dets []Detection
	for i := 0; i < onnxAnchorCount; i++ {
		conf := raw[4*onnxAnchorCount+i]
		if conf < a.conf {
			continue
		}
		cx := raw[i]
		cy := raw[onnxAnchorCount+i]
		w := raw[2*onnxAnchorCount+i]
		h := raw[3*onnxAnchorCount+i]

		// Undo the letterbox, then normalize by the source dimensions.
		top := ((cy - h/2) - lb.padY) / lb.scale / lb.srcH
		x := ((cx - w/2) - lb.padX) / lb.scale / lb.srcW
		bw := w / lb.scale / lb.srcW
		bh := h / lb.scale / lb.srcH

		dets = append(dets, Detection{
			Label:      a.label,
			Confidence: conf,
			Box: geometry.Rect{
				X: clamp01(x),
				Y: clamp01(1 - (top + bh)),
				W: clamp01(bw),
				H: clamp01(bh),
			},
		})
	}
	return dets
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
