package detect

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig configures the model-backed detector.
type ONNXConfig struct {
	ModelPath     string
	Labels        []string
	InputSize     int     // square model input, default 640
	ConfThreshold float32 // default 0.25
	IoUThreshold  float32 // default 0.45
	LibraryPath   string  // optional onnxruntime shared library override
}

// ONNX runs a YOLO-family detection model through onnxruntime. The session
// is immutable after construction and safe to share across tasks; Run calls
// are serialized because the runtime binds one set of IO tensors per call.
type ONNX struct {
	session *ort.DynamicAdvancedSession
	cfg     ONNXConfig

	mu sync.Mutex
}

var ortInitOnce sync.Once
var ortInitErr error

// NewONNX loads the model and prepares an inference session.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if cfg.ConfThreshold <= 0 {
		cfg.ConfThreshold = 0.25
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = 0.45
	}

	ortInitOnce.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", ortInitErr)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"images"}, []string{"output0"}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", cfg.ModelPath, err)
	}

	log.Info().Str("model", cfg.ModelPath).Int("input_size", cfg.InputSize).
		Msg("Detection model loaded")

	return &ONNX{session: session, cfg: cfg}, nil
}

// Close releases the inference session.
func (d *ONNX) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
}

// Detect runs one inference pass. Failures are returned to the caller, which
// treats them as an empty detection set.
func (d *ONNX) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := d.cfg.InputSize
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	data, scale := letterbox(img, size)

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}

	d.mu.Lock()
	err = d.session.Run([]ort.Value{input}, outputs)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	out := outputs[0].(*ort.Tensor[float32])
	defer out.Destroy()

	boxes := d.decode(out.GetData(), out.GetShape(), scale)

	dets := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		bb := BBox{
			X: int(b.x1),
			Y: int(b.y1),
			W: int(b.x2 - b.x1),
			H: int(b.y2 - b.y1),
		}.Clamp(origW, origH)
		if bb.W <= 0 || bb.H <= 0 {
			continue
		}
		dets = append(dets, Detection{
			Label:      d.label(b.class),
			BBox:       bb,
			Confidence: float64(b.score),
		})
	}
	return dets, nil
}

func (d *ONNX) label(class int) string {
	if class >= 0 && class < len(d.cfg.Labels) {
		return d.cfg.Labels[class]
	}
	return fmt.Sprintf("class_%d", class)
}

type rawBox struct {
	x1, y1, x2, y2 float32
	score          float32
	class          int
}

// decode parses a [1, 4+nc, n] YOLO output layout (cx, cy, w, h followed by
// per-class scores) and applies confidence filtering plus NMS. Coordinates
// are mapped back through the letterbox scale.
func (d *ONNX) decode(data []float32, shape []int64, scale float32) []rawBox {
	if len(shape) != 3 {
		return nil
	}
	rows := int(shape[1])
	n := int(shape[2])
	numClasses := rows - 4
	if numClasses <= 0 || len(data) < rows*n {
		return nil
	}

	at := func(row, col int) float32 { return data[row*n+col] }

	var boxes []rawBox
	for i := 0; i < n; i++ {
		bestScore := float32(0)
		bestClass := -1
		for c := 0; c < numClasses; c++ {
			if s := at(4+c, i); s > bestScore {
				bestScore = s
				bestClass = c
			}
		}
		if bestScore < d.cfg.ConfThreshold {
			continue
		}
		cx, cy := at(0, i), at(1, i)
		w, h := at(2, i), at(3, i)
		boxes = append(boxes, rawBox{
			x1:    (cx - w/2) / scale,
			y1:    (cy - h/2) / scale,
			x2:    (cx + w/2) / scale,
			y2:    (cy + h/2) / scale,
			score: bestScore,
			class: bestClass,
		})
	}
	return nms(boxes, d.cfg.IoUThreshold)
}

func nms(boxes []rawBox, iouThreshold float32) []rawBox {
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].score > boxes[j].score })

	var kept []rawBox
	for _, b := range boxes {
		keep := true
		for _, k := range kept {
			if iou(b, k) > iouThreshold {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, b)
		}
	}
	return kept
}

func iou(a, b rawBox) float32 {
	x1 := float32(math.Max(float64(a.x1), float64(b.x1)))
	y1 := float32(math.Max(float64(a.y1), float64(b.y1)))
	x2 := float32(math.Min(float64(a.x2), float64(b.x2)))
	y2 := float32(math.Min(float64(a.y2), float64(b.y2)))
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	areaA := (a.x2 - a.x1) * (a.y2 - a.y1)
	areaB := (b.x2 - b.x1) * (b.y2 - b.y1)
	return inter / (areaA + areaB - inter)
}

// letterbox scales the image to fit a size x size square (top-left anchored)
// and converts it to normalized CHW float32. Returns the applied scale.
func letterbox(img image.Image, size int) ([]float32, float32) {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	scale := float32(size) / float32(srcW)
	if s := float32(size) / float32(srcH); s < scale {
		scale = s
	}
	dstW := int(float32(srcW) * scale)
	dstH := int(float32(srcH) * scale)

	data := make([]float32, 3*size*size)
	plane := size * size
	for y := 0; y < dstH; y++ {
		srcY := bounds.Min.Y + int(float32(y)/scale)
		for x := 0; x < dstW; x++ {
			srcX := bounds.Min.X + int(float32(x)/scale)
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			idx := y*size + x
			data[idx] = float32(r>>8) / 255.0
			data[plane+idx] = float32(g>>8) / 255.0
			data[2*plane+idx] = float32(b>>8) / 255.0
		}
	}
	return data, scale
}
