package vision

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
)

// Encoder extracts face embeddings using an ArcFace ONNX model. One
// EncodeFaces call covers the whole batch of boxes for an image.
type Encoder struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
	embDim       int
}

// NewEncoder loads the ArcFace ONNX model for face embedding extraction.
func NewEncoder(modelPath string) (*Encoder, error) {
	// ArcFace w600k_r50 expects 112x112 input
	inputW, inputH := 112, 112
	embDim := 512

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(embDim))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		[]string{"683"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create encoder session: %w", err)
	}

	return &Encoder{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
		embDim:       embDim,
	}, nil
}

// EncodeFaces crops each box from the image and extracts a normalized
// embedding per face. Result order matches the box order; a box whose
// crop is empty yields a nil entry.
func (e *Encoder) EncodeFaces(img image.Image, boxes []Box) ([][]float32, error) {
	encodings := make([][]float32, len(boxes))
	for i, box := range boxes {
		crop := CropBox(img, box)
		if crop == nil {
			continue
		}

		input := imageToFloat32CHW(crop, e.inputW, e.inputH,
			[3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})

		inputSlice := e.inputTensor.GetData()
		copy(inputSlice, input)

		if err := e.session.Run(); err != nil {
			return nil, fmt.Errorf("run face encoding: %w", err)
		}

		embedding := make([]float32, e.embDim)
		copy(embedding, e.outputTensor.GetData())
		normalize(embedding)
		encodings[i] = embedding
	}
	return encodings, nil
}

// EmbeddingDim returns the embedding vector dimension.
func (e *Encoder) EmbeddingDim() int {
	return e.embDim
}

func (e *Encoder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
}

// normalize performs L2 normalization in-place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}
