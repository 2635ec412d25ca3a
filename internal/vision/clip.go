package vision

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
)

// CLIPEmbedder computes semantic image embeddings with a CLIP image
// encoder. The magnitude is returned alongside the raw vector so that
// similarity queries can normalize lazily.
type CLIPEmbedder struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
	embDim       int
}

// CLIP ViT-B/32 preprocessing constants (0-255 scale).
var (
	clipMean = [3]float32{0.48145466 * 255, 0.4578275 * 255, 0.40821073 * 255}
	clipStd  = [3]float32{0.26862954 * 255, 0.26130258 * 255, 0.27577711 * 255}
)

// NewCLIPEmbedder loads the CLIP visual ONNX model.
func NewCLIPEmbedder(modelPath string) (*CLIPEmbedder, error) {
	inputW, inputH := 224, 224
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
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create clip session: %w", err)
	}

	return &CLIPEmbedder{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
		embDim:       embDim,
	}, nil
}

// EmbedImage returns the raw embedding vector and its L2 magnitude.
func (c *CLIPEmbedder) EmbedImage(img image.Image) ([]float32, float32, error) {
	input := imageToFloat32CHW(img, c.inputW, c.inputH, clipMean, clipStd)

	inputSlice := c.inputTensor.GetData()
	copy(inputSlice, input)

	if err := c.session.Run(); err != nil {
		return nil, 0, fmt.Errorf("run clip embedding: %w", err)
	}

	embedding := make([]float32, c.embDim)
	copy(embedding, c.outputTensor.GetData())

	var sum float64
	for _, x := range embedding {
		sum += float64(x) * float64(x)
	}
	magnitude := float32(math.Sqrt(sum))

	return embedding, magnitude, nil
}

// EmbeddingDim returns the embedding vector dimension.
func (c *CLIPEmbedder) EmbeddingDim() int {
	return c.embDim
}

func (c *CLIPEmbedder) Close() {
	if c.session != nil {
		c.session.Destroy()
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
}
