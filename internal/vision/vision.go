package vision

import (
	"context"
	"image"

	"github.com/tognee/librephotos/internal/models"
)

// Box is a face bounding box in the pixel space of the image it was
// detected on: top, right, bottom, left.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// FaceDetector finds face boxes on an image. Implementations may fail;
// the pipeline treats errors as "no faces".
type FaceDetector interface {
	DetectFaces(img image.Image) ([]Box, error)
}

// FaceEncoder computes embeddings for all boxes in one batched call.
// Result order matches the box order.
type FaceEncoder interface {
	EncodeFaces(img image.Image, boxes []Box) ([][]float32, error)
}

// SceneClassifier produces scene categories, attributes and an
// indoor/outdoor environment label above the given confidence.
type SceneClassifier interface {
	ClassifyScene(img image.Image, confidence float64) (*models.SceneCaption, error)
}

// Captioner generates a free-text caption for an image.
type Captioner interface {
	GenerateCaption(ctx context.Context, imageData []byte) (string, error)
}

// Embedder computes a fixed-length semantic vector and its magnitude.
type Embedder interface {
	EmbedImage(img image.Image) ([]float32, float32, error)
}
