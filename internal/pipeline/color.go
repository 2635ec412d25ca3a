package pipeline

import (
	"context"
	"image"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/tognee/librephotos/internal/models"
)

const (
	colorSampleSize  = 100
	colorPaletteSize = 16
)

// ExtractDominantColor quantizes a downsampled thumbnail to a small
// adaptive palette and stores the most frequent entry. Runs at most
// once per asset.
func (p *Pipeline) ExtractDominantColor(ctx context.Context, asset *models.Asset) error {
	if asset.DominantColor != nil {
		return nil
	}

	_, img, err := p.readThumbnail(ctx, asset)
	if err != nil {
		return err
	}

	sample := imaging.Fit(img, colorSampleSize, colorSampleSize, imaging.Lanczos)
	color := dominantColor(sample, colorPaletteSize)
	asset.DominantColor = &color

	return p.persistAsset(ctx, asset, true)
}

type pixel struct{ r, g, b uint8 }

// dominantColor runs a median-cut quantization to paletteSize buckets
// and returns the average color of the most populated bucket.
func dominantColor(img image.Image, paletteSize int) models.RGB {
	bounds := img.Bounds()
	pixels := make([]pixel, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pixels = append(pixels, pixel{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
		}
	}
	if len(pixels) == 0 {
		return models.RGB{}
	}

	buckets := [][]pixel{pixels}
	for len(buckets) < paletteSize {
		// Split the bucket with the widest channel range.
		widest, channel := pickWidestBucket(buckets)
		if widest < 0 {
			break
		}
		bucket := buckets[widest]
		sortByChannel(bucket, channel)
		mid := len(bucket) / 2
		buckets = append(buckets[:widest], append([][]pixel{bucket[:mid], bucket[mid:]}, buckets[widest+1:]...)...)
	}

	best := 0
	for i := range buckets {
		if len(buckets[i]) > len(buckets[best]) {
			best = i
		}
	}
	return averageColor(buckets[best])
}

// pickWidestBucket returns the splittable bucket with the largest
// single-channel spread, plus that channel (0=r, 1=g, 2=b).
func pickWidestBucket(buckets [][]pixel) (int, int) {
	bestBucket, bestChannel, bestRange := -1, 0, 0
	for i, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}
		for c := 0; c < 3; c++ {
			lo, hi := 255, 0
			for _, px := range bucket {
				v := int(pixelChannel(px, c))
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			if hi-lo > bestRange {
				bestBucket, bestChannel, bestRange = i, c, hi-lo
			}
		}
	}
	if bestRange == 0 {
		return -1, 0
	}
	return bestBucket, bestChannel
}

func sortByChannel(bucket []pixel, channel int) {
	sort.Slice(bucket, func(i, j int) bool {
		return pixelChannel(bucket[i], channel) < pixelChannel(bucket[j], channel)
	})
}

func pixelChannel(px pixel, channel int) uint8 {
	switch channel {
	case 0:
		return px.r
	case 1:
		return px.g
	default:
		return px.b
	}
}

func averageColor(bucket []pixel) models.RGB {
	var r, g, b uint64
	for _, px := range bucket {
		r += uint64(px.r)
		g += uint64(px.g)
		b += uint64(px.b)
	}
	n := uint64(len(bucket))
	return models.RGB{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n)}
}
