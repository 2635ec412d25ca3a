package vision

import (
	"bufio"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tognee/librephotos/internal/models"
)

const (
	sceneCategoryCount  = 365
	sceneAttributeCount = 102
)

// Places365 classifies scenes with a Places365 ONNX model exporting two
// heads: category logits and attribute scores. Label files live next to
// the model in the models directory.
type Places365 struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	categoryOut   *ort.Tensor[float32]
	attributeOut  *ort.Tensor[float32]
	inputW        int
	inputH        int
	categories    []string
	attributes    []string
	indoorOutdoor []int // 0 = indoor, 1 = outdoor, per category
}

// NewPlaces365 loads the scene model plus its label files:
// categories_places365.txt, labels_sunattributes.txt, IO_places365.txt.
func NewPlaces365(modelsDir string) (*Places365, error) {
	modelPath := filepath.Join(modelsDir, "places365.onnx")

	categories, err := readLabels(filepath.Join(modelsDir, "categories_places365.txt"), sceneCategoryCount)
	if err != nil {
		return nil, fmt.Errorf("load scene categories: %w", err)
	}
	attributes, err := readLabels(filepath.Join(modelsDir, "labels_sunattributes.txt"), sceneAttributeCount)
	if err != nil {
		return nil, fmt.Errorf("load scene attributes: %w", err)
	}
	indoorOutdoor, err := readIndoorOutdoor(filepath.Join(modelsDir, "IO_places365.txt"), sceneCategoryCount)
	if err != nil {
		return nil, fmt.Errorf("load indoor/outdoor map: %w", err)
	}

	inputW, inputH := 224, 224

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	categoryOut, err := ort.NewEmptyTensor[float32](ort.NewShape(1, sceneCategoryCount))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create category tensor: %w", err)
	}
	attributeOut, err := ort.NewEmptyTensor[float32](ort.NewShape(1, sceneAttributeCount))
	if err != nil {
		inputTensor.Destroy()
		categoryOut.Destroy()
		return nil, fmt.Errorf("create attribute tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"categories", "attributes"},
		[]ort.Value{inputTensor},
		[]ort.Value{categoryOut, attributeOut},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		categoryOut.Destroy()
		attributeOut.Destroy()
		return nil, fmt.Errorf("create scene session: %w", err)
	}

	return &Places365{
		session:       session,
		inputTensor:   inputTensor,
		categoryOut:   categoryOut,
		attributeOut:  attributeOut,
		inputW:        inputW,
		inputH:        inputH,
		categories:    categories,
		attributes:    attributes,
		indoorOutdoor: indoorOutdoor,
	}, nil
}

// ClassifyScene returns categories above the confidence threshold, the
// top scene attributes, and an indoor/outdoor environment label voted by
// the ten best categories.
func (p *Places365) ClassifyScene(img image.Image, confidence float64) (*models.SceneCaption, error) {
	// ImageNet normalization on 0-255 scale
	input := imageToFloat32CHW(img, p.inputW, p.inputH,
		[3]float32{0.485 * 255, 0.456 * 255, 0.406 * 255},
		[3]float32{0.229 * 255, 0.224 * 255, 0.225 * 255})

	inputSlice := p.inputTensor.GetData()
	copy(inputSlice, input)

	if err := p.session.Run(); err != nil {
		return nil, fmt.Errorf("run scene classification: %w", err)
	}

	probs := softmax(p.categoryOut.GetData())

	type scored struct {
		idx   int
		score float32
	}
	ranked := make([]scored, len(probs))
	for i, s := range probs {
		ranked[i] = scored{idx: i, score: s}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	result := &models.SceneCaption{}
	for _, r := range ranked {
		if float64(r.score) < confidence {
			break
		}
		result.Categories = append(result.Categories, p.categories[r.idx])
	}

	// Environment: vote of the top-10 categories' indoor/outdoor flags.
	outdoorVotes := 0
	for _, r := range ranked[:10] {
		outdoorVotes += p.indoorOutdoor[r.idx]
	}
	if outdoorVotes >= 5 {
		result.Environment = "outdoor"
	} else {
		result.Environment = "indoor"
	}

	attrScores := p.attributeOut.GetData()
	attrRanked := make([]scored, len(attrScores))
	for i, s := range attrScores {
		attrRanked[i] = scored{idx: i, score: s}
	}
	sort.Slice(attrRanked, func(i, j int) bool { return attrRanked[i].score > attrRanked[j].score })
	for _, r := range attrRanked[:10] {
		result.Attributes = append(result.Attributes, p.attributes[r.idx])
	}

	return result, nil
}

func (p *Places365) Close() {
	if p.session != nil {
		p.session.Destroy()
	}
	if p.inputTensor != nil {
		p.inputTensor.Destroy()
	}
	if p.categoryOut != nil {
		p.categoryOut.Destroy()
	}
	if p.attributeOut != nil {
		p.attributeOut.Destroy()
	}
}

func softmax(logits []float32) []float32 {
	maxLogit := float32(math.Inf(-1))
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}
	out := make([]float32, len(logits))
	var sum float64
	for i, l := range logits {
		e := math.Exp(float64(l - maxLogit))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// readLabels parses a label file of "name" or "/x/name index" lines.
func readLabels(path string, expected int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		label := fields[0]
		// Places365 category files use "/x/label_name" paths
		if idx := strings.LastIndex(label, "/"); idx >= 0 {
			label = label[idx+1:]
		}
		labels = append(labels, strings.ReplaceAll(label, "_", " "))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) != expected {
		return nil, fmt.Errorf("%s: expected %d labels, got %d", path, expected, len(labels))
	}
	return labels, nil
}

// readIndoorOutdoor parses "category flag" lines where flag 1 = indoor,
// 2 = outdoor in the published Places365 mapping.
func readIndoorOutdoor(path string, expected int) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var flags []int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		flag, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil {
			return nil, fmt.Errorf("%s: malformed line %q", path, line)
		}
		if flag == 2 {
			flags = append(flags, 1) // outdoor
		} else {
			flags = append(flags, 0) // indoor
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(flags) != expected {
		return nil, fmt.Errorf("%s: expected %d entries, got %d", path, expected, len(flags))
	}
	return flags, nil
}
