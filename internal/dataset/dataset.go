// Package dataset loads per-video frame-feature sequences for training and
// evaluation. A features directory holds one .feat matrix per video (rows =
// frames) plus a labels.csv mapping video ids to class indices. Videos are
// padded or truncated to a fixed frame count with a float mask marking real
// frames.
package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/w-garcia/nextvlad-go/internal/feature"
)

// LabelsFileName is the per-directory labels index.
const LabelsFileName = "labels.csv"

// Options configures dataset loading.
type Options struct {
	FeatsDir  string
	MaxFrames int
	// NumClasses overrides the class count inferred from the labels file
	// (max index + 1). Required when a split does not carry every class.
	NumClasses int
}

// Video is one entry in the dataset index.
type Video struct {
	ID     string
	Path   string
	Labels []int
}

// Item is a single loaded example: a MaxFrames x D feature matrix, the
// frame mask, and a multi-hot ground-truth vector.
type Item struct {
	VideoID     string
	Features    *feature.Matrix
	Mask        []float32
	GroundTruth []float32
}

// Dataset indexes a features directory. Feature matrices are read lazily
// per item.
type Dataset struct {
	videos     []Video
	maxFrames  int
	featureDim int
	numClasses int
}

// Load scans opts.FeatsDir for .feat files and reads labels.csv. Videos
// without a labels entry get an empty ground truth, which is how unlabeled
// evaluation sets are represented.
func Load(opts Options) (*Dataset, error) {
	if opts.MaxFrames <= 0 {
		return nil, fmt.Errorf("dataset: max frames must be positive, got %d", opts.MaxFrames)
	}

	labels, maxLabel, err := readLabels(filepath.Join(opts.FeatsDir, LabelsFileName))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(opts.FeatsDir)
	if err != nil {
		return nil, fmt.Errorf("dataset: reading %s: %w", opts.FeatsDir, err)
	}

	var videos []Video
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".feat") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".feat")
		videos = append(videos, Video{
			ID:     id,
			Path:   filepath.Join(opts.FeatsDir, e.Name()),
			Labels: labels[id],
		})
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("dataset: no .feat files in %s", opts.FeatsDir)
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].ID < videos[j].ID })

	numClasses := opts.NumClasses
	if numClasses == 0 {
		numClasses = maxLabel + 1
	}
	if maxLabel >= numClasses {
		return nil, fmt.Errorf("dataset: label index %d out of range for %d classes", maxLabel, numClasses)
	}

	// The first video fixes the feature dimensionality for the split.
	first, err := feature.ReadFile(videos[0].Path)
	if err != nil {
		return nil, err
	}

	return &Dataset{
		videos:     videos,
		maxFrames:  opts.MaxFrames,
		featureDim: first.Cols,
		numClasses: numClasses,
	}, nil
}

// Len returns the number of videos.
func (d *Dataset) Len() int { return len(d.videos) }

// NumClasses returns the label vocabulary size.
func (d *Dataset) NumClasses() int { return d.numClasses }

// FeatureDim returns the per-frame feature dimensionality.
func (d *Dataset) FeatureDim() int { return d.featureDim }

// MaxFrames returns the padded sequence length.
func (d *Dataset) MaxFrames() int { return d.maxFrames }

// Video returns the index entry i.
func (d *Dataset) Video(i int) Video { return d.videos[i] }

// Item reads video i from disk, truncates or zero-pads it to MaxFrames,
// and builds the mask and multi-hot ground truth.
func (d *Dataset) Item(i int) (*Item, error) {
	v := d.videos[i]
	raw, err := feature.ReadFile(v.Path)
	if err != nil {
		return nil, err
	}
	if raw.Cols != d.featureDim {
		return nil, fmt.Errorf("dataset: %s has feature dim %d, split uses %d", v.Path, raw.Cols, d.featureDim)
	}

	frames := raw.Rows
	if frames > d.maxFrames {
		frames = d.maxFrames
	}

	padded := feature.NewMatrix(d.maxFrames, d.featureDim)
	copy(padded.Data, raw.Data[:frames*d.featureDim])

	mask := make([]float32, d.maxFrames)
	for f := 0; f < frames; f++ {
		mask[f] = 1
	}

	gt := make([]float32, d.numClasses)
	for _, l := range v.Labels {
		gt[l] = 1
	}

	return &Item{VideoID: v.ID, Features: padded, Mask: mask, GroundTruth: gt}, nil
}

// readLabels parses labels.csv: one `video_id,i j k` line per video, label
// indices space-separated. A missing file yields an empty label map.
func readLabels(path string) (map[string][]int, int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string][]int{}, -1, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("dataset: opening %s: %w", path, err)
	}
	defer f.Close()

	labels := make(map[string][]int)
	maxLabel := -1
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id, rest, ok := strings.Cut(text, ",")
		if !ok {
			return nil, 0, fmt.Errorf("dataset: %s:%d: missing comma", path, line)
		}
		var ls []int
		for _, tok := range strings.Fields(rest) {
			l, err := strconv.Atoi(tok)
			if err != nil || l < 0 {
				return nil, 0, fmt.Errorf("dataset: %s:%d: bad label %q", path, line, tok)
			}
			if l > maxLabel {
				maxLabel = l
			}
			ls = append(ls, l)
		}
		labels[id] = ls
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("dataset: reading %s: %w", path, err)
	}
	return labels, maxLabel, nil
}
