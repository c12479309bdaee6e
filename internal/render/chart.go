package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sort"

	"benchbook/pkg/domain"
)

const (
	chartWidth  = 400
	chartHeight = 200
)

var barColor = color.RGBA{0, 102, 204, 255}

// InventoryChart renders a bar per sample type, scaled by sample count.
// It is a rough visual aid, not a plotting library.
func InventoryChart(samples []domain.Sample) ([]byte, error) {
	counts := map[string]int{}
	for _, s := range samples {
		counts[s.SampleType]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	values := make([]int, len(types))
	for i, t := range types {
		values[i] = counts[t]
	}
	return barChart(values)
}

// InventoryLocationChart renders a bar per storage location, scaled by
// sample count.
func InventoryLocationChart(samples []domain.Sample) ([]byte, error) {
	counts := map[string]int{}
	for _, s := range samples {
		counts[s.Location]++
	}
	locations := make([]string, 0, len(counts))
	for l := range counts {
		locations = append(locations, l)
	}
	sort.Strings(locations)

	values := make([]int, len(locations))
	for i, l := range locations {
		values[i] = counts[l]
	}
	return barChart(values)
}

// ExperimentTimelineChart renders a bar per experiment, full height when
// completed and half height while in progress, oldest first.
func ExperimentTimelineChart(experiments []domain.Experiment) ([]byte, error) {
	ordered := append([]domain.Experiment(nil), experiments...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })
	values := make([]int, len(ordered))
	for i, exp := range ordered {
		if exp.Status() == domain.ExperimentCompleted {
			values[i] = 2
		} else {
			values[i] = 1
		}
	}
	return barChart(values)
}

func barChart(values []int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	maxVal := 1
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	barCount := len(values)
	if barCount == 0 {
		barCount = 1
	}
	barWidth := chartWidth / barCount
	if barWidth < 1 {
		barWidth = 1
	}
	for i, v := range values {
		x0 := i * barWidth
		x1 := x0 + barWidth - 2
		if x1 <= x0 {
			x1 = x0 + 1
		}
		barHeight := (chartHeight - 20) * v / maxVal
		if barHeight < 1 {
			barHeight = 1
		}
		rect := image.Rect(x0, chartHeight-10-barHeight, x1, chartHeight-10)
		draw.Draw(img, rect, &image.Uniform{barColor}, image.Point{}, draw.Src)
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
