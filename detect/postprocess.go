package detect

import "sort"

// IoU computes intersection over union for two normalized rectangles. Used by
// non-maximum suppression to drop duplicate detections of the same object.
func IoU(a, b rect) float32 {
	ix1 := maxf(a.x1, b.x1)
	iy1 := maxf(a.y1, b.y1)
	ix2 := minf(a.x2, b.x2)
	iy2 := minf(a.y2, b.y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

type rect struct{ x1, y1, x2, y2 float32 }

func (r rect) area() float32 { return (r.x2 - r.x1) * (r.y2 - r.y1) }

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// NMS applies greedy non-maximum suppression: detections are visited in
// descending confidence order and any later detection overlapping a kept one
// above the threshold is suppressed.
func NMS(dets []Detection, iouThreshold float32) []Detection {
	if len(dets) <= 1 {
		return dets
	}

	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var kept []Detection
	for _, cand := range sorted {
		suppressed := false
		for _, k := range kept {
			if IoU(toRect(cand), toRect(k)) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, cand)
		}
	}
	return kept
}

func toRect(d Detection) rect {
	return rect{
		x1: d.Box.X,
		y1: d.Box.Y,
		x2: d.Box.X + d.Box.W,
		y2: d.Box.Y + d.Box.H,
	}
}
