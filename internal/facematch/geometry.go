package facematch

import "github.com/kozaktomas/lookalike/internal/embedding"

// minDetScore drops detections the server itself is unsure about.
const minDetScore = 0.5

// boxArea returns the area of an [x1, y1, x2, y2] box, or 0 for malformed boxes.
func boxArea(bbox []float64) float64 {
	if len(bbox) != 4 {
		return 0
	}
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// primaryFace picks the face to compare: the most confident detection with a
// usable descriptor, ties going to the larger face. Returns nil if none qualifies.
func primaryFace(faces []embedding.FaceDetection) Descriptor {
	var best *embedding.FaceDetection
	for i := range faces {
		f := &faces[i]
		if len(f.Embedding) == 0 || f.DetScore < minDetScore {
			continue
		}
		switch {
		case best == nil, f.DetScore > best.DetScore:
			best = f
		case f.DetScore == best.DetScore && boxArea(f.BBox) > boxArea(best.BBox):
			best = f
		}
	}
	if best == nil {
		return nil
	}
	return Descriptor(best.Embedding)
}
