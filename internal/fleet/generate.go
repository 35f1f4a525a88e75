package fleet

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// Generate builds n active drones with randomised starting telemetry. Every
// drone shares img as its camera still.
func Generate(n int, prefix string, r *rand.Rand, img []byte) []Device {
	devices := make([]Device, 0, n)
	for i := 0; i < n; i++ {
		devices = append(devices, Device{
			ID:     uuid.New().String(),
			Name:   fmt.Sprintf("%s%d", prefix, i+1),
			Status: StatusActive,
			Telemetry: Telemetry{
				Temperature: Round(40+r.Float64()*5, 1),
				Battery:     Round(80+r.Float64()*20, 0),
				Signal:      Round(-60+r.Float64()*10, 0),
			},
			Image: img,
		})
	}
	return devices
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// PlaceholderImage renders a small gradient PNG used when no camera still is
// configured.
func PlaceholderImage(w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(40 + 80*x/w),
				G: uint8(90 + 100*y/h),
				B: 140,
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
