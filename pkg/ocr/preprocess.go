package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// prepare grayscales, sharpens and upscales small scans before recognition.
func prepare(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 15)
	gray = imaging.Sharpen(gray, 0.7)
	if gray.Bounds().Dy() < 900 {
		gray = imaging.Resize(gray, 0, 1300, imaging.Lanczos)
	}
	return binarize(gray, 210)
}

func luma(img image.Image, x, y int) int {
	r, g, b, _ := img.At(x, y).RGBA()
	return int((r + g + b) / 3 >> 8)
}

// binarize applies a global threshold.
func binarize(img image.Image, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := uint8(255)
			if luma(img, x, y) <= int(threshold) {
				v = 0
			}
			out.Set(x-b.Min.X, y-b.Min.Y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// adaptiveThreshold compares each pixel to the mean of its window using an
// integral image.
func adaptiveThreshold(img image.Image, window, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	if w == 0 || h == 0 {
		return out
	}
	half := window / 2

	// sums[y*w+x] holds the sum over [0..x]x[0..y].
	sums := make([]int, w*h)
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			row += luma(img, b.Min.X+x, b.Min.Y+y)
			sums[y*w+x] = row
			if y > 0 {
				sums[y*w+x] += sums[(y-1)*w+x]
			}
		}
	}
	at := func(x, y int) int {
		if x < 0 || y < 0 {
			return 0
		}
		return sums[y*w+x]
	}
	black := color.NRGBA{0, 0, 0, 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := max(x-half, 0), max(y-half, 0)
			x1, y1 := min(x+half, w-1), min(y+half, h-1)
			sum := at(x1, y1) - at(x0-1, y1) - at(x1, y0-1) + at(x0-1, y0-1)
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			if luma(img, b.Min.X+x, b.Min.Y+y) < max(mean-bias, 0) {
				out.Set(x, y, black)
			}
		}
	}
	return out
}

// dilate grows black pixels into their 4-neighborhood radius times.
func dilate(img *image.NRGBA, radius int) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	cur := img
	for r := 0; r < radius; r++ {
		next := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for _, d := range [][2]int{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					x2, y2 := x+d[0], y+d[1]
					if x2 < 0 || y2 < 0 || x2 >= w || y2 >= h {
						continue
					}
					if cur.NRGBAAt(x2, y2).R == 0 {
						next.Set(x, y, color.NRGBA{0, 0, 0, 255})
						break
					}
				}
			}
		}
		cur = next
	}
	return cur
}
