package inference

import (
	"image"

	"github.com/nfnt/resize"
)

// Layout テンソルの次元順序
type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

// resizeTo モデル入力サイズにリサイズ
func resizeTo(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear)
}

// pixelRGB 8bitのRGB値を返す
func pixelRGB(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

// grayscale ITU-R 601の輝度
func grayscale(r, g, b uint8) float32 {
	return (0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)) / 255
}

// fillUint8 量子化モデル向けにNHWCのuint8を書き込む
func fillUint8(dst []uint8, img image.Image, width, height, channels int) {
	img = resizeTo(img, width, height)
	origin := img.Bounds().Min

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := pixelRGB(img, origin.X+x, origin.Y+y)
			if channels == 1 {
				dst[i] = uint8(grayscale(r, g, b)*255 + 0.5)
				i++
				continue
			}
			dst[i], dst[i+1], dst[i+2] = r, g, b
			i += channels
		}
	}
}

// fillFloat32 浮動小数点モデル向けに0-1へ正規化して書き込む
func fillFloat32(dst []float32, img image.Image, width, height, channels int, layout Layout) {
	img = resizeTo(img, width, height)
	origin := img.Bounds().Min
	plane := width * height

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := pixelRGB(img, origin.X+x, origin.Y+y)
			p := y*width + x

			if channels == 1 {
				dst[p] = grayscale(r, g, b)
				continue
			}

			rgb := [3]float32{float32(r) / 255, float32(g) / 255, float32(b) / 255}
			for c := 0; c < 3; c++ {
				if layout == LayoutNCHW {
					dst[c*plane+p] = rgb[c]
				} else {
					dst[p*channels+c] = rgb[c]
				}
			}
		}
	}
}
