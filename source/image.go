// Package source fills the framebuffer with pictures: still images and live
// FFmpeg capture.
package source

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadImage decodes the image file at path and paints it into p.
func LoadImage(path string, p Painter) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := PaintImage(img, p); err != nil {
		return err
	}
	b := img.Bounds()
	log.Printf("Loaded %s image %s (%dx%d) into %dx%d framebuffer", format, path, b.Dx(), b.Dy(), p.Cols(), p.Rows())
	return nil
}

// PaintImage scales img to the painter's size and writes its luma.
func PaintImage(img image.Image, p Painter) error {
	dst := image.NewGray(image.Rect(0, 0, p.Cols(), p.Rows()))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	for y := 0; y < p.Rows(); y++ {
		if err := p.SetRow(y, dst.Pix[y*dst.Stride:y*dst.Stride+p.Cols()]); err != nil {
			return err
		}
	}
	return nil
}
