package ui

import (
	"image"
	"strings"

	"charm.land/lipgloss/v2"
	"golang.org/x/image/draw"
)

// halfBlocks draws img into at most w x h cells using the upper half block,
// two vertical pixels per cell, keeping the aspect ratio.
func halfBlocks(img *image.RGBA, w, h int) []string {
	if img == nil || w <= 0 || h <= 0 {
		return nil
	}
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	dw, dh := fitPixels(b.Dx(), b.Dy(), w, h*2)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	rows := make([]string, 0, (dh+1)/2)
	for y := 0; y < dh; y += 2 {
		var sb strings.Builder
		for x := 0; x < dw; x++ {
			top := dst.RGBAAt(x, y)
			st := lipgloss.NewStyle().Foreground(top)
			if y+1 < dh {
				st = st.Background(dst.RGBAAt(x, y+1))
			}
			sb.WriteString(st.Render("▀"))
		}
		rows = append(rows, sb.String())
	}
	return rows
}

func fitPixels(w, h, maxW, maxH int) (int, int) {
	sx := float64(maxW) / float64(w)
	sy := float64(maxH) / float64(h)
	s := min(sx, sy)
	return max(1, int(float64(w)*s)), max(1, int(float64(h)*s))
}
