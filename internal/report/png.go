package report

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"
	"time"

	"vipham/internal/domain"

	"github.com/go-fonts/dejavu/dejavusans"
	"github.com/go-fonts/dejavu/dejavusansbold"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// The image is laid out on a 580pt receipt-width page and rasterized at 2x.
const (
	pngScale   = 2
	pngDPI     = 72 * pngScale
	pageWidth  = 580
	pagePad    = 24
	cellPad    = 8
	groupGap   = 24
	headingGap = 12
)

var (
	colorTitle   = color.RGBA{0x1a, 0x20, 0x2c, 0xff}
	colorDate    = color.RGBA{0x4a, 0x55, 0x68, 0xff}
	colorAuthor  = color.RGBA{0x71, 0x80, 0x96, 0xff}
	colorHeading = color.RGBA{0x2d, 0x37, 0x48, 0xff}
	colorBorder  = color.RGBA{0xe2, 0xe8, 0xf0, 0xff}
	colorHeadBG  = color.RGBA{0xf7, 0xfa, 0xfc, 0xff}
)

// column widths as percentages of the table width: name, class, time, violation.
var pngColumns = []int{35, 15, 15, 35}

type pngFaces struct {
	title, heading, body, bold, small font.Face
}

type pngFonts struct {
	regular, bold *opentype.Font
}

// DejaVu Sans covers the Vietnamese precomposed letters (U+1EA0-U+1EF9).
var loadFonts = sync.OnceValues(func() (*pngFonts, error) {
	regular, err := opentype.Parse(dejavusans.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(dejavusansbold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &pngFonts{regular: regular, bold: bold}, nil
})

// newFaces builds faces for a single render. A font.Face caches glyph state
// and must not be shared between goroutines.
func newFaces() (*pngFaces, error) {
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	faces := &pngFaces{}
	for _, spec := range []struct {
		dst  *font.Face
		src  *opentype.Font
		size float64
	}{
		{&faces.title, fonts.bold, 24},
		{&faces.heading, fonts.bold, 18},
		{&faces.body, fonts.regular, 16},
		{&faces.bold, fonts.bold, 16},
		{&faces.small, fonts.regular, 14},
	} {
		face, err := opentype.NewFace(spec.src, &opentype.FaceOptions{Size: spec.size, DPI: pngDPI, Hinting: font.HintingFull})
		if err != nil {
			return nil, fmt.Errorf("create font face: %w", err)
		}
		*spec.dst = face
	}
	return faces, nil
}

func (f *pngFaces) Close() {
	for _, face := range []font.Face{f.title, f.heading, f.body, f.bold, f.small} {
		if face != nil {
			_ = face.Close()
		}
	}
}

func px(v int) int { return v * pngScale }

func lineHeight(f font.Face) int {
	return f.Metrics().Height.Ceil()
}

// RenderPNG rasterizes the grouped report.
func RenderPNG(h Header, groups []Group, loc *time.Location) ([]byte, error) {
	faces, err := newFaces()
	if err != nil {
		return nil, err
	}
	defer faces.Close()

	width := px(pageWidth)
	contentX := px(pagePad)
	contentW := width - 2*contentX
	rowH := lineHeight(faces.body) + px(2*cellPad)

	height := px(pagePad)
	height += lineHeight(faces.title) + lineHeight(faces.body) + px(8) + lineHeight(faces.small)
	height += px(16) + px(16)
	for _, g := range groups {
		height += lineHeight(faces.heading) + px(8) + px(1) + px(headingGap)
		height += rowH * (len(g.Records) + 1)
		height += px(groupGap)
	}
	height += px(pagePad)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	y := px(pagePad)
	y = drawCentered(img, faces.title, colorTitle, width, y, Title)
	y = drawCentered(img, faces.body, colorDate, width, y, "Ngày "+FormatDate(h.GeneratedAt))
	y += px(8)
	y = drawCentered(img, faces.small, colorAuthor, width, y,
		fmt.Sprintf("Người tạo: %s | Chức vụ: %s", h.Author.Name, h.Author.Role))
	y += px(16)
	fillRect(img, contentX, y, contentW, px(1), colorBorder)
	y += px(16)

	cols := make([]int, len(pngColumns))
	for i, pct := range pngColumns {
		cols[i] = contentW * pct / 100
	}
	headers := []string{domain.LabelFullName, domain.LabelClassName, domain.LabelTime, domain.LabelViolation}

	for _, g := range groups {
		heading := fitText(faces.heading, GroupHeading(g), contentW)
		drawText(img, faces.heading, colorHeading, contentX, y+faces.heading.Metrics().Ascent.Ceil(), heading)
		y += lineHeight(faces.heading) + px(8)
		fillRect(img, contentX, y, contentW, px(1), colorBorder)
		y += px(1) + px(headingGap)

		fillRect(img, contentX, y, contentW, rowH, colorHeadBG)
		y = drawRow(img, faces.bold, contentX, y, rowH, cols, headers)
		for _, r := range g.Records {
			y = drawRow(img, faces.body, contentX, y, rowH, cols,
				[]string{r.FullName, r.ClassName, FormatClock(r.Timestamp, loc), r.Violation})
		}
		y += px(groupGap)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawRow(img *image.RGBA, face font.Face, x, y, rowH int, cols []int, cells []string) int {
	baseline := y + px(cellPad) + face.Metrics().Ascent.Ceil()
	cx := x
	for i, w := range cols {
		strokeRect(img, cx, y, w, rowH, colorBorder)
		text := fitText(face, cells[i], w-px(2*cellPad))
		drawText(img, face, color.Black, cx+px(cellPad), baseline, text)
		cx += w
	}
	return y + rowH
}

func drawCentered(img *image.RGBA, face font.Face, c color.Color, width, y int, s string) int {
	w := font.MeasureString(face, s).Ceil()
	x := (width - w) / 2
	if x < 0 {
		x = 0
	}
	drawText(img, face, c, x, y+face.Metrics().Ascent.Ceil(), s)
	return y + lineHeight(face)
}

func drawText(img *image.RGBA, face font.Face, c color.Color, x, baseline int, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

func fillRect(img *image.RGBA, x, y, w, h int, c color.Color) {
	draw.Draw(img, image.Rect(x, y, x+w, y+h), image.NewUniform(c), image.Point{}, draw.Src)
}

func strokeRect(img *image.RGBA, x, y, w, h int, c color.Color) {
	t := px(1) / 2
	if t < 1 {
		t = 1
	}
	fillRect(img, x, y, w, t, c)
	fillRect(img, x, y+h-t, w, t, c)
	fillRect(img, x, y, t, h, c)
	fillRect(img, x+w-t, y, t, h, c)
}

// fitText truncates s with an ellipsis so it renders within limit pixels.
func fitText(face font.Face, s string, limit int) string {
	s = strings.TrimSpace(s)
	if font.MeasureString(face, s).Ceil() <= limit {
		return s
	}
	r := []rune(s)
	for len(r) > 0 {
		r = r[:len(r)-1]
		candidate := string(r) + "…"
		if font.MeasureString(face, candidate).Ceil() <= limit {
			return candidate
		}
	}
	return ""
}
