// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/BourgeoisBear/rasterm"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/jeranaias/chatterm/internal/util"
)

// ErrNotDataURL is returned for strings that are not base64 data: URLs.
var ErrNotDataURL = errors.New("not a base64 data URL")

// ImageInfo describes an image carried in a message.
type ImageInfo struct {
	MimeType string
	Data     []byte
	// Width and Height are zero when the format could not be decoded.
	Width  int
	Height int
	Format string
}

// ParseDataURL decodes a "data:<mime>;base64,<payload>" URL.
func ParseDataURL(s string) (ImageInfo, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return ImageInfo{}, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return ImageInfo{}, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode image payload: %w", err)
	}

	info := ImageInfo{
		MimeType: strings.TrimSuffix(meta, ";base64"),
		Data:     data,
	}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		info.Width, info.Height, info.Format = cfg.Width, cfg.Height, format
	}
	return info, nil
}

// Summary is a one-line description of the image block.
func (i ImageInfo) Summary() string {
	parts := []string{i.MimeType}
	if i.Width > 0 && i.Height > 0 {
		parts = append(parts, fmt.Sprintf("%d×%d", i.Width, i.Height))
	}
	parts = append(parts, util.HumanBytes(len(i.Data)))
	return "🖼  " + strings.Join(parts, " · ")
}

// =============================================================================
// INLINE TERMINAL IMAGES
// =============================================================================

// Graphics is the inline image protocol a terminal understands.
type Graphics int

const (
	GraphicsNone Graphics = iota
	GraphicsKitty
	GraphicsITerm
	GraphicsSixel
)

// DetectGraphics inspects the environment for a known image-capable terminal.
func DetectGraphics() Graphics {
	term := os.Getenv("TERM")
	program := os.Getenv("TERM_PROGRAM")
	switch {
	case os.Getenv("KITTY_WINDOW_ID") != "", strings.Contains(term, "kitty"), program == "ghostty":
		return GraphicsKitty
	case program == "iTerm.app", program == "WezTerm", os.Getenv("LC_TERMINAL") == "iTerm2":
		return GraphicsITerm
	case strings.Contains(term, "sixel"), strings.Contains(term, "mlterm"):
		return GraphicsSixel
	}
	return GraphicsNone
}

// maxInlineWidth keeps inline images to a reasonable size in the terminal.
const maxInlineWidth = 480

// WriteInline draws the image to w using protocol g. It does nothing for
// GraphicsNone.
func WriteInline(w io.Writer, info ImageInfo, g Graphics) error {
	if g == GraphicsNone {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(info.Data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	img = scaleToWidth(img, maxInlineWidth)

	switch g {
	case GraphicsKitty:
		return rasterm.KittyWriteImage(w, img, rasterm.KittyImgOpts{})
	case GraphicsITerm:
		return rasterm.ItermWriteImage(w, img)
	case GraphicsSixel:
		b := img.Bounds()
		pal := image.NewPaletted(b, palette.Plan9)
		draw.FloydSteinberg.Draw(pal, b, img, b.Min)
		return rasterm.SixelWriteImage(w, pal)
	}
	return nil
}

func scaleToWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
