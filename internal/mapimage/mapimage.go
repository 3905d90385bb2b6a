package mapimage

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"

	"github.com/golang/freetype/truetype"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/hunterjsb/boardbot/internal/cache"
	"github.com/hunterjsb/boardbot/internal/catalog"
	"github.com/hunterjsb/boardbot/internal/engine"
	"github.com/hunterjsb/boardbot/internal/grid"
)

// Layout in pixels
const (
	CellSize = 96
	Margin   = 36
	Width    = Margin + grid.Columns*CellSize + Margin/2
	Height   = Margin + grid.Rows*CellSize + Margin/2

	markerRadius = 13
)

var (
	paper     = color.RGBA{0xf4, 0xec, 0xd8, 0xff}
	ink       = color.RGBA{0x2c, 0x24, 0x1b, 0xff}
	gridLine  = color.RGBA{0x5c, 0x4b, 0x37, 0xff}
	emptyTile = color.RGBA{0xe8, 0xdc, 0xc0, 0xff}
	fog       = color.RGBA{0x3a, 0x3a, 0x44, 0xff}
	current   = color.RGBA{0xf1, 0xc4, 0x0f, 0xff}
)

// teamColors is indexed by a hash of the team name
var teamColors = []color.RGBA{
	{0xc0, 0x39, 0x2b, 0xff},
	{0x29, 0x80, 0xb9, 0xff},
	{0x27, 0xae, 0x60, 0xff},
	{0x8e, 0x44, 0xad, 0xff},
	{0xd3, 0x54, 0x00, 0xff},
	{0x16, 0xa0, 0x85, 0xff},
	{0x2c, 0x3e, 0x50, 0xff},
	{0xf3, 0x9c, 0x12, 0xff},
}

// Renderer draws the board as a PNG. It implements engine.Renderer.
type Renderer struct {
	catalog    *catalog.Catalog
	label      font.Face
	small      font.Face
	background image.Image
	cache      *cache.Cache[[]byte]
	log        log.FieldLogger
}

var _ engine.Renderer = (*Renderer)(nil)

// Option configures a Renderer
type Option func(*Renderer)

// WithCache reuses rendered images for identical board states
func WithCache(c *cache.Cache[[]byte]) Option {
	return func(r *Renderer) { r.cache = c }
}

// WithBackground draws img scaled under the tiles
func WithBackground(img image.Image) Option {
	return func(r *Renderer) { r.background = img }
}

// WithLogger sets the logger
func WithLogger(l log.FieldLogger) Option {
	return func(r *Renderer) { r.log = l }
}

// New creates a renderer for the board in cat
func New(cat *catalog.Catalog, opts ...Option) (*Renderer, error) {
	tt, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("error parsing font: %w", err)
	}

	const dpi = 72
	r := &Renderer{
		catalog: cat,
		label: truetype.NewFace(tt, &truetype.Options{
			Size:    18,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
		small: truetype.NewFace(tt, &truetype.Options{
			Size:    12,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
		log: log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// LoadBackground decodes a PNG from path
func LoadBackground(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error decoding background %s: %w", path, err)
	}
	return img, nil
}

// Render implements engine.Renderer
func (r *Renderer) Render(ctx context.Context, req engine.RenderRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := stateKey(req)
	if b, ok := r.cache.Get(key); ok {
		return b, nil
	}

	img := r.paint(req)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("error encoding map: %w", err)
	}
	out := buf.Bytes()
	r.cache.Set(key, out)

	r.log.WithFields(log.Fields{"mode": string(req.Mode), "team": req.Focus, "bytes": len(out)}).Debug("Map rendered")
	return out, nil
}

// stateKey identifies everything that changes the picture
func stateKey(req engine.RenderRequest) string {
	var b strings.Builder
	b.WriteString(string(req.Mode))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(req.Focus))
	for _, t := range req.Teams {
		if req.Mode == engine.MapTeam && !strings.EqualFold(t.Name, req.Focus) {
			continue
		}
		b.WriteByte('|')
		b.WriteString(t.Name)
		b.WriteByte('@')
		b.WriteString(t.Location.String())
		if req.Mode == engine.MapTeam {
			for _, e := range t.Explored {
				b.WriteByte(',')
				b.WriteString(e.String())
			}
		}
	}
	return b.String()
}

func (r *Renderer) paint(req engine.RenderRequest) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(paper), image.Point{}, draw.Src)

	board := image.Rect(Margin, Margin, Margin+grid.Columns*CellSize, Margin+grid.Rows*CellSize)
	if r.background != nil {
		draw.CatmullRom.Scale(img, board, r.background, r.background.Bounds(), draw.Over, nil)
	}

	var focus *engine.Team
	teams := req.Teams
	if req.Mode == engine.MapTeam {
		teams = nil
		for i := range req.Teams {
			if strings.EqualFold(req.Teams[i].Name, req.Focus) {
				focus = &req.Teams[i]
				teams = req.Teams[i : i+1]
				break
			}
		}
	}

	r.drawAxes(img)

	for row := 1; row <= grid.Rows; row++ {
		for col := 0; col < grid.Columns; col++ {
			t := grid.Tile{Col: col, Row: row}
			hidden := focus != nil && !focus.HasExplored(t)
			r.drawTile(img, t, hidden, focus != nil && focus.Location == t)
		}
	}

	occupants := make(map[grid.Tile][]engine.Team)
	for _, t := range teams {
		occupants[t.Location] = append(occupants[t.Location], t)
	}
	for tile, list := range occupants {
		for i, t := range list {
			r.drawMarker(img, tile, i, len(list), t.Name)
		}
	}
	return img
}

func cellRect(t grid.Tile) image.Rectangle {
	x := Margin + t.Col*CellSize
	y := Margin + (t.Row-1)*CellSize
	return image.Rect(x, y, x+CellSize, y+CellSize)
}

func (r *Renderer) drawAxes(img *image.RGBA) {
	for col := 0; col < grid.Columns; col++ {
		s := string(rune('A' + col))
		x := Margin + col*CellSize + CellSize/2
		r.text(img, r.label, s, x, Margin-12, ink, true)
	}
	for row := 1; row <= grid.Rows; row++ {
		s := fmt.Sprintf("%d", row)
		y := Margin + (row-1)*CellSize + CellSize/2 + 6
		r.text(img, r.label, s, Margin/2, y, ink, true)
	}
}

func (r *Renderer) drawTile(img *image.RGBA, t grid.Tile, hidden, here bool) {
	rect := cellRect(t).Inset(2)

	if hidden {
		fill(img, rect, fog)
		outline(img, rect, gridLine)
		return
	}

	def, ok := r.catalog.Tile(t)
	bg := emptyTile
	if ok && len(def.Slots) > 0 {
		bg = tint(def.Slots[0].Type.Color())
	}
	if r.background == nil || ok {
		fill(img, rect, bg)
	}
	outline(img, rect, gridLine)
	if here {
		outline(img, rect.Inset(2), current)
		outline(img, rect.Inset(3), current)
	}

	r.text(img, r.small, t.String(), rect.Min.X+6, rect.Min.Y+14, ink, false)
	if !ok {
		return
	}
	if def.Name != "" {
		r.text(img, r.small, truncate(r.small, def.Name, CellSize-10), rect.Min.X+CellSize/2-2, rect.Min.Y+32, ink, true)
	}
	if len(def.Slots) > 0 {
		r.text(img, r.small, def.Slots[0].Type.Label(), rect.Min.X+CellSize/2-2, rect.Min.Y+48, ink, true)
	}
	if def.TransportTo != nil {
		r.text(img, r.small, "-> "+def.TransportTo.String(), rect.Min.X+CellSize/2-2, rect.Min.Y+64, ink, true)
	}
}

// drawMarker places the i-th of n team markers along the bottom of the tile
func (r *Renderer) drawMarker(img *image.RGBA, t grid.Tile, i, n int, name string) {
	rect := cellRect(t)
	step := CellSize / (n + 1)
	cx := rect.Min.X + step*(i+1)
	cy := rect.Max.Y - markerRadius - 6

	c := TeamColor(name)
	disc(img, cx, cy, markerRadius, c)
	r.text(img, r.small, initials(name), cx, cy+4, color.RGBA{0xff, 0xff, 0xff, 0xff}, true)
}

// TeamColor returns the marker colour for a team
func TeamColor(name string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(name)))
	return teamColors[h.Sum32()%uint32(len(teamColors))]
}

func initials(name string) string {
	fields := strings.Fields(name)
	switch {
	case len(fields) == 0:
		return "?"
	case len(fields) == 1:
		rs := []rune(fields[0])
		if len(rs) > 2 {
			rs = rs[:2]
		}
		return strings.ToUpper(string(rs))
	default:
		return strings.ToUpper(string([]rune(fields[0])[:1]) + string([]rune(fields[1])[:1]))
	}
}

func (r *Renderer) text(img *image.RGBA, face font.Face, s string, x, y int, c color.Color, centered bool) {
	d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face}
	if centered {
		x -= d.MeasureString(s).Round() / 2
	}
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

func truncate(face font.Face, s string, width int) string {
	if font.MeasureString(face, s).Round() <= width {
		return s
	}
	rs := []rune(s)
	for len(rs) > 1 {
		rs = rs[:len(rs)-1]
		if font.MeasureString(face, string(rs)+"..").Round() <= width {
			return string(rs) + ".."
		}
	}
	return string(rs)
}

func tint(rgb int) color.RGBA {
	mix := func(v int) uint8 { return uint8((v + 2*0xff) / 3) }
	return color.RGBA{mix((rgb >> 16) & 0xff), mix((rgb >> 8) & 0xff), mix(rgb & 0xff), 0xff}
}

func fill(img *image.RGBA, rect image.Rectangle, c color.Color) {
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

func outline(img *image.RGBA, rect image.Rectangle, c color.Color) {
	for x := rect.Min.X; x < rect.Max.X; x++ {
		img.Set(x, rect.Min.Y, c)
		img.Set(x, rect.Max.Y-1, c)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		img.Set(rect.Min.X, y, c)
		img.Set(rect.Max.X-1, y, c)
	}
}

func disc(img *image.RGBA, cx, cy, radius int, c color.Color) {
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= radius*radius {
				img.Set(cx+x, cy+y, c)
			}
		}
	}
}
