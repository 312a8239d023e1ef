package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/prompter/layout"
	"github.com/ByLCY/prompter/renderer"
)

// A4 纸张与版心（毫米）。
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	marginTop    = 22.0
	marginBottom = 20.0
	marginLeft   = 18.0
	marginRight  = 18.0
	gutterWidth  = 12.0
	headerGap    = 8.0
	ruleWidth    = 0.2
)

// systemFonts 按顺序尝试，优先能显示中文的字体。
var systemFonts = []string{
	"Noto Sans CJK SC",
	"Source Han Sans SC",
	"PingFang SC",
	"Microsoft YaHei",
	"Noto Sans",
	"DejaVu Sans",
	"Arial",
}

// Renderer 使用 github.com/tdewolff/canvas 把提词稿逐行排到 A4 页面上：左侧行号，
// 超出宽度预算的行以红色标出，页脚显示页码。
type Renderer struct {
	font     Resource
	fontSize float64 // pt

	fontMu sync.Mutex
	family *canvas.FontFamily
}

var _ renderer.Renderer = (*Renderer)(nil)

// Options 配置打印稿渲染器。
type Options struct {
	// Font 为空时按 systemFonts 顺序查找系统字体。
	Font Resource
	// FontSize 是打印字号（pt），≤0 时为 14。屏幕字号对纸张来说太大，因此单独配置。
	FontSize float64
}

// Resource 可以直接给出字节，也可以给出文件路径。
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer 创建使用系统字体的渲染器。
func NewRenderer() *Renderer { return NewRendererWithOptions(Options{}) }

// NewRendererWithOptions 使用给定字体与字号创建渲染器。
func NewRendererWithOptions(opts Options) *Renderer {
	size := opts.FontSize
	if size <= 0 {
		size = 14
	}
	return &Renderer{font: opts.Font, fontSize: size}
}

// Render 把分行结果渲染为 PDF。
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	family, err := r.ensureFamily()
	if err != nil {
		return nil, err
	}

	lineHeight := r.lineHeightMM(result.Script.Settings.LineHeight)
	perPage := linesPerPage(pageHeight-marginTop-marginBottom-headerGap, lineHeight)
	pages := paginate(result.Lines, perPage)

	var buf bytes.Buffer
	writer := pdf.New(&buf, pageWidth, pageHeight, nil)
	writer.SetInfo(result.Script.Title, "", "", result.Script.Author, "prompter")
	for i, lines := range pages {
		if i > 0 {
			writer.NewPage(pageWidth, pageHeight)
		}
		c := canvas.New(pageWidth, pageHeight)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 左上角为原点

		r.drawHeader(ctx, family, result)
		r.drawLines(ctx, family, lines, result.Budget, lineHeight)
		r.drawFooter(ctx, family, i+1, len(pages))
		c.RenderTo(writer)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// lineHeightMM 按打印字号解析行高。
func (r *Renderer) lineHeightMM(spec layout.LineHeightSpec) float64 {
	size := layout.Length{Value: r.fontSize, Unit: layout.UnitPT}
	if spec.Kind == layout.LineHeightAbsolute {
		// 屏幕上的绝对行高无法直接用于纸张，按默认倍数处理
		spec = layout.Factor(1.4)
	}
	return spec.ResolvePT(size) * layout.PtToMm
}

func (r *Renderer) face(family *canvas.FontFamily, sizePt float64, col color.Color) *canvas.FontFace {
	return family.Face(sizePt, col, canvas.FontRegular, canvas.FontNormal)
}

func (r *Renderer) drawHeader(ctx *canvas.Context, family *canvas.FontFamily, result *layout.Result) {
	title := headerText(result)
	face := r.face(family, r.fontSize*0.8, canvas.Hex("#555555"))
	y := marginTop - headerGap/2
	ctx.DrawText(marginLeft, y, canvas.NewTextLine(face, title, canvas.Left))

	ctx.SetStrokeColor(canvas.Hex("#bbbbbb"))
	ctx.SetStrokeWidth(ruleWidth)
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(pageWidth-marginLeft-marginRight, 0)
	ctx.DrawPath(marginLeft, marginTop-1, p)
}

func (r *Renderer) drawLines(ctx *canvas.Context, family *canvas.FontFamily, lines []layout.Line, budget int, lineHeight float64) {
	body := r.face(family, r.fontSize, canvas.Hex("#1e1e1e"))
	overflow := r.face(family, r.fontSize, canvas.Hex("#c0392b"))
	number := r.face(family, r.fontSize*0.7, canvas.Hex("#999999"))
	ascent := body.Metrics().Ascent

	y := marginTop + headerGap
	for _, ln := range lines {
		baseline := y + ascent
		ctx.DrawText(marginLeft+gutterWidth-2, baseline, canvas.NewTextLine(number, strconv.Itoa(ln.Index+1), canvas.Right))
		face := body
		if budget > 0 && ln.Width > budget {
			face = overflow
		}
		ctx.DrawText(marginLeft+gutterWidth, baseline, canvas.NewTextLine(face, ln.Content, canvas.Left))
		y += lineHeight
	}
}

func (r *Renderer) drawFooter(ctx *canvas.Context, family *canvas.FontFamily, page, total int) {
	face := r.face(family, r.fontSize*0.7, canvas.Hex("#999999"))
	text := canvas.NewTextLine(face, pageLabel(page, total), canvas.Center)
	ctx.DrawText(pageWidth/2, pageHeight-marginBottom/2, text)
}

func (r *Renderer) ensureFamily() (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if r.family != nil {
		return r.family, nil
	}
	family := canvas.NewFontFamily("prompter")
	if err := r.loadFont(family); err != nil {
		return nil, err
	}
	r.family = family
	return family, nil
}

func (r *Renderer) loadFont(family *canvas.FontFamily) error {
	if len(r.font.Bytes) > 0 {
		return family.LoadFont(r.font.Bytes, 0, canvas.FontRegular)
	}
	if r.font.Path != "" {
		data, err := os.ReadFile(r.font.Path)
		if err != nil {
			return fmt.Errorf("读取字体 %s 失败: %w", r.font.Path, err)
		}
		if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
			return fmt.Errorf("加载字体 %s 失败: %w", r.font.Path, err)
		}
		return nil
	}
	var lastErr error
	for _, name := range systemFonts {
		if err := family.LoadSystemFont(name, canvas.FontRegular); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("找不到可用的系统字体，请在配置 display.font_file 中指定: %w", lastErr)
}

// linesPerPage 计算一页能容纳的行数，至少为 1。
func linesPerPage(available, lineHeight float64) int {
	if lineHeight <= 0 {
		return 1
	}
	n := int(math.Floor(available / lineHeight))
	if n < 1 {
		return 1
	}
	return n
}

// paginate 按每页行数切分；没有行时仍返回一页空白页。
func paginate(lines []layout.Line, perPage int) [][]layout.Line {
	if perPage < 1 {
		perPage = 1
	}
	if len(lines) == 0 {
		return [][]layout.Line{nil}
	}
	pages := make([][]layout.Line, 0, (len(lines)+perPage-1)/perPage)
	for start := 0; start < len(lines); start += perPage {
		end := min(start+perPage, len(lines))
		pages = append(pages, lines[start:end])
	}
	return pages
}

func headerText(result *layout.Result) string {
	title := result.Script.Title
	if title == "" {
		title = "未命名提词稿"
	}
	if result.Script.Author != "" {
		title += " · " + result.Script.Author
	}
	return fmt.Sprintf("%s（%d 行，宽度 %d）", title, len(result.Lines), result.Budget)
}

func pageLabel(page, total int) string { return fmt.Sprintf("%d / %d", page, total) }
