package pdfgen

import (
	"errors"
	"fmt"
	"sort"
)

// Template 是生成器的样式模板标识，封闭枚举。
type Template string

const (
	TemplateClassic Template = "classic"
	TemplateModern  Template = "modern"
)

// AllTemplates 列出全部模板，供校验与启动期完整性检查。
var AllTemplates = []Template{TemplateClassic, TemplateModern}

// RGB 是 0-255 的三通道颜色。
type RGB struct {
	R, G, B int
}

// Style 把模板映射为具体的字体与颜色组合。
// HeaderFont/BodyFont 取 PDF 核心字体族（Helvetica/Times/Courier）。
type Style struct {
	HeaderFont  string
	BodyFont    string
	HeaderColor RGB
	BodyColor   RGB
	AccentColor RGB
	// TitleRule 为真时在分区标题下画一条细线（classic）。
	TitleRule bool
}

var templateStyles = map[Template]Style{
	TemplateClassic: {
		HeaderFont:  "Times",
		BodyFont:    "Times",
		HeaderColor: RGB{R: 20, G: 20, B: 20},
		BodyColor:   RGB{R: 40, G: 40, B: 40},
		AccentColor: RGB{R: 120, G: 120, B: 120},
		TitleRule:   true,
	},
	TemplateModern: {
		HeaderFont:  "Helvetica",
		BodyFont:    "Helvetica",
		HeaderColor: RGB{R: 16, G: 64, B: 128},
		BodyColor:   RGB{R: 33, G: 33, B: 33},
		AccentColor: RGB{R: 16, G: 64, B: 128},
		TitleRule:   false,
	},
}

func init() {
	// 启动期完整性检查：枚举新增模板而样式表漏配时直接失败，
	// 不允许隐式回退。
	for _, t := range AllTemplates {
		if _, ok := templateStyles[t]; !ok {
			panic(fmt.Sprintf("pdfgen: template %q has no style entry", t))
		}
	}
	if len(templateStyles) != len(AllTemplates) {
		keys := make([]string, 0, len(templateStyles))
		for k := range templateStyles {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		panic(fmt.Sprintf("pdfgen: style table has unknown templates: %v", keys))
	}
}

// ErrUnknownTemplate 表示请求的模板不在封闭枚举内。
var ErrUnknownTemplate = errors.New("unknown template")

// StyleFor 返回模板的样式；未知模板报错。
func StyleFor(t Template) (Style, error) {
	s, ok := templateStyles[t]
	if !ok {
		return Style{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, t)
	}
	return s, nil
}

// Options 是生成器的版面参数；零值字段落到 withDefaults 的默认值。
type Options struct {
	PageWidth  float64 `json:"page_width,omitempty"`
	PageHeight float64 `json:"page_height,omitempty"`
	Margin     float64 `json:"margin,omitempty"`
	BodySize   float64 `json:"body_size,omitempty"`
	HeaderSize float64 `json:"header_size,omitempty"`
	LineHeight float64 `json:"line_height,omitempty"`
}

// 默认版面：A4（pt）、四边 36pt 边距、正文 11pt、标题 14pt、行高 1.4。
const (
	defaultPageWidth  = 595
	defaultPageHeight = 842
	defaultMargin     = 36
	defaultBodySize   = 11
	defaultHeaderSize = 14
	defaultLineHeight = 1.4
)

func (o Options) withDefaults() Options {
	if o.PageWidth <= 0 {
		o.PageWidth = defaultPageWidth
	}
	if o.PageHeight <= 0 {
		o.PageHeight = defaultPageHeight
	}
	if o.Margin <= 0 {
		o.Margin = defaultMargin
	}
	if o.BodySize <= 0 {
		o.BodySize = defaultBodySize
	}
	if o.HeaderSize <= 0 {
		o.HeaderSize = defaultHeaderSize
	}
	if o.LineHeight <= 0 {
		o.LineHeight = defaultLineHeight
	}
	return o
}
