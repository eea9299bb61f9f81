package worker

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"resumePress/internal/section"
)

// previewTemplate 把分区模型投影成一页自包含 HTML，供无头浏览器截图。
// 794px 对应 A4 宽度 @ 96 DPI。
const previewTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
  body { margin: 0; padding: 0; background: #ffffff; font-family: Helvetica, Arial, sans-serif; }
  #preview-root {
    width: 794px;
    min-height: 1123px;
    box-sizing: border-box;
    padding: 48px;
    background: white;
  }
  h2 {
    font-size: 14pt;
    letter-spacing: 0.05em;
    text-transform: uppercase;
    border-bottom: 1px solid #222;
    padding-bottom: 2px;
    margin: 18px 0 8px;
  }
  li, p { font-size: 11pt; line-height: 1.4; margin: 2px 0; }
  ul { margin: 0; padding-left: 18px; }
  .indent-1 { margin-left: 16px; }
  .indent-2 { margin-left: 32px; }
</style>
</head>
<body>
<div id="preview-root">
{{range .}}
  <h2>{{.Title}}</h2>
  <ul>
  {{range .Items}}<li class="indent-{{.Indent}}"{{if not .IsBullet}} style="list-style:none"{{end}}>{{.Text}}</li>
  {{end}}
  </ul>
{{end}}
</div>
</body>
</html>`

var previewTmpl = template.Must(template.New("preview").Parse(previewTemplate))

// renderPreviewImage 渲染分区模型并返回 JPEG 截图字节。
func renderPreviewImage(sections section.Sections, quality int) (_ []byte, err error) {
	visible := sections.Visible()

	var buf bytes.Buffer
	if err := previewTmpl.Execute(&buf, visible); err != nil {
		return nil, fmt.Errorf("render preview html: %w", err)
	}

	launch := launcher.New().
		Headless(true).
		NoSandbox(true)
	defer func() {
		if err != nil {
			launch.Cleanup()
		}
	}()

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(browserURL).Timeout(60 * time.Second)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
		launch.Cleanup()
	}()

	dataURL := "data:text/html;charset=utf-8," + url.PathEscape(buf.String())
	page, err := browser.Page(proto.TargetCreateTarget{URL: dataURL})
	if err != nil {
		return nil, fmt.Errorf("open preview page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait preview load: %w", err)
	}

	element, err := page.Timeout(10 * time.Second).Element("#preview-root")
	if err != nil {
		return nil, fmt.Errorf("find preview root: %w", err)
	}

	data, err := element.Screenshot(proto.PageCaptureScreenshotFormatJpeg, quality)
	if err != nil {
		return nil, fmt.Errorf("capture preview screenshot: %w", err)
	}
	return data, nil
}
