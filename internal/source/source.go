package source

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/cleo/internal/system"
)

// Source по порядку отдает изображения, из которых получаются кадры анимации.
type Source interface {
	FrameCount() int
	Dimensions(index int) (width, height int, err error)
	Frame(index int) (image.Image, error)
	Close() error
}

// Open выбирает источник по пути: PDF, папка с изображениями или одно
// изображение. Видео сначала раскладывается на кадры (см. пакет video).
func Open(path string, dpi int) (Source, error) {
	if system.HasExtension(path, system.PDFExtensions) {
		return NewPDFSource(path, dpi)
	}
	if system.HasExtension(path, system.VideoExtensions) {
		return nil, fmt.Errorf("%s является видео: сначала извлеките кадры", path)
	}
	return NewFolderSource(path)
}

// PDFSource рендерит каждую страницу PDF в отдельный кадр.
type PDFSource struct {
	doc  *fitz.Document
	path string
	dpi  int
}

func NewPDFSource(path string, dpi int) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &PDFSource{doc: doc, path: path, dpi: dpi}, nil
}

func (f *PDFSource) FrameCount() int {
	return f.doc.NumPage()
}

// Dimensions возвращает размер страницы в пикселях при DPI источника.
func (f *PDFSource) Dimensions(index int) (int, int, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	scale := float64(f.dpi) / 72
	return int(float64(rect.Dx()) * scale), int(float64(rect.Dy()) * scale), nil
}

// Frame рендерит страницу index. Каждый вызов открывает свой документ,
// чтобы воркеры могли рендерить страницы параллельно.
func (f *PDFSource) Frame(index int) (image.Image, error) {
	workerDoc, err := fitz.New(f.path)
	if err != nil {
		return nil, err
	}
	defer workerDoc.Close()
	return workerDoc.ImageDPI(index, float64(f.dpi))
}

func (f *PDFSource) Close() error {
	return f.doc.Close()
}
