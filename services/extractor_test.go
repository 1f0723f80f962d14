package services

import (
	"context"
	"errors"
	"testing"
)

type fakeOCR struct {
	enabled bool
	text    string
	err     error
	calls   int
}

func (f *fakeOCR) Enabled() bool { return f.enabled }

func (f *fakeOCR) ExtractPage(_ context.Context, _ string, _ int) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestOCRFallbackDisabled(t *testing.T) {
	ocr := &fakeOCR{enabled: false}
	e := NewPDFExtractor(ocr, nil)

	if got := e.ocrFallback(context.Background(), "a.pdf", 1); got != "" {
		t.Fatalf("expected empty text with OCR disabled, got %q", got)
	}
	if ocr.calls != 0 {
		t.Fatal("disabled OCR must not be called")
	}
}

func TestOCRFallbackErrorMeansEmptyPage(t *testing.T) {
	// OCR failure is "no text for this page", never a fatal error.
	ocr := &fakeOCR{enabled: true, err: errors.New("rendering error")}
	e := NewPDFExtractor(ocr, nil)

	if got := e.ocrFallback(context.Background(), "a.pdf", 3); got != "" {
		t.Fatalf("expected empty text on OCR failure, got %q", got)
	}
	if ocr.calls != 1 {
		t.Fatalf("expected one OCR attempt, got %d", ocr.calls)
	}
}

func TestOCRFallbackReturnsText(t *testing.T) {
	ocr := &fakeOCR{enabled: true, text: "scanned words"}
	e := NewPDFExtractor(ocr, nil)

	if got := e.ocrFallback(context.Background(), "a.pdf", 2); got != "scanned words" {
		t.Fatalf("got %q", got)
	}
}
