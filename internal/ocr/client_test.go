package ocr

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "faktura.pdf" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		json.NewEncoder(w).Encode(entity.RawDocument{
			Text:       "Číslo dokladu 2531898",
			Confidence: 0.93,
			Pages: []entity.Page{{
				Number:   1,
				Barcodes: []entity.Barcode{{Data: "8591234567890", Symbology: "EAN13", Page: 1}},
			}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, testLogger())
	doc, err := client.Recognize(context.Background(), "faktura.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if doc.Text != "Číslo dokladu 2531898" || doc.Confidence != 0.93 {
		t.Fatalf("doc = %+v", doc)
	}
	if len(doc.Pages) != 1 || len(doc.Pages[0].Barcodes) != 1 {
		t.Fatalf("pages = %+v", doc.Pages)
	}
}

func TestRecognizeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "tesseract crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, testLogger())
	if _, err := client.Recognize(context.Background(), "x.pdf", []byte("x")); err == nil {
		t.Fatal("5xx must surface as an error")
	}
}

func TestRecognizeEmptyUpload(t *testing.T) {
	client := NewClient("http://unused", time.Second, testLogger())
	if _, err := client.Recognize(context.Background(), "x.pdf", nil); err == nil {
		t.Fatal("empty upload must fail before any request")
	}
}
