package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/infrasketch/sketchd/pkg/session"
)

func TestRenderPDF(t *testing.T) {
	pdfBytes := []byte("%PDF-1.4 fake content")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/render/pdf" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req renderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Title != "My design" || !strings.Contains(req.Markdown, "# Overview") {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(renderResponse{
			Content:  base64.StdEncoding.EncodeToString(pdfBytes),
			Filename: "my-design.pdf",
		})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL)
	result, err := c.RenderPDF(context.Background(), "My design", "# Overview\n\nBody.")
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if string(result.Content) != string(pdfBytes) {
		t.Error("content was not decoded")
	}
	if result.Filename != "my-design.pdf" {
		t.Errorf("filename = %q", result.Filename)
	}
}

func TestRenderPDFDefaultFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(renderResponse{Content: base64.StdEncoding.EncodeToString([]byte("x"))})
	}))
	t.Cleanup(srv.Close)

	result, err := NewClient(srv.URL).RenderPDF(context.Background(), "t", "m")
	if err != nil {
		t.Fatal(err)
	}
	if result.Filename != "design.pdf" {
		t.Errorf("filename = %q, want default", result.Filename)
	}
}

func TestRenderPDFErrors(t *testing.T) {
	t.Run("upstream status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "renderer exploded", http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		_, err := NewClient(srv.URL).RenderPDF(context.Background(), "t", "m")
		if !session.IsUpstream(err) {
			t.Errorf("kind = %v, want upstream", err)
		}
		if !strings.Contains(err.Error(), "renderer exploded") {
			t.Errorf("error %q missing upstream detail", err)
		}
	})

	t.Run("bad base64", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(renderResponse{Content: "not base64!!!", Filename: "x.pdf"})
		}))
		t.Cleanup(srv.Close)

		_, err := NewClient(srv.URL).RenderPDF(context.Background(), "t", "m")
		if !session.IsUpstream(err) {
			t.Errorf("kind = %v, want upstream", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := NewClient(srv.URL).RenderPDF(context.Background(), "t", "m")
		if !session.IsUpstream(err) {
			t.Errorf("kind = %v, want upstream", err)
		}
	})
}
