package sabnzbd_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cratedig/internal/services"
	"cratedig/internal/transport/sabnzbd"
)

func TestUploadNZBSendsMultipartFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Method != http.MethodPost || q.Get("mode") != "addfile" || q.Get("apikey") != "key" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.RawQuery)
		}
		if q.Get("cat") != "music" || q.Get("nzbname") != "ArtistA - Album X 320" {
			t.Fatalf("unexpected params %s", r.URL.RawQuery)
		}
		file, header, err := r.FormFile("name")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "ArtistA - Album X 320.nzb" || string(data) != "<nzb/>" {
			t.Fatalf("unexpected upload %s %q", header.Filename, data)
		}
		_, _ = w.Write([]byte(`{"status":true,"nzo_ids":["SABnzbd_nzo_1"]}`))
	}))
	t.Cleanup(server.Close)

	client, err := sabnzbd.New(server.URL, "key", "music")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.UploadNZB(context.Background(), []byte("<nzb/>"), "ArtistA - Album X 320.nzb", "/library/ArtistA/Album X"); err != nil {
		t.Fatalf("UploadNZB: %v", err)
	}
}

func TestUploadNZBRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"error":"no files"}`))
	}))
	t.Cleanup(server.Close)

	client, _ := sabnzbd.New(server.URL, "key", "")
	err := client.UploadNZB(context.Background(), []byte("<nzb/>"), "x.nzb", "")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestBadAPIKeyIsConfigurationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"error":"API Key Incorrect"}`))
	}))
	t.Cleanup(server.Close)

	client, _ := sabnzbd.New(server.URL, "wrong", "")
	if _, err := client.Version(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mode") != "version" {
			t.Fatalf("unexpected mode %q", r.URL.Query().Get("mode"))
		}
		_, _ = w.Write([]byte(`{"version":"4.3.2"}`))
	}))
	t.Cleanup(server.Close)

	client, _ := sabnzbd.New(server.URL, "key", "")
	version, err := client.Version(context.Background())
	if err != nil || version != "4.3.2" {
		t.Fatalf("unexpected version %q err=%v", version, err)
	}
}

func TestUploadNZBRejectsEmptyPayload(t *testing.T) {
	client, _ := sabnzbd.New("http://localhost:8080", "key", "")
	if err := client.UploadNZB(context.Background(), nil, "x.nzb", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
