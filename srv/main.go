package main

import (
	"flag"
	"net/http"
	"os"

	devtls "github.com/opd-ai/pdfscorm/srv/tls"
	"github.com/opd-ai/pdfscorm/srv/util"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	assetDir := flag.String("assets", "static", "viewer asset directory")
	workRoot := flag.String("work", "output", "working directory root")
	office := flag.String("soffice", envOr("SOFFICE_BIN", "soffice"), "office suite binary for document conversion")
	certFile := flag.String("cert", "", "TLS certificate file (enables HTTPS together with -key)")
	keyFile := flag.String("key", "", "TLS key file")
	flag.Parse()

	if err := os.MkdirAll(*workRoot, 0o755); err != nil {
		util.ErrorLogger.Fatalf("Failed to create working directory root: %v", err)
	}

	server := NewServer(*assetDir, *workRoot, *office)

	util.InfoLogger.Printf("Server starting on %s", *addr)
	if *certFile != "" && *keyFile != "" {
		util.ErrorLogger.Fatal(devtls.ListenAndServeTLS(*addr, *certFile, *keyFile, server))
	}
	util.ErrorLogger.Fatal(http.ListenAndServe(*addr, server))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
