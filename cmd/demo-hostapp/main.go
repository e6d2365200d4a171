// Command demo-hostapp runs a minimal host app wired to larkauth.
//
// It exists to exercise the full login flow against a real (or stubbed)
// Lark deployment:
//
//	LARK_APP_ID=... LARK_APP_SECRET=... \
//	LARK_REDIRECT_URI=http://localhost:8080/auth/callback \
//	LARK_JWT_SECRET_KEY=dev-secret go run ./cmd/demo-hostapp
//
// Visit http://localhost:8080/auth/login to start a login.
package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/panyam/larkauth"
	"github.com/panyam/larkauth/stores"
)

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")
	staticDir := flag.String("static", "./static", "directory served under /static/")
	dataDir := flag.String("data", "", "store users on disk at this path instead of in memory")
	flag.Parse()

	cfg := larkauth.LoadConfig()
	if cfg.AppID == "" || cfg.AppSecret == "" {
		log.Fatal("LARK_APP_ID and LARK_APP_SECRET must be set")
	}

	var store larkauth.UserStore
	if *dataDir != "" {
		store = stores.NewFSUserStore(*dataDir)
	} else {
		store = larkauth.NewMemUserStore()
	}

	auth := larkauth.NewFromConfig(cfg, store)

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(*staticDir))))
	mux.Handle("/", auth.Handler())

	slog.Info("demo-hostapp listening", "addr", *addr, "redirectURI", cfg.RedirectURI)
	if err := http.ListenAndServe(*addr, auth.Session.LoadAndSave(mux)); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
