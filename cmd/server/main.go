package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	emailPkg "rollcall/internal/adapters/email"
	web "rollcall/internal/adapters/http"
	"rollcall/internal/adapters/sheets"
	"rollcall/internal/adapters/storage"
	prefsStorePkg "rollcall/internal/adapters/storage/prefs"
	"rollcall/internal/application/orchestrators"
	"rollcall/internal/application/repository"
	"rollcall/internal/perf"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	sheetID := os.Getenv("ROLLCALL_SHEET_ID")
	if sheetID == "" {
		log.Fatal("ROLLCALL_SHEET_ID is required")
	}
	sheetTab := envOrDefault("ROLLCALL_SHEET_TAB", "Attendance")
	credentialsFile := envOrDefault("ROLLCALL_CREDENTIALS", "credentials.json")

	// Local preferences database with WAL mode and busy timeout. The
	// canonical attendance data lives in the spreadsheet.
	dbPath := envOrDefault("ROLLCALL_DB", "rollcall.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	prefsStore := prefsStorePkg.NewSQLiteStore(db)

	// ROLLCALL_ACCESS_TOKEN takes precedence for short-lived local use;
	// otherwise a service-account credentials file is expected.
	var googleClient *sheets.GoogleClient
	if token := os.Getenv("ROLLCALL_ACCESS_TOKEN"); token != "" {
		googleClient, err = sheets.NewGoogleClientWithToken(context.Background(), token, sheetID, sheetTab)
	} else {
		googleClient, err = sheets.NewGoogleClient(context.Background(), credentialsFile, sheetID, sheetTab)
	}
	if err != nil {
		log.Fatalf("failed to create sheets client: %v", err)
	}
	client := sheets.NewTimedClient(googleClient, collector)

	repo := repository.New(client, prefsStore)

	// Initial load in the background: a cold start with the sheet
	// unreachable still serves, with the error surfaced via /api/state.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repo.LoadAll(ctx); err != nil {
			log.Printf("initial load failed: %v", err)
		}
	}()

	// Configure email sender
	var sender emailPkg.Sender
	emailFrom := envOrDefault("ROLLCALL_RESEND_FROM", "Rollcall <noreply@example.org>")
	if resendKey := os.Getenv("ROLLCALL_RESEND_KEY"); resendKey != "" {
		sender = emailPkg.NewResendSender(resendKey, emailFrom)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NewNoopSender()
		log.Println("Email sender configured (noop — set ROLLCALL_RESEND_KEY for real delivery)")
	}

	digestTo := splitList(os.Getenv("ROLLCALL_DIGEST_TO"))
	if len(digestTo) > 0 {
		go runDigestLoop(repo, sender, digestTo, emailFrom)
	}

	mux := web.NewMux(web.Deps{
		Repo:       repo,
		Prefs:      prefsStore,
		Collector:  collector,
		Sender:     sender,
		DigestTo:   digestTo,
		DigestFrom: emailFrom,
	})

	addr := envOrDefault("ROLLCALL_ADDR", ":8080")
	log.Printf("Rollcall %s starting on %s (sheet=%s tab=%s)", version, addr, sheetID, sheetTab)

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// runDigestLoop mails the attendance digest once a week. The first send
// waits for the member snapshot to populate.
func runDigestLoop(repo *repository.Repository, sender emailPkg.Sender, to []string, from string) {
	ctx := context.Background()
	if _, err := repo.WaitForMembers(ctx); err != nil {
		log.Printf("digest loop: waiting for first load: %v", err)
	}

	ticker := time.NewTicker(7 * 24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		err := orchestrators.ExecuteSendDigest(ctx, orchestrators.SendDigestInput{
			To:   to,
			From: from,
		}, orchestrators.SendDigestDeps{Source: repo, Sender: sender})
		if err != nil {
			log.Printf("digest send failed: %v", err)
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
