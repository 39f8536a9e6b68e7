package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/marcus/soilnet/internal/api"
	"github.com/marcus/soilnet/internal/serverdb"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "users":
		runAdminUsers(args[1:])
	case "create-key":
		runAdminCreateKey(args[1:])
	case "events":
		runAdminEvents(args[1:])
	case "cleanup":
		runAdminCleanup(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: soilnet-server admin <command> [flags]

Commands:
  users       List accounts, optionally by role
  create-key  Issue an API key for an account
  events      Show recent auth events
  cleanup     Delete auth events past the retention period`)
}

func openDB(dbPath string) *serverdb.ServerDB {
	cfg := api.LoadConfig()
	if dbPath == "" {
		dbPath = cfg.ServerDBPath
	}
	store, err := serverdb.OpenWithDriver(cfg.DBDriver, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

const dbFlagUsage = "path to server.db (default: from SOILNET_DB_PATH or ./data/server.db)"

func runAdminUsers(args []string) {
	fs := flag.NewFlagSet("admin users", flag.ExitOnError)
	role := fs.String("role", "", "only this role (farmer, consultant, admin)")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	if *role != "" && !serverdb.IsValidRole(*role) {
		fail(fmt.Errorf("unknown role %q", *role))
	}

	store := openDB(*dbPath)
	defer store.Close()

	users, err := store.ListUsers(*role)
	if err != nil {
		fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.CreatedAt.Format(time.DateOnly))
	}
	w.Flush()
}

func runAdminCreateKey(args []string) {
	fs := flag.NewFlagSet("admin create-key", flag.ExitOnError)
	email := fs.String("email", "", "account email address")
	name := fs.String("name", "", "key name (e.g. field-tablet)")
	ttl := fs.Duration("ttl", 0, "key lifetime (default: never expires)")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	if *email == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "error: --email and --name are required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	user, err := store.GetUserByEmail(*email)
	if err != nil {
		fail(err)
	}
	if user == nil {
		fail(fmt.Errorf("user not found: %s", *email))
	}

	var expiresAt *time.Time
	if *ttl > 0 {
		t := time.Now().UTC().Add(*ttl)
		expiresAt = &t
	}
	plaintext, ak, err := store.GenerateAPIKey(user.ID, *name, expiresAt)
	if err != nil {
		fail(err)
	}

	fmt.Printf("created API key for %s (%s)\n", user.Email, user.Role)
	fmt.Printf("  name: %s\n", ak.Name)
	if ak.ExpiresAt != nil {
		fmt.Printf("  expires: %s\n", ak.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Printf("  key:  %s\n", plaintext)
	fmt.Println("\nSave this key now -- it will not be shown again.")
}

func runAdminEvents(args []string) {
	fs := flag.NewFlagSet("admin events", flag.ExitOnError)
	email := fs.String("email", "", "only events for this email")
	eventType := fs.String("type", "", "only this event type (signup, signup_duplicate, login, login_failed, finalized)")
	limit := fs.Int("limit", 50, "maximum events to show")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	events, err := store.QueryAuthEvents(*eventType, *email, *limit)
	if err != nil {
		fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tEMAIL\tMETADATA")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.EventType, e.Email, e.Metadata)
	}
	w.Flush()
}

func runAdminCleanup(args []string) {
	fs := flag.NewFlagSet("admin cleanup", flag.ExitOnError)
	dbPath := fs.String("db", "", dbFlagUsage)
	olderThan := fs.Duration("older-than", api.LoadConfig().AuthEventRetention, "delete events older than this")
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	n, err := store.CleanupAuthEvents(*olderThan)
	if err != nil {
		fail(err)
	}
	fmt.Printf("deleted %d auth events\n", n)
}
