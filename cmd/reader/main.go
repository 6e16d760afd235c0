// Command reader is a small reading device: it tracks progress locally and
// links it to an email account through the readersync server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kevinaaaquil/readersync/client"
	"github.com/kevinaaaquil/readersync/localstore"
	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/progress"
	"github.com/kevinaaaquil/readersync/utils"
)

const usage = `usage: reader <command> [flags]

commands:
  status                       show local reading state
  read -book ID [-chapter N] [-position P] [-minutes M] [-done]
  bookmark -book ID [-kind bookmark|note|highlight] [-position P] [-text T]
  connect -email E             email a code to back up this device
  recover -email E             email a code to restore saved progress
  verify -code C [-type T]     confirm a code and merge or restore progress
  sync [-force]                push local progress to the server and pull the merged copy

environment:
  READER_SERVER      server base url (default http://localhost:8080)
  READER_STORE       sqlite, file or memory (default sqlite)
  READER_STORE_PATH  state location (default in the user config dir)
`

type app struct {
	store  localstore.Store
	api    *client.Client
	stdout io.Writer
}

func main() {
	_ = godotenv.Load()
	utils.InitLogger(envOr("LOG_LEVEL", "warn"), "")

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	kind := envOr("READER_STORE", localstore.KindSQLite)
	st, err := localstore.Open(kind, envOr("READER_STORE_PATH", defaultPath(kind)))
	if err != nil {
		slog.Error("open local store", "kind", kind, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	a := &app{store: st, api: client.New(envOr("READER_SERVER", "http://localhost:8080")), stdout: os.Stdout}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintln(os.Stderr, "server:", apiErr.Message)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "status":
		return a.status(ctx)
	case "read":
		return a.read(ctx, args)
	case "bookmark":
		return a.bookmark(ctx, args)
	case "connect":
		return a.sendCode(ctx, args, models.TokenProgressBackup)
	case "recover":
		return a.sendCode(ctx, args, models.TokenAccountRecovery)
	case "verify":
		return a.verify(ctx, args)
	case "sync":
		return a.sync(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(a.stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) status(ctx context.Context) error {
	state, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	stats := progress.CalculateStats(state.Progress)
	fmt.Fprintf(a.stdout, "guest id:   %s\n", state.GuestID)
	fmt.Fprintf(a.stdout, "email:      %s\n", orDash(state.Email))
	fmt.Fprintf(a.stdout, "books:      %d (%d reading, %d completed)\n", stats.TotalBooks, stats.CurrentlyReading, stats.CompletedBooks)
	fmt.Fprintf(a.stdout, "time spent: %d min\n", stats.TotalReadingTime)
	fmt.Fprintf(a.stdout, "bookmarks:  %d\n", state.Bookmarks.Len())
	if state.LastSyncAt != nil {
		fmt.Fprintf(a.stdout, "last sync:  %s\n", state.LastSyncAt.Local().Format(time.RFC1123))
	}
	return nil
}

func (a *app) read(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	book := fs.String("book", "", "book id")
	chapter := fs.Int("chapter", 0, "current chapter")
	position := fs.Float64("position", -1, "position within the chapter")
	minutes := fs.Int("minutes", 0, "minutes read in this session")
	done := fs.Bool("done", false, "mark the book completed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *book == "" {
		return errors.New("-book is required")
	}
	state, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	u := progress.BookUpdate{MinutesSpent: *minutes}
	if *chapter > 0 {
		u.Chapter = chapter
	}
	if *position >= 0 {
		u.Position = position
	}
	if *done {
		u.Completed = done
	}
	state.Progress = progress.UpdateBook(state.Progress, models.BookID(*book), u, time.Now().UTC())
	if err := a.store.Save(ctx, state); err != nil {
		return err
	}
	b := state.Progress.Books[*book]
	fmt.Fprintf(a.stdout, "book %s: chapter %d, %d min total\n", *book, b.CurrentChapter, b.TimeSpent)
	return nil
}

func (a *app) bookmark(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bookmark", flag.ContinueOnError)
	book := fs.String("book", "", "book id")
	kind := fs.String("kind", "bookmark", "bookmark, note or highlight")
	position := fs.Float64("position", 0, "position in the book")
	text := fs.String("text", "", "title, note content or highlighted text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *book == "" {
		return errors.New("-book is required")
	}
	state, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	id := models.BookID(*book)
	switch *kind {
	case "bookmark":
		state.Bookmarks = progress.AddBookmark(state.Bookmarks, models.Bookmark{BookID: id, Position: *position, Title: *text}, now)
	case "note":
		state.Bookmarks = progress.AddNote(state.Bookmarks, models.Note{BookID: id, Position: *position, Content: *text}, now)
	case "highlight":
		state.Bookmarks = progress.AddHighlight(state.Bookmarks, models.Highlight{BookID: id, Position: *position, Text: *text}, now)
	default:
		return fmt.Errorf("unknown kind %q", *kind)
	}
	if err := a.store.Save(ctx, state); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "saved %s for book %s\n", *kind, *book)
	return nil
}

func (a *app) sendCode(ctx context.Context, args []string, typ models.TokenType) error {
	fs := flag.NewFlagSet(string(typ), flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}
	state, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	res, err := a.api.SendCode(ctx, *email, state.GuestID, typ)
	if err != nil {
		return err
	}
	state.Email = strings.ToLower(strings.TrimSpace(*email))
	if err := a.store.Save(ctx, state); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "code sent to %s, valid until %s\n", state.Email, res.ExpiresAt.Local().Format(time.Kitchen))
	fmt.Fprintf(a.stdout, "run: reader verify -code <code> -type %s\n", typ)
	return nil
}

func (a *app) verify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	code := fs.String("code", "", "six digit code from the email")
	typ := fs.String("type", string(models.TokenProgressBackup), "progress-backup or account-recovery")
	if err := fs.Parse(args); err != nil {
		return err
	}
	state, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	snap := &models.GuestSnapshot{
		Progress:    &state.Progress,
		Bookmarks:   &state.Bookmarks,
		Preferences: &state.Preferences,
		DeviceInfo:  &models.DeviceInfo{Platform: state.Platform, DeviceID: state.GuestID},
	}
	res, err := a.api.Verify(ctx, *code, models.TokenType(*typ), snap)
	if err != nil {
		return err
	}
	state.Email = res.Email
	if res.Record != nil {
		state.Progress = res.Record.Progress
		state.Bookmarks = res.Record.Bookmarks
		state.Preferences = res.Record.Preferences
	}
	now := time.Now().UTC()
	state.LastSyncAt = &now
	if err := a.store.Save(ctx, state); err != nil {
		return err
	}
	if res.Stats != nil {
		fmt.Fprintf(a.stdout, "verified %s: %d books, %d bookmarks (%s)\n", res.Email, res.Stats.BooksCount, res.Stats.BookmarksCount, res.Stats.Action)
	} else {
		fmt.Fprintf(a.stdout, "verified %s\n", res.Email)
	}
	return nil
}

func (a *app) sync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite server progress with local progress")
	if err := fs.Parse(args); err != nil {
		return err
	}
	state, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	if state.Email == "" {
		return errors.New("no email linked; run connect and verify first")
	}
	res, err := a.api.Sync(ctx, client.SyncRequest{
		Email:       state.Email,
		GuestID:     state.GuestID,
		Force:       *force,
		Progress:    &state.Progress,
		Bookmarks:   &state.Bookmarks,
		Preferences: &state.Preferences,
		DeviceInfo:  &models.DeviceInfo{Platform: state.Platform, DeviceID: state.GuestID},
	})
	if err != nil {
		return err
	}
	rec, err := a.api.Fetch(ctx, state.Email, state.GuestID)
	if err != nil {
		return err
	}
	state.Progress = rec.Progress
	state.Bookmarks = rec.Bookmarks
	state.Preferences = rec.Preferences
	synced := res.LastSyncAt
	state.LastSyncAt = &synced
	if err := a.store.Save(ctx, state); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "synced %d books (%s)\n", res.Stats.BooksCount, res.Stats.Action)
	return nil
}

func defaultPath(kind string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	name := "state.db"
	if kind == localstore.KindFile {
		name = "state.json"
	}
	return filepath.Join(dir, "readersync", name)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
