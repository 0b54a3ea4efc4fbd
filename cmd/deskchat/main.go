// Command deskchat is a small terminal client for the deskchat backend,
// built on the data-synchronization layer: reads go through the cache
// store, writes through the mutation engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/username/deskchat/internal/apiclient"
	"github.com/username/deskchat/internal/domain/entities"
	"github.com/username/deskchat/internal/pkg/logutil"
	"github.com/username/deskchat/internal/sync"
	"github.com/username/deskchat/pkg/config"
)

const usage = `Usage: deskchat [-config FILE] COMMAND [ARGS]

Commands:
  projects                         list projects
  project-create NAME              create a project
  project-rename PID NAME          rename a project
  project-delete PID               delete a project and everything under it
  convs PID                        list a project's conversations
  conv-create PID TITLE            create a conversation
  conv-rename PID CID TITLE        rename a conversation
  conv-delete PID CID              delete a conversation
  open PID CID                     show a conversation and its messages
  send PID CID TEXT                send a message and print the reply
`

// app wires the sync layer together once at startup; every command works
// through these references
type app struct {
	views     *sync.Views
	mutations *sync.Mutations
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logutil.New(logutil.Config{
		Level:   logutil.ParseLevel(cfg.Logging.Level),
		Format:  cfg.Logging.Format,
		Service: "deskchat",
	})

	client := apiclient.NewClient(cfg.Client.BaseURL, cfg.Client.Timeout)
	store := sync.NewStore(logger)
	a := &app{
		views:     sync.NewViews(client, store),
		mutations: sync.NewMutations(client, store, logger),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Client.Timeout)
	defer cancel()

	if err := a.run(ctx, store, args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, store *sync.Store, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "projects":
		return a.listProjects(ctx, store)
	case "project-create":
		return a.createProject(ctx, rest)
	case "project-rename":
		return a.renameProject(ctx, rest)
	case "project-delete":
		return a.deleteProject(ctx, rest)
	case "convs":
		return a.listConversations(ctx, store, rest)
	case "conv-create":
		return a.createConversation(ctx, rest)
	case "conv-rename":
		return a.renameConversation(ctx, rest)
	case "conv-delete":
		return a.deleteConversation(ctx, rest)
	case "open":
		return a.openConversation(ctx, store, rest)
	case "send":
		return a.send(ctx, store, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) listProjects(ctx context.Context, store *sync.Store) error {
	view, err := waitFor(ctx, store, sync.ProjectsKey(), func() (sync.ProjectListView, sync.Status, error) {
		v := a.views.ProjectList(ctx)
		return v, v.Status, v.Err
	})
	if err != nil {
		return err
	}
	if len(view.Projects) == 0 {
		fmt.Println("no projects")
		return nil
	}
	for _, p := range view.Projects {
		fmt.Printf("%6d  %s\n", p.ID, p.Name)
	}
	return nil
}

func (a *app) createProject(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: project-create NAME")
	}
	project, err := a.mutations.CreateProject(ctx, entities.CreateProjectInput{Name: args[0]})
	if err != nil {
		return err
	}
	fmt.Printf("created project %d (%s)\n", project.ID, project.Name)
	return nil
}

func (a *app) renameProject(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: project-rename PID NAME")
	}
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	project, err := a.mutations.UpdateProject(ctx, pid, entities.UpdateProjectInput{Name: args[1]})
	if err != nil {
		return err
	}
	fmt.Printf("renamed project %d to %s\n", project.ID, project.Name)
	return nil
}

func (a *app) deleteProject(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: project-delete PID")
	}
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := a.mutations.DeleteProject(ctx, pid); err != nil {
		return err
	}
	fmt.Printf("deleted project %d\n", pid)
	return nil
}

func (a *app) listConversations(ctx context.Context, store *sync.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: convs PID")
	}
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	view, err := waitFor(ctx, store, sync.ConversationsKey(pid), func() (sync.ConversationListView, sync.Status, error) {
		v := a.views.ConversationList(ctx, pid)
		return v, v.Status, v.Err
	})
	if err != nil {
		return err
	}
	fmt.Printf("project: %s\n", view.Project.Name)
	if len(view.Conversations) == 0 {
		fmt.Println("no conversations")
		return nil
	}
	for _, c := range view.Conversations {
		fmt.Printf("%6d  %s\n", c.ID, c.Title)
	}
	return nil
}

func (a *app) createConversation(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: conv-create PID TITLE")
	}
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	conversation, err := a.mutations.CreateConversation(ctx, pid, entities.CreateConversationInput{Title: args[1]})
	if err != nil {
		return err
	}
	fmt.Printf("created conversation %d (%s)\n", conversation.ID, conversation.Title)
	return nil
}

func (a *app) renameConversation(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: conv-rename PID CID TITLE")
	}
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	cid, err := parseID(args[1])
	if err != nil {
		return err
	}
	conversation, err := a.mutations.UpdateConversation(ctx, pid, cid, entities.UpdateConversationInput{Title: args[2]})
	if err != nil {
		return err
	}
	fmt.Printf("renamed conversation %d to %s\n", conversation.ID, conversation.Title)
	return nil
}

func (a *app) deleteConversation(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: conv-delete PID CID")
	}
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	cid, err := parseID(args[1])
	if err != nil {
		return err
	}
	if err := a.mutations.DeleteConversation(ctx, pid, cid); err != nil {
		return err
	}
	fmt.Printf("deleted conversation %d\n", cid)
	return nil
}

func (a *app) openConversation(ctx context.Context, store *sync.Store, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: open PID CID")
	}
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	cid, err := parseID(args[1])
	if err != nil {
		return err
	}
	view, err := waitFor(ctx, store, sync.ConversationKey(pid, cid), func() (sync.ConversationView, sync.Status, error) {
		v := a.views.Conversation(ctx, pid, cid)
		return v, v.Status, v.Err
	})
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n", view.Conversation.Title)
	printMessages(view.Messages)
	return nil
}

func (a *app) send(ctx context.Context, store *sync.Store, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: send PID CID TEXT")
	}
	pid, err := parseID(args[0])
	if err != nil {
		return err
	}
	cid, err := parseID(args[1])
	if err != nil {
		return err
	}
	content := strings.Join(args[2:], " ")

	// Warm the message cache first so the optimistic append lands on a
	// complete list
	if _, err := waitFor(ctx, store, sync.MessagesKey(pid, cid), func() (sync.ConversationView, sync.Status, error) {
		v := a.views.Conversation(ctx, pid, cid)
		return v, v.Status, v.Err
	}); err != nil {
		return err
	}

	result, err := a.mutations.SendMessage(ctx, pid, cid, entities.SendMessageInput{
		Role:    entities.RoleUser,
		Content: content,
	})
	if err != nil {
		return err
	}

	// The cached list now contains the new messages without a refetch
	view := a.views.Conversation(ctx, pid, cid)
	printMessages(view.Messages)
	if result.ExportRequested != nil {
		fmt.Printf("export ready: %s\n", result.ExportRequested.DownloadURL)
	}
	return nil
}

func printMessages(messages []entities.Message) {
	for _, m := range messages {
		author := string(m.Role)
		if m.Bot != nil {
			author = m.Bot.Name
		} else if m.AgentID != "" {
			author = m.AgentID
		}
		fmt.Printf("[%s] %s\n", author, m.Content)
	}
}

// waitFor re-reads a composed view until it leaves the loading state,
// waking on store change notifications
func waitFor[V any](ctx context.Context, store *sync.Store, key sync.Key, read func() (V, sync.Status, error)) (V, error) {
	changes, cancel := store.Subscribe(sync.Key{Kind: key.Kind})
	defer cancel()

	for {
		view, status, err := read()
		switch status {
		case sync.StatusReady:
			return view, nil
		case sync.StatusError:
			return view, err
		}

		select {
		case <-changes:
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid id", s)
	}
	return id, nil
}
