// Command sketch is a terminal client for a running sketchd service:
// it submits generation prompts, edits are left to API consumers, but
// sessions, chat, and design documents are all reachable from here.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/infrasketch/sketchd/pkg/client"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

const defaultAPI = "http://localhost:8080/api"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	ctx := context.Background()

	var err error
	switch cmd {
	case "generate":
		err = runGenerate(ctx, args)
	case "blank":
		err = runBlank(ctx, args)
	case "sessions":
		err = runSessions(ctx, args)
	case "show":
		err = runShow(ctx, args)
	case "chat":
		err = runChat(ctx, args)
	case "rename":
		err = runRename(ctx, args)
	case "delete":
		err = runDelete(ctx, args)
	case "doc":
		err = runDoc(ctx, args)
	case "export":
		err = runExport(ctx, args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: sketch <command> [flags] [args]

Commands:
  generate <prompt>            submit a prompt and wait for the diagram
  blank                        create an empty editable session
  sessions                     list sessions, newest first
  show <session-id>            print a session's diagram and transcript
  chat <session-id> <message>  send a chat message
  rename <session-id> <name>   rename a session
  delete <session-id>          delete a session
  doc <session-id>             generate the design document and wait for it
  export <session-id>          export the design document as a PDF

Flags (per command):
  -api string   sketchd base URL (default $SKETCH_API or `+defaultAPI+`)

Examples:
  sketch generate "a web shop with a payment service and a queue"
  sketch chat sess_1234 "add a cache in front of the database"
  sketch export sess_1234 -o design.pdf
`)
}

// apiFlag registers the -api flag on fs, defaulting from $SKETCH_API.
func apiFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("SKETCH_API")
	if def == "" {
		def = defaultAPI
	}
	return fs.String("api", def, "sketchd base URL")
}

func runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	api := apiFlag(fs)
	model := fs.String("model", "", "assistant model override")
	fs.Parse(args)

	prompt := strings.Join(fs.Args(), " ")
	if prompt == "" {
		return fmt.Errorf("usage: sketch generate <prompt>")
	}

	c := client.New(*api)
	ack, err := c.Generate(ctx, prompt, *model)
	if err != nil {
		return err
	}
	fmt.Printf("session %s: generating...\n", ack.SessionID)

	resp, err := c.WaitForDiagram(ctx, ack.SessionID, client.PollOptions{})
	if err != nil {
		return err
	}
	if resp.Status == session.StatusFailed {
		return fmt.Errorf("generation failed: %s", resp.Error)
	}

	fmt.Printf("session %s: %s (%.1fs)\n\n", ack.SessionID, resp.Name, resp.DurationSeconds)
	printDiagram(resp.Diagram)
	for _, msg := range resp.Messages {
		if msg.Role == session.RoleAssistant {
			fmt.Printf("\n%s\n", msg.Content)
		}
	}
	return nil
}

func runBlank(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("blank", flag.ExitOnError)
	api := apiFlag(fs)
	fs.Parse(args)

	resp, err := client.New(*api).CreateBlank(ctx)
	if err != nil {
		return err
	}
	fmt.Println(resp.SessionID)
	return nil
}

func runSessions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	api := apiFlag(fs)
	fs.Parse(args)

	summaries, err := client.New(*api).ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no sessions")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tNODES\tEDGES\tDOC\tUPDATED")
	for _, s := range summaries {
		doc := ""
		if s.HasDesignDoc {
			doc = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.ID, s.Name, s.NodeCount, s.EdgeCount, doc, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	api := apiFlag(fs)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sketch show <session-id>")
	}

	sess, err := client.New(*api).GetSession(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("%s  (%s, %s)\n\n", sess.Name, sess.ID, sess.Status)
	printDiagram(sess.Diagram)

	if len(sess.Messages) > 0 {
		fmt.Println()
		for _, msg := range sess.Messages {
			fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		}
	}
	if sess.HasDesignDoc() {
		fmt.Println("\ndesign document available: sketch export", sess.ID)
	}
	return nil
}

func runChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	api := apiFlag(fs)
	focus := fs.String("focus", "", "node id the message refers to")
	fs.Parse(args)

	if fs.NArg() < 2 {
		return fmt.Errorf("usage: sketch chat <session-id> <message>")
	}
	sessionID := fs.Arg(0)
	message := strings.Join(fs.Args()[1:], " ")

	resp, err := client.New(*api).Chat(ctx, session.ChatRequest{
		SessionID:     sessionID,
		Message:       message,
		FocusedNodeID: *focus,
	})
	if err != nil {
		return err
	}

	fmt.Println(resp.Response)
	if resp.Diagram != nil {
		fmt.Println()
		printDiagram(resp.Diagram)
	}
	return nil
}

func runRename(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rename", flag.ExitOnError)
	api := apiFlag(fs)
	fs.Parse(args)

	if fs.NArg() < 2 {
		return fmt.Errorf("usage: sketch rename <session-id> <name>")
	}
	name := strings.Join(fs.Args()[1:], " ")

	resp, err := client.New(*api).Rename(ctx, fs.Arg(0), name)
	if err != nil {
		return err
	}
	fmt.Printf("renamed to %s\n", resp.Name)
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	api := apiFlag(fs)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sketch delete <session-id>")
	}

	if _, err := client.New(*api).Delete(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Println("deleted", fs.Arg(0))
	return nil
}

func runDoc(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("doc", flag.ExitOnError)
	api := apiFlag(fs)
	out := fs.String("o", "", "write the document to a file instead of stdout")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sketch doc <session-id>")
	}
	sessionID := fs.Arg(0)
	c := client.New(*api)

	if _, err := c.GenerateDesignDoc(ctx, sessionID); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "generating design document...")

	resp, err := c.WaitForDesignDoc(ctx, sessionID, client.PollOptions{})
	if err != nil {
		return err
	}
	if resp.Status == session.DesignDocFailed {
		return fmt.Errorf("design document generation failed: %s", resp.Error)
	}

	if *out != "" {
		if err := os.WriteFile(*out, []byte(resp.DesignDoc), 0o644); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "wrote", *out)
		return nil
	}
	fmt.Println(resp.DesignDoc)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	api := apiFlag(fs)
	out := fs.String("o", "", "output file (default: server-suggested name)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sketch export <session-id>")
	}

	pdf, filename, err := client.New(*api).ExportDesignDoc(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *out != "" {
		filename = *out
	}
	if err := os.WriteFile(filename, pdf, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "wrote", filename)
	return nil
}

// printDiagram renders nodes and edges as an indented listing, groups
// with their members inline.
func printDiagram(d *diagram.Diagram) {
	if d == nil || len(d.Nodes) == 0 {
		fmt.Println("(empty diagram)")
		return
	}

	grouped := make(map[string]bool)
	for _, n := range d.Nodes {
		if n.IsGroup {
			for _, id := range n.ChildIDs {
				grouped[id] = true
			}
		}
	}

	fmt.Printf("nodes (%d):\n", len(d.Nodes))
	for _, n := range d.Nodes {
		if grouped[n.ID] {
			continue
		}
		printNode(d, n, "  ")
	}

	if len(d.Edges) > 0 {
		fmt.Printf("edges (%d):\n", len(d.Edges))
		for _, e := range d.Edges {
			label := ""
			if e.Label != "" {
				label = "  (" + e.Label + ")"
			}
			fmt.Printf("  %s -> %s%s\n", nodeName(d, e.Source), nodeName(d, e.Target), label)
		}
	}
}

func printNode(d *diagram.Diagram, n diagram.Node, indent string) {
	if n.IsGroup {
		state := "expanded"
		if n.IsCollapsed {
			state = "collapsed"
		}
		fmt.Printf("%s%s  [group, %s]\n", indent, n.Label, state)
		for _, id := range n.ChildIDs {
			if child := d.NodeByID(id); child != nil {
				printNode(d, *child, indent+"  ")
			}
		}
		return
	}
	fmt.Printf("%s%s  [%s]\n", indent, n.Label, n.Type)
	if n.Description != "" {
		fmt.Printf("%s  %s\n", indent, n.Description)
	}
}

func nodeName(d *diagram.Diagram, id string) string {
	if n := d.NodeByID(id); n != nil && n.Label != "" {
		return n.Label
	}
	return id
}
