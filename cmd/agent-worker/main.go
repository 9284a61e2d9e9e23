// agent-worker is a console harness for a project's workflow: it opens a
// live session, keeps it reconciled against the change stream, and walks
// the graph step by step from the start node.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"conduit-backend/application/session"
	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/config"
	"conduit-backend/infrastructure/persistence/postgres"
	"conduit-backend/infrastructure/realtime"
)

func main() {
	projectID := flag.String("project", "", "project id to walk")
	flag.Parse()
	if *projectID == "" {
		log.Fatal("usage: agent-worker -project <project-id>")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := realtime.NewStreamClient(cfg.DatabaseURL, logger)
	defer stream.Close()
	go func() {
		if err := stream.Run(ctx); err != nil {
			logger.Error("change stream stopped", zap.Error(err))
		}
	}()

	sess := session.New(*projectID, postgres.NewGraphStore(db), postgres.NewToolStore(db), stream, logger)
	if err := sess.Open(ctx); err != nil {
		logger.Fatal("failed to open session", zap.String("projectID", *projectID), zap.Error(err))
	}
	defer sess.Close()

	if err := walk(sess); err != nil {
		logger.Fatal("walk aborted", zap.Error(err))
	}
}

// walk drives an interactive traversal over the graph as loaded at
// session open; transitions follow the edges the walker allows.
func walk(sess *session.Session) error {
	in := bufio.NewScanner(os.Stdin)
	walker, err := workflow.NewWalker(sess.Nodes(), sess.Edges())
	if err != nil {
		return err
	}

	for {
		node := walker.Current()
		fmt.Printf("\n[%s] %s\n", node.Kind, node.Title)
		if node.Prompt != "" {
			fmt.Println(node.Prompt)
		}
		if node.Tool != nil {
			fmt.Printf("tool: %s %s %s\n", node.Tool.Name, node.Tool.Method, node.Tool.Endpoint)
		}

		steps := walker.NextSteps()
		if len(steps) == 0 {
			fmt.Println("no outgoing steps, conversation complete")
			return nil
		}
		for i, step := range steps {
			label := step.Edge.Label
			if label == "" {
				label = step.Edge.ID
			}
			fmt.Printf("  %d) %s -> %s\n", i+1, label, step.Node.Title)
		}

		fmt.Print("step> ")
		if !in.Scan() {
			return in.Err()
		}
		choice, err := strconv.Atoi(strings.TrimSpace(in.Text()))
		if err != nil || choice < 1 || choice > len(steps) {
			fmt.Println("pick a step number from the list")
			continue
		}
		walker.TransitionTo(steps[choice-1].Node.ID)
	}
}
