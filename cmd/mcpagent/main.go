// mcpagent connects to an MCP server, adapts its tools, and answers a query
// with an OpenRouter-backed model.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/assistants"
	"github.com/effective-security/mcpbridge/callbacks"
	"github.com/effective-security/mcpbridge/catalog"
	"github.com/effective-security/mcpbridge/llmfactory"
	"github.com/effective-security/mcpbridge/mcp"
	"github.com/effective-security/mcpbridge/tools"
	"github.com/effective-security/mcpbridge/tools/tavily"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge", "mcpagent")

const defaultServerURL = "http://localhost:3000/mcp"

const systemPrompt = "You are a helpful assistant. Use the available tools to answer the user's question; " +
	"report tool errors back to the user instead of guessing.\n\nAvailable tools:\n"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("mcpagent", flag.ContinueOnError)
	var (
		cfgFile = fs.String("cfg", "", "location of the provider configuration file")
		query   = fs.String("q", "Search for recent bugs related to 'crash' in Cisco products", "query to run")
		debug   = fs.Bool("D", false, "enable debug logging")
		verbose = fs.Bool("v", false, "print tool inputs and outputs")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if *debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.INFO)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverURL := values.StringsCoalesce(os.Getenv("MCP_SERVER_URL"), defaultServerURL)
	authToken := os.Getenv("MCP_AUTH_TOKEN")

	sess, err := mcp.Connect(ctx, serverURL, authToken)
	if err != nil {
		return errors.WithMessagef(err, "failed to connect to MCP server at %s", serverURL)
	}
	defer sess.Close()

	cat, err := catalog.Build(ctx, sess)
	if err != nil {
		return errors.WithMessage(err, "failed to build tool catalog")
	}
	logger.KV(xlog.INFO, "status", "tools_loaded", "count", cat.Len())

	cfg, err := llmfactory.Load(*cfgFile)
	if err != nil {
		return err
	}
	client := llmfactory.NewClient(&cfg.Provider)

	list := cat.Tools()
	if ws, err := tavily.New(); err == nil {
		list = append(list, ws)
	} else {
		logger.KV(xlog.INFO, "status", "web_search_disabled", "reason", err.Error())
	}

	mode := callbacks.ModeDefault
	if *verbose {
		mode = callbacks.ModeVerbose
	}

	assistant := assistants.NewAssistant(&client.Chat.Completions, list,
		assistants.WithModel(cfg.Provider.DefaultModel),
		assistants.WithSystemPrompt(systemPrompt+tools.GetDescriptions(list...)),
		assistants.WithCallback(callbacks.NewPrinter(os.Stderr, mode)),
	)

	res, err := assistant.Run(ctx, *query)
	if err != nil {
		return err
	}
	fmt.Println(res)
	return nil
}
