// Package main provides the socgraph CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickadesina/soc-cli/pkg/auth"
	"github.com/nickadesina/soc-cli/pkg/config"
	"github.com/nickadesina/soc-cli/pkg/graph"
	"github.com/nickadesina/soc-cli/pkg/inference"
	"github.com/nickadesina/soc-cli/pkg/ingest"
	"github.com/nickadesina/soc-cli/pkg/logger"
	"github.com/nickadesina/soc-cli/pkg/pathfind"
	"github.com/nickadesina/soc-cli/pkg/server"
	"github.com/nickadesina/soc-cli/pkg/snapshot"
	"github.com/nickadesina/soc-cli/pkg/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "socgraph",
		Short: "socgraph - weighted social relationship graph",
		Long: `socgraph maintains a weighted social graph of people, infers
relationship strength from shared history, and finds the
shortest social path between any two people.

Edge weights are social distances: low means close.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("snapshot", "", "JSON snapshot file")
	rootCmd.PersistentFlags().String("nodes-csv", "", "nodes CSV file (requires --edges-csv)")
	rootCmd.PersistentFlags().String("edges-csv", "", "edges CSV file (requires --nodes-csv)")
	rootCmd.PersistentFlags().String("data-dir", "", "badger data directory")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("socgraph v%s (%s)\n", version, commit)
		},
	})

	addPersonCmd := &cobra.Command{
		Use:   "add-person [file]",
		Short: "Upsert a person from a JSON file (or stdin)",
		Long: `Reads one person record as JSON and upserts it. Relationship
inference proposes edges to everyone else in the graph unless
--no-auto is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAddPerson,
	}
	addPersonCmd.Flags().Bool("overwrite", false, "replace an existing record")
	addPersonCmd.Flags().Int("top-k", inference.TopKAll, "max inferred edges (-1 for all)")
	addPersonCmd.Flags().Bool("no-auto", false, "skip relationship inference")
	rootCmd.AddCommand(addPersonCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "remove-person <id>",
		Short: "Remove a person and every edge touching them",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemovePerson,
	})

	addConnCmd := &cobra.Command{
		Use:   "add-connection <source> <target>",
		Short: "Adjust the connection between two people",
		Args:  cobra.ExactArgs(2),
		RunE:  runAddConnection,
	}
	addConnCmd.Flags().Int("delta", 1, "weight delta (negative weakens; floor deletes)")
	addConnCmd.Flags().StringSlice("context", nil, "context tallies as key=count (repeatable)")
	addConnCmd.Flags().Bool("asymmetric", false, "apply to one direction only")
	rootCmd.AddCommand(addConnCmd)

	removeConnCmd := &cobra.Command{
		Use:   "remove-connection <source> <target>",
		Short: "Remove the connection between two people",
		Args:  cobra.ExactArgs(2),
		RunE:  runRemoveConnection,
	}
	removeConnCmd.Flags().Bool("asymmetric", false, "remove one direction only")
	rootCmd.AddCommand(removeConnCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "shortest-path <source> <target>",
		Short: "Find the closest social route between two people",
		Args:  cobra.ExactArgs(2),
		RunE:  runShortestPath,
	})

	proposeCmd := &cobra.Command{
		Use:   "propose <id>",
		Short: "Show the edges inference would create for a person",
		Args:  cobra.ExactArgs(1),
		RunE:  runPropose,
	}
	proposeCmd.Flags().Int("top-k", inference.TopKAll, "max inferred edges (-1 for all)")
	rootCmd.AddCommand(proposeCmd)

	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "List people matching attribute criteria",
		RunE:  runFilter,
	}
	filterCmd.Flags().String("name", "", "exact name")
	filterCmd.Flags().String("location", "", "exact location")
	filterCmd.Flags().Int("tier", 0, "exact tier (1-4)")
	filterCmd.Flags().String("school", "", "school membership")
	filterCmd.Flags().String("employer", "", "employer membership")
	filterCmd.Flags().String("ecosystem", "", "ecosystem membership")
	filterCmd.Flags().String("society", "", "society membership (any rank)")
	filterCmd.Flags().String("platform", "", "platform key presence")
	rootCmd.AddCommand(filterCmd)

	ingestCmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Apply a batch of person and edge events from a JSON file (or stdin)",
		Long: `Reads a JSON array of events and applies them in order, stopping at
the first failure. Events already applied stay applied. Person
events run relationship inference unless --no-auto is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIngest,
	}
	ingestCmd.Flags().Bool("no-auto", false, "skip relationship inference on person events")
	ingestCmd.Flags().Int("top-k", inference.TopKAll, "max inferred edges per person (-1 for all)")
	rootCmd.AddCommand(ingestCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the graph to a different storage target",
		Long: `Loads the graph from the persistent flags and writes it to the
target named by the export flags. Legacy strength-weighted
snapshots are converted to distance weights on load.`,
		RunE: runExport,
	}
	exportCmd.Flags().String("to-snapshot", "", "target JSON snapshot file")
	exportCmd.Flags().String("to-nodes-csv", "", "target nodes CSV file")
	exportCmd.Flags().String("to-edges-csv", "", "target edges CSV file")
	exportCmd.Flags().String("to-data-dir", "", "target badger directory")
	rootCmd.AddCommand(exportCmd)

	hashCmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for the HTTP basic-auth password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
	rootCmd.AddCommand(hashCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "YAML config file")
	serveCmd.Flags().String("address", "", "listen address override")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// storageTarget resolves the persistent flags into one backend choice.
type storageTarget struct {
	snapshotPath string
	nodesCSV     string
	edgesCSV     string
	dataDir      string
}

func targetFromFlags(cmd *cobra.Command) (storageTarget, error) {
	t := storageTarget{}
	t.snapshotPath, _ = cmd.Flags().GetString("snapshot")
	t.nodesCSV, _ = cmd.Flags().GetString("nodes-csv")
	t.edgesCSV, _ = cmd.Flags().GetString("edges-csv")
	t.dataDir, _ = cmd.Flags().GetString("data-dir")
	return t, t.validate()
}

// serveTarget picks the storage backend for serve. CLI storage flags
// override the config file when given, but contradictory flags are an
// error rather than being silently ignored.
func serveTarget(cmd *cobra.Command, cfg *config.Config) (storageTarget, error) {
	flagTarget, err := targetFromFlags(cmd)
	if err == nil {
		return flagTarget, nil
	}
	if !flagTarget.empty() {
		return storageTarget{}, err
	}
	return storageTarget{
		snapshotPath: cfg.Storage.SnapshotPath,
		nodesCSV:     cfg.Storage.NodesCSV,
		edgesCSV:     cfg.Storage.EdgesCSV,
		dataDir:      cfg.Storage.DataDir,
	}, nil
}

func (t storageTarget) empty() bool {
	return t.snapshotPath == "" && t.nodesCSV == "" && t.edgesCSV == "" && t.dataDir == ""
}

func (t storageTarget) validate() error {
	if (t.nodesCSV == "") != (t.edgesCSV == "") {
		return errors.New("--nodes-csv and --edges-csv must be given together")
	}
	count := 0
	for _, set := range []bool{t.snapshotPath != "", t.nodesCSV != "", t.dataDir != ""} {
		if set {
			count++
		}
	}
	if count > 1 {
		return errors.New("choose one of --snapshot, --nodes-csv/--edges-csv, --data-dir")
	}
	if count == 0 {
		return errors.New("a storage target is required: --snapshot, --nodes-csv/--edges-csv, or --data-dir")
	}
	return nil
}

func (t storageTarget) load() (*graph.Graph, error) {
	switch {
	case t.dataDir != "":
		st, err := store.Open(t.dataDir)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.LoadGraph()
	case t.nodesCSV != "":
		return snapshot.LoadCSV(t.nodesCSV, t.edgesCSV)
	default:
		return snapshot.LoadJSON(t.snapshotPath)
	}
}

func (t storageTarget) save(g *graph.Graph) error {
	switch {
	case t.dataDir != "":
		st, err := store.Open(t.dataDir)
		if err != nil {
			return err
		}
		defer st.Close()
		return st.SaveGraph(g)
	case t.nodesCSV != "":
		return snapshot.SaveCSV(t.nodesCSV, t.edgesCSV, g)
	default:
		return snapshot.SaveJSON(t.snapshotPath, g)
	}
}

func runAddPerson(cmd *cobra.Command, args []string) error {
	target, err := targetFromFlags(cmd)
	if err != nil {
		return err
	}
	g, err := target.load()
	if err != nil {
		return err
	}

	var reader io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		reader = f
	}
	var record graph.PersonRecord
	if err := json.NewDecoder(reader).Decode(&record); err != nil {
		return fmt.Errorf("decode person: %w", err)
	}

	overwrite, _ := cmd.Flags().GetBool("overwrite")
	noAuto, _ := cmd.Flags().GetBool("no-auto")
	topK, _ := cmd.Flags().GetInt("top-k")

	if noAuto {
		if err := g.AddPerson(&record, overwrite); err != nil {
			return err
		}
		fmt.Printf("added %s\n", record.ID)
		return target.save(g)
	}

	edges, err := inference.UpsertWithAutoEdges(g, &record, overwrite, topK, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("added %s with %d inferred edges\n", record.ID, len(edges))
	for _, id := range sortedEdgeIDs(edges) {
		fmt.Printf("  %s -> %s  distance %d\n", record.ID, id, edges[id])
	}
	return target.save(g)
}

func runRemovePerson(cmd *cobra.Command, args []string) error {
	target, err := targetFromFlags(cmd)
	if err != nil {
		return err
	}
	g, err := target.load()
	if err != nil {
		return err
	}
	if err := g.RemovePerson(args[0]); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", args[0])
	return target.save(g)
}

func runAddConnection(cmd *cobra.Command, args []string) error {
	target, err := targetFromFlags(cmd)
	if err != nil {
		return err
	}
	g, err := target.load()
	if err != nil {
		return err
	}

	delta, _ := cmd.Flags().GetInt("delta")
	asymmetric, _ := cmd.Flags().GetBool("asymmetric")
	rawContexts, _ := cmd.Flags().GetStringSlice("context")
	contexts, err := parseContexts(rawContexts)
	if err != nil {
		return err
	}

	if err := g.AddConnection(args[0], args[1], delta, contexts, !asymmetric); err != nil {
		return err
	}
	if weight, ok := g.EdgeWeight(args[0], args[1]); ok {
		fmt.Printf("%s -> %s  weight %d\n", args[0], args[1], weight)
	} else {
		fmt.Printf("%s -> %s  removed (weight floor)\n", args[0], args[1])
	}
	return target.save(g)
}

func runRemoveConnection(cmd *cobra.Command, args []string) error {
	target, err := targetFromFlags(cmd)
	if err != nil {
		return err
	}
	g, err := target.load()
	if err != nil {
		return err
	}
	asymmetric, _ := cmd.Flags().GetBool("asymmetric")
	if err := g.RemoveConnection(args[0], args[1], !asymmetric); err != nil {
		return err
	}
	fmt.Printf("removed %s -- %s\n", args[0], args[1])
	return target.save(g)
}

func runShortestPath(cmd *cobra.Command, args []string) error {
	target, err := targetFromFlags(cmd)
	if err != nil {
		return err
	}
	g, err := target.load()
	if err != nil {
		return err
	}
	result, err := pathfind.ShortestPath(g, args[0], args[1])
	if errors.Is(err, pathfind.ErrNoPath) {
		fmt.Printf("no path between %s and %s\n", args[0], args[1])
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("path: %s\n", strings.Join(result.NodeIDs, " -> "))
	for _, edge := range result.Edges {
		fmt.Printf("  %s -> %s  distance %d", edge.Source, edge.Target, edge.Weight)
		if len(edge.Contexts) > 0 {
			fmt.Printf("  (%s)", formatContexts(edge.Contexts))
		}
		fmt.Println()
	}
	fmt.Printf("total cost: %d  strength: %d\n", result.TotalCost, result.TotalStrength)
	return nil
}

func runPropose(cmd *cobra.Command, args []string) error {
	target, err := targetFromFlags(cmd)
	if err != nil {
		return err
	}
	g, err := target.load()
	if err != nil {
		return err
	}
	person, err := g.GetPerson(args[0])
	if err != nil {
		return err
	}
	topK, _ := cmd.Flags().GetInt("top-k")
	proposals, err := inference.ProposeEdges(person, g, topK, time.Now())
	if err != nil {
		return err
	}
	if len(proposals) == 0 {
		fmt.Println("no relevant candidates")
		return nil
	}
	for _, p := range proposals {
		kind := "inferred"
		if p.Explicit {
			kind = "explicit"
		}
		fmt.Printf("%s  distance %d  %s  (%s)\n", p.PersonID, p.Distance, kind, formatContexts(p.Contexts))
	}
	return nil
}

func runFilter(cmd *cobra.Command, args []string) error {
	target, err := targetFromFlags(cmd)
	if err != nil {
		return err
	}
	g, err := target.load()
	if err != nil {
		return err
	}
	criteria := graph.Criteria{}
	criteria.Name, _ = cmd.Flags().GetString("name")
	criteria.Location, _ = cmd.Flags().GetString("location")
	criteria.Tier, _ = cmd.Flags().GetInt("tier")
	criteria.School, _ = cmd.Flags().GetString("school")
	criteria.Employer, _ = cmd.Flags().GetString("employer")
	criteria.Ecosystem, _ = cmd.Flags().GetString("ecosystem")
	criteria.Society, _ = cmd.Flags().GetString("society")
	criteria.Platform, _ = cmd.Flags().GetString("platform")

	for _, person := range g.FilterPeople(criteria) {
		name := person.Name
		if name == "" {
			name = "-"
		}
		fmt.Printf("%s\t%s\t%s\n", person.ID, name, person.Location)
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	target, err := targetFromFlags(cmd)
	if err != nil {
		return err
	}
	g, err := target.load()
	if err != nil {
		return err
	}

	var reader io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		reader = f
	}
	events, err := ingest.DecodeEvents(reader)
	if err != nil {
		return err
	}

	noAuto, _ := cmd.Flags().GetBool("no-auto")
	topK, _ := cmd.Flags().GetInt("top-k")
	logLevel, _ := cmd.Flags().GetString("log-level")

	svc := ingest.NewService(g, ingest.Options{
		AutoConnect: !noAuto,
		AutoTopK:    topK,
		Logger:      logger.New(logLevel),
	})
	if err := svc.Apply(cmd.Context(), events); err != nil {
		// Partial progress is still worth keeping.
		if saveErr := target.save(g); saveErr != nil {
			return errors.Join(err, saveErr)
		}
		return err
	}
	fmt.Printf("applied %d events: %d people, %d directed edges\n", len(events), g.PersonCount(), g.EdgeCount())
	return target.save(g)
}

func runExport(cmd *cobra.Command, args []string) error {
	source, err := targetFromFlags(cmd)
	if err != nil {
		return err
	}
	dest := storageTarget{}
	dest.snapshotPath, _ = cmd.Flags().GetString("to-snapshot")
	dest.nodesCSV, _ = cmd.Flags().GetString("to-nodes-csv")
	dest.edgesCSV, _ = cmd.Flags().GetString("to-edges-csv")
	dest.dataDir, _ = cmd.Flags().GetString("to-data-dir")
	if err := dest.validate(); err != nil {
		return fmt.Errorf("export target: %w", err)
	}

	g, err := source.load()
	if err != nil {
		return err
	}
	if err := dest.save(g); err != nil {
		return err
	}
	fmt.Printf("exported %d people, %d directed edges\n", g.PersonCount(), g.EdgeCount())
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		cfg.Server.Address = addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	if logLevel == "" {
		logLevel = cfg.Logging.Level
	}
	appLogger := logger.New(logLevel)

	target, err := serveTarget(cmd, cfg)
	if err != nil {
		return err
	}

	var persister server.Persister
	var g *graph.Graph
	if target.dataDir != "" {
		st, err := store.Open(target.dataDir)
		if err != nil {
			return err
		}
		defer st.Close()
		g, err = st.LoadGraph()
		if err != nil {
			return err
		}
		persister = st
	} else {
		g, err = target.load()
		if err != nil {
			return err
		}
		persister = targetPersister{target}
	}

	var verifier *auth.Verifier
	if cfg.Auth.Enabled {
		verifier = auth.NewVerifier(cfg.Auth.Username, cfg.Auth.PasswordHash)
	}

	srv, err := server.New(g, &server.Config{
		Address:                 cfg.Server.Address,
		ReadTimeout:             cfg.Server.ReadTimeout,
		WriteTimeout:            cfg.Server.WriteTimeout,
		ConnectionWritesEnabled: cfg.Server.ConnectionWritesEnabled,
		MetricsEnabled:          cfg.Server.MetricsEnabled,
		AutoConnect:             cfg.Inference.AutoConnect,
		AutoTopK:                cfg.Inference.AutoTopK,
	}, verifier, persister, appLogger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	appLogger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

// targetPersister adapts file-based storage targets to server.Persister.
type targetPersister struct {
	target storageTarget
}

func (p targetPersister) SaveGraph(g *graph.Graph) error {
	return p.target.save(g)
}

func parseContexts(entries []string) (map[string]int, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]int, len(entries))
	for _, entry := range entries {
		key, val, ok := strings.Cut(entry, "=")
		if !ok {
			// Bare key counts once.
			out[entry]++
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("context %q: count must be an integer", entry)
		}
		out[key] += n
	}
	return out, nil
}

func formatContexts(contexts map[string]int) string {
	parts := make([]string, 0, len(contexts))
	for _, key := range sortedEdgeIDs(contexts) {
		parts = append(parts, fmt.Sprintf("%s=%d", key, contexts[key]))
	}
	return strings.Join(parts, ", ")
}

func sortedEdgeIDs(m map[string]int) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
