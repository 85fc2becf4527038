package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"covenant"
	"covenant/internal/align"
	"covenant/internal/config"
)

// errExitSilent signals a non-zero exit after the report was already
// printed, so main does not add an error line on top.
var errExitSilent = errors.New("validation failed")

var (
	flagFormat      string
	flagManifestDir string
	flagSourceRoot  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errExitSilent) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "covenant",
	Short:         "Manifest/source contract enforcement",
	Long:          "Covenant checks that source code defines and exercises the artifacts its task manifests declare, resolves manifest supersession chains, and builds a knowledge graph of manifests, files, and artifacts.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagManifestDir, "manifest-dir", "", "manifest directory (default from .covenant.yaml, else ./manifests)")
	rootCmd.PersistentFlags().StringVar(&flagSourceRoot, "source-root", "", "source tree root (default from .covenant.yaml, else .)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(manifestsCmd)
}

// newEngine builds an engine from the project config with flag overrides.
func newEngine() (*covenant.Engine, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	opts := []covenant.Option{covenant.WithConfig(cfg)}
	if flagManifestDir != "" {
		opts = append(opts, covenant.WithManifestDir(flagManifestDir))
	}
	if flagSourceRoot != "" {
		opts = append(opts, covenant.WithSourceRoot(flagSourceRoot))
	}
	return covenant.New(opts...)
}

var (
	flagMode     string
	flagUseChain bool
	flagQuiet    bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <manifest>",
	Short: "Check a manifest's expected artifacts against the source tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&flagMode, "validation-mode", "implementation", "implementation|behavioral")
	validateCmd.Flags().BoolVar(&flagUseChain, "use-manifest-chain", false, "aggregate artifacts and commands across the active chain")
	validateCmd.Flags().BoolVar(&flagQuiet, "quiet", false, "suppress output; exit code only")
}

func runValidate(cmd *cobra.Command, args []string) error {
	mode, err := align.ParseMode(flagMode)
	if err != nil {
		return err
	}
	e, err := newEngine()
	if err != nil {
		return err
	}

	report, err := e.Validate(cmd.Context(), args[0], covenant.ValidateOptions{
		Mode:     mode,
		UseChain: flagUseChain,
	})
	if err != nil {
		return err
	}

	if !flagQuiet {
		if err := output(report, formatValidationText); err != nil {
			return err
		}
	}
	if !report.Aligned {
		// The validate command is the one place alignment failure becomes
		// a process exit code.
		return errExitSilent
	}
	return nil
}

var flagGraphDB string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build the knowledge graph from the active manifest chain",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().StringVar(&flagGraphDB, "db", "", "persist the graph to a SQLite database at this path")
}

func runGraph(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	var g *covenant.Graph
	if flagGraphDB != "" {
		g, err = e.SaveGraph(cmd.Context(), flagGraphDB)
	} else {
		g, err = e.BuildGraph(cmd.Context())
	}
	if err != nil {
		return err
	}
	return output(graphSummary(g), formatGraphText)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Classify source files as undeclared, registered, or tracked",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	report, err := e.Track(cmd.Context())
	if err != nil {
		return err
	}
	return output(report, formatTrackingText)
}

var flagAll bool

var manifestsCmd = &cobra.Command{
	Use:   "manifests",
	Short: "List the active manifest chain",
	Args:  cobra.NoArgs,
	RunE:  runManifests,
}

func init() {
	manifestsCmd.Flags().BoolVar(&flagAll, "all", false, "include superseded manifests")
}

func runManifests(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	list := e.ActiveManifests
	if flagAll {
		list = e.AllManifests
	}
	manifests, err := list(cmd.Context())
	if err != nil {
		return err
	}
	issues, err := e.RegistryIssues()
	if err != nil {
		return err
	}

	rows := make([]manifestRow, 0, len(manifests))
	for _, m := range manifests {
		rows = append(rows, manifestRow{
			Task:     m.TaskNum(),
			Goal:     m.Goal,
			TaskType: string(m.TaskType),
			Path:     m.Path,
		})
	}
	return output(manifestListing{Manifests: rows, Issues: issues}, formatManifestsText)
}
