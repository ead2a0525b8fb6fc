// Package main is the entry point for the fact resolver admin CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/axonops/fact-resolver/internal/cache/filecache"
	"github.com/axonops/fact-resolver/internal/cache/sqldb"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	serverURL string
	output    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fact-resolver-admin",
		Short: "Admin CLI for the fact resolver",
		Long:  `A command-line tool for inspecting a running fact resolver and maintaining its resolver caches.`,
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8085", "Fact resolver server URL")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format: table, json")

	rootCmd.AddCommand(versionCmd(), schemaCmd(), explainCmd(), runCmd(), cacheCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fact-resolver-admin %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List registered fact schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			var schema map[string]struct {
				Description string `json:"description"`
				Type        string `json:"type"`
			}
			if err := getJSON("/api/schema", &schema); err != nil {
				return err
			}
			if output == "json" {
				return printJSON(schema)
			}

			ids := make([]string, 0, len(schema))
			for id := range schema {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FACT\tTYPE\tDESCRIPTION")
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t%s\t%s\n", id, schema[id].Type, schema[id].Description)
			}
			return w.Flush()
		},
	}
}

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "List registered resolvers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body struct {
				Resolvers []struct {
					Name        string   `json:"name"`
					Description string   `json:"description"`
					Inputs      []string `json:"inputs"`
					Outputs     []string `json:"outputs"`
					Cost        float64  `json:"cost"`
				} `json:"resolvers"`
			}
			if err := getJSON("/api/explain", &body); err != nil {
				return err
			}
			if output == "json" {
				return printJSON(body)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RESOLVER\tINPUTS\tOUTPUTS\tCOST")
			for _, r := range body.Resolvers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%g\n",
					r.Name,
					strings.Join(r.Inputs, ","),
					strings.Join(r.Outputs, ","),
					r.Cost,
				)
			}
			return w.Flush()
		},
	}
}

func runCmd() *cobra.Command {
	var inputs []string
	var required []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a resolution",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputMap := make(map[string]any, len(inputs))
			for _, kv := range inputs {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid input %q: expected fact=value", kv)
				}
				inputMap[k] = v
			}

			payload, err := json.Marshal(map[string]any{
				"inputs":         inputMap,
				"required_facts": required,
			})
			if err != nil {
				return err
			}

			resp, err := httpClient().Post(serverURL+"/api/run", "application/json", strings.NewReader(string(payload)))
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}

			var result struct {
				Facts map[string]any `json:"facts"`
				Trace []string       `json:"trace"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return err
			}
			if output == "json" {
				return printJSON(result)
			}

			ids := make([]string, 0, len(result.Facts))
			for id := range result.Facts {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FACT\tVALUE")
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t%v\n", id, result.Facts[id])
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("trace: %s\n", strings.Join(result.Trace, " -> "))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "Seed input as fact=value (repeatable)")
	cmd.Flags().StringArrayVarP(&required, "require", "r", nil, "Required fact id (repeatable)")
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain resolver caches",
	}
	cmd.AddCommand(cacheEnforceCmd(), cacheClearCmd())
	return cmd
}

func cacheEnforceCmd() *cobra.Command {
	var dir, ext string
	var maxBytes int64

	cmd := &cobra.Command{
		Use:   "enforce",
		Short: "Enforce the size limit on a file cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := filecache.New(dir, ext, maxBytes)
			if err != nil {
				return err
			}
			if err := policy.EnforceLimit(); err != nil {
				return err
			}
			fmt.Printf("enforced %d byte limit on %s\n", maxBytes, dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "resolver-cache", "Cache directory")
	cmd.Flags().StringVar(&ext, "ext", ".json", "Cache file extension")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 10_000_000, "Maximum total size in bytes")
	return cmd
}

func cacheClearCmd() *cobra.Command {
	var driver, dsn string
	var dir, ext string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear a SQL or file cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if dsn != "" {
				policy, err := sqldb.New(sqldb.Config{Driver: sqldb.Driver(driver), DSN: dsn})
				if err != nil {
					return err
				}
				defer policy.Close()
				if err := policy.Clear(ctx); err != nil {
					return err
				}
				fmt.Println("cleared SQL cache")
				return nil
			}

			policy, err := filecache.New(dir, ext, 0)
			if err != nil {
				return err
			}
			if err := policy.Clear(ctx); err != nil {
				return err
			}
			fmt.Printf("cleared file cache in %s\n", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "sqlite", "SQL cache driver: sqlite, postgres, mysql")
	cmd.Flags().StringVar(&dsn, "dsn", "", "SQL cache DSN; when set, clears the SQL cache")
	cmd.Flags().StringVar(&dir, "dir", "resolver-cache", "File cache directory")
	cmd.Flags().StringVar(&ext, "ext", ".json", "File cache extension")
	return cmd
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func getJSON(path string, out any) error {
	resp, err := httpClient().Get(serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
